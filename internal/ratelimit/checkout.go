package ratelimit

import (
	"context"
	"fmt"

	"github.com/smallbiznis/storefront/internal/config"
)

const keyCheckoutUser = "checkout:user:%d"

// CheckoutLimiter throttles order creation per buyer so a script cannot
// drain stock reservations. Without redis it degrades to allow-all; the
// stock guard underneath remains correct.
type CheckoutLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewCheckoutLimiter(bucket *TokenBucket, cfg config.Config) *CheckoutLimiter {
	if bucket == nil {
		return nil
	}
	if cfg.CheckoutRate <= 0 || cfg.CheckoutBurst <= 0 {
		return nil
	}
	return &CheckoutLimiter{
		enabled: true,
		bucket:  bucket,
		rate:    cfg.CheckoutRate,
		burst:   cfg.CheckoutBurst,
	}
}

func (l *CheckoutLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *CheckoutLimiter) Allow(ctx context.Context, userID int64) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyCheckoutUser, userID), l.rate, l.burst)
}
