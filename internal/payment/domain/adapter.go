package domain

import (
	"context"
	"errors"

	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
)

// Intent describes the order a buyer wants to settle.
type Intent struct {
	OrderID string
	Amount  int64
	Method  orderdomain.Method
}

// Instructions tell the buyer how to pay. Fields are populated per method:
// a redirect URL for hosted checkouts, an address and amount for crypto
// transfers, a cashtag and note for manual transfers.
type Instructions struct {
	Kind           string   `json:"kind"`
	ExternalID     *string  `json:"external_id,omitempty"`
	RedirectURL    *string  `json:"redirect_url,omitempty"`
	Address        *string  `json:"address,omitempty"`
	CryptoAmount   *float64 `json:"crypto_amount,omitempty"`
	CryptoCurrency *string  `json:"crypto_currency,omitempty"`
	Cashtag        *string  `json:"cashtag,omitempty"`
	Note           *string  `json:"note,omitempty"`
}

const (
	KindRedirect = "redirect"
	KindCrypto   = "crypto_transfer"
	KindManual   = "manual_transfer"
)

type VerifyInput struct {
	// ExternalID is the provider-side reference: a checkout id for hosted
	// providers, a transaction hash for crypto transfers.
	ExternalID string
	// Tolerance is the acceptable relative shortfall on crypto amounts.
	Tolerance float64
}

type VerifyResult struct {
	Confirmed bool
	TxHash    *string
	// FailureKind labels a rejection for metrics when Confirmed is false.
	FailureKind string
}

type Adapter interface {
	Method() orderdomain.Method
	Initiate(ctx context.Context, intent Intent) (*Instructions, error)
	Verify(ctx context.Context, payment *Payment, input VerifyInput) (*VerifyResult, error)
}

var (
	ErrProviderUnavailable = errors.New("provider_unavailable")
	ErrMethodNotSupported  = errors.New("method_not_supported")
	ErrManualOnly          = errors.New("manual_confirmation_only")
)
