package service

import (
	"context"
	"time"

	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/payment/domain"
	"gorm.io/gorm"
)

// Settler voids open payment attempts from inside the order-cancelling
// transaction. It only touches payment rows, so it sits below the order
// service in the dependency graph.
type Settler struct {
	repo domain.Repository
}

func NewSettler(repo domain.Repository) orderdomain.PaymentSettler {
	return &Settler{repo: repo}
}

func (s *Settler) VoidOpen(ctx context.Context, tx *gorm.DB, orderID, cause string, now time.Time) error {
	status := domain.StatusFailed
	if cause == "expired" {
		status = domain.StatusExpired
	}
	_, err := s.repo.VoidOpenByOrder(ctx, tx, orderID, status, now)
	return err
}
