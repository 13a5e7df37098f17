package cashapp

import (
	"context"
	"strings"

	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/payment/domain"
)

// Adapter issues manual-transfer instructions. Cash App has no settlement
// API the shop can poll, so confirmation always goes through an admin.
type Adapter struct {
	cashtag string
}

func New(username string) *Adapter {
	username = strings.TrimPrefix(strings.TrimSpace(username), "$")
	return &Adapter{cashtag: "$" + username}
}

func (a *Adapter) Method() orderdomain.Method { return orderdomain.MethodCashApp }

func (a *Adapter) Initiate(ctx context.Context, intent domain.Intent) (*domain.Instructions, error) {
	cashtag := a.cashtag
	// the order token in the payment note is how admins match transfers
	note := intent.OrderID
	return &domain.Instructions{
		Kind:    domain.KindManual,
		Cashtag: &cashtag,
		Note:    &note,
	}, nil
}

func (a *Adapter) Verify(ctx context.Context, payment *domain.Payment, input domain.VerifyInput) (*domain.VerifyResult, error) {
	return nil, domain.ErrManualOnly
}
