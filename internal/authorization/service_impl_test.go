package authorization

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:authzsvc?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec("DELETE FROM casbin_rule")
	})

	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorize_BuyerPermissions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.NoError(t, svc.Authorize(ctx, "user", ObjectProduct, ActionProductView))
	assert.NoError(t, svc.Authorize(ctx, "user", ObjectOrder, ActionOrderCreate))
	assert.NoError(t, svc.Authorize(ctx, "user", ObjectPayment, ActionPaymentVerify))

	assert.ErrorIs(t, svc.Authorize(ctx, "user", ObjectProduct, ActionProductManage), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, "user", ObjectOrder, ActionOrderList), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, "user", ObjectAnalytics, ActionAnalyticsView), ErrForbidden)
}

func TestAuthorize_AdminInheritsBuyer(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.NoError(t, svc.Authorize(ctx, "admin", ObjectProduct, ActionProductManage))
	assert.NoError(t, svc.Authorize(ctx, "admin", ObjectPayment, ActionPaymentConfirm))
	assert.NoError(t, svc.Authorize(ctx, "admin", ObjectAnalytics, ActionAnalyticsView))

	// Inherited from the buyer role.
	assert.NoError(t, svc.Authorize(ctx, "admin", ObjectOrder, ActionOrderCreate))
	assert.NoError(t, svc.Authorize(ctx, "admin", ObjectProduct, ActionProductView))
}

func TestAuthorize_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, "", ObjectProduct, ActionProductView), ErrInvalidRole)
	assert.ErrorIs(t, svc.Authorize(ctx, "superuser", ObjectProduct, ActionProductView), ErrInvalidRole)
	assert.ErrorIs(t, svc.Authorize(ctx, "user", "", ActionProductView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "user", ObjectProduct, ""), ErrInvalidAction)
}
