package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	ObjectProduct   = "product"
	ObjectInventory = "inventory"
	ObjectOrder     = "order"
	ObjectPayment   = "payment"
	ObjectProfile   = "profile"
	ObjectAnalytics = "analytics"
)

const (
	ActionProductView   = "product.view"
	ActionProductManage = "product.manage"

	ActionInventoryView   = "inventory.view"
	ActionInventoryAdjust = "inventory.adjust"

	ActionOrderView     = "order.view"
	ActionOrderCreate   = "order.create"
	ActionOrderCancel   = "order.cancel"
	ActionOrderComplete = "order.complete"
	ActionOrderList     = "order.list"

	ActionPaymentView    = "payment.view"
	ActionPaymentStart   = "payment.start"
	ActionPaymentVerify  = "payment.verify"
	ActionPaymentConfirm = "payment.confirm"

	ActionProfileView        = "profile.view"
	ActionProfileLeaderboard = "profile.leaderboard"

	ActionAnalyticsView = "analytics.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role string, object string, action string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != RoleUser && role != RoleAdmin {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := "role:" + role
	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization.denied",
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Buyer permissions
		{"role:user", ObjectProduct, ActionProductView},
		{"role:user", ObjectOrder, ActionOrderView},
		{"role:user", ObjectOrder, ActionOrderCreate},
		{"role:user", ObjectOrder, ActionOrderCancel},
		{"role:user", ObjectPayment, ActionPaymentView},
		{"role:user", ObjectPayment, ActionPaymentStart},
		{"role:user", ObjectPayment, ActionPaymentVerify},
		{"role:user", ObjectProfile, ActionProfileView},

		// Admin permissions
		{"role:admin", ObjectProduct, ActionProductManage},
		{"role:admin", ObjectInventory, ActionInventoryView},
		{"role:admin", ObjectInventory, ActionInventoryAdjust},
		{"role:admin", ObjectOrder, ActionOrderList},
		{"role:admin", ObjectOrder, ActionOrderComplete},
		{"role:admin", ObjectPayment, ActionPaymentConfirm},
		{"role:admin", ObjectProfile, ActionProfileLeaderboard},
		{"role:admin", ObjectAnalytics, ActionAnalyticsView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// Admins inherit buyer permissions.
	if _, err := enforcer.AddGroupingPolicy("role:admin", "role:user"); err != nil {
		return err
	}
	return nil
}
