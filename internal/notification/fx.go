package notification

import (
	"github.com/smallbiznis/storefront/internal/config"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(func(cfg config.Config, log *zap.Logger) orderdomain.Notifier {
		return NewWebhookNotifier(cfg.OrderWebhookURL, log)
	}),
)
