package payment

import (
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/payment/adapters"
	"github.com/smallbiznis/storefront/internal/payment/adapters/cashapp"
	"github.com/smallbiznis/storefront/internal/payment/adapters/crypto"
	"github.com/smallbiznis/storefront/internal/payment/adapters/paypal"
	"github.com/smallbiznis/storefront/internal/payment/repository"
	"github.com/smallbiznis/storefront/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(newRegistry),
	fx.Provide(service.NewSettler),
	fx.Provide(service.New),
)

func newRegistry(cfg config.Config, log *zap.Logger) *adapters.Registry {
	feed := crypto.NewPriceFeed(cfg.Crypto.PriceFeedBaseURL, nil)
	return adapters.NewRegistry(
		paypal.New(cfg.PayPal, log),
		crypto.NewETH(cfg.Crypto, feed, log),
		crypto.NewLTC(cfg.Crypto, feed, log),
		cashapp.New(cfg.CashAppUsername),
	)
}
