package migration

import (
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/config"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	profiledomain "github.com/smallbiznis/storefront/internal/profile/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// sqlite is the zero-setup dev and test path; golang-migrate drives
		// the server engines.
		if cfg.DBType == "sqlite" {
			return conn.AutoMigrate(
				&catalogdomain.Product{},
				&catalogdomain.InventoryLog{},
				&orderdomain.Order{},
				&profiledomain.UserProfile{},
				&paymentdomain.Payment{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB, cfg.DBType)
	}),
)
