package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/analytics"
	"github.com/smallbiznis/storefront/internal/authorization"
	"github.com/smallbiznis/storefront/internal/catalog"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/migration"
	"github.com/smallbiznis/storefront/internal/notification"
	"github.com/smallbiznis/storefront/internal/observability"
	"github.com/smallbiznis/storefront/internal/order"
	"github.com/smallbiznis/storefront/internal/payment"
	"github.com/smallbiznis/storefront/internal/profile"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"github.com/smallbiznis/storefront/internal/scheduler"
	"github.com/smallbiznis/storefront/internal/server"
	"github.com/smallbiznis/storefront/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		clock.Module,
		db.Module,
		migration.Module,
		ratelimit.Module,
		authorization.Module,

		catalog.Module,
		profile.Module,
		order.Module,
		payment.Module,
		analytics.Module,
		notification.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func newSnowflakeNode() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		log.Fatalf("snowflake node: %v", err)
	}
	return node
}
