package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	analyticsdomain "github.com/smallbiznis/storefront/internal/analytics/domain"
	"github.com/smallbiznis/storefront/internal/authorization"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability"
	obsmiddleware "github.com/smallbiznis/storefront/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	profiledomain "github.com/smallbiznis/storefront/internal/profile/domain"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, reg *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, reg *prometheus.Registry) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics, reg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	authzSvc        authorization.Service
	catalogSvc      catalogdomain.Service
	orderSvc        orderdomain.Service
	paymentSvc      paymentdomain.Service
	profileSvc      profiledomain.Service
	analyticsSvc    analyticsdomain.Service
	checkoutLimiter *ratelimit.CheckoutLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	AuthzSvc     authorization.Service
	CatalogSvc   catalogdomain.Service
	OrderSvc     orderdomain.Service
	PaymentSvc   paymentdomain.Service
	ProfileSvc   profiledomain.Service
	AnalyticsSvc analyticsdomain.Service

	CheckoutLimiter *ratelimit.CheckoutLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		authzSvc:        p.AuthzSvc,
		catalogSvc:      p.CatalogSvc,
		orderSvc:        p.OrderSvc,
		paymentSvc:      p.PaymentSvc,
		profileSvc:      p.ProfileSvc,
		analyticsSvc:    p.AnalyticsSvc,
		checkoutLimiter: p.CheckoutLimiter,
	}

	svc.registerShopRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerShopRoutes() {
	api := s.engine.Group("/api")

	// -------- Catalog --------
	api.GET("/products", s.ListProducts)
	api.GET("/products/:id", s.GetProductByID)

	// -------- Orders --------
	orders := api.Group("/orders", s.UserRequired())
	orders.POST("", s.authorizeAction(authorization.ObjectOrder, authorization.ActionOrderCreate), s.CheckoutRateLimit(), s.CreateOrder)
	orders.GET("", s.authorizeAction(authorization.ObjectOrder, authorization.ActionOrderView), s.ListMyOrders)
	orders.GET("/:token", s.authorizeAction(authorization.ObjectOrder, authorization.ActionOrderView), s.GetMyOrder)
	orders.POST("/:token/cancel", s.authorizeAction(authorization.ObjectOrder, authorization.ActionOrderCancel), s.CancelMyOrder)

	// -------- Payments --------
	orders.POST("/:token/payment", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentStart), s.StartPayment)
	orders.POST("/:token/payment/return", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentVerify), s.HandlePaymentReturn)
	orders.POST("/:token/payment/verify", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentVerify), s.VerifyCryptoPayment)
	orders.POST("/:token/payment/proof", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentVerify), s.SubmitPaymentProof)

	// -------- Profile --------
	api.GET("/profile", s.UserRequired(), s.authorizeAction(authorization.ObjectProfile, authorization.ActionProfileView), s.GetMyProfile)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.UserRequired())

	// -------- Catalog --------
	admin.POST("/products", s.authorizeAction(authorization.ObjectProduct, authorization.ActionProductManage), s.CreateProduct)
	admin.PATCH("/products/:id", s.authorizeAction(authorization.ObjectProduct, authorization.ActionProductManage), s.UpdateProduct)
	admin.POST("/products/:id/archive", s.authorizeAction(authorization.ObjectProduct, authorization.ActionProductManage), s.ArchiveProduct)

	// -------- Inventory --------
	admin.POST("/products/:id/stock", s.authorizeAction(authorization.ObjectInventory, authorization.ActionInventoryAdjust), s.AdjustStock)
	admin.GET("/products/:id/history", s.authorizeAction(authorization.ObjectInventory, authorization.ActionInventoryView), s.GetStockHistory)
	admin.GET("/inventory/low-stock", s.authorizeAction(authorization.ObjectInventory, authorization.ActionInventoryView), s.ListLowStock)

	// -------- Orders --------
	admin.GET("/orders", s.authorizeAction(authorization.ObjectOrder, authorization.ActionOrderList), s.ListOrders)
	admin.GET("/orders/:token", s.authorizeAction(authorization.ObjectOrder, authorization.ActionOrderList), s.GetOrder)
	admin.POST("/orders/:token/cancel", s.authorizeAction(authorization.ObjectOrder, authorization.ActionOrderCancel), s.CancelOrder)
	admin.POST("/orders/:token/complete", s.authorizeAction(authorization.ObjectOrder, authorization.ActionOrderComplete), s.CompleteOrder)

	// -------- Payments --------
	admin.GET("/orders/:token/payments", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentConfirm), s.ListOrderPayments)
	admin.POST("/orders/:token/payment/confirm", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentConfirm), s.ConfirmManualPayment)

	// -------- Profiles --------
	admin.GET("/profiles/leaderboard", s.authorizeAction(authorization.ObjectProfile, authorization.ActionProfileLeaderboard), s.ListTopSpenders)
	admin.GET("/profiles/:user_id", s.authorizeAction(authorization.ObjectProfile, authorization.ActionProfileLeaderboard), s.GetProfile)

	// -------- Analytics --------
	admin.GET("/analytics/summary", s.authorizeAction(authorization.ObjectAnalytics, authorization.ActionAnalyticsView), s.GetSalesSummary)
	admin.GET("/analytics/top-products", s.authorizeAction(authorization.ObjectAnalytics, authorization.ActionAnalyticsView), s.GetTopProducts)
}
