package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/analytics/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock
	Shop  *config.ShopConfigHolder
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
	shop  *config.ShopConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("analytics.service"),
		repo:  p.Repo,
		clock: p.Clock,
		shop:  p.Shop,
	}
}

func (s *Service) SalesSummary(ctx context.Context, req domain.SummaryRequest) (*domain.Summary, error) {
	if err := validateWindow(req); err != nil {
		return nil, err
	}

	totals, err := s.repo.CompletedTotals(ctx, s.db, req.Since, req.Until)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.StatusCounts(ctx, s.db, req.Since, req.Until)
	if err != nil {
		return nil, err
	}
	statusCounts := make(map[string]int64, len(counts))
	for _, c := range counts {
		statusCounts[c.Status] = c.Count
	}

	categories, err := s.repo.CategorySales(ctx, s.db, req.Since, req.Until)
	if err != nil {
		return nil, err
	}
	byCategory := make([]domain.CategorySales, 0, len(categories))
	for _, c := range categories {
		byCategory = append(byCategory, domain.CategorySales{
			Category:   c.Category,
			OrderCount: c.OrderCount,
			Revenue:    c.Revenue,
		})
	}

	top, err := s.TopProducts(ctx, req)
	if err != nil {
		return nil, err
	}

	return &domain.Summary{
		Revenue:         totals.Revenue,
		CompletedOrders: totals.Orders,
		UnitsSold:       totals.UnitsSold,
		StatusCounts:    statusCounts,
		ByCategory:      byCategory,
		TopProducts:     top,
		GeneratedAt:     s.clock.Now(),
	}, nil
}

func (s *Service) TopProducts(ctx context.Context, req domain.SummaryRequest) ([]domain.ProductSales, error) {
	if err := validateWindow(req); err != nil {
		return nil, err
	}

	limit := s.shop.Get().TopProductsLimit
	items, err := s.repo.TopProducts(ctx, s.db, req.Since, req.Until, limit)
	if err != nil {
		return nil, err
	}

	sales := make([]domain.ProductSales, 0, len(items))
	for _, item := range items {
		sales = append(sales, domain.ProductSales{
			ProductID:   snowflake.ID(item.ProductID).String(),
			ProductName: item.ProductName,
			OrderCount:  item.OrderCount,
			UnitsSold:   item.UnitsSold,
			Revenue:     item.Revenue,
		})
	}
	return sales, nil
}

func validateWindow(req domain.SummaryRequest) error {
	if req.Since != nil && req.Until != nil && !req.Until.After(*req.Since) {
		return domain.ErrInvalidWindow
	}
	return nil
}
