package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ShopConfig holds operational tunables that admins adjust without a restart.
type ShopConfig struct {
	PaymentWindowMinutes int     `mapstructure:"paymentWindowMinutes"`
	LowStockThreshold    int     `mapstructure:"lowStockThreshold"`
	TopProductsLimit     int     `mapstructure:"topProductsLimit"`
	CryptoMatchTolerance float64 `mapstructure:"cryptoMatchTolerance"`
}

func DefaultShopConfig() ShopConfig {
	return ShopConfig{
		PaymentWindowMinutes: 30,
		LowStockThreshold:    5,
		TopProductsLimit:     5,
		CryptoMatchTolerance: 0.001,
	}
}

func (c ShopConfig) PaymentWindow() time.Duration {
	return time.Duration(c.PaymentWindowMinutes) * time.Minute
}

// ShopConfigHolder exposes the current ShopConfig and hot-reloads it when the
// backing file changes.
type ShopConfigHolder struct {
	current atomic.Value // holds ShopConfig
}

func NewShopConfigHolder() (*ShopConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("shop")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/storefront/config")
	v.AddConfigPath("/etc/storefront")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultShopConfig()
	v.SetDefault("shop.paymentWindowMinutes", defaults.PaymentWindowMinutes)
	v.SetDefault("shop.lowStockThreshold", defaults.LowStockThreshold)
	v.SetDefault("shop.topProductsLimit", defaults.TopProductsLimit)
	v.SetDefault("shop.cryptoMatchTolerance", defaults.CryptoMatchTolerance)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg ShopConfig
	if err := v.UnmarshalKey("shop", &cfg); err != nil {
		return nil, err
	}
	if err := validateShopConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ShopConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ShopConfig
		if err := v.UnmarshalKey("shop", &updated); err != nil {
			log.Printf("[shop-config] reload failed: %v", err)
			return
		}
		if err := validateShopConfig(updated); err != nil {
			log.Printf("[shop-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[shop-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticShopConfigHolder wraps a fixed config, used by tests.
func NewStaticShopConfigHolder(cfg ShopConfig) *ShopConfigHolder {
	holder := &ShopConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *ShopConfigHolder) Get() ShopConfig {
	return h.current.Load().(ShopConfig)
}

func validateShopConfig(cfg ShopConfig) error {
	if cfg.PaymentWindowMinutes <= 0 {
		return errors.New("shop.paymentWindowMinutes must be positive")
	}
	if cfg.LowStockThreshold < 0 {
		return errors.New("shop.lowStockThreshold cannot be negative")
	}
	if cfg.TopProductsLimit <= 0 {
		return errors.New("shop.topProductsLimit must be positive")
	}
	if cfg.CryptoMatchTolerance <= 0 {
		return errors.New("shop.cryptoMatchTolerance must be positive")
	}
	return nil
}
