package crypto

import (
	"context"
	"math"
	"strings"

	"github.com/smallbiznis/storefront/internal/config"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/zap"
)

// transfer is what an explorer reports about a transaction.
type transfer struct {
	to        string
	amount    float64
	confirmed bool
}

// explorer resolves a transaction hash on one chain. address is the wallet
// expected to receive the transfer; UTXO chains need it to pick the right
// output.
type explorer interface {
	lookup(ctx context.Context, txHash, address string) (*transfer, error)
}

type Adapter struct {
	method   orderdomain.Method
	currency string
	coin     string
	address  string
	explorer explorer
	feed     PriceFeed
	log      *zap.Logger
}

func NewETH(cfg config.CryptoConfig, feed PriceFeed, log *zap.Logger) *Adapter {
	return &Adapter{
		method:   orderdomain.MethodETH,
		currency: "ETH",
		coin:     CoinEthereum,
		address:  cfg.ETHAddress,
		explorer: newEtherscan(cfg.EtherscanBaseURL, cfg.EtherscanAPIKey, nil),
		feed:     feed,
		log:      log.Named("payment.eth"),
	}
}

func NewLTC(cfg config.CryptoConfig, feed PriceFeed, log *zap.Logger) *Adapter {
	return &Adapter{
		method:   orderdomain.MethodLTC,
		currency: "LTC",
		coin:     CoinLitecoin,
		address:  cfg.LTCAddress,
		explorer: newBlockCypher(cfg.BlockCypherBaseURL, nil),
		feed:     feed,
		log:      log.Named("payment.ltc"),
	}
}

// newAdapter wires an explorer directly, used by tests.
func newAdapter(method orderdomain.Method, currency, coin, address string, ex explorer, feed PriceFeed, log *zap.Logger) *Adapter {
	return &Adapter{
		method:   method,
		currency: currency,
		coin:     coin,
		address:  address,
		explorer: ex,
		feed:     feed,
		log:      log,
	}
}

func (a *Adapter) Method() orderdomain.Method { return a.method }

func (a *Adapter) Initiate(ctx context.Context, intent domain.Intent) (*domain.Instructions, error) {
	price, err := a.feed.USDPrice(ctx, a.coin)
	if err != nil {
		return nil, err
	}

	amount := roundCoin(float64(intent.Amount) / 100.0 / price)
	address := a.address
	currency := a.currency
	note := intent.OrderID

	a.log.Info("crypto quote issued",
		zap.String("order_id", intent.OrderID),
		zap.String("currency", currency),
		zap.Float64("amount", amount),
	)

	return &domain.Instructions{
		Kind:           domain.KindCrypto,
		Address:        &address,
		CryptoAmount:   &amount,
		CryptoCurrency: &currency,
		Note:           &note,
	}, nil
}

func (a *Adapter) Verify(ctx context.Context, payment *domain.Payment, input domain.VerifyInput) (*domain.VerifyResult, error) {
	txHash := strings.TrimSpace(input.ExternalID)
	if txHash == "" {
		return &domain.VerifyResult{FailureKind: "missing_tx_hash"}, nil
	}
	if payment.CryptoAmount == nil {
		return &domain.VerifyResult{FailureKind: "missing_quote"}, nil
	}

	tx, err := a.explorer.lookup(ctx, txHash, a.address)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return &domain.VerifyResult{FailureKind: "tx_not_found"}, nil
	}
	if !strings.EqualFold(tx.to, a.address) {
		return &domain.VerifyResult{FailureKind: "wrong_address"}, nil
	}
	if !tx.confirmed {
		return &domain.VerifyResult{FailureKind: "unconfirmed"}, nil
	}
	// The transfer must match the quote; the tolerance only absorbs
	// rounding, not a different amount in either direction.
	if math.Abs(tx.amount-*payment.CryptoAmount) >= input.Tolerance {
		a.log.Warn("crypto amount mismatch",
			zap.String("order_id", payment.OrderID),
			zap.Float64("expected", *payment.CryptoAmount),
			zap.Float64("received", tx.amount),
		)
		return &domain.VerifyResult{FailureKind: "amount_mismatch"}, nil
	}

	return &domain.VerifyResult{Confirmed: true, TxHash: &txHash}, nil
}

// roundCoin keeps quotes at 8 decimal places.
func roundCoin(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
