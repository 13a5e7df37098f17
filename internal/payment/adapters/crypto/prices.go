package crypto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/storefront/internal/payment/domain"
)

// PriceFeed quotes the USD price of one coin.
type PriceFeed interface {
	USDPrice(ctx context.Context, coin string) (float64, error)
}

// coin ids on the price API
const (
	CoinEthereum = "ethereum"
	CoinLitecoin = "litecoin"
)

type priceClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewPriceFeed(baseURL string, httpClient *http.Client) PriceFeed {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &priceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *priceClient) USDPrice(ctx context.Context, coin string) (float64, error) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, coin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, domain.ErrProviderUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, domain.ErrProviderUnavailable
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, domain.ErrProviderUnavailable
	}

	price := payload[coin]["usd"]
	if price <= 0 {
		return 0, errors.New("price_unavailable")
	}
	return price, nil
}
