package crypto

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/storefront/internal/payment/domain"
)

var weiPerEth = new(big.Float).SetFloat64(1e18)

// etherscan resolves ETH transactions through the proxy API.
type etherscan struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newEtherscan(baseURL, apiKey string, httpClient *http.Client) *etherscan {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &etherscan{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (e *etherscan) lookup(ctx context.Context, txHash, _ string) (*transfer, error) {
	endpoint := fmt.Sprintf("%s/api?module=proxy&action=eth_getTransactionByHash&txhash=%s&apikey=%s",
		e.baseURL, url.QueryEscape(txHash), url.QueryEscape(e.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrProviderUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrProviderUnavailable
	}

	var payload struct {
		Result *struct {
			To          string `json:"to"`
			Value       string `json:"value"`
			BlockNumber string `json:"blockNumber"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, domain.ErrProviderUnavailable
	}
	if payload.Result == nil {
		return nil, nil
	}

	wei, ok := new(big.Int).SetString(strings.TrimPrefix(payload.Result.Value, "0x"), 16)
	if !ok {
		return nil, domain.ErrProviderUnavailable
	}
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEth).Float64()

	return &transfer{
		to:        payload.Result.To,
		amount:    eth,
		confirmed: payload.Result.BlockNumber != "" && payload.Result.BlockNumber != "0x0",
	}, nil
}

// blockCypher resolves LTC transactions.
type blockCypher struct {
	baseURL    string
	httpClient *http.Client
}

func newBlockCypher(baseURL string, httpClient *http.Client) *blockCypher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &blockCypher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (b *blockCypher) lookup(ctx context.Context, txHash, address string) (*transfer, error) {
	endpoint := fmt.Sprintf("%s/txs/%s", b.baseURL, url.PathEscape(txHash))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrProviderUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrProviderUnavailable
	}

	var payload struct {
		Confirmations int64 `json:"confirmations"`
		Outputs       []struct {
			Addresses []string `json:"addresses"`
			Value     int64    `json:"value"`
		} `json:"outputs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, domain.ErrProviderUnavailable
	}

	// Sum only the outputs paying our wallet; change outputs back to the
	// sender must not inflate the received amount.
	var received int64
	for _, out := range payload.Outputs {
		for _, addr := range out.Addresses {
			if strings.EqualFold(addr, address) {
				received += out.Value
				break
			}
		}
	}
	if received == 0 {
		return &transfer{to: "", amount: 0, confirmed: payload.Confirmations >= 1}, nil
	}

	return &transfer{
		to:        address,
		amount:    float64(received) / 1e8,
		confirmed: payload.Confirmations >= 1,
	}, nil
}
