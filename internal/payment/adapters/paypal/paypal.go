package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/storefront/internal/config"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	liveBaseURL    = "https://api-m.paypal.com"
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"

	// tokens are refreshed this long before PayPal's reported expiry
	tokenSkew = 60 * time.Second
)

type Adapter struct {
	baseURL      string
	clientID     string
	clientSecret string
	returnURL    string
	cancelURL    string
	httpClient   *http.Client
	log          *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// Option overrides adapter internals, used by tests to point at a stub server.
type Option func(*Adapter)

func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) { a.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) { a.httpClient = client }
}

func New(cfg config.PayPalConfig, log *zap.Logger, opts ...Option) *Adapter {
	baseURL := liveBaseURL
	if cfg.Sandbox {
		baseURL = sandboxBaseURL
	}
	a := &Adapter{
		baseURL:      baseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		returnURL:    cfg.ReturnURL,
		cancelURL:    cfg.CancelURL,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		log:          log.Named("payment.paypal"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Method() orderdomain.Method { return orderdomain.MethodPayPal }

func (a *Adapter) Initiate(ctx context.Context, intent domain.Intent) (*domain.Instructions, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": intent.OrderID,
			"amount": map[string]any{
				"currency_code": "USD",
				"value":         centsToValue(intent.Amount),
			},
		}},
		"application_context": map[string]any{
			"return_url": a.returnURL,
			"cancel_url": a.cancelURL,
		},
	}

	var created checkoutOrder
	if err := a.do(ctx, http.MethodPost, "/v2/checkout/orders", token, body, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, domain.ErrProviderUnavailable
	}

	approval := created.link("approve")
	if approval == "" {
		return nil, domain.ErrProviderUnavailable
	}

	externalID := created.ID
	return &domain.Instructions{
		Kind:        domain.KindRedirect,
		ExternalID:  &externalID,
		RedirectURL: &approval,
	}, nil
}

func (a *Adapter) Verify(ctx context.Context, payment *domain.Payment, input domain.VerifyInput) (*domain.VerifyResult, error) {
	externalID := strings.TrimSpace(input.ExternalID)
	if externalID == "" && payment.ExternalID != nil {
		externalID = *payment.ExternalID
	}
	if externalID == "" {
		return &domain.VerifyResult{FailureKind: "missing_reference"}, nil
	}
	// checkout id from the return URL must match what we created
	if payment.ExternalID != nil && externalID != *payment.ExternalID {
		return &domain.VerifyResult{FailureKind: "reference_mismatch"}, nil
	}

	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}

	var captured checkoutOrder
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(externalID))
	if err := a.do(ctx, http.MethodPost, path, token, map[string]any{}, &captured); err != nil {
		return nil, err
	}

	if strings.EqualFold(captured.Status, "COMPLETED") {
		capture := captured.captureID()
		var txHash *string
		if capture != "" {
			txHash = &capture
		}
		return &domain.VerifyResult{Confirmed: true, TxHash: txHash}, nil
	}

	a.log.Warn("capture not completed",
		zap.String("checkout_id", externalID),
		zap.String("status", captured.Status),
	)
	return &domain.VerifyResult{FailureKind: "capture_" + strings.ToLower(captured.Status)}, nil
}

func (a *Adapter) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accessToken != "" && time.Now().Before(a.tokenExpiry) {
		return a.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(a.clientID, a.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", domain.ErrProviderUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.log.Error("oauth token request failed", zap.Int("status", resp.StatusCode))
		return "", domain.ErrProviderUnavailable
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", domain.ErrProviderUnavailable
	}
	if payload.AccessToken == "" {
		return "", domain.ErrProviderUnavailable
	}

	a.accessToken = payload.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - tokenSkew)
	return a.accessToken, nil
}

func (a *Adapter) do(ctx context.Context, method, path, token string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return domain.ErrProviderUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		a.log.Error("paypal request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return domain.ErrProviderUnavailable
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

type checkoutOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID string `json:"id"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (o checkoutOrder) link(rel string) string {
	for _, l := range o.Links {
		if strings.EqualFold(l.Rel, rel) {
			return l.Href
		}
	}
	return ""
}

func (o checkoutOrder) captureID() string {
	for _, unit := range o.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			if capture.ID != "" {
				return capture.ID
			}
		}
	}
	return ""
}

func centsToValue(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
