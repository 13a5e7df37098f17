package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/storefront/internal/config"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStubServer(t *testing.T, captureStatus string) (*httptest.Server, *int) {
	t.Helper()
	captures := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		if !ok || user != "client-id" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "stub-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stub-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "PAY-123",
			"status": "CREATED",
			"links": []map[string]string{
				{"rel": "self", "href": "https://example.test/self"},
				{"rel": "approve", "href": "https://example.test/approve/PAY-123"},
			},
		})
	})
	mux.HandleFunc("/v2/checkout/orders/PAY-123/capture", func(w http.ResponseWriter, r *http.Request) {
		captures++
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "PAY-123",
			"status": captureStatus,
			"purchase_units": []map[string]any{{
				"payments": map[string]any{
					"captures": []map[string]string{{"id": "CAP-456"}},
				},
			}},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &captures
}

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	return New(config.PayPalConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		ReturnURL:    "https://shop.test/return",
		CancelURL:    "https://shop.test/cancel",
	}, zap.NewNop(), WithBaseURL(baseURL))
}

func TestInitiate_ReturnsApprovalLink(t *testing.T) {
	server, _ := newStubServer(t, "COMPLETED")
	adapter := newTestAdapter(t, server.URL)

	instructions, err := adapter.Initiate(context.Background(), domain.Intent{
		OrderID: "AB12CD34",
		Amount:  1398,
		Method:  orderdomain.MethodPayPal,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.KindRedirect, instructions.Kind)
	require.NotNil(t, instructions.ExternalID)
	assert.Equal(t, "PAY-123", *instructions.ExternalID)
	require.NotNil(t, instructions.RedirectURL)
	assert.Equal(t, "https://example.test/approve/PAY-123", *instructions.RedirectURL)
}

func TestVerify_CapturesCompletedCheckout(t *testing.T) {
	server, captures := newStubServer(t, "COMPLETED")
	adapter := newTestAdapter(t, server.URL)

	external := "PAY-123"
	payment := &domain.Payment{OrderID: "AB12CD34", ExternalID: &external}

	result, err := adapter.Verify(context.Background(), payment, domain.VerifyInput{ExternalID: "PAY-123"})
	require.NoError(t, err)

	assert.True(t, result.Confirmed)
	require.NotNil(t, result.TxHash)
	assert.Equal(t, "CAP-456", *result.TxHash)
	assert.Equal(t, 1, *captures)
}

func TestVerify_RejectsDeclinedCapture(t *testing.T) {
	server, _ := newStubServer(t, "DECLINED")
	adapter := newTestAdapter(t, server.URL)

	external := "PAY-123"
	payment := &domain.Payment{OrderID: "AB12CD34", ExternalID: &external}

	result, err := adapter.Verify(context.Background(), payment, domain.VerifyInput{ExternalID: "PAY-123"})
	require.NoError(t, err)

	assert.False(t, result.Confirmed)
	assert.Equal(t, "capture_declined", result.FailureKind)
}

func TestVerify_RejectsForeignReference(t *testing.T) {
	server, captures := newStubServer(t, "COMPLETED")
	adapter := newTestAdapter(t, server.URL)

	external := "PAY-123"
	payment := &domain.Payment{OrderID: "AB12CD34", ExternalID: &external}

	result, err := adapter.Verify(context.Background(), payment, domain.VerifyInput{ExternalID: "PAY-999"})
	require.NoError(t, err)

	assert.False(t, result.Confirmed)
	assert.Equal(t, "reference_mismatch", result.FailureKind)
	assert.Equal(t, 0, *captures)
}

func TestCentsToValue(t *testing.T) {
	assert.Equal(t, "13.98", centsToValue(1398))
	assert.Equal(t, "0.05", centsToValue(5))
	assert.Equal(t, "7.00", centsToValue(700))
}
