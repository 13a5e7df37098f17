package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"go.uber.org/zap"
)

const deliverTimeout = 10 * time.Second

// WebhookNotifier posts order lifecycle events to the configured endpoint.
// Failures are logged and dropped; order processing never waits on them.
type WebhookNotifier struct {
	endpoint   string
	httpClient *http.Client
	log        *zap.Logger
}

func NewWebhookNotifier(endpoint string, log *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{Timeout: deliverTimeout},
		log:        log.Named("notification.webhook"),
	}
}

type event struct {
	Type      string               `json:"type"`
	Order     orderdomain.Response `json:"order"`
	Reason    string               `json:"reason,omitempty"`
	EmittedAt time.Time            `json:"emitted_at"`
}

func (n *WebhookNotifier) OrderCompleted(ctx context.Context, order orderdomain.Response) {
	n.deliver(event{Type: "order.completed", Order: order, EmittedAt: time.Now().UTC()})
}

func (n *WebhookNotifier) OrderCancelled(ctx context.Context, order orderdomain.Response, reason string) {
	n.deliver(event{Type: "order.cancelled", Order: order, Reason: reason, EmittedAt: time.Now().UTC()})
}

func (n *WebhookNotifier) deliver(e event) {
	if n == nil || n.endpoint == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()

		body, err := json.Marshal(e)
		if err != nil {
			n.log.Error("encode event", zap.Error(err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
		if err != nil {
			n.log.Error("build webhook request", zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			n.log.Warn("webhook delivery failed",
				zap.String("type", e.Type),
				zap.String("order_id", e.Order.ID),
				zap.Error(err),
			)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusMultipleChoices {
			n.log.Warn("webhook rejected",
				zap.String("type", e.Type),
				zap.String("order_id", e.Order.ID),
				zap.Int("status", resp.StatusCode),
			)
		}
	}()
}
