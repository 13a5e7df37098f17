package domain

import "context"

// Notifier receives order lifecycle events after they commit. Implementations
// must not block order processing; delivery is best effort.
type Notifier interface {
	OrderCompleted(ctx context.Context, order Response)
	OrderCancelled(ctx context.Context, order Response, reason string)
}
