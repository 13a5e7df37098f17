package authorization

import (
	"context"
	"errors"
)

var (
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

// Service answers whether a caller's role may perform an action on an object.
type Service interface {
	Authorize(ctx context.Context, role string, object string, action string) error
}
