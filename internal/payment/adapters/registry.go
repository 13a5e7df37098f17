package adapters

import (
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/payment/domain"
)

type Registry struct {
	adapters map[orderdomain.Method]domain.Adapter
}

func NewRegistry(adapters ...domain.Adapter) *Registry {
	registry := &Registry{adapters: map[orderdomain.Method]domain.Adapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		method := adapter.Method()
		if !method.Valid() {
			continue
		}
		registry.adapters[method] = adapter
	}
	return registry
}

func (r *Registry) Supports(method orderdomain.Method) bool {
	if r == nil {
		return false
	}
	_, ok := r.adapters[method]
	return ok
}

func (r *Registry) Adapter(method orderdomain.Method) (domain.Adapter, error) {
	if r == nil {
		return nil, domain.ErrMethodNotSupported
	}
	adapter, ok := r.adapters[method]
	if !ok {
		return nil, domain.ErrMethodNotSupported
	}
	return adapter, nil
}
