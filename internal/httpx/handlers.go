package httpx

import (
	"context"
	"github.com/ariefcatur/go-workshop-orders/internal/alerts"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"net/http"
	"time"
)

// Cache is the key/value surface used for idempotency keys and the state cache.
// redisx.Cache satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Handlers serves the workshop API. Cache and Alerts are optional.
type Handlers struct {
	Builder  *orders.Builder
	States   *orders.StateMachine
	Invoices *orders.Invoicer
	Ledger   *orders.Ledger
	Cache    Cache
	Alerts   alerts.Reader
	Log      *zap.Logger
}

func (h *Handlers) Register(r chi.Router) {
	r.Route("/ordenes", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}", h.updateNotes)
		r.Delete("/{id}", h.deleteOrder)
		r.Patch("/{id}/estado", h.updateState)
		r.Get("/{id}/estado", h.getState)
	})
	r.Route("/facturas", func(r chi.Router) {
		r.Post("/", h.createInvoice)
		r.Post("/facturar/{id_orden}", h.invoiceOrder)
		r.Get("/orden/{id_orden}", h.invoiceByOrder)
		r.Patch("/{id}", h.recordPayment)
	})
	r.Patch("/repuestos/{id}/ajustar-stock", h.adjustStock)
	r.Get("/repuestos/bajo-stock", h.lowStock)
	r.Post("/compras", h.receivePurchase)
	r.Delete("/compras/{id}", h.removePurchase)
	if h.Alerts != nil {
		r.Get("/alertas/stock", h.stockAlerts)
	}
}

func (h *Handlers) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// requestContext bounds the call and carries the request id into event envelopes.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	return orders.WithTraceID(ctx, middleware.GetReqID(r.Context())), cancel
}
