package orders

import (
	"context"
	"encoding/json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"strconv"
	"time"
)

const (
	EventOrderCreated      = "OrderCreated"
	EventOrderStateChanged = "OrderStateChanged"
	EventOrderInvoiced     = "OrderInvoiced"
	EventInvoicePaid       = "InvoicePaid"
	EventStockChanged      = "StockChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventSink publishes envelopes after the owning transaction committed.
// Implementations must not block the caller on broker I/O.
type EventSink interface {
	Publish(ctx context.Context, topic string, key []byte, env Envelope) error
}

type discardSink struct{}

func (discardSink) Publish(context.Context, string, []byte, Envelope) error { return nil }

// ---- payloads ----

type ItemQty struct {
	ID  int64 `json:"id"`
	Qty int   `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID        int64           `json:"order_id"`
	CustomerID     int64           `json:"customer_id"`
	VehicleID      int64           `json:"vehicle_id"`
	Services       []ItemQty       `json:"services"`
	Parts          []ItemQty       `json:"parts"`
	EstimatedTotal decimal.Decimal `json:"estimated_total"`
}

type OrderStateChangedPayload struct {
	OrderID   int64            `json:"order_id"`
	From      State            `json:"from"`
	To        State            `json:"to"`
	RealTotal *decimal.Decimal `json:"real_total,omitempty"`
}

type OrderInvoicedPayload struct {
	OrderID      int64           `json:"order_id"`
	InvoiceID    int64           `json:"invoice_id"`
	Number       string          `json:"number"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentState PaymentState    `json:"payment_state"`
}

type StockChangedPayload struct {
	PartID   int64  `json:"part_id"`
	Name     string `json:"name"`
	Old      int    `json:"old"`
	New      int    `json:"new"`
	MinStock int    `json:"min_stock"`
	Reason   string `json:"reason"` // ORDER_RESERVED | ORDER_RELEASED | ADJUSTMENT | PURCHASE | PURCHASE_REVERTED
}

const (
	ReasonOrderReserved = "ORDER_RESERVED"
	ReasonOrderReleased = "ORDER_RELEASED"
	ReasonAdjustment    = "ADJUSTMENT"
	ReasonPurchase      = "PURCHASE"
	ReasonPurchaseUndo  = "PURCHASE_REVERTED"
)

type pendingEvent struct {
	topic     string
	key       int64
	eventType string
	payload   any
}

// emit publishes events collected during a committed transaction.
// Failures are logged; the operation already succeeded.
func (c core) emit(ctx context.Context, evs ...pendingEvent) {
	for _, ev := range evs {
		b, err := json.Marshal(ev.payload)
		if err != nil {
			c.log.Error("marshal event payload", zap.String("event_type", ev.eventType), zap.Error(err))
			continue
		}
		env := Envelope{
			EventID:       uuid.NewString(),
			EventType:     ev.eventType,
			EventVersion:  1,
			OccurredAt:    c.now(),
			Producer:      c.producer,
			TraceID:       traceID(ctx),
			CorrelationID: strconv.FormatInt(ev.key, 10),
			Payload:       b,
		}
		if err := c.events.Publish(ctx, ev.topic, PartitionKey(ev.key), env); err != nil {
			c.log.Warn("publish event", zap.String("topic", ev.topic), zap.String("event_type", ev.eventType), zap.Error(err))
		}
	}
}

func stockEvent(p Part, old int, reason string) pendingEvent {
	return pendingEvent{
		topic:     TopicStockChanged,
		key:       p.ID,
		eventType: EventStockChanged,
		payload: StockChangedPayload{
			PartID: p.ID, Name: p.Name, Old: old, New: p.Stock, MinStock: p.MinStock, Reason: reason,
		},
	}
}

type traceKey struct{}

// WithTraceID stores the request trace id propagated into event envelopes.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}
