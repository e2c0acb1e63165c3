package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"strings"
)

// Invoicer issues at most one invoice per completed order.
type Invoicer struct {
	core
	newNumber func() string
}

func NewInvoicer(d Deps) *Invoicer {
	return &Invoicer{
		core:      newCore(d),
		newNumber: func() string { return "FAC-" + ulid.Make().String() },
	}
}

// InvoiceOrder bills the order for its real total (or the sum of its lines
// when no real total is recorded). Supplying a payment method marks the
// invoice paid and delivers the order in the same transaction.
func (iv *Invoicer) InvoiceOrder(ctx context.Context, orderID int64, paymentMethod *string) (InvoiceResult, error) {
	method := normalizeMethod(paymentMethod)
	state := PaymentPending
	if method != nil {
		state = PaymentPaid
	}
	return iv.issue(ctx, "invoice order", orderID, func(o Order) decimal.Decimal {
		if o.RealTotal != nil && !o.RealTotal.IsZero() {
			return *o.RealTotal
		}
		return o.LinesTotal()
	}, state, method, method != nil)
}

// CreateInvoice bills the order for an explicitly supplied amount.
func (iv *Invoicer) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (InvoiceResult, error) {
	const op = "create invoice"
	if in.Amount.IsNegative() {
		return InvoiceResult{}, newError(op, KindInvalid, "monto must not be negative")
	}
	state, ok := ParsePaymentState(in.PaymentState)
	if !ok {
		return InvoiceResult{}, newError(op, KindInvalid, "invalid estado_pago: %s", in.PaymentState)
	}
	amount := in.Amount
	return iv.issue(ctx, op, in.OrderID, func(Order) decimal.Decimal { return amount },
		state, normalizeMethod(in.PaymentMethod), false)
}

func (iv *Invoicer) issue(
	ctx context.Context,
	op string,
	orderID int64,
	amountOf func(Order) decimal.Decimal,
	state PaymentState,
	method *string,
	deliver bool,
) (InvoiceResult, error) {
	var (
		out  InvoiceResult
		from State
	)
	err := iv.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("order %d not found", orderID))
		}
		from = o.State
		if o.State != StateCompleted {
			return newError(op, KindNotYetCompleted, "only completed orders may be invoiced (order %d is %s)", orderID, o.State)
		}
		if _, err := tx.InvoiceByOrder(ctx, orderID); err == nil {
			return alreadyInvoiced(op, orderID, nil)
		} else if !errors.Is(err, ErrNotFound) {
			return wrap(op, err, "")
		}

		inv := Invoice{
			Number:        iv.newNumber(),
			OrderID:       orderID,
			Amount:        amountOf(o),
			PaymentState:  state,
			PaymentMethod: method,
			IssuedAt:      iv.now(),
		}
		if err := tx.InsertInvoice(ctx, &inv); err != nil {
			// the unique constraint on order_id is the authority under races
			if errors.Is(err, ErrUniqueViolation) {
				return alreadyInvoiced(op, orderID, err)
			}
			return wrap(op, err, fmt.Sprintf("order %d not found", orderID))
		}

		if deliver {
			o.State = StateDelivered
			if err := tx.UpdateOrderState(ctx, o); err != nil {
				return wrap(op, err, fmt.Sprintf("order %d not found", orderID))
			}
		}

		full, err := tx.LoadOrder(ctx, orderID)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("order %d not found", orderID))
		}
		out = InvoiceResult{Invoice: inv, Order: full}
		return nil
	})
	if err != nil {
		return InvoiceResult{}, wrap(op, err, "")
	}

	inv := out.Invoice
	iv.log.Info("order invoiced",
		zap.Int64("order_id", orderID),
		zap.Int64("invoice_id", inv.ID),
		zap.String("amount", inv.Amount.StringFixed(2)),
		zap.String("payment_state", string(inv.PaymentState)))

	evs := []pendingEvent{{
		topic: TopicOrderInvoiced, key: orderID, eventType: EventOrderInvoiced,
		payload: OrderInvoicedPayload{
			OrderID: orderID, InvoiceID: inv.ID, Number: inv.Number, Amount: inv.Amount, PaymentState: inv.PaymentState,
		},
	}}
	if deliver {
		evs = append(evs, pendingEvent{
			topic: TopicOrderStateChanged, key: orderID, eventType: EventOrderStateChanged,
			payload: OrderStateChangedPayload{OrderID: orderID, From: from, To: StateDelivered, RealTotal: out.Order.RealTotal},
		})
	}
	iv.emit(ctx, evs...)
	return out, nil
}

// InvoiceByOrder returns the invoice issued for the order.
func (iv *Invoicer) InvoiceByOrder(ctx context.Context, orderID int64) (InvoiceResult, error) {
	const op = "get invoice"
	var out InvoiceResult
	err := iv.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		inv, err := tx.InvoiceByOrder(ctx, orderID)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("no invoice for order %d", orderID))
		}
		o, err := tx.LoadOrder(ctx, orderID)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("order %d not found", orderID))
		}
		out = InvoiceResult{Invoice: inv, Order: o}
		return nil
	})
	if err != nil {
		return InvoiceResult{}, wrap(op, err, "")
	}
	return out, nil
}

// RecordPayment marks an invoice paid with the given method. A completed
// order is delivered in the same transaction.
func (iv *Invoicer) RecordPayment(ctx context.Context, invoiceID int64, paymentMethod *string) (InvoiceResult, error) {
	const op = "record payment"
	method := normalizeMethod(paymentMethod)
	if method == nil {
		return InvoiceResult{}, newError(op, KindInvalid, "metodo_pago is required")
	}

	var (
		out       InvoiceResult
		from      State
		delivered bool
	)
	err := iv.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		delivered = false
		found, err := tx.InvoiceByID(ctx, invoiceID)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("invoice %d not found", invoiceID))
		}
		// every invoice write locks the order first
		o, err := tx.LockOrder(ctx, found.OrderID)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("order %d not found", found.OrderID))
		}
		inv, err := tx.InvoiceByOrder(ctx, o.ID)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("invoice %d not found", invoiceID))
		}
		if inv.PaymentState == PaymentPaid {
			return newError(op, KindInvalid, "invoice %d is already paid", invoiceID)
		}
		if !o.State.ReachedCompletion() {
			return newError(op, KindNotYetCompleted, "order %d is %s", o.ID, o.State)
		}

		inv.PaymentState, inv.PaymentMethod = PaymentPaid, method
		if err := tx.UpdateInvoicePayment(ctx, inv); err != nil {
			return wrap(op, err, fmt.Sprintf("invoice %d not found", invoiceID))
		}
		from = o.State
		if CanTransition(o.State, StateDelivered) {
			o.State = StateDelivered
			if err := tx.UpdateOrderState(ctx, o); err != nil {
				return wrap(op, err, fmt.Sprintf("order %d not found", o.ID))
			}
			delivered = true
		}

		full, err := tx.LoadOrder(ctx, o.ID)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("order %d not found", o.ID))
		}
		out = InvoiceResult{Invoice: inv, Order: full}
		return nil
	})
	if err != nil {
		return InvoiceResult{}, wrap(op, err, "")
	}

	inv := out.Invoice
	iv.log.Info("invoice paid",
		zap.Int64("invoice_id", inv.ID), zap.Int64("order_id", inv.OrderID), zap.Bool("delivered", delivered))
	evs := []pendingEvent{{
		topic: TopicOrderInvoiced, key: inv.OrderID, eventType: EventInvoicePaid,
		payload: OrderInvoicedPayload{
			OrderID: inv.OrderID, InvoiceID: inv.ID, Number: inv.Number, Amount: inv.Amount, PaymentState: inv.PaymentState,
		},
	}}
	if delivered {
		evs = append(evs, pendingEvent{
			topic: TopicOrderStateChanged, key: inv.OrderID, eventType: EventOrderStateChanged,
			payload: OrderStateChangedPayload{OrderID: inv.OrderID, From: from, To: StateDelivered, RealTotal: out.Order.RealTotal},
		})
	}
	iv.emit(ctx, evs...)
	return out, nil
}

func alreadyInvoiced(op string, orderID int64, cause error) *Error {
	return &Error{Op: op, Kind: KindAlreadyInvoiced, Message: fmt.Sprintf("order %d is already invoiced", orderID), Err: cause}
}

// ParsePaymentState accepts the spanish wire values and their english aliases;
// empty means pending.
func ParsePaymentState(s string) (PaymentState, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pendiente", "pending":
		return PaymentPending, true
	case "pagada", "pagado", "paid":
		return PaymentPaid, true
	}
	return "", false
}

func normalizeMethod(m *string) *string {
	if m == nil {
		return nil
	}
	t := strings.TrimSpace(*m)
	if t == "" {
		return nil
	}
	return &t
}
