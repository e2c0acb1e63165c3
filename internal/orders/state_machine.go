package orders

import (
	"context"
	"fmt"
	"go.uber.org/zap"
)

// StateMachine applies order state transitions.
type StateMachine struct{ core }

func NewStateMachine(d Deps) *StateMachine { return &StateMachine{newCore(d)} }

// UpdateState moves the order to the requested state. The token may be any
// wire form accepted by ParseState.
func (m *StateMachine) UpdateState(ctx context.Context, orderID int64, requested string) (Order, error) {
	const op = "update state"
	to, ok := ParseState(requested)
	if !ok {
		return Order{}, newError(op, KindInvalidTransition, "invalid estado: %s", requested)
	}

	var (
		out    Order
		from   State
		events []pendingEvent
		noop   bool
	)
	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		events = events[:0]
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("order %d not found", orderID))
		}
		from = o.State

		// a repeated completion keeps the first real total
		if from == StateCompleted && to == StateCompleted {
			noop = true
			out, err = tx.LoadOrder(ctx, orderID)
			return wrap(op, err, fmt.Sprintf("order %d not found", orderID))
		}
		if from.Terminal() {
			return newError(op, KindInvalidTransition, "invalid estado: %s (order is %s)", to, from)
		}
		if to == StateDelivered && from != StateCompleted {
			return newError(op, KindInvalidTransition,
				"invalid estado: %s (only completed orders can be delivered, current %s)", to, from)
		}
		if !CanTransition(from, to) {
			return newError(op, KindInvalidTransition, "invalid estado: %s (current %s)", to, from)
		}

		o.State = to
		switch to {
		case StateCompleted:
			total := o.LinesTotal()
			now := m.now()
			o.RealTotal = &total
			o.DeliveredAt = &now
		case StateCancelled:
			evs, err := releaseReserved(ctx, tx, op, o)
			if err != nil {
				return err
			}
			events = append(events, evs...)
		}
		if err := tx.UpdateOrderState(ctx, o); err != nil {
			return wrap(op, err, fmt.Sprintf("order %d not found", orderID))
		}

		out, err = tx.LoadOrder(ctx, orderID)
		return wrap(op, err, fmt.Sprintf("order %d not found", orderID))
	})
	if err != nil {
		return Order{}, wrap(op, err, "")
	}
	if noop {
		return out, nil
	}

	m.log.Info("order state changed",
		zap.Int64("order_id", orderID), zap.String("from", string(from)), zap.String("to", string(out.State)))
	changed := pendingEvent{
		topic: TopicOrderStateChanged, key: orderID, eventType: EventOrderStateChanged,
		payload: OrderStateChangedPayload{OrderID: orderID, From: from, To: out.State, RealTotal: out.RealTotal},
	}
	m.emit(ctx, append([]pendingEvent{changed}, events...)...)
	return out, nil
}
