package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Builder creates work orders and reserves their parts.
type Builder struct{ core }

func NewBuilder(d Deps) *Builder { return &Builder{newCore(d)} }

// CreateOrder validates every line, then persists the order, its lines and
// the stock reservation in one transaction. Nothing is written when any line
// fails.
func (b *Builder) CreateOrder(ctx context.Context, in CreateOrderInput) (Order, error) {
	const op = "create order"
	if err := validateCreate(in); err != nil {
		return Order{}, err
	}

	var (
		out    Order
		events []pendingEvent
	)
	err := b.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		events = events[:0]

		if _, err := tx.CustomerByID(ctx, in.CustomerID); err != nil {
			return wrap(op, err, fmt.Sprintf("customer %d not found", in.CustomerID))
		}
		v, err := tx.VehicleByID(ctx, in.VehicleID)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("vehicle %d not found", in.VehicleID))
		}
		if v.CustomerID != in.CustomerID {
			return newError(op, KindInvalid, "vehicle %d does not belong to customer %d", in.VehicleID, in.CustomerID)
		}

		// 1) services: price captured now
		svcLines := make([]ServiceLine, 0, len(in.Services))
		for _, it := range in.Services {
			s, err := tx.ServiceByID(ctx, it.ID)
			if err != nil {
				return wrap(op, err, fmt.Sprintf("service %d not found", it.ID))
			}
			svcLines = append(svcLines, ServiceLine{
				ServiceID: s.ID, Name: s.Name, Qty: it.Qty,
				UnitPrice: s.Price, Subtotal: s.Price.Mul(decimal.NewFromInt(int64(it.Qty))),
			})
		}

		// 2) parts: lock in id order, check the summed request against stock
		want, err := sumQty(op, in.Parts)
		if err != nil {
			return err
		}
		locked := make(map[int64]Part, len(want))
		for _, id := range sortedIDs(want) {
			p, err := tx.LockPart(ctx, id)
			if err != nil {
				return wrap(op, err, fmt.Sprintf("part %d not found", id))
			}
			if want[id] > p.Stock {
				return newError(op, KindInsufficientStock,
					"insufficient stock for %s: available %d, requested %d", p.Name, p.Stock, want[id])
			}
			locked[id] = p
		}
		partLines := make([]PartLine, 0, len(in.Parts))
		for _, it := range in.Parts {
			p := locked[it.ID]
			partLines = append(partLines, PartLine{
				PartID: p.ID, Name: p.Name, Qty: it.Qty,
				UnitPrice: p.SellPrice, Subtotal: p.SellPrice.Mul(decimal.NewFromInt(int64(it.Qty))),
			})
		}

		// 3) estimated total
		total := decimal.Zero
		for _, l := range svcLines {
			total = total.Add(l.Subtotal)
		}
		for _, l := range partLines {
			total = total.Add(l.Subtotal)
		}

		// 4) order row
		o := Order{
			CustomerID:     in.CustomerID,
			VehicleID:      in.VehicleID,
			EmployeeID:     in.EmployeeID,
			State:          StatePending,
			EstimatedTotal: total,
			CreatedAt:      b.now(),
			Notes:          in.Notes,
		}
		if err := tx.InsertOrder(ctx, &o); err != nil {
			return wrap(op, err, "customer, vehicle or employee not found")
		}

		// 5) lines
		for _, l := range svcLines {
			l.OrderID = o.ID
			if err := tx.InsertServiceLine(ctx, l); err != nil {
				return wrap(op, err, fmt.Sprintf("service %d not found", l.ServiceID))
			}
		}
		for _, l := range partLines {
			l.OrderID = o.ID
			if err := tx.InsertPartLine(ctx, l); err != nil {
				return wrap(op, err, fmt.Sprintf("part %d not found", l.PartID))
			}
		}

		// 6) reserve stock
		for _, id := range sortedIDs(want) {
			p := locked[id]
			old := p.Stock
			p.Stock -= want[id]
			if err := tx.SetPartStock(ctx, id, p.Stock); err != nil {
				return wrap(op, err, fmt.Sprintf("part %d not found", id))
			}
			events = append(events, stockEvent(p, old, ReasonOrderReserved))
		}

		// 7) hydrated read-back
		full, err := tx.LoadOrder(ctx, o.ID)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("order %d not found", o.ID))
		}
		out = full
		return nil
	})
	if err != nil {
		return Order{}, wrap(op, err, "")
	}

	b.log.Info("order created",
		zap.Int64("order_id", out.ID),
		zap.Int64("customer_id", out.CustomerID),
		zap.String("estimated_total", out.EstimatedTotal.StringFixed(2)))

	created := pendingEvent{
		topic: TopicOrderCreated, key: out.ID, eventType: EventOrderCreated,
		payload: OrderCreatedPayload{
			OrderID: out.ID, CustomerID: out.CustomerID, VehicleID: out.VehicleID,
			Services: toItemQty(in.Services), Parts: toItemQty(in.Parts), EstimatedTotal: out.EstimatedTotal,
		},
	}
	b.emit(ctx, append([]pendingEvent{created}, events...)...)
	return out, nil
}

func validateCreate(in CreateOrderInput) error {
	const op = "create order"
	if in.CustomerID <= 0 || in.VehicleID <= 0 {
		return newError(op, KindInvalid, "id_cliente and id_vehiculo are required")
	}
	if len(in.Services) == 0 && len(in.Parts) == 0 {
		return newError(op, KindInvalid, "an order needs at least one service or part")
	}
	for _, it := range in.Services {
		if it.Qty <= 0 || it.Qty > MaxQuantity {
			return newError(op, KindInvalid, "invalid cantidad for service %d", it.ID)
		}
	}
	for _, it := range in.Parts {
		if it.Qty <= 0 || it.Qty > MaxQuantity {
			return newError(op, KindInvalid, "invalid cantidad for part %d", it.ID)
		}
	}
	return nil
}

func toItemQty(in []LineInput) []ItemQty {
	out := make([]ItemQty, 0, len(in))
	for _, it := range in {
		out = append(out, ItemQty{ID: it.ID, Qty: it.Qty})
	}
	return out
}

// GetOrder returns the hydrated order.
func (b *Builder) GetOrder(ctx context.Context, id int64) (Order, error) {
	const op = "get order"
	var out Order
	err := b.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LoadOrder(ctx, id)
		out = o
		return err
	})
	if err != nil {
		return Order{}, wrap(op, err, fmt.Sprintf("order %d not found", id))
	}
	return out, nil
}

// ListOrders returns orders newest first.
func (b *Builder) ListOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	const op = "list orders"
	if f.State != "" && !f.State.Known() {
		return nil, newError(op, KindInvalid, "invalid estado: %s", f.State)
	}
	var out []Order
	err := b.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		list, err := tx.ListOrders(ctx, f)
		out = list
		return err
	})
	if err != nil {
		return nil, wrap(op, err, "")
	}
	return out, nil
}

// UpdateNotes replaces the free-text notes of an order.
func (b *Builder) UpdateNotes(ctx context.Context, id int64, notes string) (Order, error) {
	const op = "update notes"
	var out Order
	err := b.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockOrder(ctx, id); err != nil {
			return wrap(op, err, fmt.Sprintf("order %d not found", id))
		}
		if err := tx.UpdateOrderNotes(ctx, id, notes); err != nil {
			return wrap(op, err, fmt.Sprintf("order %d not found", id))
		}
		o, err := tx.LoadOrder(ctx, id)
		out = o
		return wrap(op, err, fmt.Sprintf("order %d not found", id))
	})
	if err != nil {
		return Order{}, wrap(op, err, "")
	}
	return out, nil
}

// DeleteOrder is the administrative hard delete. Reserved stock goes back
// unless the order was cancelled, which already released it. Invoiced orders
// are kept.
func (b *Builder) DeleteOrder(ctx context.Context, id int64) error {
	const op = "delete order"
	var events []pendingEvent
	err := b.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("order %d not found", id))
		}
		if _, err := tx.InvoiceByOrder(ctx, id); err == nil {
			return newError(op, KindAlreadyInvoiced, "order %d is invoiced and cannot be deleted", id)
		} else if !errors.Is(err, ErrNotFound) {
			return wrap(op, err, "")
		}
		if o.State != StateCancelled {
			events, err = releaseReserved(ctx, tx, op, o)
			if err != nil {
				return err
			}
		}
		return wrap(op, tx.DeleteOrder(ctx, id), fmt.Sprintf("order %d not found", id))
	})
	if err != nil {
		return wrap(op, err, "")
	}
	b.log.Info("order deleted", zap.Int64("order_id", id), zap.Int("released_parts", len(events)))
	b.emit(ctx, events...)
	return nil
}
