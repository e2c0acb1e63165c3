package orders

import (
	"context"
	"fmt"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"math"
	"sort"
)

// MaxQuantity bounds every requested quantity and every stock level; stock
// lives in INT columns.
const MaxQuantity = math.MaxInt32

// addQty adds two quantities, reporting false when the result leaves
// [-MaxQuantity, MaxQuantity] or either operand does.
func addQty(a, b int) (int, bool) {
	if a > MaxQuantity || a < -MaxQuantity || b > MaxQuantity || b < -MaxQuantity {
		return 0, false
	}
	sum := int64(a) + int64(b)
	if sum > MaxQuantity || sum < -MaxQuantity {
		return 0, false
	}
	return int(sum), true
}

// Ledger is the only sanctioned path for stock changes outside order creation.
type Ledger struct{ core }

func NewLedger(d Deps) *Ledger { return &Ledger{newCore(d)} }

// AdjustStock applies a signed delta (positive = inbound). The result may go
// negative only when force is set.
func (l *Ledger) AdjustStock(ctx context.Context, partID int64, delta int, force bool) (Part, error) {
	const op = "adjust stock"
	if delta == 0 {
		return Part{}, newError(op, KindInvalid, "cantidad must not be zero")
	}
	if delta > MaxQuantity || delta < -MaxQuantity {
		return Part{}, newError(op, KindInvalid, "cantidad out of range: %d", delta)
	}

	var (
		out Part
		old int
	)
	err := l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.LockPart(ctx, partID)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("part %d not found", partID))
		}
		next, ok := addQty(p.Stock, delta)
		if !ok {
			return newError(op, KindInvalid, "stock for %s out of range", p.Name)
		}
		if next < 0 && !force {
			return newError(op, KindInsufficientStock,
				"insufficient stock for %s: available %d, requested %d", p.Name, p.Stock, -delta)
		}
		if err := tx.SetPartStock(ctx, p.ID, next); err != nil {
			return wrap(op, err, fmt.Sprintf("part %d not found", partID))
		}
		old, p.Stock = p.Stock, next
		out = p
		return nil
	})
	if err != nil {
		return Part{}, wrap(op, err, "")
	}

	l.log.Info("stock adjusted",
		zap.Int64("part_id", out.ID), zap.Int("old", old), zap.Int("new", out.Stock), zap.Bool("forced", force))
	l.emit(ctx, stockEvent(out, old, ReasonAdjustment))
	return out, nil
}

// ReceivePurchase records a purchase and adds every line to stock in one transaction.
func (l *Ledger) ReceivePurchase(ctx context.Context, in ReceivePurchaseInput) (Purchase, error) {
	const op = "receive purchase"
	if len(in.Lines) == 0 {
		return Purchase{}, newError(op, KindInvalid, "a purchase needs at least one part")
	}
	for _, ln := range in.Lines {
		if ln.Qty <= 0 || ln.Qty > MaxQuantity {
			return Purchase{}, newError(op, KindInvalid, "invalid cantidad for part %d", ln.PartID)
		}
		if ln.UnitCost.IsNegative() {
			return Purchase{}, newError(op, KindInvalid, "invalid precio_unitario for part %d", ln.PartID)
		}
	}

	var (
		out    Purchase
		events []pendingEvent
	)
	err := l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		events = events[:0]
		p := Purchase{ProviderID: in.ProviderID, Notes: in.Notes, CreatedAt: l.now(), Total: decimal.Zero}
		for _, ln := range in.Lines {
			sub := ln.UnitCost.Mul(decimal.NewFromInt(int64(ln.Qty)))
			p.Lines = append(p.Lines, PurchaseLine{PartID: ln.PartID, Qty: ln.Qty, UnitCost: ln.UnitCost, Subtotal: sub})
			p.Total = p.Total.Add(sub)
		}

		lines := make([]LineInput, 0, len(in.Lines))
		for _, ln := range in.Lines {
			lines = append(lines, LineInput{ID: ln.PartID, Qty: ln.Qty})
		}
		qty, err := sumQty(op, lines)
		if err != nil {
			return err
		}
		for _, id := range sortedIDs(qty) {
			part, err := tx.LockPart(ctx, id)
			if err != nil {
				return wrap(op, err, fmt.Sprintf("part %d not found", id))
			}
			old := part.Stock
			next, ok := addQty(part.Stock, qty[id])
			if !ok {
				return newError(op, KindInvalid, "stock for %s out of range", part.Name)
			}
			part.Stock = next
			if err := tx.SetPartStock(ctx, id, part.Stock); err != nil {
				return wrap(op, err, fmt.Sprintf("part %d not found", id))
			}
			events = append(events, stockEvent(part, old, ReasonPurchase))
		}

		if err := tx.InsertPurchase(ctx, &p); err != nil {
			return wrap(op, err, fmt.Sprintf("provider %d not found", in.ProviderID))
		}
		out = p
		return nil
	})
	if err != nil {
		return Purchase{}, wrap(op, err, "")
	}

	l.log.Info("purchase received", zap.Int64("purchase_id", out.ID), zap.Int("lines", len(out.Lines)))
	l.emit(ctx, events...)
	return out, nil
}

// RemovePurchase deletes a purchase and takes its quantities back out of
// stock. Stock that was already consumed blocks the removal.
func (l *Ledger) RemovePurchase(ctx context.Context, id int64) (Purchase, error) {
	const op = "remove purchase"
	var (
		out    Purchase
		events []pendingEvent
	)
	err := l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		events = events[:0]
		p, err := tx.LockPurchase(ctx, id)
		if err != nil {
			return wrap(op, err, fmt.Sprintf("purchase %d not found", id))
		}
		lines := make([]LineInput, 0, len(p.Lines))
		for _, ln := range p.Lines {
			lines = append(lines, LineInput{ID: ln.PartID, Qty: ln.Qty})
		}
		qty, err := sumQty(op, lines)
		if err != nil {
			return err
		}
		for _, pid := range sortedIDs(qty) {
			part, err := tx.LockPart(ctx, pid)
			if err != nil {
				return wrap(op, err, fmt.Sprintf("part %d not found", pid))
			}
			if qty[pid] > part.Stock {
				return newError(op, KindInsufficientStock,
					"insufficient stock for %s: available %d, requested %d", part.Name, part.Stock, qty[pid])
			}
			old := part.Stock
			part.Stock -= qty[pid]
			if err := tx.SetPartStock(ctx, pid, part.Stock); err != nil {
				return wrap(op, err, fmt.Sprintf("part %d not found", pid))
			}
			events = append(events, stockEvent(part, old, ReasonPurchaseUndo))
		}
		if err := tx.DeletePurchase(ctx, id); err != nil {
			return wrap(op, err, fmt.Sprintf("purchase %d not found", id))
		}
		out = p
		return nil
	})
	if err != nil {
		return Purchase{}, wrap(op, err, "")
	}

	l.log.Info("purchase removed", zap.Int64("purchase_id", id), zap.Int("lines", len(out.Lines)))
	l.emit(ctx, events...)
	return out, nil
}

// sumQty totals the requested quantity per id.
func sumQty(op string, lines []LineInput) (map[int64]int, error) {
	qty := map[int64]int{}
	for _, ln := range lines {
		sum, ok := addQty(qty[ln.ID], ln.Qty)
		if !ok {
			return nil, newError(op, KindInvalid, "cantidad for %d out of range", ln.ID)
		}
		qty[ln.ID] = sum
	}
	return qty, nil
}

// LowStock lists parts at or below their minimum stock.
func (l *Ledger) LowStock(ctx context.Context) ([]Part, error) {
	const op = "low stock"
	var out []Part
	err := l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		ps, err := tx.LowStockParts(ctx)
		out = ps
		return err
	})
	if err != nil {
		return nil, wrap(op, err, "")
	}
	return out, nil
}

// releaseReserved returns the quantities reserved by o's part lines to stock.
// It must run inside the transaction that retires the reservation.
func releaseReserved(ctx context.Context, tx Tx, op string, o Order) ([]pendingEvent, error) {
	qty := map[int64]int{}
	for _, ln := range o.Parts {
		qty[ln.PartID] += ln.Qty
	}
	events := make([]pendingEvent, 0, len(qty))
	for _, id := range sortedIDs(qty) {
		p, err := tx.LockPart(ctx, id)
		if err != nil {
			return nil, wrap(op, err, fmt.Sprintf("part %d not found", id))
		}
		old := p.Stock
		next, ok := addQty(p.Stock, qty[id])
		if !ok {
			return nil, newError(op, KindInvalid, "stock for %s out of range", p.Name)
		}
		p.Stock = next
		if err := tx.SetPartStock(ctx, id, p.Stock); err != nil {
			return nil, wrap(op, err, fmt.Sprintf("part %d not found", id))
		}
		events = append(events, stockEvent(p, old, ReasonOrderReleased))
	}
	return events, nil
}

// sortedIDs fixes the row-lock order so concurrent transactions cannot deadlock.
func sortedIDs(m map[int64]int) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
