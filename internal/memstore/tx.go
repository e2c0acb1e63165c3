package memstore

import (
	"context"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"sort"
)

type tx struct{ d *data }

func (t *tx) CustomerByID(_ context.Context, id int64) (orders.Customer, error) {
	c, ok := t.d.customers[id]
	if !ok {
		return orders.Customer{}, orders.ErrNotFound
	}
	return c, nil
}

func (t *tx) VehicleByID(_ context.Context, id int64) (orders.Vehicle, error) {
	v, ok := t.d.vehicles[id]
	if !ok {
		return orders.Vehicle{}, orders.ErrNotFound
	}
	return v, nil
}

func (t *tx) ServiceByID(_ context.Context, id int64) (orders.Service, error) {
	s, ok := t.d.services[id]
	if !ok {
		return orders.Service{}, orders.ErrNotFound
	}
	return s, nil
}

func (t *tx) PartByID(_ context.Context, id int64) (orders.Part, error) {
	p, ok := t.d.parts[id]
	if !ok {
		return orders.Part{}, orders.ErrNotFound
	}
	return p, nil
}

// transactions are serialized, so reading is locking
func (t *tx) LockPart(ctx context.Context, id int64) (orders.Part, error) {
	return t.PartByID(ctx, id)
}

func (t *tx) SetPartStock(_ context.Context, id int64, stock int) error {
	p, ok := t.d.parts[id]
	if !ok {
		return orders.ErrNotFound
	}
	p.Stock = stock
	t.d.parts[id] = p
	return nil
}

func (t *tx) LowStockParts(context.Context) ([]orders.Part, error) {
	var out []orders.Part
	for _, id := range sortedKeys(t.d.parts) {
		if p := t.d.parts[id]; p.Low() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Stock < out[j].Stock })
	return out, nil
}

func (t *tx) InsertOrder(_ context.Context, o *orders.Order) error {
	if _, ok := t.d.customers[o.CustomerID]; !ok {
		return orders.ErrForeignKeyViolation
	}
	if _, ok := t.d.vehicles[o.VehicleID]; !ok {
		return orders.ErrForeignKeyViolation
	}
	o.ID = t.d.next("orders")
	row := *o
	row.Customer, row.Vehicle, row.Services, row.Parts = nil, nil, nil, nil
	t.d.orders[o.ID] = row
	return nil
}

func (t *tx) InsertServiceLine(_ context.Context, l orders.ServiceLine) error {
	if _, ok := t.d.orders[l.OrderID]; !ok {
		return orders.ErrForeignKeyViolation
	}
	if _, ok := t.d.services[l.ServiceID]; !ok {
		return orders.ErrForeignKeyViolation
	}
	t.d.svcLines[l.OrderID] = append(t.d.svcLines[l.OrderID], l)
	return nil
}

func (t *tx) InsertPartLine(_ context.Context, l orders.PartLine) error {
	if _, ok := t.d.orders[l.OrderID]; !ok {
		return orders.ErrForeignKeyViolation
	}
	if _, ok := t.d.parts[l.PartID]; !ok {
		return orders.ErrForeignKeyViolation
	}
	t.d.partLines[l.OrderID] = append(t.d.partLines[l.OrderID], l)
	return nil
}

func (t *tx) withLines(o orders.Order) orders.Order {
	o.Services = append([]orders.ServiceLine{}, t.d.svcLines[o.ID]...)
	o.Parts = append([]orders.PartLine{}, t.d.partLines[o.ID]...)
	return o
}

func (t *tx) LockOrder(_ context.Context, id int64) (orders.Order, error) {
	o, ok := t.d.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return t.withLines(o), nil
}

func (t *tx) LoadOrder(ctx context.Context, id int64) (orders.Order, error) {
	o, err := t.LockOrder(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	return t.hydrate(o), nil
}

func (t *tx) hydrate(o orders.Order) orders.Order {
	if c, ok := t.d.customers[o.CustomerID]; ok {
		o.Customer = &c
	}
	if v, ok := t.d.vehicles[o.VehicleID]; ok {
		o.Vehicle = &v
	}
	return o
}

func (t *tx) ListOrders(_ context.Context, f orders.OrderFilter) ([]orders.Order, error) {
	out := []orders.Order{}
	for _, id := range sortedKeys(t.d.orders) {
		o := t.d.orders[id]
		if f.State != "" && o.State != f.State {
			continue
		}
		if f.EmployeeID != nil && (o.EmployeeID == nil || *o.EmployeeID != *f.EmployeeID) {
			continue
		}
		out = append(out, t.hydrate(t.withLines(o)))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (t *tx) UpdateOrderState(_ context.Context, o orders.Order) error {
	row, ok := t.d.orders[o.ID]
	if !ok {
		return orders.ErrNotFound
	}
	row.State, row.RealTotal, row.DeliveredAt = o.State, o.RealTotal, o.DeliveredAt
	t.d.orders[o.ID] = row
	return nil
}

func (t *tx) DeleteOrder(_ context.Context, id int64) error {
	if _, ok := t.d.orders[id]; !ok {
		return orders.ErrNotFound
	}
	if _, ok := t.d.invoices[id]; ok {
		return orders.ErrForeignKeyViolation
	}
	delete(t.d.orders, id)
	delete(t.d.svcLines, id)
	delete(t.d.partLines, id)
	return nil
}

func (t *tx) InvoiceByOrder(_ context.Context, orderID int64) (orders.Invoice, error) {
	inv, ok := t.d.invoices[orderID]
	if !ok {
		return orders.Invoice{}, orders.ErrNotFound
	}
	return inv, nil
}

func (t *tx) InsertInvoice(_ context.Context, inv *orders.Invoice) error {
	if _, ok := t.d.orders[inv.OrderID]; !ok {
		return orders.ErrForeignKeyViolation
	}
	if _, ok := t.d.invoices[inv.OrderID]; ok {
		return orders.ErrUniqueViolation
	}
	inv.ID = t.d.next("invoices")
	t.d.invoices[inv.OrderID] = *inv
	return nil
}

func (t *tx) InsertPurchase(_ context.Context, p *orders.Purchase) error {
	if _, ok := t.d.providers[p.ProviderID]; !ok {
		return orders.ErrForeignKeyViolation
	}
	for _, l := range p.Lines {
		if _, ok := t.d.parts[l.PartID]; !ok {
			return orders.ErrForeignKeyViolation
		}
	}
	p.ID = t.d.next("purchases")
	t.d.purchases[p.ID] = *p
	return nil
}

func (t *tx) UpdateOrderNotes(_ context.Context, id int64, notes string) error {
	row, ok := t.d.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	row.Notes = notes
	t.d.orders[id] = row
	return nil
}

func (t *tx) InvoiceByID(_ context.Context, id int64) (orders.Invoice, error) {
	for _, inv := range t.d.invoices {
		if inv.ID == id {
			return inv, nil
		}
	}
	return orders.Invoice{}, orders.ErrNotFound
}

func (t *tx) UpdateInvoicePayment(_ context.Context, inv orders.Invoice) error {
	row, ok := t.d.invoices[inv.OrderID]
	if !ok || row.ID != inv.ID {
		return orders.ErrNotFound
	}
	row.PaymentState, row.PaymentMethod = inv.PaymentState, inv.PaymentMethod
	t.d.invoices[inv.OrderID] = row
	return nil
}

func (t *tx) LockPurchase(_ context.Context, id int64) (orders.Purchase, error) {
	p, ok := t.d.purchases[id]
	if !ok {
		return orders.Purchase{}, orders.ErrNotFound
	}
	p.Lines = append([]orders.PurchaseLine(nil), p.Lines...)
	return p, nil
}

func (t *tx) DeletePurchase(_ context.Context, id int64) error {
	if _, ok := t.d.purchases[id]; !ok {
		return orders.ErrNotFound
	}
	delete(t.d.purchases, id)
	return nil
}
