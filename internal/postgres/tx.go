package postgres

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"strings"
	"time"
)

type pgTx struct{ tx pgx.Tx }

var _ orders.Tx = (*pgTx)(nil)

const partColumns = `id, code, name, buy_price, sell_price, stock, min_stock`

func scanPart(row pgx.Row) (orders.Part, error) {
	var p orders.Part
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.BuyPrice, &p.SellPrice, &p.Stock, &p.MinStock)
	return p, classify(err)
}

func (t *pgTx) CustomerByID(ctx context.Context, id int64) (orders.Customer, error) {
	var c orders.Customer
	err := t.tx.QueryRow(ctx, `SELECT id, name, phone, email FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Email)
	return c, classify(err)
}

func (t *pgTx) VehicleByID(ctx context.Context, id int64) (orders.Vehicle, error) {
	var v orders.Vehicle
	err := t.tx.QueryRow(ctx, `SELECT id, customer_id, plate, brand, model FROM vehicles WHERE id=$1`, id).
		Scan(&v.ID, &v.CustomerID, &v.Plate, &v.Brand, &v.Model)
	return v, classify(err)
}

func (t *pgTx) ServiceByID(ctx context.Context, id int64) (orders.Service, error) {
	var s orders.Service
	err := t.tx.QueryRow(ctx, `SELECT id, name, price, duration_minutes FROM services WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.Price, &s.DurationMinutes)
	return s, classify(err)
}

func (t *pgTx) PartByID(ctx context.Context, id int64) (orders.Part, error) {
	return scanPart(t.tx.QueryRow(ctx, `SELECT `+partColumns+` FROM parts WHERE id=$1`, id))
}

// row lock on the part until the transaction ends
func (t *pgTx) LockPart(ctx context.Context, id int64) (orders.Part, error) {
	return scanPart(t.tx.QueryRow(ctx, `SELECT `+partColumns+` FROM parts WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) SetPartStock(ctx context.Context, id int64, stock int) error {
	ct, err := t.tx.Exec(ctx, `UPDATE parts SET stock=$2 WHERE id=$1`, id, stock)
	if err != nil {
		return classify(err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}

func (t *pgTx) LowStockParts(ctx context.Context) ([]orders.Part, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+partColumns+` FROM parts
	                              WHERE stock <= min_stock ORDER BY stock, id`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []orders.Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, classify(rows.Err())
}

func (t *pgTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO work_orders(customer_id, vehicle_id, employee_id, state, estimated_total, created_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		o.CustomerID, o.VehicleID, o.EmployeeID, string(o.State), o.EstimatedTotal, o.CreatedAt, o.Notes,
	).Scan(&o.ID)
	return classify(err)
}

func (t *pgTx) InsertServiceLine(ctx context.Context, l orders.ServiceLine) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO work_order_services(order_id, service_id, name, qty, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.OrderID, l.ServiceID, l.Name, l.Qty, l.UnitPrice, l.Subtotal,
	)
	return classify(err)
}

func (t *pgTx) InsertPartLine(ctx context.Context, l orders.PartLine) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO work_order_parts(order_id, part_id, name, qty, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.OrderID, l.PartID, l.Name, l.Qty, l.UnitPrice, l.Subtotal,
	)
	return classify(err)
}

const orderColumns = `o.id, o.customer_id, o.vehicle_id, o.employee_id, o.state, o.estimated_total,
	o.real_total, o.created_at, o.delivered_at, o.notes`

func scanOrder(row pgx.Row, extra ...any) (orders.Order, error) {
	var (
		o         orders.Order
		state     string
		realTotal decimal.NullDecimal
	)
	dest := []any{
		&o.ID, &o.CustomerID, &o.VehicleID, &o.EmployeeID, &state, &o.EstimatedTotal,
		&realTotal, &o.CreatedAt, &o.DeliveredAt, &o.Notes,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return orders.Order{}, classify(err)
	}
	o.State = orders.State(state)
	if realTotal.Valid {
		d := realTotal.Decimal
		o.RealTotal = &d
	}
	return o, nil
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (orders.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM work_orders o WHERE o.id=$1 FOR UPDATE`, id))
	if err != nil {
		return orders.Order{}, err
	}
	if err := t.loadLines(ctx, map[int64]*orders.Order{o.ID: &o}); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

const hydratedQuery = `SELECT ` + orderColumns + `,
	c.id, c.name, c.phone, c.email,
	v.id, v.customer_id, v.plate, v.brand, v.model
	FROM work_orders o
	JOIN customers c ON c.id = o.customer_id
	JOIN vehicles v ON v.id = o.vehicle_id`

func scanHydrated(row pgx.Row) (orders.Order, error) {
	var (
		c orders.Customer
		v orders.Vehicle
	)
	o, err := scanOrder(row,
		&c.ID, &c.Name, &c.Phone, &c.Email,
		&v.ID, &v.CustomerID, &v.Plate, &v.Brand, &v.Model)
	if err != nil {
		return orders.Order{}, err
	}
	o.Customer, o.Vehicle = &c, &v
	return o, nil
}

func (t *pgTx) LoadOrder(ctx context.Context, id int64) (orders.Order, error) {
	o, err := scanHydrated(t.tx.QueryRow(ctx, hydratedQuery+` WHERE o.id=$1`, id))
	if err != nil {
		return orders.Order{}, err
	}
	if err := t.loadLines(ctx, map[int64]*orders.Order{o.ID: &o}); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func (t *pgTx) ListOrders(ctx context.Context, f orders.OrderFilter) ([]orders.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.State != "" {
		args = append(args, string(f.State))
		where = append(where, fmt.Sprintf("o.state = $%d", len(args)))
	}
	if f.EmployeeID != nil {
		args = append(args, *f.EmployeeID)
		where = append(where, fmt.Sprintf("o.employee_id = $%d", len(args)))
	}
	q := hydratedQuery
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY o.created_at DESC, o.id DESC"

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	out := []orders.Order{}
	for rows.Next() {
		o, err := scanHydrated(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	byID := make(map[int64]*orders.Order, len(out))
	for i := range out {
		byID[out[i].ID] = &out[i]
	}
	if err := t.loadLines(ctx, byID); err != nil {
		return nil, err
	}
	return out, nil
}

// loadLines fills the service and part lines of every order in byID.
func (t *pgTx) loadLines(ctx context.Context, byID map[int64]*orders.Order) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(byID))
	for id, o := range byID {
		ids = append(ids, id)
		o.Services = []orders.ServiceLine{}
		o.Parts = []orders.PartLine{}
	}

	rows, err := t.tx.Query(ctx, `
		SELECT order_id, service_id, name, qty, unit_price, subtotal
		FROM work_order_services WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return classify(err)
	}
	for rows.Next() {
		var l orders.ServiceLine
		if err := rows.Scan(&l.OrderID, &l.ServiceID, &l.Name, &l.Qty, &l.UnitPrice, &l.Subtotal); err != nil {
			rows.Close()
			return classify(err)
		}
		byID[l.OrderID].Services = append(byID[l.OrderID].Services, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return classify(err)
	}

	rows, err = t.tx.Query(ctx, `
		SELECT order_id, part_id, name, qty, unit_price, subtotal
		FROM work_order_parts WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var l orders.PartLine
		if err := rows.Scan(&l.OrderID, &l.PartID, &l.Name, &l.Qty, &l.UnitPrice, &l.Subtotal); err != nil {
			return classify(err)
		}
		byID[l.OrderID].Parts = append(byID[l.OrderID].Parts, l)
	}
	return classify(rows.Err())
}

func (t *pgTx) UpdateOrderState(ctx context.Context, o orders.Order) error {
	var realTotal decimal.NullDecimal
	if o.RealTotal != nil {
		realTotal = decimal.NewNullDecimal(*o.RealTotal)
	}
	var deliveredAt *time.Time
	if o.DeliveredAt != nil {
		d := o.DeliveredAt.UTC()
		deliveredAt = &d
	}
	ct, err := t.tx.Exec(ctx, `
		UPDATE work_orders SET state=$2, real_total=$3, delivered_at=$4
		WHERE id=$1`, o.ID, string(o.State), realTotal, deliveredAt)
	if err != nil {
		return classify(err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}

func (t *pgTx) UpdateOrderNotes(ctx context.Context, id int64, notes string) error {
	ct, err := t.tx.Exec(ctx, `UPDATE work_orders SET notes=$2 WHERE id=$1`, id, notes)
	if err != nil {
		return classify(err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}

// lines go with the order (ON DELETE CASCADE)
func (t *pgTx) DeleteOrder(ctx context.Context, id int64) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM work_orders WHERE id=$1`, id)
	if err != nil {
		return classify(err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}

const invoiceColumns = `id, number, order_id, amount, payment_state, payment_method, issued_at`

func scanInvoice(row pgx.Row) (orders.Invoice, error) {
	var (
		inv   orders.Invoice
		state string
	)
	err := row.Scan(&inv.ID, &inv.Number, &inv.OrderID, &inv.Amount, &state, &inv.PaymentMethod, &inv.IssuedAt)
	if err != nil {
		return orders.Invoice{}, classify(err)
	}
	inv.PaymentState = orders.PaymentState(state)
	return inv, nil
}

func (t *pgTx) InvoiceByOrder(ctx context.Context, orderID int64) (orders.Invoice, error) {
	return scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE order_id=$1`, orderID))
}

func (t *pgTx) InvoiceByID(ctx context.Context, id int64) (orders.Invoice, error) {
	return scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
}

func (t *pgTx) UpdateInvoicePayment(ctx context.Context, inv orders.Invoice) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE invoices SET payment_state=$2, payment_method=$3
		WHERE id=$1`, inv.ID, string(inv.PaymentState), inv.PaymentMethod)
	if err != nil {
		return classify(err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertInvoice(ctx context.Context, inv *orders.Invoice) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoices(number, order_id, amount, payment_state, payment_method, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		inv.Number, inv.OrderID, inv.Amount, string(inv.PaymentState), inv.PaymentMethod, inv.IssuedAt,
	).Scan(&inv.ID)
	return classify(err)
}

func (t *pgTx) InsertPurchase(ctx context.Context, p *orders.Purchase) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO purchases(provider_id, total, notes, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, p.ProviderID, p.Total, p.Notes, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return classify(err)
	}
	for _, l := range p.Lines {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO purchase_parts(purchase_id, part_id, qty, unit_cost, subtotal)
			VALUES ($1, $2, $3, $4, $5)`, p.ID, l.PartID, l.Qty, l.UnitCost, l.Subtotal); err != nil {
			return classify(err)
		}
	}
	return nil
}

func (t *pgTx) LockPurchase(ctx context.Context, id int64) (orders.Purchase, error) {
	var p orders.Purchase
	err := t.tx.QueryRow(ctx, `
		SELECT id, provider_id, total, notes, created_at
		FROM purchases WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.ProviderID, &p.Total, &p.Notes, &p.CreatedAt)
	if err != nil {
		return orders.Purchase{}, classify(err)
	}

	rows, err := t.tx.Query(ctx, `
		SELECT part_id, qty, unit_cost, subtotal
		FROM purchase_parts WHERE purchase_id=$1 ORDER BY id`, id)
	if err != nil {
		return orders.Purchase{}, classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var l orders.PurchaseLine
		if err := rows.Scan(&l.PartID, &l.Qty, &l.UnitCost, &l.Subtotal); err != nil {
			return orders.Purchase{}, classify(err)
		}
		p.Lines = append(p.Lines, l)
	}
	return p, classify(rows.Err())
}

// lines go with the purchase (ON DELETE CASCADE)
func (t *pgTx) DeletePurchase(ctx context.Context, id int64) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM purchases WHERE id=$1`, id)
	if err != nil {
		return classify(err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}
