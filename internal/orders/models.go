package orders

import (
	"github.com/shopspring/decimal"
	"time"
)

type Customer struct {
	ID    int64  `json:"id_cliente"`
	Name  string `json:"nombre"`
	Phone string `json:"telefono,omitempty"`
	Email string `json:"email,omitempty"`
}

type Vehicle struct {
	ID         int64  `json:"id_vehiculo"`
	CustomerID int64  `json:"id_cliente"`
	Plate      string `json:"placa"`
	Brand      string `json:"marca,omitempty"`
	Model      string `json:"modelo,omitempty"`
}

type Service struct {
	ID              int64           `json:"id_servicio"`
	Name            string          `json:"nombre"`
	Price           decimal.Decimal `json:"precio"`
	DurationMinutes int             `json:"duracion_estimada"`
}

type Part struct {
	ID        int64           `json:"id_repuesto"`
	Code      string          `json:"codigo"`
	Name      string          `json:"nombre"`
	BuyPrice  decimal.Decimal `json:"precio_compra"`
	SellPrice decimal.Decimal `json:"precio_venta"`
	Stock     int             `json:"stock_actual"`
	MinStock  int             `json:"stock_minimo"`
}

// Low reports whether the part is at or below its minimum stock threshold.
func (p Part) Low() bool { return p.Stock <= p.MinStock }

type Order struct {
	ID             int64            `json:"id_orden"`
	CustomerID     int64            `json:"id_cliente"`
	VehicleID      int64            `json:"id_vehiculo"`
	EmployeeID     *int64           `json:"id_empleado,omitempty"`
	State          State            `json:"estado"`
	EstimatedTotal decimal.Decimal  `json:"total_estimado"`
	RealTotal      *decimal.Decimal `json:"total_real"`
	CreatedAt      time.Time        `json:"fecha_apertura"`
	DeliveredAt    *time.Time       `json:"fecha_entrega_real"`
	Notes          string           `json:"notas"`

	// hydrated on reads
	Customer *Customer     `json:"cliente,omitempty"`
	Vehicle  *Vehicle      `json:"vehiculo,omitempty"`
	Services []ServiceLine `json:"servicios"`
	Parts    []PartLine    `json:"repuestos"`
}

// LinesTotal sums the persisted line subtotals.
func (o Order) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Services {
		total = total.Add(l.Subtotal)
	}
	for _, l := range o.Parts {
		total = total.Add(l.Subtotal)
	}
	return total
}

type ServiceLine struct {
	OrderID   int64           `json:"id_orden"`
	ServiceID int64           `json:"id_servicio"`
	Name      string          `json:"nombre"`
	Qty       int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precio_unitario"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type PartLine struct {
	OrderID   int64           `json:"id_orden"`
	PartID    int64           `json:"id_repuesto"`
	Name      string          `json:"nombre"`
	Qty       int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precio_unitario"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type PaymentState string

const (
	PaymentPending PaymentState = "pendiente"
	PaymentPaid    PaymentState = "pagada"
)

type Invoice struct {
	ID            int64           `json:"id_factura"`
	Number        string          `json:"numero"`
	OrderID       int64           `json:"id_orden"`
	Amount        decimal.Decimal `json:"monto"`
	PaymentState  PaymentState    `json:"estado_pago"`
	PaymentMethod *string         `json:"metodo_pago"`
	IssuedAt      time.Time       `json:"fecha_factura"`
}

type Purchase struct {
	ID         int64           `json:"id_compra"`
	ProviderID int64           `json:"id_proveedor"`
	Total      decimal.Decimal `json:"total"`
	Notes      string          `json:"notas"`
	CreatedAt  time.Time       `json:"fecha_compra"`
	Lines      []PurchaseLine  `json:"repuestos"`
}

type PurchaseLine struct {
	PartID   int64           `json:"id_repuesto"`
	Qty      int             `json:"cantidad"`
	UnitCost decimal.Decimal `json:"precio_unitario"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// LineInput is a requested (id, quantity) pair for a service or part.
type LineInput struct {
	ID  int64 `json:"id"`
	Qty int   `json:"cantidad"`
}

type CreateOrderInput struct {
	CustomerID int64
	VehicleID  int64
	EmployeeID *int64
	Notes      string
	Services   []LineInput
	Parts      []LineInput
}

type CreateInvoiceInput struct {
	OrderID       int64
	Amount        decimal.Decimal
	PaymentState  string
	PaymentMethod *string
}

// InvoiceResult carries the invoice and the hydrated order for display.
type InvoiceResult struct {
	Invoice Invoice `json:"factura"`
	Order   Order   `json:"orden"`
}

type ReceivePurchaseInput struct {
	ProviderID int64
	Notes      string
	Lines      []PurchaseLineInput
}

type PurchaseLineInput struct {
	PartID   int64
	Qty      int
	UnitCost decimal.Decimal
}

type OrderFilter struct {
	State      State
	EmployeeID *int64
}
