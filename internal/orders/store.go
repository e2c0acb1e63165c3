package orders

import (
	"context"
	"go.uber.org/zap"
	"time"
)

// Catalog is the read side of services and parts.
type Catalog interface {
	ServiceByID(ctx context.Context, id int64) (Service, error)
	PartByID(ctx context.Context, id int64) (Part, error)
}

// Tx is the unit of work handed out by Store.InTx. Every method reports
// missing rows as ErrNotFound and constraint failures as ErrUniqueViolation
// or ErrForeignKeyViolation.
type Tx interface {
	Catalog

	CustomerByID(ctx context.Context, id int64) (Customer, error)
	VehicleByID(ctx context.Context, id int64) (Vehicle, error)

	// LockPart reads the part row and holds it until the transaction ends.
	LockPart(ctx context.Context, id int64) (Part, error)
	SetPartStock(ctx context.Context, id int64, stock int) error
	LowStockParts(ctx context.Context) ([]Part, error)

	InsertOrder(ctx context.Context, o *Order) error
	InsertServiceLine(ctx context.Context, l ServiceLine) error
	InsertPartLine(ctx context.Context, l PartLine) error
	// LockOrder returns the order with its lines and holds the row.
	LockOrder(ctx context.Context, id int64) (Order, error)
	// LoadOrder returns the order hydrated with customer, vehicle and lines.
	LoadOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	UpdateOrderState(ctx context.Context, o Order) error
	UpdateOrderNotes(ctx context.Context, id int64, notes string) error
	DeleteOrder(ctx context.Context, id int64) error

	InvoiceByOrder(ctx context.Context, orderID int64) (Invoice, error)
	InsertInvoice(ctx context.Context, inv *Invoice) error
	InvoiceByID(ctx context.Context, id int64) (Invoice, error)
	UpdateInvoicePayment(ctx context.Context, inv Invoice) error

	InsertPurchase(ctx context.Context, p *Purchase) error
	// LockPurchase returns the purchase with its lines and holds the row.
	LockPurchase(ctx context.Context, id int64) (Purchase, error)
	DeletePurchase(ctx context.Context, id int64) error
}

// Store runs fn inside a single transaction; any error returned by fn
// rolls back every write issued through tx.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Deps bundles the collaborators shared by the core components.
type Deps struct {
	Store    Store
	Events   EventSink
	Clock    func() time.Time
	Logger   *zap.Logger
	Producer string // envelope producer name
}

type core struct {
	store    Store
	events   EventSink
	clock    func() time.Time
	log      *zap.Logger
	producer string
}

func newCore(d Deps) core {
	if d.Store == nil {
		panic("orders: Store is required")
	}
	c := core{store: d.Store, events: d.Events, clock: d.Clock, log: d.Logger, producer: d.Producer}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.events == nil {
		c.events = discardSink{}
	}
	if c.producer == "" {
		c.producer = "workshop-api"
	}
	return c
}

func (c core) now() time.Time { return c.clock().UTC() }
