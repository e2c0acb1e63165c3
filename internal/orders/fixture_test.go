package orders_test

import (
	"context"
	"github.com/ariefcatur/go-workshop-orders/internal/memstore"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

type published struct {
	topic string
	key   string
	env   orders.Envelope
}

type captureSink struct {
	mu  sync.Mutex
	out []published
}

func (c *captureSink) Publish(_ context.Context, topic string, key []byte, env orders.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, published{topic: topic, key: string(key), env: env})
	return nil
}

func (c *captureSink) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := make([]string, 0, len(c.out))
	for _, p := range c.out {
		ts = append(ts, p.env.EventType)
	}
	return ts
}

func (c *captureSink) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = nil
}

type fixture struct {
	store    *memstore.Store
	sink     *captureSink
	builder  *orders.Builder
	states   *orders.StateMachine
	invoices *orders.Invoicer
	ledger   *orders.Ledger

	customer  int64
	vehicle   int64
	provider  int64
	oilChange int64 // service priced 50
	filter    int64 // part selling at 10, stock 100, min 10
	pads      int64 // part selling at 40, stock 8, min 5
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	f := &fixture{store: st, sink: &captureSink{}}
	f.customer = st.AddCustomer(orders.Customer{Name: "Ana"})
	f.vehicle = st.AddVehicle(orders.Vehicle{CustomerID: f.customer, Plate: "ABC-123"})
	f.provider = st.AddProvider("Repuestos SA")
	f.oilChange = st.AddService(orders.Service{Name: "Cambio de aceite", Price: decimal.NewFromInt(50)})
	f.filter = st.AddPart(orders.Part{Code: "FIL-1", Name: "Filtro de aceite", SellPrice: decimal.NewFromInt(10), Stock: 100, MinStock: 10})
	f.pads = st.AddPart(orders.Part{Code: "PAS-1", Name: "Pastillas de freno", SellPrice: decimal.NewFromInt(40), Stock: 8, MinStock: 5})

	deps := orders.Deps{Store: st, Events: f.sink, Clock: func() time.Time { return fixedNow }, Producer: "test"}
	f.builder = orders.NewBuilder(deps)
	f.states = orders.NewStateMachine(deps)
	f.invoices = orders.NewInvoicer(deps)
	f.ledger = orders.NewLedger(deps)
	return f
}

// standardInput is two oil changes and two filters: 2x50 + 2x10 = 120.
func (f *fixture) standardInput() orders.CreateOrderInput {
	return orders.CreateOrderInput{
		CustomerID: f.customer,
		VehicleID:  f.vehicle,
		Services:   []orders.LineInput{{ID: f.oilChange, Qty: 2}},
		Parts:      []orders.LineInput{{ID: f.filter, Qty: 2}},
	}
}

func (f *fixture) create(t *testing.T) orders.Order {
	t.Helper()
	o, err := f.builder.CreateOrder(context.Background(), f.standardInput())
	require.NoError(t, err)
	return o
}

// orderIn returns a fresh order driven to st through legal transitions.
func (f *fixture) orderIn(t *testing.T, st orders.State) orders.Order {
	t.Helper()
	ctx := context.Background()
	o := f.create(t)
	var path []orders.State
	switch st {
	case orders.StateInProgress:
		path = []orders.State{orders.StateInProgress}
	case orders.StateCompleted:
		path = []orders.State{orders.StateInProgress, orders.StateCompleted}
	case orders.StateDelivered:
		path = []orders.State{orders.StateInProgress, orders.StateCompleted, orders.StateDelivered}
	case orders.StateCancelled:
		path = []orders.State{orders.StateCancelled}
	}
	for _, s := range path {
		var err error
		o, err = f.states.UpdateState(ctx, o.ID, string(s))
		require.NoError(t, err)
	}
	require.Equal(t, st, o.State)
	return o
}

func (f *fixture) stock(t *testing.T, id int64) int {
	t.Helper()
	p, ok := f.store.Part(id)
	require.True(t, ok)
	return p.Stock
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func requireKind(t *testing.T, want orders.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, orders.KindOf(err), "error: %v", err)
}
