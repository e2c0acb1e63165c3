package orders_test

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"math"
	"sync"
	"testing"
)

func TestCreateOrderReservesStockAndTotals(t *testing.T) {
	f := newFixture(t)

	o, err := f.builder.CreateOrder(context.Background(), f.standardInput())
	require.NoError(t, err)

	require.Equal(t, orders.StatePending, o.State)
	requireAmount(t, "120", o.EstimatedTotal)
	require.Nil(t, o.RealTotal)
	require.Nil(t, o.DeliveredAt)
	require.Equal(t, fixedNow, o.CreatedAt)
	require.Equal(t, 98, f.stock(t, f.filter))

	require.NotNil(t, o.Customer)
	require.Equal(t, "Ana", o.Customer.Name)
	require.NotNil(t, o.Vehicle)
	require.Equal(t, "ABC-123", o.Vehicle.Plate)
	require.Len(t, o.Services, 1)
	requireAmount(t, "50", o.Services[0].UnitPrice)
	requireAmount(t, "100", o.Services[0].Subtotal)
	require.Len(t, o.Parts, 1)
	requireAmount(t, "20", o.Parts[0].Subtotal)
	require.Equal(t, "Filtro de aceite", o.Parts[0].Name)

	require.Equal(t, []string{orders.EventOrderCreated, orders.EventStockChanged}, f.sink.types())
	created := f.sink.out[0]
	require.Equal(t, orders.TopicOrderCreated, created.topic)
	require.Equal(t, string(orders.PartitionKey(o.ID)), created.key)
	require.Equal(t, "test", created.env.Producer)

	var stock orders.StockChangedPayload
	require.NoError(t, json.Unmarshal(f.sink.out[1].env.Payload, &stock))
	require.Equal(t, orders.StockChangedPayload{
		PartID: f.filter, Name: "Filtro de aceite", Old: 100, New: 98, MinStock: 10, Reason: orders.ReasonOrderReserved,
	}, stock)
}

func TestCreateOrderInsufficientStockLeavesNothing(t *testing.T) {
	f := newFixture(t)
	in := f.standardInput()
	in.Parts = []orders.LineInput{{ID: f.pads, Qty: 9}}

	_, err := f.builder.CreateOrder(context.Background(), in)
	requireKind(t, orders.KindInsufficientStock, err)
	require.Contains(t, err.Error(), "Pastillas de freno")
	require.Contains(t, err.Error(), "available 8, requested 9")

	require.Equal(t, 8, f.stock(t, f.pads))
	ordersN, linesN, invoicesN, _ := f.store.Counts()
	require.Zero(t, ordersN)
	require.Zero(t, linesN)
	require.Zero(t, invoicesN)
	require.Empty(t, f.sink.types())
}

func TestCreateOrderSumsDuplicatePartLines(t *testing.T) {
	f := newFixture(t)
	in := f.standardInput()
	in.Parts = []orders.LineInput{{ID: f.pads, Qty: 5}, {ID: f.pads, Qty: 4}}

	_, err := f.builder.CreateOrder(context.Background(), in)
	requireKind(t, orders.KindInsufficientStock, err)
	require.Contains(t, err.Error(), "requested 9")
	require.Equal(t, 8, f.stock(t, f.pads))

	in.Parts = []orders.LineInput{{ID: f.pads, Qty: 5}, {ID: f.pads, Qty: 3}}
	o, err := f.builder.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, o.Parts, 2)
	require.Zero(t, f.stock(t, f.pads))
}

// Any missing reference aborts the whole creation.
func TestCreateOrderAtomicOnMissingReference(t *testing.T) {
	cases := map[string]func(f *fixture, in *orders.CreateOrderInput){
		"missing service": func(f *fixture, in *orders.CreateOrderInput) {
			in.Services = append(in.Services, orders.LineInput{ID: 999, Qty: 1})
		},
		"missing part after valid part": func(f *fixture, in *orders.CreateOrderInput) {
			in.Parts = append(in.Parts, orders.LineInput{ID: 999, Qty: 1})
		},
		"missing customer": func(f *fixture, in *orders.CreateOrderInput) {
			in.CustomerID = 999
		},
		"missing vehicle": func(f *fixture, in *orders.CreateOrderInput) {
			in.VehicleID = 999
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			before := f.store.TotalStock()
			in := f.standardInput()
			mutate(f, &in)

			_, err := f.builder.CreateOrder(context.Background(), in)
			requireKind(t, orders.KindNotFound, err)

			ordersN, linesN, invoicesN, _ := f.store.Counts()
			require.Zero(t, ordersN+linesN+invoicesN)
			require.Equal(t, before, f.store.TotalStock())
			require.Empty(t, f.sink.types())
		})
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := f.standardInput()
	in.Services, in.Parts = nil, nil
	_, err := f.builder.CreateOrder(ctx, in)
	requireKind(t, orders.KindInvalid, err)

	in = f.standardInput()
	in.Parts[0].Qty = 0
	_, err = f.builder.CreateOrder(ctx, in)
	requireKind(t, orders.KindInvalid, err)

	in = f.standardInput()
	in.CustomerID = 0
	_, err = f.builder.CreateOrder(ctx, in)
	requireKind(t, orders.KindInvalid, err)

	other := f.store.AddCustomer(orders.Customer{Name: "Luis"})
	in = f.standardInput()
	in.CustomerID = other
	_, err = f.builder.CreateOrder(ctx, in)
	requireKind(t, orders.KindInvalid, err)
	require.Contains(t, err.Error(), "does not belong")

	require.Equal(t, 100, f.stock(t, f.filter))
}

func TestCreateOrderCapturesPrices(t *testing.T) {
	f := newFixture(t)
	o := f.create(t)

	f.store.SetServicePrice(f.oilChange, orders.Service{Name: "Cambio de aceite", Price: decimal.NewFromInt(75)})

	got, err := f.builder.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	requireAmount(t, "50", got.Services[0].UnitPrice)
	requireAmount(t, "120", got.EstimatedTotal)
}

func TestConcurrentCreationsNeverOversell(t *testing.T) {
	f := newFixture(t)
	in := f.standardInput()
	in.Parts = []orders.LineInput{{ID: f.pads, Qty: 2}}

	errs := make([]error, 10)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.builder.CreateOrder(context.Background(), in)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		requireKind(t, orders.KindInsufficientStock, err)
	}
	require.Equal(t, 4, ok)
	require.Zero(t, f.stock(t, f.pads))
}

func TestListOrdersFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := int64(7)

	a := f.create(t)
	in := f.standardInput()
	in.EmployeeID = &emp
	b, err := f.builder.CreateOrder(ctx, in)
	require.NoError(t, err)
	_, err = f.states.UpdateState(ctx, a.ID, "en_proceso")
	require.NoError(t, err)

	all, err := f.builder.ListOrders(ctx, orders.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, b.ID, all[0].ID, "newest first")

	pending, err := f.builder.ListOrders(ctx, orders.OrderFilter{State: orders.StatePending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, b.ID, pending[0].ID)

	byEmp, err := f.builder.ListOrders(ctx, orders.OrderFilter{EmployeeID: &emp})
	require.NoError(t, err)
	require.Len(t, byEmp, 1)
	require.Equal(t, b.ID, byEmp[0].ID)

	_, err = f.builder.ListOrders(ctx, orders.OrderFilter{State: "archivado"})
	requireKind(t, orders.KindInvalid, err)
}

func TestGetOrderNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.builder.GetOrder(context.Background(), 42)
	requireKind(t, orders.KindNotFound, err)
	require.Equal(t, "order 42 not found", orders.MessageOf(err))
}

func TestDeleteOrderReleasesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t)
	require.Equal(t, 98, f.stock(t, f.filter))

	require.NoError(t, f.builder.DeleteOrder(ctx, o.ID))
	require.Equal(t, 100, f.stock(t, f.filter))
	_, err := f.builder.GetOrder(ctx, o.ID)
	requireKind(t, orders.KindNotFound, err)

	// a cancelled order already gave its parts back
	c := f.orderIn(t, orders.StateCancelled)
	require.Equal(t, 100, f.stock(t, f.filter))
	require.NoError(t, f.builder.DeleteOrder(ctx, c.ID))
	require.Equal(t, 100, f.stock(t, f.filter))

	requireKind(t, orders.KindNotFound, f.builder.DeleteOrder(ctx, 999))
}

func TestDeleteInvoicedOrderRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.orderIn(t, orders.StateCompleted)
	_, err := f.invoices.InvoiceOrder(ctx, o.ID, nil)
	require.NoError(t, err)

	requireKind(t, orders.KindAlreadyInvoiced, f.builder.DeleteOrder(ctx, o.ID))
	require.Equal(t, 98, f.stock(t, f.filter))
}

func TestCreateOrderRejectsQuantityOverflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for name, parts := range map[string][]orders.LineInput{
		"huge line":     {{ID: f.filter, Qty: math.MaxInt}, {ID: f.filter, Qty: 2}},
		"sum overflows": {{ID: f.filter, Qty: math.MaxInt32}, {ID: f.filter, Qty: math.MaxInt32}},
	} {
		in := f.standardInput()
		in.Parts = parts
		_, err := f.builder.CreateOrder(ctx, in)
		requireKind(t, orders.KindInvalid, err)
		require.Equal(t, 100, f.stock(t, f.filter), name)
	}

	ordersN, _, _, _ := f.store.Counts()
	require.Zero(t, ordersN)
	require.Empty(t, f.sink.types())
}

func TestUpdateNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t)

	got, err := f.builder.UpdateNotes(ctx, o.ID, "revisar frenos")
	require.NoError(t, err)
	require.Equal(t, "revisar frenos", got.Notes)
	require.Equal(t, o.State, got.State)
	require.Len(t, got.Parts, 1)

	got, err = f.builder.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, "revisar frenos", got.Notes)

	_, err = f.builder.UpdateNotes(ctx, 999, "x")
	requireKind(t, orders.KindNotFound, err)
}
