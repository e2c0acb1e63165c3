package orders_test

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestLifecycleToCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t)

	o, err := f.states.UpdateState(ctx, o.ID, "en_proceso")
	require.NoError(t, err)
	require.Equal(t, orders.StateInProgress, o.State)
	require.Nil(t, o.RealTotal)

	o, err = f.states.UpdateState(ctx, o.ID, "completado")
	require.NoError(t, err)
	require.Equal(t, orders.StateCompleted, o.State)
	require.NotNil(t, o.RealTotal)
	requireAmount(t, "120", *o.RealTotal)
	require.NotNil(t, o.DeliveredAt)
	require.Equal(t, fixedNow, *o.DeliveredAt)

	o, err = f.states.UpdateState(ctx, o.ID, "entregado")
	require.NoError(t, err)
	require.Equal(t, orders.StateDelivered, o.State)
	requireAmount(t, "120", *o.RealTotal)
}

func TestDeliverRequiresCompletion(t *testing.T) {
	f := newFixture(t)
	for _, st := range []orders.State{orders.StatePending, orders.StateInProgress} {
		o := f.orderIn(t, st)
		_, err := f.states.UpdateState(context.Background(), o.ID, "entregado")
		requireKind(t, orders.KindInvalidTransition, err)

		got, err := f.builder.GetOrder(context.Background(), o.ID)
		require.NoError(t, err)
		require.Equal(t, st, got.State)
	}
}

// Every pair outside the transition table fails and leaves the order untouched.
func TestTransitionTableIsEnforced(t *testing.T) {
	for _, from := range orders.States() {
		for _, to := range orders.States() {
			if orders.CanTransition(from, to) {
				continue
			}
			if from == orders.StateCompleted && to == orders.StateCompleted {
				continue // repeated completion is a no-op
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				f := newFixture(t)
				o := f.orderIn(t, from)
				stockBefore := f.stock(t, f.filter)
				f.sink.reset()

				_, err := f.states.UpdateState(context.Background(), o.ID, string(to))
				requireKind(t, orders.KindInvalidTransition, err)

				got, err := f.builder.GetOrder(context.Background(), o.ID)
				require.NoError(t, err)
				require.Equal(t, from, got.State)
				require.Equal(t, o.RealTotal, got.RealTotal)
				require.Equal(t, stockBefore, f.stock(t, f.filter))
				require.Empty(t, f.sink.types())
			})
		}
	}
}

func TestRepeatedCompletionKeepsTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.orderIn(t, orders.StateCompleted)
	first := *o.RealTotal
	f.sink.reset()

	for _, token := range []string{"completado", "completada", " COMPLETADO "} {
		again, err := f.states.UpdateState(ctx, o.ID, token)
		require.NoError(t, err)
		require.Equal(t, orders.StateCompleted, again.State)
		require.True(t, first.Equal(*again.RealTotal))
		require.Equal(t, o.DeliveredAt, again.DeliveredAt)
	}
	require.Empty(t, f.sink.types(), "no-op completion publishes nothing")
}

func TestCancelReleasesReservedStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.standardInput()
	in.Parts = append(in.Parts, orders.LineInput{ID: f.pads, Qty: 3}, orders.LineInput{ID: f.filter, Qty: 1})

	o, err := f.builder.CreateOrder(ctx, in)
	require.NoError(t, err)
	require.Equal(t, 97, f.stock(t, f.filter))
	require.Equal(t, 5, f.stock(t, f.pads))

	_, err = f.states.UpdateState(ctx, o.ID, "en_proceso")
	require.NoError(t, err)
	f.sink.reset()

	o, err = f.states.UpdateState(ctx, o.ID, "cancelada")
	require.NoError(t, err)
	require.Equal(t, orders.StateCancelled, o.State)
	require.Equal(t, 100, f.stock(t, f.filter))
	require.Equal(t, 8, f.stock(t, f.pads))

	require.Equal(t, []string{orders.EventOrderStateChanged, orders.EventStockChanged, orders.EventStockChanged}, f.sink.types())
	var changed orders.OrderStateChangedPayload
	require.NoError(t, json.Unmarshal(f.sink.out[0].env.Payload, &changed))
	require.Equal(t, orders.StateInProgress, changed.From)
	require.Equal(t, orders.StateCancelled, changed.To)

	var released orders.StockChangedPayload
	require.NoError(t, json.Unmarshal(f.sink.out[1].env.Payload, &released))
	require.Equal(t, orders.ReasonOrderReleased, released.Reason)
}

func TestUpdateStateUnknownTokenAndOrder(t *testing.T) {
	f := newFixture(t)
	o := f.create(t)

	_, err := f.states.UpdateState(context.Background(), o.ID, "archivado")
	requireKind(t, orders.KindInvalidTransition, err)
	require.Contains(t, orders.MessageOf(err), "archivado")

	_, err = f.states.UpdateState(context.Background(), 999, "en_proceso")
	requireKind(t, orders.KindNotFound, err)
}

func TestUpdateStateCarriesTraceID(t *testing.T) {
	f := newFixture(t)
	o := f.create(t)
	f.sink.reset()

	ctx := orders.WithTraceID(context.Background(), "req-1")
	_, err := f.states.UpdateState(ctx, o.ID, "pending")
	requireKind(t, orders.KindInvalidTransition, err) // pendiente -> pendiente

	_, err = f.states.UpdateState(ctx, o.ID, "en_proceso")
	require.NoError(t, err)
	require.Len(t, f.sink.out, 1)
	require.Equal(t, "req-1", f.sink.out[0].env.TraceID)
	require.Equal(t, orders.TopicOrderStateChanged, f.sink.out[0].topic)
}
