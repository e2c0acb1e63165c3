package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

type fakeStore struct {
	seen    map[string]bool
	low     map[int64]string
	markErr error
	forgot  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{seen: map[string]bool{}, low: map[int64]string{}}
}

func (f *fakeStore) FirstSeen(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeStore) Forget(_ context.Context, key string) error {
	delete(f.seen, key)
	f.forgot = append(f.forgot, key)
	return nil
}

func (f *fakeStore) MarkLow(_ context.Context, partID int64, payload []byte) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.low[partID] = string(payload)
	return nil
}

func (f *fakeStore) ClearLow(_ context.Context, partID int64) error {
	delete(f.low, partID)
	return nil
}

func (f *fakeStore) LowParts(context.Context) (map[int64]string, error) { return f.low, nil }

func stockMsg(t *testing.T, eventID string, p orders.StockChangedPayload) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(p)
	require.NoError(t, err)
	b, err := json.Marshal(orders.Envelope{
		EventID:      eventID,
		EventType:    orders.EventStockChanged,
		EventVersion: 1,
		OccurredAt:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Payload:      payload,
	})
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestHandleStockChangedMarksAndClears(t *testing.T) {
	st := newFakeStore()
	svc := &Service{Store: st, ServiceName: "alerts"}
	ctx := context.Background()

	require.NoError(t, svc.HandleStockChanged(ctx, stockMsg(t, "e1", orders.StockChangedPayload{
		PartID: 2, Name: "Pastillas de freno", Old: 8, New: 4, MinStock: 5, Reason: orders.ReasonOrderReserved,
	})))
	require.Contains(t, st.low, int64(2))

	list, err := List(ctx, st)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Pastillas de freno", list[0].Name)
	require.Equal(t, 4, list[0].Stock)

	require.NoError(t, svc.HandleStockChanged(ctx, stockMsg(t, "e2", orders.StockChangedPayload{
		PartID: 2, Old: 4, New: 20, MinStock: 5, Reason: orders.ReasonPurchase,
	})))
	require.NotContains(t, st.low, int64(2))
}

func TestHandleStockChangedDedup(t *testing.T) {
	st := newFakeStore()
	svc := &Service{Store: st, ServiceName: "alerts"}
	ctx := context.Background()
	msg := stockMsg(t, "dup", orders.StockChangedPayload{PartID: 1, New: 0, MinStock: 3})

	require.NoError(t, svc.HandleStockChanged(ctx, msg))
	delete(st.low, 1)
	require.NoError(t, svc.HandleStockChanged(ctx, msg))
	require.Empty(t, st.low, "redelivered event must not be applied twice")
}

func TestHandleStockChangedForgetsOnFailure(t *testing.T) {
	st := newFakeStore()
	st.markErr = errors.New("redis down")
	svc := &Service{Store: st, ServiceName: "alerts"}

	err := svc.HandleStockChanged(context.Background(), stockMsg(t, "e9", orders.StockChangedPayload{PartID: 1, New: 0, MinStock: 3}))
	require.Error(t, err)
	require.Equal(t, []string{"dedup:alerts:e9"}, st.forgot)
	require.False(t, st.seen["dedup:alerts:e9"])
}

func TestHandleStockChangedIgnoresOtherEvents(t *testing.T) {
	st := newFakeStore()
	svc := &Service{Store: st}
	b, err := json.Marshal(orders.Envelope{EventID: "x", EventType: orders.EventOrderCreated})
	require.NoError(t, err)

	require.NoError(t, svc.HandleStockChanged(context.Background(), kafkago.Message{Value: b}))
	require.NoError(t, svc.HandleStockChanged(context.Background(), kafkago.Message{Value: []byte("{")}))
	require.Empty(t, st.seen)
}
