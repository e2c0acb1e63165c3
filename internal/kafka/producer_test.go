package kafka

import (
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
)

func TestPublishFullInbox(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, 1, nil)

	require.NoError(t, p.Publish("workshop.order.created", []byte("1"), []byte(`{}`)))
	require.ErrorIs(t, p.Publish("workshop.order.created", []byte("2"), []byte(`{}`)), ErrProducerFull)
}

func TestPublishAfterClose(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, 4, nil)
	p.Close()

	require.NotPanics(t, func() {
		err := p.Publish("workshop.order.created", []byte("1"), []byte(`{}`))
		require.ErrorIs(t, err, ErrProducerClosed)
	})
	require.NotPanics(t, p.Close)
}

func TestPublishRacesClose(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, 1024, nil)

	var wg sync.WaitGroup
	errs := make([]error, 50)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = p.Publish("workshop.stock.changed", []byte("2"), []byte(`{}`))
		}(i)
	}
	p.Close()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrProducerClosed)
		}
	}
}
