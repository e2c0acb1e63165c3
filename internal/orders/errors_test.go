package orders_test

import (
	"errors"
	"fmt"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestKindAndMessageOf(t *testing.T) {
	e := &orders.Error{Op: "get order", Kind: orders.KindNotFound, Message: "order 1 not found"}
	wrapped := fmt.Errorf("handler: %w", e)

	require.Equal(t, orders.KindNotFound, orders.KindOf(wrapped))
	require.Equal(t, "order 1 not found", orders.MessageOf(wrapped))
	require.Equal(t, "get order: order 1 not found", e.Error())

	internal := &orders.Error{Op: "create order", Kind: orders.KindInternal, Message: "storage failure", Err: errors.New("conn reset")}
	require.Equal(t, "internal error", orders.MessageOf(internal))
	require.ErrorContains(t, internal, "conn reset")

	require.Equal(t, orders.KindInternal, orders.KindOf(errors.New("boom")))
	require.Equal(t, "internal error", orders.MessageOf(errors.New("boom")))
	require.Equal(t, "already_invoiced", orders.KindAlreadyInvoiced.String())
}
