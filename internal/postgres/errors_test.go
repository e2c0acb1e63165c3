package postgres

import (
	"errors"
	"fmt"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestClassify(t *testing.T) {
	other := errors.New("connection reset")

	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, orders.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), orders.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "invoices_order_id_key"}, orders.ErrUniqueViolation},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "work_orders_customer_id_fkey"}, orders.ErrForeignKeyViolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, classify(tc.in), tc.want)
		})
	}

	t.Run("passthrough", func(t *testing.T) {
		require.Nil(t, classify(nil))
		require.Same(t, other, classify(other))

		check := &pgconn.PgError{Code: "23514"}
		got := classify(check)
		require.False(t, errors.Is(got, orders.ErrUniqueViolation))
		require.Equal(t, orders.KindInternal, orders.KindOf(got))
	})

	t.Run("constraint name kept", func(t *testing.T) {
		err := classify(&pgconn.PgError{Code: "23505", ConstraintName: "invoices_order_id_key"})
		require.Contains(t, err.Error(), "invoices_order_id_key")
	})
}
