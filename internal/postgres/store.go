package postgres

import (
	"context"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store runs orders transactions on a pgx pool. Row locks (FOR UPDATE) taken
// inside a transaction are held until commit or rollback.
type Store struct{ DB *pgxpool.Pool }

var _ orders.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err // rollback via defer
	}
	return classify(tx.Commit(ctx))
}
