package postgres

import (
	"errors"
	"fmt"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes mapped onto the store error kinds.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// classify turns driver errors into orders.ErrNotFound / ErrUniqueViolation /
// ErrForeignKeyViolation. Other errors pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", orders.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", orders.ErrUniqueViolation, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", orders.ErrForeignKeyViolation, pgErr.ConstraintName)
		}
	}
	return err
}
