package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx shared by pools, connections and transactions.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

// WithTx runs fn inside a transaction carried on the context. Repositories
// pick it up through ConnFromContext. Nested calls reuse the outer transaction.
func WithTx(ctx context.Context, b TxBeginner, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ConnFromContext returns the transaction started by WithTx, or nil.
func ConnFromContext(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// LockProvider takes a transaction-scoped advisory lock keyed by provider id,
// serializing writers of one provider's calendar until commit or rollback.
func LockProvider(ctx context.Context, providerID int64) error {
	q := ConnFromContext(ctx)
	if q == nil {
		return errors.New("advisory lock requires a transaction")
	}
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, providerID); err != nil {
		return fmt.Errorf("lock provider %d: %w", providerID, err)
	}
	return nil
}

const (
	codeExclusionViolation  = "23P01"
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// IsExclusionViolation reports whether err is an overlapping-range rejection
// from an EXCLUDE constraint.
func IsExclusionViolation(err error) bool {
	return hasCode(err, codeExclusionViolation)
}

func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
