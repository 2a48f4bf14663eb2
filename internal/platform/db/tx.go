package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const (
	txKey    contextKey = "db_tx"
	hooksKey contextKey = "db_commit_hooks"
)

// Queryable is the subset of pgx shared by the pool and a transaction.
type Queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxFromContext returns the transaction started by Transactor.WithTx, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// Conn returns the active transaction from ctx, falling back to the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Queryable {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

type commitHooks struct {
	fns []func()
}

// withCommitHooks returns ctx carrying a fresh hook list, or ctx unchanged
// with a nil list when an outer runner already owns one.
func withCommitHooks(ctx context.Context) (context.Context, *commitHooks) {
	if _, ok := ctx.Value(hooksKey).(*commitHooks); ok {
		return ctx, nil
	}
	h := &commitHooks{}
	return context.WithValue(ctx, hooksKey, h), h
}

func (h *commitHooks) run() {
	if h == nil {
		return
	}
	for _, fn := range h.fns {
		fn()
	}
}

// AfterCommit defers fn until the transaction on ctx commits. Hooks are
// dropped on rollback. Without a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if h, ok := ctx.Value(hooksKey).(*commitHooks); ok {
		h.fns = append(h.fns, fn)
		return
	}
	fn()
}

// TxRunner runs fn atomically. Services depend on this interface so that
// tests can substitute a pass-through runner.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Transactor runs functions inside a pgx transaction carried on the context.
type Transactor struct {
	pool *pgxpool.Pool
}

func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// WithTx begins a transaction, stores it on the context passed to fn and
// commits when fn returns nil. Nested calls reuse the outer transaction.
func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txCtx, hooks := withCommitHooks(context.WithValue(ctx, txKey, tx))
	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	hooks.run()
	return nil
}

// NoTx runs fn directly. It satisfies TxRunner for in-memory tests and
// treats a nil error from fn as a commit when running AfterCommit hooks.
type NoTx struct{}

func (NoTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, hooks := withCommitHooks(ctx)
	if err := fn(ctx); err != nil {
		return err
	}
	hooks.run()
	return nil
}

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// IsNoRows reports whether err signals an empty single-row result.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
