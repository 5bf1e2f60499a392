package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
)

type txContextKey struct{}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	if pool == nil {
		return errors.New("postgres pool is nil")
	}

	if tx, ok := txFromContext(ctx); ok {
		return fn(ctx, tx)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapErr("begin tx", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txCtx := context.WithValue(ctx, txContextKey{}, tx)
	if err := fn(txCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapErr("commit tx", err)
	}

	return nil
}

// TxManager runs closures in one transaction; repositories called with the
// closure's context join it.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

func (m *TxManager) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return WithTx(ctx, m.pool, func(txCtx context.Context, _ pgx.Tx) error {
		return fn(txCtx)
	})
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok && tx != nil
}

func conn(ctx context.Context, pool *pgxpool.Pool) (querier, error) {
	if tx, ok := txFromContext(ctx); ok {
		return tx, nil
	}
	if pool == nil {
		return nil, errors.New("postgres pool is nil")
	}
	return pool, nil
}

func wrapErr(op string, err error) error {
	if isTransient(err) {
		return fmt.Errorf("%s: %w", op, apperr.Transient(err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01", pgErr.Code == "53300":
			return true
		}
		return false
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
