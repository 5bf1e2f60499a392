package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
)

func TestWrapErrClassifiesTransientFailures(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, transient: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, transient: true},
		{name: "connection failure", err: &pgconn.PgError{Code: "08006"}, transient: true},
		{name: "admin shutdown", err: &pgconn.PgError{Code: "57P01"}, transient: true},
		{name: "deadline", err: context.DeadlineExceeded, transient: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, transient: false},
		{name: "plain", err: errors.New("boom"), transient: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := wrapErr("op", tc.err)
			if apperr.IsTransient(got) != tc.transient {
				t.Fatalf("unexpected transient classification for %v: got %v", tc.err, !tc.transient)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("original error must stay in chain")
			}
		})
	}
}

func TestWithTxRejectsNilPool(t *testing.T) {
	err := NewTxManager(nil).WithTx(context.Background(), func(context.Context) error {
		t.Fatalf("closure must not run without a pool")
		return nil
	})
	if err == nil {
		t.Fatalf("expected error for nil pool")
	}
}
