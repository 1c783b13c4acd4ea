package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestIsNoRowsTrueForErrNoRows(t *testing.T) {
	if !isNoRows(pgx.ErrNoRows) {
		t.Fatal("expected pgx.ErrNoRows to be treated as no rows")
	}
}

func TestIsNoRowsFalseForNil(t *testing.T) {
	if isNoRows(nil) {
		t.Fatal("expected nil error to not be treated as no rows")
	}
}

func TestIsNoRowsFalseForOtherError(t *testing.T) {
	if isNoRows(errors.New("connection refused")) {
		t.Fatal("expected arbitrary error to not be treated as no rows")
	}
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestCtxFallsBackToBackgroundWhenParentNil(t *testing.T) {
	s := &Store{timeout: time.Second}
	ctx, cancel := s.ctx(nil)
	defer cancel()
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Fatal("expected a deadline to be set from the timeout")
	}
}

func TestCtxNoTimeoutReturnsParentUnmodified(t *testing.T) {
	s := &Store{timeout: 0}
	parent := context.Background()
	ctx, cancel := s.ctx(parent)
	defer cancel()
	if ctx != parent {
		t.Fatal("expected parent context to be returned unmodified when timeout is zero")
	}
}
