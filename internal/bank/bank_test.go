package bank

import (
	"context"
	"errors"
	"testing"

	"github.com/oraclebet/oraclebet/internal/domain"
)

func TestLedger(t *testing.T) {
	l := New()
	ctx := context.Background()

	if b, _ := l.Balance(ctx, "alice", "usdc"); b != 0 {
		t.Fatalf("fresh balance = %d, want 0", b)
	}

	if err := l.Credit(ctx, "alice", "usdc", 1000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Debit(ctx, "alice", "usdc", 400); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if b, _ := l.Balance(ctx, "alice", "usdc"); b != 600 {
		t.Fatalf("balance = %d, want 600", b)
	}

	// Balances are per asset.
	if err := l.Debit(ctx, "alice", "eth", 1); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("cross-asset debit: got %v, want ErrInsufficientFunds", err)
	}
}

func TestLedger_Overdraw(t *testing.T) {
	l := New()
	ctx := context.Background()

	l.Credit(ctx, "alice", "usdc", 100)
	if err := l.Debit(ctx, "alice", "usdc", 101); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientFunds", err)
	}
	// A refused debit leaves the balance untouched.
	if b, _ := l.Balance(ctx, "alice", "usdc"); b != 100 {
		t.Fatalf("balance after refused debit = %d, want 100", b)
	}
}

func TestLedger_NegativeAmounts(t *testing.T) {
	l := New()
	ctx := context.Background()

	if err := l.Credit(ctx, "alice", "usdc", -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("negative credit: got %v, want ErrInvalidInput", err)
	}
	if err := l.Debit(ctx, "alice", "usdc", -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("negative debit: got %v, want ErrInvalidInput", err)
	}
}
