// Package bank is the in-process stand-in for the execution environment's
// value-transfer primitive. It tracks per-account, per-asset balances and
// refuses debits that would overdraw.
package bank

import (
	"context"
	"fmt"
	"sync"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// Ledger implements domain.Treasury with in-memory balances.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]map[string]int64 // account -> asset -> micro-units
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{balances: make(map[string]map[string]int64)}
}

// Credit adds amount to an account.
func (l *Ledger) Credit(ctx context.Context, account, asset string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("bank: credit negative amount %d: %w", amount, domain.ErrInvalidInput)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[account] == nil {
		l.balances[account] = make(map[string]int64)
	}
	l.balances[account][asset] += amount
	return nil
}

// Debit removes amount from an account, failing with
// domain.ErrInsufficientFunds when the balance does not cover it.
func (l *Ledger) Debit(ctx context.Context, account, asset string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("bank: debit negative amount %d: %w", amount, domain.ErrInvalidInput)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[account][asset] < amount {
		return fmt.Errorf("bank: %s holds %d %s, need %d: %w",
			account, l.balances[account][asset], asset, amount, domain.ErrInsufficientFunds)
	}
	l.balances[account][asset] -= amount
	return nil
}

// Balance returns an account's balance in one asset.
func (l *Ledger) Balance(ctx context.Context, account, asset string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account][asset], nil
}

// Compile-time interface check.
var _ domain.Treasury = (*Ledger)(nil)
