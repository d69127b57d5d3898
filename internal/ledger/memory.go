package ledger

import (
	"context"
	"fmt"
	"math/bits"
	"sync"
)

// MemoryLedger implements Ledger with in-memory balances. Used for testing
// and single-instance deployments; a production deployment backs this with
// the chain's token program or a database.
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]uint64
	supplies map[string]uint64
	mints    map[string]bool
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]uint64),
		supplies: make(map[string]uint64),
		mints:    make(map[string]bool),
	}
}

func (l *MemoryLedger) CreateMint(_ context.Context, mint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mints[mint] = true
	return nil
}

func (l *MemoryLedger) Balance(_ context.Context, account string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}

func (l *MemoryLedger) Supply(_ context.Context, mint string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.mints[mint] {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMint, mint)
	}
	return l.supplies[mint], nil
}

// Apply validates every op against a scratch view of the affected balances
// and supplies, then commits in one step under the lock.
func (l *MemoryLedger) Apply(_ context.Context, ops ...Op) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	balances := make(map[string]uint64)
	supplies := make(map[string]uint64)

	balance := func(account string) uint64 {
		if v, ok := balances[account]; ok {
			return v
		}
		return l.balances[account]
	}
	supply := func(mint string) uint64 {
		if v, ok := supplies[mint]; ok {
			return v
		}
		return l.supplies[mint]
	}

	for _, op := range ops {
		switch op.Kind {
		case OpTransfer:
			from := balance(op.From)
			if from < op.Amount {
				return fmt.Errorf("%w: %s needs %d has %d", ErrInsufficientFunds, op.From, op.Amount, from)
			}
			balances[op.From] = from - op.Amount
			to, carry := bits.Add64(balance(op.To), op.Amount, 0)
			if carry != 0 {
				return fmt.Errorf("ledger: balance overflow on %s", op.To)
			}
			balances[op.To] = to

		case OpMint:
			if !l.mints[op.Mint] {
				return fmt.Errorf("%w: %s", ErrUnknownMint, op.Mint)
			}
			s, carry := bits.Add64(supply(op.Mint), op.Amount, 0)
			if carry != 0 {
				return fmt.Errorf("ledger: supply overflow on %s", op.Mint)
			}
			supplies[op.Mint] = s
			to, carry := bits.Add64(balance(op.To), op.Amount, 0)
			if carry != 0 {
				return fmt.Errorf("ledger: balance overflow on %s", op.To)
			}
			balances[op.To] = to

		case OpBurn:
			if !l.mints[op.Mint] {
				return fmt.Errorf("%w: %s", ErrUnknownMint, op.Mint)
			}
			from := balance(op.From)
			if from < op.Amount {
				return fmt.Errorf("%w: %s needs %d has %d", ErrInsufficientFunds, op.From, op.Amount, from)
			}
			balances[op.From] = from - op.Amount
			supplies[op.Mint] = supply(op.Mint) - op.Amount

		default:
			return fmt.Errorf("ledger: unknown op kind %q", op.Kind)
		}
	}

	for account, v := range balances {
		l.balances[account] = v
	}
	for mint, v := range supplies {
		l.supplies[mint] = v
	}
	return nil
}
