// Package ledger defines the token ledger the engine commands: balance
// transfers, mint/burn of LP shares, and balance/supply reads. The engine
// holds the authority to move pool reserves and market vaults; callers
// never present their own signing capability here.
//
// Multi-leg operations go through Apply, which is all-or-nothing: every
// leg is validated against the resulting balances before any leg lands,
// so a failing transfer never leaves a partial effect behind.
package ledger

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientFunds is returned when a transfer or burn exceeds
	// the source balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrUnknownMint is returned for mint/burn against an unregistered
	// mint.
	ErrUnknownMint = errors.New("ledger: unknown mint")

	// ErrUnauthorized is returned when the engine lacks authority over a
	// mint.
	ErrUnauthorized = errors.New("ledger: unauthorized")
)

// Op kinds.
const (
	OpTransfer = "transfer"
	OpMint     = "mint"
	OpBurn     = "burn"
)

// Op is one ledger instruction inside an atomic batch.
type Op struct {
	Kind   string
	From   string // transfer, burn
	To     string // transfer, mint
	Mint   string // mint, burn
	Amount uint64
}

// Transfer builds a transfer op.
func Transfer(from, to string, amount uint64) Op {
	return Op{Kind: OpTransfer, From: from, To: to, Amount: amount}
}

// Mint builds a mint op.
func Mint(mint, to string, amount uint64) Op {
	return Op{Kind: OpMint, Mint: mint, To: to, Amount: amount}
}

// Burn builds a burn op.
func Burn(mint, from string, amount uint64) Op {
	return Op{Kind: OpBurn, Mint: mint, From: from, Amount: amount}
}

// Ledger is the token collaborator contract. All methods are synchronous
// and atomic from the engine's perspective.
type Ledger interface {
	// Apply executes the ops as a single atomic unit. On error no op has
	// taken effect.
	Apply(ctx context.Context, ops ...Op) error

	// Balance returns the current balance of an account. Unknown accounts
	// hold zero.
	Balance(ctx context.Context, account string) (uint64, error)

	// Supply returns the outstanding supply of a mint.
	Supply(ctx context.Context, mint string) (uint64, error)

	// CreateMint registers a mint under the engine's authority.
	CreateMint(ctx context.Context, mint string) error
}
