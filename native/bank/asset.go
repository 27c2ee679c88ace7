package bank

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"riskpool/core/types"
)

const addressHexLength = 40

var (
	ErrOnlyOperator        = errors.New("bank: caller is not the asset operator")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
)

// ParseAddress normalises and validates an account address expressed as a hex
// string, with or without a 0x prefix.
func ParseAddress(ref string) (types.Address, error) {
	trimmed := strings.TrimSpace(ref)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != addressHexLength {
		return types.Address{}, fmt.Errorf("bank: address must be 20 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return types.Address{}, fmt.Errorf("bank: decode address: %w", err)
	}
	return types.AddressFromBytes(decoded)
}

// BookAsset is a book-entry rendition of the pool's underlying token: plain
// balances keyed by address, moved only by explicit transfers and minted by a
// single operator. It backs the pool ledger wherever the real asset lives
// outside the process.
type BookAsset struct {
	mu       sync.RWMutex
	name     string
	addr     types.Address
	operator types.Address
	decimals int
	balances map[types.Address]*big.Int
}

// NewBookAsset creates an empty asset book. The addr identifies the asset to
// vault-compatibility checks; operator is the only account allowed to mint.
func NewBookAsset(name string, addr, operator types.Address, decimals int) *BookAsset {
	return &BookAsset{
		name:     name,
		addr:     addr,
		operator: operator,
		decimals: decimals,
		balances: make(map[types.Address]*big.Int),
	}
}

// Name returns the asset's display name.
func (a *BookAsset) Name() string { return a.name }

// Decimals returns the asset's decimal places.
func (a *BookAsset) Decimals() int { return a.decimals }

// Address identifies the asset.
func (a *BookAsset) Address() types.Address {
	if a == nil {
		return types.Address{}
	}
	return a.addr
}

// BalanceOf returns the balance held by owner.
func (a *BookAsset) BalanceOf(owner types.Address) *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if bal := a.balances[owner]; bal != nil {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// TotalIssued returns the sum of every balance on the book.
func (a *BookAsset) TotalIssued() *big.Int {
	total := big.NewInt(0)
	if a == nil {
		return total
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, bal := range a.balances {
		total.Add(total, bal)
	}
	return total
}

// Mint credits amount to receiver. Operator-only.
func (a *BookAsset) Mint(caller, receiver types.Address, amount *big.Int) error {
	if a == nil {
		return errors.New("bank: asset not configured")
	}
	if caller != a.operator {
		return ErrOnlyOperator
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.credit(receiver, amount)
	return nil
}

// Burn debits amount from owner. Operator-only.
func (a *BookAsset) Burn(caller, owner types.Address, amount *big.Int) error {
	if a == nil {
		return errors.New("bank: asset not configured")
	}
	if caller != a.operator {
		return ErrOnlyOperator
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.debit(owner, amount)
}

// Transfer moves amount from one account to another. Implements the asset
// interface the pool ledger moves funds through.
func (a *BookAsset) Transfer(from, to types.Address, amount *big.Int) error {
	if a == nil {
		return errors.New("bank: asset not configured")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.debit(from, amount); err != nil {
		return err
	}
	a.credit(to, amount)
	return nil
}

func (a *BookAsset) credit(owner types.Address, amount *big.Int) {
	current := a.balances[owner]
	if current == nil {
		current = big.NewInt(0)
	}
	a.balances[owner] = new(big.Int).Add(current, amount)
}

func (a *BookAsset) debit(owner types.Address, amount *big.Int) error {
	current := a.balances[owner]
	if current == nil || current.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	next := new(big.Int).Sub(current, amount)
	if next.Sign() == 0 {
		delete(a.balances, owner)
	} else {
		a.balances[owner] = next
	}
	return nil
}
