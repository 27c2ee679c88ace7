package types

import (
	"encoding/hex"
	"fmt"
)

// Address identifies an account, component or asset within the pool. The
// 20-byte form matches the secp256k1-derived addresses used by the permit
// flow, so signature recovery can be compared byte for byte.
type Address [20]byte

// Hex returns the lowercase hex encoding of the address without a prefix.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// AddressFromBytes converts a raw byte slice into an Address. The slice must
// be exactly 20 bytes long.
func AddressFromBytes(b []byte) (Address, error) {
	var addr Address
	if len(b) != len(addr) {
		return Address{}, fmt.Errorf("types: address must be %d bytes, got %d", len(addr), len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// Event represents a structured state change emitted by a ledger engine. The
// attribute map keeps values as strings so downstream consumers (journal,
// metrics, replay tooling) can persist them without schema coupling.
type Event struct {
	Type       string
	Attributes map[string]string
}
