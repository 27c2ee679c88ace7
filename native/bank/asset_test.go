package bank

import (
	"errors"
	"math/big"
	"testing"

	"riskpool/core/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestMintTransferBurn(t *testing.T) {
	operator := addr(0x01)
	alice := addr(0x02)
	bob := addr(0x03)
	asset := NewBookAsset("USDC", addr(0xFE), operator, 6)

	if err := asset.Mint(alice, alice, big.NewInt(100)); !errors.Is(err, ErrOnlyOperator) {
		t.Fatalf("mint by non-operator: got %v, want ErrOnlyOperator", err)
	}
	if err := asset.Mint(operator, alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := asset.Transfer(alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := asset.Transfer(alice, bob, big.NewInt(601)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientBalance", err)
	}
	if err := asset.Burn(operator, bob, big.NewInt(100)); err != nil {
		t.Fatalf("burn: %v", err)
	}

	if got := asset.BalanceOf(alice); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("alice balance: got %s, want 600", got)
	}
	if got := asset.BalanceOf(bob); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("bob balance: got %s, want 300", got)
	}
	if got := asset.TotalIssued(); got.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("total issued: got %s, want 900", got)
	}
}

func TestParseAddress(t *testing.T) {
	want := addr(0xAB)
	got, err := ParseAddress("0x" + want.Hex())
	if err != nil {
		t.Fatalf("parse with prefix: %v", err)
	}
	if got != want {
		t.Fatalf("parsed address: got %s, want %s", got.Hex(), want.Hex())
	}
	if _, err := ParseAddress(want.Hex()); err != nil {
		t.Fatalf("parse without prefix: %v", err)
	}
	if _, err := ParseAddress("abc"); err == nil {
		t.Fatal("short address accepted")
	}
	if _, err := ParseAddress("zz" + want.Hex()[2:]); err == nil {
		t.Fatal("non-hex address accepted")
	}
}
