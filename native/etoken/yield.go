package etoken

import (
	"math/big"

	"riskpool/core/types"
	"riskpool/native/common"
)

// investedInYV returns the current value of the ledger's yield vault
// position at the vault's share price.
func (l *Ledger) investedInYV() *big.Int {
	if l == nil || l.vault == nil || l.vaultShares.Sign() == 0 {
		return big.NewInt(0)
	}
	return cloneBig(l.vault.ConvertToAssets(l.vaultShares))
}

// InvestedInYieldVault returns the current value of the vault position.
func (l *Ledger) InvestedInYieldVault() *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	return l.investedInYV()
}

// SetYieldVault links an external vault. Reserve-only. The vault must be
// denominated in the ledger's asset. When replacing an existing vault the
// position is always redeemed into cash first; with migrate=true the same
// value is re-deposited into the new vault.
func (l *Ledger) SetYieldVault(caller types.Address, vault YieldVault, migrate bool) error {
	if l == nil || l.asset == nil {
		return errNilAsset
	}
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if caller != l.reserve {
		return ErrOnlyReserve
	}
	if vault != nil && vault.Asset() != l.asset.Address() {
		return ErrVaultAssetMismatch
	}

	l.advance()

	var redeemed *big.Int
	if l.vault != nil && l.vaultShares.Sign() > 0 {
		if err := l.recordEarningsLocked(); err != nil {
			return err
		}
		value := l.investedInYV()
		if value.Sign() > 0 {
			if _, err := l.vault.Withdraw(value, l.self, l.self); err != nil {
				return err
			}
		}
		redeemed = value
		l.vaultShares = big.NewInt(0)
	}

	l.vault = vault
	l.vaultCheckpoint = big.NewInt(0)
	l.emit(&YieldVaultChanged{EToken: l.self, Migrated: migrate})

	if migrate && vault != nil && redeemed != nil && redeemed.Sign() > 0 {
		return l.depositIntoVault(redeemed)
	}
	return nil
}

// DepositIntoYieldVault moves cash into the linked vault. Reserve-only.
// MaxAmount sweeps the ledger's entire cash balance.
func (l *Ledger) DepositIntoYieldVault(caller types.Address, amount *big.Int) error {
	if l == nil || l.asset == nil {
		return errNilAsset
	}
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if caller != l.reserve {
		return ErrOnlyReserve
	}
	if l.vault == nil {
		return ErrNoYieldVault
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	l.advance()
	if err := l.recordEarningsLocked(); err != nil {
		return err
	}

	if isMaxAmount(amount) {
		amount = cloneBig(l.asset.BalanceOf(l.self))
		if amount.Sign() == 0 {
			return nil
		}
	} else if amount.Cmp(l.asset.BalanceOf(l.self)) > 0 {
		return ErrNotEnoughLiquidity
	}
	return l.depositIntoVault(amount)
}

func (l *Ledger) depositIntoVault(amount *big.Int) error {
	shares, err := l.vault.Deposit(amount, l.self)
	if err != nil {
		return err
	}
	l.vaultShares = new(big.Int).Add(l.vaultShares, shares)
	l.vaultCheckpoint = l.investedInYV()
	l.emit(&YieldVaultDeposit{EToken: l.self, Amount: cloneBig(amount)})
	return nil
}

// RecordEarnings syncs the vault checkpoint, folding the vault's P&L since
// the last checkpoint into the scale as a signed earnings delta. Callable by
// anyone; calling twice in the same instant with no vault movement is a
// no-op.
func (l *Ledger) RecordEarnings() error {
	if l == nil {
		return errNilLedger
	}
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	l.advance()
	return l.recordEarningsLocked()
}

// recordEarningsLocked folds vault P&L into the scale. The scale must
// already be advanced.
func (l *Ledger) recordEarningsLocked() error {
	if l.vault == nil {
		return nil
	}
	current := l.investedInYV()
	delta := new(big.Int).Sub(current, l.vaultCheckpoint)
	if delta.Sign() != 0 {
		if err := l.discreteEarnings(delta); err != nil {
			return err
		}
		l.updateTokenInterestRate()
	}
	l.vaultCheckpoint = current
	return nil
}

// ensureCash guarantees the ledger's asset account holds at least `needed`,
// pulling the shortfall from the yield vault. Vault P&L is realized before
// the share count changes so nothing is lost between checkpoints.
func (l *Ledger) ensureCash(needed *big.Int) error {
	if needed == nil || needed.Sign() <= 0 {
		return nil
	}
	cash := l.asset.BalanceOf(l.self)
	if cash.Cmp(needed) >= 0 {
		return nil
	}
	shortfall := new(big.Int).Sub(needed, cash)
	if l.vault == nil {
		return ErrNotEnoughLiquidity
	}
	if err := l.recordEarningsLocked(); err != nil {
		return err
	}
	if l.investedInYV().Cmp(shortfall) < 0 {
		return ErrNotEnoughLiquidity
	}
	sharesOut := l.vault.ConvertToShares(shortfall)
	if _, err := l.vault.Withdraw(shortfall, l.self, l.self); err != nil {
		return err
	}
	l.vaultShares = new(big.Int).Sub(l.vaultShares, sharesOut)
	if l.vaultShares.Sign() < 0 {
		l.vaultShares = big.NewInt(0)
	}
	l.vaultCheckpoint = l.investedInYV()
	return nil
}
