package empire

import (
	"math"
	"time"

	"stellardominion.io/internal/sim/balance"
)

// SweepOverflow moves any on-hand credits above the vault cap into the
// banked balance. Running it against an at-or-under-cap player is a no-op,
// so sweeps are idempotent. Returns the amount moved.
func SweepOverflow(p *Player, bal *balance.Balance) int64 {
	cap := p.VaultCap(bal)
	if p.Credits <= cap {
		return 0
	}
	excess := p.Credits - cap
	p.Credits = cap
	p.BankedCredits += excess
	return excess
}

// AvailableDepositSlots reconciles slot regeneration lazily: one slot
// returns per full recovery window elapsed since the last deposit, capped
// at the player's maximum.
func AvailableDepositSlots(p *Player, now time.Time, bal *balance.Balance) int {
	max := p.MaxDepositSlots(bal)
	used := p.DepositsUsed
	if used > 0 && !p.LastDeposit.IsZero() {
		window := time.Duration(bal.DepositWindowHours) * time.Hour
		if window > 0 {
			regen := int(now.Sub(p.LastDeposit) / window)
			if regen > 0 {
				used -= regen
			}
		}
	}
	if used < 0 {
		used = 0
	}
	if used > max {
		used = max
	}
	return max - used
}

// Deposit moves on-hand credits into the banked balance, consuming one
// deposit slot. A deposit may not exceed the configured fraction of on-hand
// credits (safety margin against draining yourself to the cap games).
func Deposit(p *Player, amount int64, now time.Time, bal *balance.Balance) error {
	if amount <= 0 {
		return validationf("deposit amount must be positive, got %d", amount)
	}
	maxAmount := int64(math.Floor(float64(p.Credits) * bal.DepositMaxPct))
	if amount > maxAmount {
		return &InsufficientError{Resource: "depositable_credits", Need: amount, Have: maxAmount}
	}
	avail := AvailableDepositSlots(p, now, bal)
	if avail <= 0 {
		return &InsufficientError{Resource: "deposit_slots", Need: 1, Have: 0}
	}

	// Re-anchor the lazy slot ledger at "now": usedEff below already folds
	// in every fully elapsed recovery window.
	usedEff := p.MaxDepositSlots(bal) - avail
	p.DepositsUsed = usedEff + 1
	p.LastDeposit = now

	p.Credits -= amount
	p.BankedCredits += amount
	return p.CheckNonNegative()
}

// Withdraw moves banked credits back on hand. Withdrawals are not slot
// limited.
func Withdraw(p *Player, amount int64) error {
	if amount <= 0 {
		return validationf("withdraw amount must be positive, got %d", amount)
	}
	if amount > p.BankedCredits {
		return &InsufficientError{Resource: "banked_credits", Need: amount, Have: p.BankedCredits}
	}
	p.BankedCredits -= amount
	p.Credits += amount
	return p.CheckNonNegative()
}

// BuyVault purchases one additional vault, raising the on-hand cap.
func BuyVault(p *Player, bal *balance.Balance) error {
	if p.ActiveVaults >= bal.MaxActiveVaults {
		return validationf("vault limit reached (%d)", bal.MaxActiveVaults)
	}
	if p.Credits < bal.VaultCost {
		return &InsufficientError{Resource: "credits", Need: bal.VaultCost, Have: p.Credits}
	}
	p.Credits -= bal.VaultCost
	p.ActiveVaults++
	return p.CheckNonNegative()
}
