package empire

import (
	"errors"
	"testing"
	"time"
)

func TestSweepOverflow_MovesExactExcess(t *testing.T) {
	bal := testBalance()
	p := testPlayer()
	p.ActiveVaults = 1
	p.Credits = 3_200_000_000

	swept := SweepOverflow(p, bal)
	if swept != 200_000_000 {
		t.Fatalf("swept = %d, want 200000000", swept)
	}
	if p.Credits != 3_000_000_000 {
		t.Fatalf("credits = %d, want exactly the cap", p.Credits)
	}
	if p.BankedCredits != 200_000_000 {
		t.Fatalf("banked = %d, want 200000000", p.BankedCredits)
	}
}

func TestSweepOverflow_Idempotent(t *testing.T) {
	bal := testBalance()
	p := testPlayer()
	p.Credits = 3_200_000_000

	SweepOverflow(p, bal)
	if again := SweepOverflow(p, bal); again != 0 {
		t.Fatalf("second sweep moved %d, want 0", again)
	}

	under := testPlayer()
	under.Credits = 1_000
	if swept := SweepOverflow(under, bal); swept != 0 {
		t.Fatalf("under-cap sweep moved %d, want 0", swept)
	}
	if under.Credits != 1_000 || under.BankedCredits != 0 {
		t.Fatalf("under-cap sweep mutated state: %+v", under)
	}
}

func TestSweepOverflow_ScalesWithVaults(t *testing.T) {
	bal := testBalance()
	p := testPlayer()
	p.ActiveVaults = 2
	p.Credits = 5_000_000_000

	if swept := SweepOverflow(p, bal); swept != 0 {
		t.Fatalf("under double cap, swept %d", swept)
	}
	p.Credits = 6_500_000_000
	if swept := SweepOverflow(p, bal); swept != 500_000_000 {
		t.Fatalf("swept = %d, want 500000000", swept)
	}
}

func TestDeposit_SlotBoundary(t *testing.T) {
	bal := testBalance()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := testPlayer()
	p.Level = 5 // 3 base slots, no level bonus
	p.Credits = 1_000_000

	for i := 0; i < 3; i++ {
		if err := Deposit(p, 1_000, now, bal); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}
	err := Deposit(p, 1_000, now, bal)
	var insufficient *InsufficientError
	if !errors.As(err, &insufficient) || insufficient.Resource != "deposit_slots" {
		t.Fatalf("want deposit_slots shortfall, got %v", err)
	}
}

func TestDeposit_SlotsRegenerateOnePerWindow(t *testing.T) {
	bal := testBalance()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := testPlayer()
	p.Level = 5
	p.Credits = 1_000_000

	for i := 0; i < 3; i++ {
		if err := Deposit(p, 1_000, now, bal); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	if got := AvailableDepositSlots(p, now, bal); got != 0 {
		t.Fatalf("slots = %d, want 0", got)
	}
	// 5h59m: still zero. 6h: exactly one back.
	if got := AvailableDepositSlots(p, now.Add(6*time.Hour-time.Minute), bal); got != 0 {
		t.Fatalf("slots before full window = %d, want 0", got)
	}
	if got := AvailableDepositSlots(p, now.Add(6*time.Hour), bal); got != 1 {
		t.Fatalf("slots after one window = %d, want 1", got)
	}
	// Regeneration caps at the maximum; a week away does not overflow.
	if got := AvailableDepositSlots(p, now.Add(7*24*time.Hour), bal); got != 3 {
		t.Fatalf("slots after long gap = %d, want max 3", got)
	}
}

func TestDeposit_MaxSlotsScaleWithLevel(t *testing.T) {
	bal := testBalance()
	p := testPlayer()
	p.Level = 45
	if got := p.MaxDepositSlots(bal); got != 7 { // 3 + 45/10
		t.Fatalf("slots at level 45 = %d, want 7", got)
	}
	p.Level = 200
	if got := p.MaxDepositSlots(bal); got != bal.DepositMaxSlots {
		t.Fatalf("slots at level 200 = %d, want cap %d", got, bal.DepositMaxSlots)
	}
}

func TestDeposit_EightyPercentRule(t *testing.T) {
	bal := testBalance()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := testPlayer()
	p.Credits = 10_000

	err := Deposit(p, 8_001, now, bal)
	var insufficient *InsufficientError
	if !errors.As(err, &insufficient) || insufficient.Resource != "depositable_credits" {
		t.Fatalf("want depositable_credits shortfall, got %v", err)
	}
	if err := Deposit(p, 8_000, now, bal); err != nil {
		t.Fatalf("80%% deposit should pass: %v", err)
	}
	if p.Credits != 2_000 || p.BankedCredits != 8_000 {
		t.Fatalf("balances after deposit: %+v", p)
	}
}

func TestWithdraw(t *testing.T) {
	p := testPlayer()
	p.BankedCredits = 5_000
	credits := p.Credits

	if err := Withdraw(p, 3_000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if p.BankedCredits != 2_000 || p.Credits != credits+3_000 {
		t.Fatalf("balances after withdraw: banked=%d credits=%d", p.BankedCredits, p.Credits)
	}

	err := Withdraw(p, 2_001)
	var insufficient *InsufficientError
	if !errors.As(err, &insufficient) || insufficient.Resource != "banked_credits" {
		t.Fatalf("want banked_credits shortfall, got %v", err)
	}
}

func TestBuyVault(t *testing.T) {
	bal := testBalance()
	p := testPlayer()
	p.Credits = bal.VaultCost + 5
	p.ActiveVaults = 1

	if err := BuyVault(p, bal); err != nil {
		t.Fatalf("buy vault: %v", err)
	}
	if p.ActiveVaults != 2 || p.Credits != 5 {
		t.Fatalf("after purchase: vaults=%d credits=%d", p.ActiveVaults, p.Credits)
	}

	err := BuyVault(p, bal)
	var insufficient *InsufficientError
	if !errors.As(err, &insufficient) {
		t.Fatalf("want credits shortfall, got %v", err)
	}

	p.Credits = bal.VaultCost
	p.ActiveVaults = bal.MaxActiveVaults
	var verr *ValidationError
	if err := BuyVault(p, bal); !errors.As(err, &verr) {
		t.Fatalf("want vault limit validation error, got %v", err)
	}
}
