package empire

import (
	"testing"
	"time"

	"stellardominion.io/internal/sim/balance"
)

func testBalance() *balance.Balance {
	b := balance.Defaults()
	return &b
}

func testPlayer() *Player {
	return &Player{
		ID:                1,
		Name:              "cmdr",
		Level:             10,
		Credits:           50_000,
		UntrainedCitizens: 100,
		Workers:           20,
		Soldiers:          50,
		Guards:            30,
		AttackTurns:       10,
		ActiveVaults:      1,
		FoundationHP:      100_000,
		FoundationMaxHP:   100_000,
		LastUpdated:       time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestReconcileTurns_NoElapsedIsNoOp(t *testing.T) {
	bal := testBalance()
	p := testPlayer()
	before := *p
	rep := ReconcileTurns(p, p.LastUpdated.Add(5*time.Minute), bal)
	if rep.Turns != 0 {
		t.Fatalf("expected 0 turns, got %d", rep.Turns)
	}
	if *p != before {
		t.Fatalf("no-op reconcile mutated the player: %+v != %+v", *p, before)
	}
}

func TestReconcileTurns_Idempotent(t *testing.T) {
	bal := testBalance()
	now := testPlayer().LastUpdated.Add(35 * time.Minute)

	once := testPlayer()
	ReconcileTurns(once, now, bal)

	twice := testPlayer()
	ReconcileTurns(twice, now, bal)
	rep := ReconcileTurns(twice, now, bal)
	if rep.Turns != 0 {
		t.Fatalf("second reconcile at same instant applied %d turns", rep.Turns)
	}
	if *once != *twice {
		t.Fatalf("double reconcile diverged: %+v != %+v", *once, *twice)
	}
}

func TestReconcileTurns_KeepsPartialRemainder(t *testing.T) {
	bal := testBalance()
	p := testPlayer()
	start := p.LastUpdated
	// 35 minutes = 3 whole turns + 5 minute remainder.
	ReconcileTurns(p, start.Add(35*time.Minute), bal)
	if got, want := p.LastUpdated, start.Add(30*time.Minute); !got.Equal(want) {
		t.Fatalf("last_updated = %v, want %v", got, want)
	}
}

func TestReconcileTurns_MaintenanceAndIncome(t *testing.T) {
	bal := testBalance()
	p := testPlayer()
	due := p.MaintenancePerTurn(bal)
	income := p.IncomePerTurn(bal)
	credits := p.Credits

	rep := ReconcileTurns(p, p.LastUpdated.Add(10*time.Minute), bal)
	if rep.Turns != 1 {
		t.Fatalf("turns = %d, want 1", rep.Turns)
	}
	if rep.MaintenancePaid != due {
		t.Fatalf("maintenance paid = %d, want %d", rep.MaintenancePaid, due)
	}
	if p.Credits != credits-due+income {
		t.Fatalf("credits = %d, want %d", p.Credits, credits-due+income)
	}
	if p.UntrainedCitizens != 100+bal.CitizensPerTurn {
		t.Fatalf("citizens = %d", p.UntrainedCitizens)
	}
	if len(rep.UnitsPurged) != 0 {
		t.Fatalf("fully paid maintenance should purge nothing, got %v", rep.UnitsPurged)
	}
}

func TestReconcileTurns_FatiguePurgeOnShortfall(t *testing.T) {
	bal := testBalance()
	p := testPlayer()
	p.Workers = 0
	p.Soldiers = 1000
	p.Guards = 0
	p.Credits = 0 // cannot pay anything: unpaid fraction = 1.0
	bal.BaseIncomePerTurn = 0

	rep := ReconcileTurns(p, p.LastUpdated.Add(10*time.Minute), bal)
	if rep.Turns != 1 {
		t.Fatalf("turns = %d, want 1", rep.Turns)
	}
	// Full shortfall purges FatiguePurgePct of each maintained type.
	wantLost := int64(float64(1000) * bal.FatiguePurgePct)
	if got := rep.UnitsPurged[UnitSoldiers]; got != wantLost {
		t.Fatalf("soldiers purged = %d, want %d", got, wantLost)
	}
	if p.Soldiers != 1000-wantLost {
		t.Fatalf("soldiers = %d, want %d", p.Soldiers, 1000-wantLost)
	}
}

func TestReconcileTurns_PurgeNeverGoesNegative(t *testing.T) {
	bal := testBalance()
	p := testPlayer()
	p.Workers = 0
	p.Soldiers = 1
	p.Guards = 0
	p.Credits = 0
	bal.BaseIncomePerTurn = 0

	ReconcileTurns(p, p.LastUpdated.Add(100*time.Hour), bal)
	if p.Soldiers < 0 {
		t.Fatalf("soldiers went negative: %d", p.Soldiers)
	}
	if err := p.CheckNonNegative(); err != nil {
		t.Fatalf("non-negative invariant broken: %v", err)
	}
}

func TestReconcileTurns_AttackTurnCap(t *testing.T) {
	bal := testBalance()
	p := testPlayer()
	p.AttackTurns = bal.MaxAttackTurns - 1

	rep := ReconcileTurns(p, p.LastUpdated.Add(10*time.Duration(bal.TurnMinutes)*time.Minute), bal)
	if p.AttackTurns != bal.MaxAttackTurns {
		t.Fatalf("attack turns = %d, want cap %d", p.AttackTurns, bal.MaxAttackTurns)
	}
	if rep.AttackTurnsGained != 1 {
		t.Fatalf("attack turns gained = %d, want 1", rep.AttackTurnsGained)
	}
}

func TestSecondsUntilNextTurn(t *testing.T) {
	bal := testBalance()
	p := testPlayer()
	now := p.LastUpdated.Add(7 * time.Minute)
	if got := SecondsUntilNextTurn(p, now, bal); got != 180 {
		t.Fatalf("seconds until next turn = %d, want 180", got)
	}
}
