package empire

import (
	"math"
	"time"

	"stellardominion.io/internal/sim/balance"
)

// Player is an in-memory snapshot of one persisted player row. The engine
// reads it inside a transaction, runs the pure operations here against it,
// and writes it back with a conditional update.
type Player struct {
	ID         int64
	Name       string
	Level      int
	Experience int64

	Credits           int64
	BankedCredits     int64
	UntrainedCitizens int64

	Workers  int64
	Soldiers int64
	Guards   int64
	Sentries int64
	Spies    int64

	Strength     int
	Constitution int
	Wealth       int
	Dexterity    int
	Charisma     int

	AttackTurns int
	LastUpdated time.Time

	ArmoryLevel        int
	FortificationLevel int
	FoundationHP       int64
	FoundationMaxHP    int64

	ActiveVaults  int
	DepositsUsed  int
	LastDeposit   time.Time

	AllianceID int64 // 0 = unaffiliated
	Deleted    bool  // soft lifecycle only; rows are never hard-deleted

	// Version is the optimistic-concurrency token. The store bumps it on
	// every write and refuses a write whose expected version is stale.
	Version int64
}

// UnitCount returns the owned count for a kind.
func (p *Player) UnitCount(kind UnitKind) int64 {
	switch kind {
	case UnitWorkers:
		return p.Workers
	case UnitSoldiers:
		return p.Soldiers
	case UnitGuards:
		return p.Guards
	case UnitSentries:
		return p.Sentries
	case UnitSpies:
		return p.Spies
	}
	return 0
}

// AddUnits adjusts the owned count for a kind (delta may be negative).
func (p *Player) AddUnits(kind UnitKind, delta int64) {
	switch kind {
	case UnitWorkers:
		p.Workers += delta
	case UnitSoldiers:
		p.Soldiers += delta
	case UnitGuards:
		p.Guards += delta
	case UnitSentries:
		p.Sentries += delta
	case UnitSpies:
		p.Spies += delta
	}
}

// OffensePower is the attacker-side effective power before turn scaling,
// alliance bonus and noise: soldiers weighted by unit offense, strength
// attribute and armory level.
func (p *Player) OffensePower(bal *balance.Balance) float64 {
	base := float64(p.Soldiers * UnitStats(UnitSoldiers, bal).Offense)
	strength := 1 + float64(p.Strength)*bal.StrengthPct/100
	armory := 1 + float64(p.ArmoryLevel)*bal.ArmoryPct/100
	return base * strength * armory
}

// DefensePower is the defender-side effective power: guards and sentries
// weighted by unit defense, constitution attribute and fortification level.
func (p *Player) DefensePower(bal *balance.Balance) float64 {
	base := float64(p.Guards*UnitStats(UnitGuards, bal).Defense + p.Sentries*UnitStats(UnitSentries, bal).Defense)
	constitution := 1 + float64(p.Constitution)*bal.ConstitutionPct/100
	fort := 1 + float64(p.FortificationLevel)*bal.FortificationPct/100
	return base * constitution * fort
}

// SpyPower weighs spies by unit offense and dexterity.
func (p *Player) SpyPower(bal *balance.Balance) float64 {
	base := float64(p.Spies * UnitStats(UnitSpies, bal).Offense)
	return base * (1 + float64(p.Dexterity)*bal.DexterityPct/100)
}

// SentryPower is the counter-espionage weight.
func (p *Player) SentryPower(bal *balance.Balance) float64 {
	base := float64(p.Sentries * UnitStats(UnitSentries, bal).Defense)
	return base * (1 + float64(p.Constitution)*bal.ConstitutionPct/100)
}

// IncomePerTurn is the credit accrual for one elapsed turn.
func (p *Player) IncomePerTurn(bal *balance.Balance) int64 {
	base := bal.BaseIncomePerTurn + p.Workers*bal.CreditsPerWorker
	wealth := 1 + float64(p.Wealth)*bal.WealthIncomePct/100
	return int64(math.Floor(float64(base) * wealth))
}

// MaintenancePerTurn is the total upkeep due for one elapsed turn.
func (p *Player) MaintenancePerTurn(bal *balance.Balance) int64 {
	var due int64
	for _, k := range AllUnitKinds {
		due += p.UnitCount(k) * UnitStats(k, bal).Maintenance
	}
	return due
}

// VaultCap is the on-hand credit ceiling.
func (p *Player) VaultCap(bal *balance.Balance) int64 {
	vaults := p.ActiveVaults
	if vaults < 1 {
		vaults = 1
	}
	return bal.BaseVaultCapacity * int64(vaults)
}

// MaxDepositSlots scales with level: min(10, 3 + level/10).
func (p *Player) MaxDepositSlots(bal *balance.Balance) int {
	slots := bal.DepositBaseSlots + (p.Level/10)*bal.DepositSlotsPer10Lv
	if slots > bal.DepositMaxSlots {
		slots = bal.DepositMaxSlots
	}
	return slots
}

// NetWorth is the leaderboard metric: liquid plus banked credits.
func (p *Player) NetWorth() int64 {
	return p.Credits + p.BankedCredits
}

// CheckNonNegative verifies the core invariant that no balance or count is
// negative. The engine calls it before committing any mutation.
func (p *Player) CheckNonNegative() error {
	checks := []struct {
		name string
		v    int64
	}{
		{"credits", p.Credits},
		{"banked_credits", p.BankedCredits},
		{"untrained_citizens", p.UntrainedCitizens},
		{"workers", p.Workers},
		{"soldiers", p.Soldiers},
		{"guards", p.Guards},
		{"sentries", p.Sentries},
		{"spies", p.Spies},
		{"attack_turns", int64(p.AttackTurns)},
		{"foundation_hp", p.FoundationHP},
	}
	for _, c := range checks {
		if c.v < 0 {
			return invariantf("player %d: %s is negative (%d)", p.ID, c.name, c.v)
		}
	}
	return nil
}
