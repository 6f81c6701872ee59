package empire

import (
	"math"
	"math/rand"

	"stellardominion.io/internal/sim/balance"
)

type Outcome string

const (
	OutcomeVictory Outcome = "VICTORY"
	OutcomeDefeat  Outcome = "DEFEAT"
)

// FarmTier is the anti-farm bracket an attack lands in, based on how often
// the attacker has hit the same target recently.
type FarmTier string

const (
	FarmTierFull          FarmTier = "FULL"
	FarmTierReduced       FarmTier = "REDUCED"
	FarmTierStructureOnly FarmTier = "STRUCTURE_ONLY"
)

// RecentAttacks counts prior attacks by this attacker on this target,
// supplied by the store from the battle log index.
type RecentAttacks struct {
	LastHour int
	LastDay  int
}

// BattleResult is everything an attack resolution decided. The engine
// applies it atomically and the battle log records it verbatim.
type BattleResult struct {
	AttackerID int64
	DefenderID int64
	Outcome    Outcome
	TurnsUsed  int

	Plunder         int64 // defender loses exactly this
	Tribute         int64 // slice of Plunder routed to the defender's alliance
	GuardCasualties int64
	StructureDamage int64
	FoundationRazed bool // defender foundation was already at zero HP

	AttackerXP int64
	DefenderXP int64

	Ratio float64
	Noise float64
	Tier  FarmTier
}

// MinAttackTurns and MaxAttackTurnsPerStrike bound the turns committed to a
// single strike.
const (
	MinAttackTurns          = 1
	MaxAttackTurnsPerStrike = 10
)

func farmTier(rec RecentAttacks, bal *balance.Balance) FarmTier {
	if rec.LastDay >= bal.StructureOnlyAttacksPerDay {
		return FarmTierStructureOnly
	}
	if rec.LastHour >= bal.ReducedPlunderAttacksPerHour {
		return FarmTierStructureOnly
	}
	if rec.LastHour >= bal.FullPlunderAttacksPerHour {
		return FarmTierReduced
	}
	return FarmTierFull
}

// ResolveAttack computes one attack between two reconciled snapshots.
// It never mutates its inputs; the engine applies the returned result.
// atWar applies the alliance combat bonus to the attacker and routes
// tribute to the defender's alliance on a loss of credits.
func ResolveAttack(atk, def *Player, turns int, rec RecentAttacks, atWar bool, rng *rand.Rand, bal *balance.Balance) (BattleResult, error) {
	if turns < MinAttackTurns || turns > MaxAttackTurnsPerStrike {
		return BattleResult{}, validationf("attack turns must be in [%d,%d], got %d", MinAttackTurns, MaxAttackTurnsPerStrike, turns)
	}
	if atk.AttackTurns < turns {
		return BattleResult{}, &InsufficientError{Resource: "attack_turns", Need: int64(turns), Have: int64(atk.AttackTurns)}
	}
	if atk.ID == def.ID {
		return BattleResult{}, validationf("cannot attack yourself")
	}

	res := BattleResult{
		AttackerID: atk.ID,
		DefenderID: def.ID,
		TurnsUsed:  turns,
		Tier:       farmTier(rec, bal),
	}

	// Soft turn-count scaling, capped so stacking turns has diminishing
	// returns.
	turnMult := math.Pow(float64(turns), bal.TurnPowerExponent)
	if turnMult > bal.TurnPowerCap {
		turnMult = bal.TurnPowerCap
	}

	noise := bal.NoiseMin + rng.Float64()*(bal.NoiseMax-bal.NoiseMin)
	res.Noise = noise

	effAtk := atk.OffensePower(bal) * turnMult
	if atWar {
		effAtk *= 1 + bal.AllianceCombatBonusPct
	}
	defPower := def.DefensePower(bal)

	// Defender wins ties, and wins near-parity: the noise-free ratio must
	// clear the underdog threshold before the attacker can win at all.
	// Above it, noise decides the contested band up to even odds.
	var ratio float64
	switch {
	case defPower > 0:
		ratio = effAtk / defPower
	case effAtk > 0:
		ratio = math.Inf(1)
	default:
		ratio = 0
	}
	res.Ratio = ratio

	win := ratio > bal.UnderdogThreshold && ratio*noise > 1.0
	if win {
		res.Outcome = OutcomeVictory
	} else {
		res.Outcome = OutcomeDefeat
	}

	if win && res.Tier != FarmTierStructureOnly {
		res.Plunder = plunderAmount(def, turns, res.Tier, bal)
		if atWar && def.AllianceID != 0 && res.Plunder > 0 {
			res.Tribute = int64(math.Floor(float64(res.Plunder) * bal.AllianceTributePct))
		}
		res.GuardCasualties = guardCasualties(def, ratio, bal)
	}

	res.FoundationRazed = def.FoundationHP <= 0
	res.StructureDamage = structureDamage(def, ratio, turns, win, rng, bal)

	res.AttackerXP, res.DefenderXP = xpAwards(atk, def, turns, win, rng, bal)
	return res, nil
}

func plunderAmount(def *Player, turns int, tier FarmTier, bal *balance.Balance) int64 {
	turnCap := int64(math.Floor(float64(def.Credits) * bal.PlunderPerTurnPct * float64(turns)))
	flatCap := int64(math.Floor(float64(def.Credits) * bal.PlunderPctCap))
	p := turnCap
	if flatCap < p {
		p = flatCap
	}
	if def.Credits < p {
		p = def.Credits
	}
	if tier == FarmTierReduced {
		p = int64(math.Floor(float64(p) * bal.ReducedPlunderPct))
	}
	if p < 0 {
		p = 0
	}
	return p
}

func guardCasualties(def *Player, ratio float64, bal *balance.Balance) int64 {
	if def.Guards <= bal.MinGuardFloor {
		return 0
	}
	adv := ratio - 1
	if adv < 0 {
		adv = 0
	}
	if math.IsInf(adv, 1) {
		adv = 1
	}
	frac := bal.GuardCasualtyBasePct + bal.GuardCasualtyAdvantagePct*adv
	lost := int64(math.Floor(float64(def.Guards) * frac))
	if def.Guards-lost < bal.MinGuardFloor {
		lost = def.Guards - bal.MinGuardFloor
	}
	if lost < 0 {
		lost = 0
	}
	return lost
}

// structureDamage computes damage to the defender's foundation. With HP
// remaining, damage is formulaic and bounded to a band of current HP, and
// only lands on an attacker victory. At zero HP (razed) a flat band of max
// HP applies on both outcomes instead.
func structureDamage(def *Player, ratio float64, turns int, win bool, rng *rand.Rand, bal *balance.Balance) int64 {
	if def.FoundationMaxHP <= 0 {
		return 0
	}
	if def.FoundationHP <= 0 {
		var lo, hi float64
		if win {
			lo, hi = bal.RazedWinMinPct, bal.RazedWinMaxPct
		} else {
			lo, hi = bal.RazedLossMinPct, bal.RazedLossMaxPct
		}
		frac := lo + rng.Float64()*(hi-lo)
		return int64(math.Floor(float64(def.FoundationMaxHP) * frac))
	}
	if !win {
		return 0
	}
	adv := ratio
	if math.IsInf(adv, 1) {
		adv = bal.TurnPowerCap // unopposed attack; cap the scaling input
	}
	frac := bal.StructureDamageBasePct * math.Pow(adv, bal.StructureAdvantageExp) * math.Pow(float64(turns), bal.StructureTurnExp)
	if frac < bal.StructureDamageMinPct {
		frac = bal.StructureDamageMinPct
	}
	if frac > bal.StructureDamageMaxPct {
		frac = bal.StructureDamageMaxPct
	}
	return int64(math.Floor(float64(def.FoundationHP) * frac))
}

func xpAwards(atk, def *Player, turns int, win bool, rng *rand.Rand, bal *balance.Balance) (attackerXP, defenderXP int64) {
	rangeRoll := func(lo, hi int64) int64 {
		if hi <= lo {
			return lo
		}
		return lo + rng.Int63n(hi-lo+1)
	}

	var atkBase, defBase int64
	if win {
		atkBase = rangeRoll(bal.AttackerWinXPMin, bal.AttackerWinXPMax)
		defBase = rangeRoll(bal.DefenderLossXPMin, bal.DefenderLossXPMax)
	} else {
		atkBase = rangeRoll(bal.AttackerLossXPMin, bal.AttackerLossXPMax)
		defBase = rangeRoll(bal.DefenderWinXPMin, bal.DefenderWinXPMax)
	}

	// Punching down earns less: each level of advantage over the target
	// shaves a slope off the award. Attacking upward is never penalized.
	gap := atk.Level - def.Level
	levelFactor := 1.0
	if gap > 0 {
		levelFactor = 1 - bal.LevelGapXPSlope*float64(gap)
		if levelFactor < 0.1 {
			levelFactor = 0.1
		}
	}

	attackerXP = int64(math.Floor(float64(atkBase) * levelFactor * math.Pow(float64(turns), bal.AttackerXPTurnExp)))
	defenderXP = int64(math.Floor(float64(defBase) * math.Pow(float64(turns), bal.DefenderXPTurnExp)))
	return attackerXP, defenderXP
}

// ApplyBattleResult mutates both snapshots with the resolved outcome.
// Plunder is zero-sum: the defender loses exactly Plunder, the attacker
// gains Plunder minus Tribute, and the tribute balance goes to the
// defender's alliance treasury (handled by the engine).
func ApplyBattleResult(atk, def *Player, res BattleResult) error {
	if res.Plunder > def.Credits {
		return invariantf("plunder %d exceeds defender credits %d", res.Plunder, def.Credits)
	}
	atk.AttackTurns -= res.TurnsUsed
	atk.Credits += res.Plunder - res.Tribute
	atk.Experience += res.AttackerXP

	def.Credits -= res.Plunder
	def.Guards -= res.GuardCasualties
	def.Experience += res.DefenderXP
	if !res.FoundationRazed {
		def.FoundationHP -= res.StructureDamage
		if def.FoundationHP < 0 {
			return invariantf("structure damage %d drove foundation below zero", res.StructureDamage)
		}
	}

	if err := atk.CheckNonNegative(); err != nil {
		return err
	}
	return def.CheckNonNegative()
}
