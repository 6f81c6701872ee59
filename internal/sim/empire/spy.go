package empire

import (
	"math"
	"math/rand"

	"stellardominion.io/internal/sim/balance"
)

const OutcomeEspionage = "ESPIONAGE"

// IntelReport is what a successful espionage run brings home. It is a
// read-only view; espionage never mutates the defender.
type IntelReport struct {
	DefenderID   int64            `json:"defender_id"`
	Credits      int64            `json:"credits"`
	Units        map[string]int64 `json:"units"`
	FoundationHP int64            `json:"foundation_hp"`
}

// SpyResult is the outcome of one espionage attempt.
type SpyResult struct {
	AttackerID int64
	DefenderID int64
	Success    bool
	SpiesSent  int64
	SpiesLost  int64
	Intel      *IntelReport
}

// ResolveSpy pits the attacker's spies against the defender's sentries.
// Success yields intel; failure kills a fraction of the spies sent. Either
// way one attack turn is consumed (applied by the engine).
func ResolveSpy(atk, def *Player, spiesSent int64, rng *rand.Rand, bal *balance.Balance) (SpyResult, error) {
	if spiesSent <= 0 {
		return SpyResult{}, validationf("spies sent must be positive, got %d", spiesSent)
	}
	if spiesSent > atk.Spies {
		return SpyResult{}, &InsufficientError{Resource: "spies", Need: spiesSent, Have: atk.Spies}
	}
	if atk.AttackTurns < 1 {
		return SpyResult{}, &InsufficientError{Resource: "attack_turns", Need: 1, Have: int64(atk.AttackTurns)}
	}
	if atk.ID == def.ID {
		return SpyResult{}, validationf("cannot spy on yourself")
	}

	res := SpyResult{AttackerID: atk.ID, DefenderID: def.ID, SpiesSent: spiesSent}

	perSpy := atk.SpyPower(bal)
	if atk.Spies > 0 {
		perSpy /= float64(atk.Spies)
	}
	noise := bal.NoiseMin + rng.Float64()*(bal.NoiseMax-bal.NoiseMin)
	spyPower := perSpy * float64(spiesSent) * noise
	sentryPower := def.SentryPower(bal) * bal.UnderdogThreshold

	if spyPower > sentryPower {
		res.Success = true
		res.Intel = &IntelReport{
			DefenderID:   def.ID,
			Credits:      def.Credits,
			FoundationHP: def.FoundationHP,
			Units: map[string]int64{
				string(UnitWorkers):  def.Workers,
				string(UnitSoldiers): def.Soldiers,
				string(UnitGuards):   def.Guards,
				string(UnitSentries): def.Sentries,
				string(UnitSpies):    def.Spies,
			},
		}
		return res, nil
	}

	res.SpiesLost = int64(math.Floor(float64(spiesSent) * bal.SpyCasualtyPct))
	if res.SpiesLost > atk.Spies {
		res.SpiesLost = atk.Spies
	}
	return res, nil
}

// ApplySpyResult mutates the attacker snapshot (the defender is untouched
// by espionage).
func ApplySpyResult(atk *Player, res SpyResult) error {
	atk.AttackTurns--
	atk.Spies -= res.SpiesLost
	return atk.CheckNonNegative()
}
