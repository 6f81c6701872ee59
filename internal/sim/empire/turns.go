package empire

import (
	"math"
	"time"

	"stellardominion.io/internal/sim/balance"
)

// TurnReport summarizes what one reconciliation applied.
type TurnReport struct {
	Turns             int
	MaintenanceDue    int64
	MaintenancePaid   int64
	UnitsPurged       map[UnitKind]int64
	CitizensGained    int64
	CreditsGained     int64
	AttackTurnsGained int
}

// ReconcileTurns advances a player's state by every whole turn elapsed
// between LastUpdated and now. Per turn: charge maintenance, purge fatigued
// units for the unpaid fraction, then grant income, citizens and attack
// turns. LastUpdated advances by whole turns only, preserving the partial
// remainder. With no elapsed turns the call is a no-op, so reconciling twice
// at the same instant equals reconciling once.
//
// Callers run this inside the operation's transaction; the resulting row
// commits through the same conditional update as the operation itself.
func ReconcileTurns(p *Player, now time.Time, bal *balance.Balance) TurnReport {
	rep := TurnReport{UnitsPurged: map[UnitKind]int64{}}

	turnLen := time.Duration(bal.TurnMinutes) * time.Minute
	if !now.After(p.LastUpdated) {
		return rep
	}
	turns := int(now.Sub(p.LastUpdated) / turnLen)
	if turns <= 0 {
		return rep
	}
	rep.Turns = turns

	for i := 0; i < turns; i++ {
		due := p.MaintenancePerTurn(bal)
		rep.MaintenanceDue += due

		var unpaidFrac float64
		if due > 0 {
			if p.Credits >= due {
				p.Credits -= due
				rep.MaintenancePaid += due
			} else {
				paid := p.Credits
				p.Credits = 0
				rep.MaintenancePaid += paid
				unpaidFrac = float64(due-paid) / float64(due)
			}
		}

		if unpaidFrac > 0 {
			purgeFrac := unpaidFrac * bal.FatiguePurgePct
			for _, k := range AllUnitKinds {
				if UnitStats(k, bal).Maintenance == 0 {
					continue
				}
				lost := int64(math.Floor(float64(p.UnitCount(k)) * purgeFrac))
				if lost <= 0 {
					continue
				}
				if lost > p.UnitCount(k) {
					lost = p.UnitCount(k)
				}
				p.AddUnits(k, -lost)
				rep.UnitsPurged[k] += lost
			}
		}

		income := p.IncomePerTurn(bal)
		p.Credits += income
		rep.CreditsGained += income

		p.UntrainedCitizens += bal.CitizensPerTurn
		rep.CitizensGained += bal.CitizensPerTurn

		if p.AttackTurns < bal.MaxAttackTurns {
			grant := bal.AttackTurnsPerTurn
			if p.AttackTurns+grant > bal.MaxAttackTurns {
				grant = bal.MaxAttackTurns - p.AttackTurns
			}
			p.AttackTurns += grant
			rep.AttackTurnsGained += grant
		}
	}

	p.LastUpdated = p.LastUpdated.Add(time.Duration(turns) * turnLen)
	return rep
}

// SecondsUntilNextTurn reports how long until the next whole turn becomes
// due. The presentation layer renders its countdown from this.
func SecondsUntilNextTurn(p *Player, now time.Time, bal *balance.Balance) int {
	turnLen := time.Duration(bal.TurnMinutes) * time.Minute
	elapsed := now.Sub(p.LastUpdated)
	if elapsed < 0 {
		elapsed = 0
	}
	rem := turnLen - elapsed%turnLen
	return int(rem / time.Second)
}
