package engine

import (
	"context"
	"database/sql"
	"log"

	"stellardominion.io/internal/persistence/store"
	"stellardominion.io/internal/sim/empire"
)

// Attack resolves one strike against another player and applies the outcome
// to both rows atomically. The committed battle record is returned.
func (e *Engine) Attack(ctx context.Context, attackerID, defenderID int64, turns int) (*store.BattleLogEntry, error) {
	var entry store.BattleLogEntry
	err := e.withRetry(ctx, "attack", func(tx *sql.Tx, tail *txTail) error {
		now := e.now()
		atk, def, err := e.loadPair(tx, attackerID, defenderID)
		if err != nil {
			return err
		}
		if def.Deleted {
			return empire.ErrNotFound
		}
		if _, err := e.reconcileAndSweep(tx, tail, atk, now); err != nil {
			return err
		}
		if _, err := e.reconcileAndSweep(tx, tail, def, now); err != nil {
			return err
		}

		rec, err := e.st.RecentAttacksTx(tx, attackerID, defenderID, now)
		if err != nil {
			return err
		}
		atWar, err := e.st.AtWarTx(tx, atk.AllianceID, def.AllianceID)
		if err != nil {
			return err
		}

		e.mu.Lock()
		res, resErr := empire.ResolveAttack(atk, def, turns, rec, atWar, e.roll(), e.bal)
		e.mu.Unlock()
		if resErr != nil {
			return resErr
		}
		if err := empire.ApplyBattleResult(atk, def, res); err != nil {
			return err
		}
		if res.Tribute > 0 {
			if err := e.st.AddTreasuryTx(tx, def.AllianceID, res.Tribute); err != nil {
				return err
			}
		}

		// Write back in ascending id order, matching the read order.
		first, second := atk, def
		if first.ID > second.ID {
			first, second = second, first
		}
		if err := e.st.UpdatePlayerCAS(tx, first); err != nil {
			return err
		}
		if err := e.st.UpdatePlayerCAS(tx, second); err != nil {
			return err
		}

		entry = store.NewBattleLogEntry(res, atk.Name, def.Name, now)
		if err := e.st.InsertBattleTx(tx, entry); err != nil {
			return err
		}
		tail.battles = append(tail.battles, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[engine] attack: %d->%d outcome=%s turns=%d plunder=%d tier=%s",
		attackerID, defenderID, entry.Outcome, entry.TurnsUsed, entry.Plunder, entry.Tier)
	return &entry, nil
}

// Spy runs one espionage attempt. Success returns intel without touching
// the defender; failure costs spies. Either way one attack turn is spent
// and the attempt is recorded in the battle log under its own outcome.
func (e *Engine) Spy(ctx context.Context, attackerID, defenderID, spiesSent int64) (*empire.SpyResult, error) {
	var result empire.SpyResult
	err := e.withRetry(ctx, "spy", func(tx *sql.Tx, tail *txTail) error {
		now := e.now()
		atk, def, err := e.loadPair(tx, attackerID, defenderID)
		if err != nil {
			return err
		}
		if def.Deleted {
			return empire.ErrNotFound
		}
		if _, err := e.reconcileAndSweep(tx, tail, atk, now); err != nil {
			return err
		}
		if _, err := e.reconcileAndSweep(tx, tail, def, now); err != nil {
			return err
		}

		e.mu.Lock()
		res, resErr := empire.ResolveSpy(atk, def, spiesSent, e.roll(), e.bal)
		e.mu.Unlock()
		if resErr != nil {
			return resErr
		}
		if err := empire.ApplySpyResult(atk, res); err != nil {
			return err
		}
		result = res

		// The defender row still carries its reconciliation.
		first, second := atk, def
		if first.ID > second.ID {
			first, second = second, first
		}
		if err := e.st.UpdatePlayerCAS(tx, first); err != nil {
			return err
		}
		if err := e.st.UpdatePlayerCAS(tx, second); err != nil {
			return err
		}

		entry := store.NewBattleLogEntry(empire.BattleResult{
			AttackerID: attackerID,
			DefenderID: defenderID,
			Outcome:    empire.Outcome(empire.OutcomeEspionage),
			TurnsUsed:  1,
			Tier:       empire.FarmTierFull,
		}, atk.Name, def.Name, now)
		if err := e.st.InsertBattleTx(tx, entry); err != nil {
			return err
		}
		tail.battles = append(tail.battles, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[engine] spy: %d->%d success=%v sent=%d lost=%d",
		attackerID, defenderID, result.Success, result.SpiesSent, result.SpiesLost)
	return &result, nil
}
