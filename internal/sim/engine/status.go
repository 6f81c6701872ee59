package engine

import (
	"context"
	"database/sql"
	"time"

	"stellardominion.io/internal/persistence/store"
	"stellardominion.io/internal/sim/empire"
)

// StatusView is the reconciled snapshot plus the derived numbers the
// presentation layer renders.
type StatusView struct {
	Player *empire.Player `json:"player"`

	OffensePower float64 `json:"offense_power"`
	DefensePower float64 `json:"defense_power"`
	SpyPower     float64 `json:"spy_power"`
	SentryPower  float64 `json:"sentry_power"`

	IncomePerTurn        int64 `json:"income_per_turn"`
	MaintenancePerTurn   int64 `json:"maintenance_per_turn"`
	VaultCap             int64 `json:"vault_cap"`
	DepositSlotsFree     int   `json:"deposit_slots_free"`
	SecondsUntilNextTurn int   `json:"seconds_until_next_turn"`
}

// Status reconciles the player and returns the current view. The
// reconciliation persists, so repeated status calls do not re-derive the
// same turns.
func (e *Engine) Status(ctx context.Context, playerID int64) (*StatusView, error) {
	var view *StatusView
	err := e.withRetry(ctx, "status", func(tx *sql.Tx, tail *txTail) error {
		now := e.now()
		p, err := e.st.GetPlayerTx(tx, playerID)
		if err != nil {
			return err
		}
		if _, err := e.reconcileAndSweep(tx, tail, p, now); err != nil {
			return err
		}
		if err := e.st.UpdatePlayerCAS(tx, p); err != nil {
			return err
		}
		view = e.buildView(p, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (e *Engine) buildView(p *empire.Player, now time.Time) *StatusView {
	return &StatusView{
		Player:               p,
		OffensePower:         p.OffensePower(e.bal),
		DefensePower:         p.DefensePower(e.bal),
		SpyPower:             p.SpyPower(e.bal),
		SentryPower:          p.SentryPower(e.bal),
		IncomePerTurn:        p.IncomePerTurn(e.bal),
		MaintenancePerTurn:   p.MaintenancePerTurn(e.bal),
		VaultCap:             p.VaultCap(e.bal),
		DepositSlotsFree:     empire.AvailableDepositSlots(p, now, e.bal),
		SecondsUntilNextTurn: empire.SecondsUntilNextTurn(p, now, e.bal),
	}
}

// Player resolves a name to its persisted row without reconciling it.
func (e *Engine) Player(name string) (*empire.Player, error) {
	return e.st.GetPlayerByName(name)
}

// Leaderboard is read-only; it ranks persisted rows without reconciling
// them first. Rankings lag at most one turn per idle player, which the
// original game accepted too.
func (e *Engine) Leaderboard(limit int) ([]store.LeaderboardRow, error) {
	return e.st.Leaderboard(limit)
}

func (e *Engine) BattleHistory(playerID int64, limit int) ([]store.BattleLogEntry, error) {
	return e.st.BattleHistory(playerID, limit)
}

func (e *Engine) BankHistory(playerID int64, limit int) ([]store.BankTransaction, error) {
	return e.st.BankHistory(playerID, limit)
}

// ReconcileAll advances every live player to the current time. Run from
// the admin CLI before maintenance windows so nobody's offline accrual
// spans a balance change.
func (e *Engine) ReconcileAll(ctx context.Context) (int, error) {
	ids, err := e.st.PlayerIDs()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		err := e.withRetry(ctx, "reconcile_all", func(tx *sql.Tx, tail *txTail) error {
			now := e.now()
			p, err := e.st.GetPlayerTx(tx, id)
			if err != nil {
				return err
			}
			rep, err := e.reconcileAndSweep(tx, tail, p, now)
			if err != nil {
				return err
			}
			if rep.Turns > 0 {
				n++
			}
			return e.st.UpdatePlayerCAS(tx, p)
		})
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// VerifyLedger recomputes the whole bank hash chain.
func (e *Engine) VerifyLedger() (int, error) {
	return e.st.VerifyLedger()
}

// CreateAlliance opens a new alliance.
func (e *Engine) CreateAlliance(name string) (int64, error) {
	return e.st.CreateAlliance(name, e.now())
}

// JoinAlliance sets (or with id 0 clears) a player's alliance.
func (e *Engine) JoinAlliance(playerID, allianceID int64) error {
	return e.st.SetPlayerAlliance(playerID, allianceID)
}

// DeclareWar opens a war between two alliances; EndWar closes it.
func (e *Engine) DeclareWar(a, b int64) (int64, error) {
	return e.st.DeclareWar(a, b, e.now())
}

func (e *Engine) EndWar(a, b int64) error {
	return e.st.EndWar(a, b, e.now())
}
