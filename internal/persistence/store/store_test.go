package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"stellardominion.io/internal/sim/empire"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestPlayerRoundTrip(t *testing.T) {
	s := openTestStore(t)
	id, err := s.CreatePlayer("vega", testNow, DefaultNewPlayer())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	p, err := s.GetPlayer(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Name != "vega" || p.Credits != 50_000 || p.UntrainedCitizens != 100 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if !p.LastUpdated.Equal(testNow) {
		t.Fatalf("last_updated = %v, want %v", p.LastUpdated, testNow)
	}
	if p.ActiveVaults != 1 {
		t.Fatalf("new players start with one vault, got %d", p.ActiveVaults)
	}

	if _, err := s.GetPlayer(9999); !errors.Is(err, empire.ErrNotFound) {
		t.Fatalf("missing player should be ErrNotFound, got %v", err)
	}
}

func TestCreatePlayer_DuplicateName(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.CreatePlayer("vega", testNow, DefaultNewPlayer()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreatePlayer("vega", testNow, DefaultNewPlayer()); err == nil {
		t.Fatalf("duplicate name must be rejected")
	}
}

func TestUpdatePlayerCAS_StaleVersionConflicts(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.CreatePlayer("vega", testNow, DefaultNewPlayer())
	ctx := context.Background()

	// First writer wins.
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		p, err := s.GetPlayerTx(tx, id)
		if err != nil {
			return err
		}
		p.Credits += 100
		return s.UpdatePlayerCAS(tx, p)
	})
	if err != nil {
		t.Fatalf("first write: %v", err)
	}

	// Second writer holding the pre-write snapshot must conflict.
	stale := &empire.Player{}
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		p, err := s.GetPlayerTx(tx, id)
		if err != nil {
			return err
		}
		*stale = *p
		stale.Version = 0 // as read before the first write
		stale.Credits += 999
		return s.UpdatePlayerCAS(tx, stale)
	})
	if !errors.Is(err, empire.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}

	// The conflicted write left no trace.
	p, _ := s.GetPlayer(id)
	if p.Credits != 50_100 {
		t.Fatalf("credits = %d, want 50100", p.Credits)
	}
}

func TestBankLedger_ChainVerifies(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.CreatePlayer("vega", testNow, DefaultNewPlayer())
	ctx := context.Background()

	for i, kind := range []string{BankKindDeposit, BankKindWithdraw, BankKindSweep} {
		err := s.WithTx(ctx, func(tx *sql.Tx) error {
			_, err := s.InsertBankTx(tx, id, kind, int64(1000*(i+1)), testNow.Add(time.Duration(i)*time.Minute))
			return err
		})
		if err != nil {
			t.Fatalf("insert %s: %v", kind, err)
		}
	}

	n, err := s.VerifyLedger()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if n != 3 {
		t.Fatalf("verified %d entries, want 3", n)
	}

	hist, err := s.BankHistory(id, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 3 || hist[0].Kind != BankKindSweep {
		t.Fatalf("history = %+v", hist)
	}
	// Newest entry chains off the middle one.
	if hist[0].PrevHash != hist[1].EntryHash {
		t.Fatalf("chain not linked through history")
	}
}

func TestBankLedger_TamperDetected(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.CreatePlayer("vega", testNow, DefaultNewPlayer())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = s.WithTx(ctx, func(tx *sql.Tx) error {
			_, err := s.InsertBankTx(tx, id, BankKindDeposit, 1000, testNow.Add(time.Duration(i)*time.Minute))
			return err
		})
	}

	if _, err := s.db.Exec(`UPDATE bank_transactions SET amount=999999 WHERE seq=2`); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, err := s.VerifyLedger(); err == nil {
		t.Fatalf("tampered ledger must fail verification")
	}
}

func TestRecentAttacks_WindowCounts(t *testing.T) {
	s := openTestStore(t)
	atk, _ := s.CreatePlayer("vega", testNow, DefaultNewPlayer())
	def, _ := s.CreatePlayer("rigel", testNow, DefaultNewPlayer())
	ctx := context.Background()

	insertAt := func(at time.Time) {
		t.Helper()
		err := s.WithTx(ctx, func(tx *sql.Tx) error {
			e := NewBattleLogEntry(empire.BattleResult{
				AttackerID: atk, DefenderID: def,
				Outcome: empire.OutcomeVictory, TurnsUsed: 1, Tier: empire.FarmTierFull,
			}, "vega", "rigel", at)
			return s.InsertBattleTx(tx, e)
		})
		if err != nil {
			t.Fatalf("insert battle: %v", err)
		}
	}

	insertAt(testNow.Add(-30 * time.Minute)) // inside hour and day
	insertAt(testNow.Add(-2 * time.Hour))    // inside day only
	insertAt(testNow.Add(-30 * time.Hour))   // outside both

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		rec, err := s.RecentAttacksTx(tx, atk, def, testNow)
		if err != nil {
			return err
		}
		if rec.LastHour != 1 || rec.LastDay != 2 {
			t.Fatalf("recent = %+v, want hour=1 day=2", rec)
		}
		// Opposite direction is a different pair.
		rec, err = s.RecentAttacksTx(tx, def, atk, testNow)
		if err != nil {
			return err
		}
		if rec.LastHour != 0 || rec.LastDay != 0 {
			t.Fatalf("reverse pair should count zero, got %+v", rec)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestWars_DeclareQueryEnd(t *testing.T) {
	s := openTestStore(t)
	a, _ := s.CreateAlliance("redshift", testNow)
	b, _ := s.CreateAlliance("blueshift", testNow)
	ctx := context.Background()

	warID, err := s.DeclareWar(b, a, testNow) // order independent
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	again, err := s.DeclareWar(a, b, testNow)
	if err != nil || again != warID {
		t.Fatalf("re-declare should return the open war, got %d err %v", again, err)
	}

	check := func(want bool) {
		t.Helper()
		err := s.WithTx(ctx, func(tx *sql.Tx) error {
			atWar, err := s.AtWarTx(tx, a, b)
			if err != nil {
				return err
			}
			if atWar != want {
				t.Fatalf("atWar = %v, want %v", atWar, want)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("tx: %v", err)
		}
	}
	check(true)

	if err := s.EndWar(a, b, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("end war: %v", err)
	}
	check(false)
}

func TestAllianceTreasury(t *testing.T) {
	s := openTestStore(t)
	a, _ := s.CreateAlliance("redshift", testNow)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		return s.AddTreasuryTx(tx, a, 5_000)
	})
	if err != nil {
		t.Fatalf("add treasury: %v", err)
	}
	al, err := s.GetAlliance(a)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if al.Treasury != 5_000 {
		t.Fatalf("treasury = %d, want 5000", al.Treasury)
	}
}

func TestLeaderboard_OrdersByNetWorth(t *testing.T) {
	s := openTestStore(t)
	names := []string{"low", "high", "mid"}
	worth := []int64{100, 9_000, 4_000}
	for i, n := range names {
		if _, err := s.CreatePlayer(n, testNow, NewPlayerDefaults{Credits: worth[i]}); err != nil {
			t.Fatalf("create %s: %v", n, err)
		}
	}

	rows, err := s.Leaderboard(10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 3 || rows[0].Name != "high" || rows[1].Name != "mid" || rows[2].Name != "low" {
		t.Fatalf("ordering wrong: %+v", rows)
	}
}
