package engine

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"stellardominion.io/internal/persistence/store"
	"stellardominion.io/internal/sim/balance"
	"stellardominion.io/internal/sim/empire"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(t *testing.T) (*Engine, *store.Store, *testClock) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	bal := balance.Defaults()
	e, err := New(Config{
		Store:   st,
		Balance: &bal,
		Now:     clock.Now,
		Seed:    42,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, st, clock
}

func mutate(t *testing.T, st *store.Store, id int64, fn func(p *empire.Player)) {
	t.Helper()
	err := st.WithTx(context.Background(), func(tx *sql.Tx) error {
		p, err := st.GetPlayerTx(tx, id)
		if err != nil {
			return err
		}
		fn(p)
		return st.UpdatePlayerCAS(tx, p)
	})
	if err != nil {
		t.Fatalf("mutate player %d: %v", id, err)
	}
}

func TestRegisterAndStatus(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	p, err := e.Register("vega")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	clock.Advance(7 * time.Minute) // partway into the first turn
	view, err := e.Status(ctx, p.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if view.Player.Credits != 50_000 {
		t.Fatalf("no turn elapsed yet, credits = %d", view.Player.Credits)
	}
	if view.SecondsUntilNextTurn != 180 {
		t.Fatalf("seconds until next turn = %d, want 180", view.SecondsUntilNextTurn)
	}

	clock.Advance(3 * time.Minute) // exactly one turn since registration
	view, err = e.Status(ctx, p.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if view.Player.Credits <= 50_000 {
		t.Fatalf("one turn should have accrued income, credits = %d", view.Player.Credits)
	}
	if !view.Player.LastUpdated.Equal(clock.Now()) {
		t.Fatalf("last_updated should land on the turn boundary")
	}
}

func TestTrain_PersistsAndRejects(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	p, _ := e.Register("vega")

	receipt, err := e.Train(ctx, p.ID, empire.TrainOrder{empire.UnitSoldiers: 10})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if receipt.CreditsSpent != 25_000 || receipt.CitizensConsumed != 10 {
		t.Fatalf("receipt = %+v", receipt)
	}

	got, _ := st.GetPlayer(p.ID)
	if got.Soldiers != 10 || got.Credits != 25_000 || got.UntrainedCitizens != 90 {
		t.Fatalf("persisted state wrong: %+v", got)
	}

	// A batch that overshoots the remaining credits changes nothing.
	_, err = e.Train(ctx, p.ID, empire.TrainOrder{empire.UnitSoldiers: 11})
	var ie *empire.InsufficientError
	if !errors.As(err, &ie) || ie.Resource != "credits" {
		t.Fatalf("want insufficient credits, got %v", err)
	}
	got, _ = st.GetPlayer(p.ID)
	if got.Soldiers != 10 || got.Credits != 25_000 {
		t.Fatalf("rejected batch must not partially apply: %+v", got)
	}
}

func TestAutoTrain(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	p, _ := e.Register("vega")

	receipt, err := e.AutoTrain(ctx, p.ID)
	if err != nil {
		t.Fatalf("auto train: %v", err)
	}
	if receipt.CitizensConsumed == 0 {
		t.Fatalf("starting grants should afford some units")
	}
	got, _ := st.GetPlayer(p.ID)
	if got.UntrainedCitizens != 100-receipt.CitizensConsumed {
		t.Fatalf("citizens = %d after consuming %d", got.UntrainedCitizens, receipt.CitizensConsumed)
	}
}

func TestAttack_PlunderIsZeroSum(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	atk, _ := e.Register("vega")
	def, _ := e.Register("rigel")
	mutate(t, st, atk.ID, func(p *empire.Player) { p.Soldiers = 1000 })

	entry, err := e.Attack(ctx, atk.ID, def.ID, 2)
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if entry.Outcome != string(empire.OutcomeVictory) {
		t.Fatalf("undefended target should fall, got %s", entry.Outcome)
	}
	// 4% per turn of 50k over 2 turns, under the 20% cap.
	if entry.Plunder != 4_000 {
		t.Fatalf("plunder = %d, want 4000", entry.Plunder)
	}

	gotAtk, _ := st.GetPlayer(atk.ID)
	gotDef, _ := st.GetPlayer(def.ID)
	if gotAtk.Credits != 54_000 || gotDef.Credits != 46_000 {
		t.Fatalf("credits atk=%d def=%d, want 54000/46000", gotAtk.Credits, gotDef.Credits)
	}
	if gotAtk.AttackTurns != 18 {
		t.Fatalf("attack turns = %d, want 18", gotAtk.AttackTurns)
	}
	if gotDef.FoundationHP >= 100_000 {
		t.Fatalf("victory should damage the foundation")
	}
	if gotAtk.Experience == 0 {
		t.Fatalf("attacker earned no experience")
	}

	hist, err := e.BattleHistory(atk.ID, 5)
	if err != nil || len(hist) != 1 {
		t.Fatalf("battle history = %v (%v)", hist, err)
	}
}

func TestAttack_SelfAndMissingTargets(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	p, _ := e.Register("vega")

	if _, err := e.Attack(ctx, p.ID, p.ID, 1); err == nil {
		t.Fatalf("self attack must fail")
	}
	if _, err := e.Attack(ctx, p.ID, 999, 1); !errors.Is(err, empire.ErrNotFound) {
		t.Fatalf("missing target: got %v", err)
	}
}

func TestAttack_WarRoutesTribute(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	atk, _ := e.Register("vega")
	def, _ := e.Register("rigel")
	mutate(t, st, atk.ID, func(p *empire.Player) { p.Soldiers = 1000 })

	a, _ := e.CreateAlliance("redshift")
	b, _ := e.CreateAlliance("blueshift")
	if err := e.JoinAlliance(atk.ID, a); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := e.JoinAlliance(def.ID, b); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := e.DeclareWar(a, b); err != nil {
		t.Fatalf("declare war: %v", err)
	}

	entry, err := e.Attack(ctx, atk.ID, def.ID, 2)
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if entry.Plunder != 4_000 || entry.Tribute != 200 {
		t.Fatalf("plunder=%d tribute=%d, want 4000/200", entry.Plunder, entry.Tribute)
	}

	gotAtk, _ := st.GetPlayer(atk.ID)
	gotDef, _ := st.GetPlayer(def.ID)
	al, _ := st.GetAlliance(b)
	if gotAtk.Credits != 50_000+3_800 {
		t.Fatalf("attacker keeps plunder minus tribute, got %d", gotAtk.Credits)
	}
	if gotDef.Credits != 46_000 {
		t.Fatalf("defender loses full plunder, got %d", gotDef.Credits)
	}
	if al.Treasury != 200 {
		t.Fatalf("treasury = %d, want 200", al.Treasury)
	}
}

func TestSpy_SuccessReturnsIntel(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	atk, _ := e.Register("vega")
	def, _ := e.Register("rigel")
	mutate(t, st, atk.ID, func(p *empire.Player) { p.Spies = 50 })

	res, err := e.Spy(ctx, atk.ID, def.ID, 10)
	if err != nil {
		t.Fatalf("spy: %v", err)
	}
	if !res.Success || res.Intel == nil {
		t.Fatalf("unsentried target should be readable: %+v", res)
	}
	if res.Intel.Credits != 50_000 {
		t.Fatalf("intel credits = %d", res.Intel.Credits)
	}

	gotAtk, _ := st.GetPlayer(atk.ID)
	gotDef, _ := st.GetPlayer(def.ID)
	if gotAtk.AttackTurns != 19 {
		t.Fatalf("espionage costs one attack turn, have %d", gotAtk.AttackTurns)
	}
	if gotDef.Credits != 50_000 || gotDef.Spies != 0 {
		t.Fatalf("espionage must not mutate the defender: %+v", gotDef)
	}
}

func TestDepositWithdraw_LedgerChains(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	p, _ := e.Register("vega")

	if err := e.Deposit(ctx, p.ID, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := e.Withdraw(ctx, p.ID, 4_000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	got, _ := st.GetPlayer(p.ID)
	if got.Credits != 44_000 || got.BankedCredits != 6_000 {
		t.Fatalf("credits=%d banked=%d", got.Credits, got.BankedCredits)
	}

	n, err := e.VerifyLedger()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if n != 2 {
		t.Fatalf("ledger entries = %d, want 2", n)
	}

	// The 80% rule blocks draining the whole balance in one deposit.
	err = e.Deposit(ctx, p.ID, 44_000)
	var ie *empire.InsufficientError
	if !errors.As(err, &ie) || ie.Resource != "depositable_credits" {
		t.Fatalf("want depositable_credits shortfall, got %v", err)
	}
}

func TestSweepAll_MovesOverflow(t *testing.T) {
	e, st, _ := newTestEngine(t)
	ctx := context.Background()
	p, _ := e.Register("vega")
	mutate(t, st, p.ID, func(pl *empire.Player) { pl.Credits = 3_200_000_000 })

	moved, err := e.SweepAll(ctx)
	if err != nil {
		t.Fatalf("sweep all: %v", err)
	}
	if moved != 200_000_000 {
		t.Fatalf("moved = %d, want 200000000", moved)
	}
	got, _ := st.GetPlayer(p.ID)
	if got.Credits != 3_000_000_000 || got.BankedCredits != 200_000_000 {
		t.Fatalf("credits=%d banked=%d", got.Credits, got.BankedCredits)
	}
	if n, err := e.VerifyLedger(); err != nil || n != 1 {
		t.Fatalf("sweep must append a ledger entry, n=%d err=%v", n, err)
	}
}

func TestOfflineAccrualThroughEngine(t *testing.T) {
	e, st, clock := newTestEngine(t)
	ctx := context.Background()
	p, _ := e.Register("vega")
	mutate(t, st, p.ID, func(pl *empire.Player) { pl.Workers = 100 })

	clock.Advance(3 * time.Hour) // 18 turns
	view, err := e.Status(ctx, p.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	// Per turn: +base income +100 workers' credits, -maintenance on 100
	// workers. All deterministic; just pin the direction and the turn count.
	if view.Player.Credits <= 50_000 {
		t.Fatalf("18 profitable turns should grow credits, got %d", view.Player.Credits)
	}
	if view.Player.UntrainedCitizens != 100+18*e.Balance().CitizensPerTurn {
		t.Fatalf("citizens = %d", view.Player.UntrainedCitizens)
	}

	// A second status at the same instant changes nothing.
	again, _ := e.Status(ctx, p.ID)
	if again.Player.Credits != view.Player.Credits {
		t.Fatalf("reconciliation must be idempotent")
	}
}
