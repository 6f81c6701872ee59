// Package engine executes game operations against the store. Every
// mutating operation follows the same shape: open a transaction, read the
// player rows it touches (ascending id for two-party operations), reconcile
// elapsed turns, run the pure rules from sim/empire, then write the rows
// back guarded by their version tokens. A stale version aborts the whole
// transaction and the operation retries from a fresh read.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"stellardominion.io/internal/persistence/store"
	"stellardominion.io/internal/sim/balance"
	"stellardominion.io/internal/sim/empire"
)

// BattleMirror receives committed battle records (optional, may be nil).
type BattleMirror interface {
	WriteBattle(store.BattleLogEntry) error
}

// BankMirror receives committed bank ledger entries (optional, may be nil).
type BankMirror interface {
	WriteBank(store.BankTransaction) error
}

// Config assembles an Engine.
type Config struct {
	Store   *store.Store
	Balance *balance.Balance

	Battles BattleMirror
	Bank    BankMirror

	// Now overrides the clock in tests. Defaults to time.Now.
	Now func() time.Time
	// Seed fixes the combat RNG in tests. Zero seeds from the clock.
	Seed int64
}

// conflictRetries is how many times an operation re-runs after losing a
// version race before the conflict surfaces to the caller.
const conflictRetries = 3

type Engine struct {
	st  *store.Store
	bal *balance.Balance

	battles BattleMirror
	bank    BankMirror
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine: nil store")
	}
	if cfg.Balance == nil {
		return nil, errors.New("engine: nil balance")
	}
	if err := cfg.Balance.Validate(); err != nil {
		return nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Engine{
		st:      cfg.Store,
		bal:     cfg.Balance,
		battles: cfg.Battles,
		bank:    cfg.Bank,
		now:     now,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

func (e *Engine) Balance() *balance.Balance { return e.bal }

func (e *Engine) roll() *rand.Rand {
	// rand.Rand is not goroutine safe; operations take the lock for the
	// duration of their resolution rolls.
	return e.rng
}

// withRetry runs op, re-running it on version conflicts. Each run gets a
// fresh bankTail to collect ledger entries for post-commit mirroring.
func (e *Engine) withRetry(ctx context.Context, name string, op func(tx *sql.Tx, tail *txTail) error) error {
	for attempt := 0; ; attempt++ {
		tail := &txTail{}
		err := e.st.WithTx(ctx, func(tx *sql.Tx) error { return op(tx, tail) })
		if err == nil {
			tail.flush(e)
			return nil
		}
		if errors.Is(err, empire.ErrConflict) && attempt < conflictRetries {
			log.Printf("[engine] %s: version conflict, retrying (%d/%d)", name, attempt+1, conflictRetries)
			continue
		}
		return err
	}
}

// txTail collects rows written during a transaction so the JSONL mirrors
// only see committed data.
type txTail struct {
	battles []store.BattleLogEntry
	bank    []store.BankTransaction
}

func (t *txTail) flush(e *Engine) {
	if e.battles != nil {
		for _, b := range t.battles {
			if err := e.battles.WriteBattle(b); err != nil {
				log.Printf("[engine] battle mirror: %v", err)
			}
		}
	}
	if e.bank != nil {
		for _, b := range t.bank {
			if err := e.bank.WriteBank(b); err != nil {
				log.Printf("[engine] bank mirror: %v", err)
			}
		}
	}
}

// reconcileAndSweep applies elapsed turns to a loaded row and sweeps any
// on-hand overflow into the bank, recording the sweep in the ledger. Every
// operation calls this on each player it loads, so state is always current
// before rules run against it.
func (e *Engine) reconcileAndSweep(tx *sql.Tx, tail *txTail, p *empire.Player, now time.Time) (empire.TurnReport, error) {
	rep := empire.ReconcileTurns(p, now, e.bal)
	moved := empire.SweepOverflow(p, e.bal)
	if moved > 0 {
		entry, err := e.st.InsertBankTx(tx, p.ID, store.BankKindSweep, moved, now)
		if err != nil {
			return rep, err
		}
		tail.bank = append(tail.bank, entry)
		log.Printf("[engine] sweep: player=%d moved=%d", p.ID, moved)
	}
	return rep, nil
}

// loadPair reads two players in ascending id order regardless of the
// caller's argument order, so concurrent two-party operations always lock
// rows in the same sequence.
func (e *Engine) loadPair(tx *sql.Tx, aID, bID int64) (a, b *empire.Player, err error) {
	first, second := aID, bID
	if first > second {
		first, second = second, first
	}
	p1, err := e.st.GetPlayerTx(tx, first)
	if err != nil {
		return nil, nil, err
	}
	p2, err := e.st.GetPlayerTx(tx, second)
	if err != nil {
		return nil, nil, err
	}
	if p1.ID == aID {
		return p1, p2, nil
	}
	return p2, p1, nil
}

// Register creates a new player with the standard starting grants.
func (e *Engine) Register(name string) (*empire.Player, error) {
	id, err := e.st.CreatePlayer(name, e.now(), store.DefaultNewPlayer())
	if err != nil {
		return nil, err
	}
	log.Printf("[engine] register: player=%d name=%q", id, name)
	return e.st.GetPlayer(id)
}
