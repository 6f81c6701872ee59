// Package store persists players, the battle log, the bank ledger and
// alliance state in a single sqlite database. All mutating game operations
// run inside one immediate transaction with optimistic version checks on
// the player rows they touch.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single connection: sqlite serializes writers anyway, and one shared
	// connection keeps transaction semantics predictable.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS players (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			level INTEGER NOT NULL DEFAULT 1,
			experience INTEGER NOT NULL DEFAULT 0,
			credits INTEGER NOT NULL DEFAULT 0,
			banked_credits INTEGER NOT NULL DEFAULT 0,
			untrained_citizens INTEGER NOT NULL DEFAULT 0,
			workers INTEGER NOT NULL DEFAULT 0,
			soldiers INTEGER NOT NULL DEFAULT 0,
			guards INTEGER NOT NULL DEFAULT 0,
			sentries INTEGER NOT NULL DEFAULT 0,
			spies INTEGER NOT NULL DEFAULT 0,
			strength INTEGER NOT NULL DEFAULT 0,
			constitution INTEGER NOT NULL DEFAULT 0,
			wealth INTEGER NOT NULL DEFAULT 0,
			dexterity INTEGER NOT NULL DEFAULT 0,
			charisma INTEGER NOT NULL DEFAULT 0,
			attack_turns INTEGER NOT NULL DEFAULT 0,
			last_updated TEXT NOT NULL,
			armory_level INTEGER NOT NULL DEFAULT 0,
			fortification_level INTEGER NOT NULL DEFAULT 0,
			foundation_hp INTEGER NOT NULL DEFAULT 0,
			foundation_max_hp INTEGER NOT NULL DEFAULT 0,
			active_vaults INTEGER NOT NULL DEFAULT 1,
			deposits_used INTEGER NOT NULL DEFAULT 0,
			last_deposit TEXT NOT NULL DEFAULT '',
			alliance_id INTEGER NOT NULL DEFAULT 0,
			deleted INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS battle_log (
			id TEXT PRIMARY KEY,
			attacker_id INTEGER NOT NULL,
			defender_id INTEGER NOT NULL,
			attacker_name TEXT NOT NULL,
			defender_name TEXT NOT NULL,
			outcome TEXT NOT NULL,
			turns_used INTEGER NOT NULL,
			plunder INTEGER NOT NULL,
			tribute INTEGER NOT NULL,
			guard_casualties INTEGER NOT NULL,
			structure_damage INTEGER NOT NULL,
			attacker_xp INTEGER NOT NULL,
			defender_xp INTEGER NOT NULL,
			tier TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_battles_pair_time ON battle_log(attacker_id, defender_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_battles_defender_time ON battle_log(defender_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS bank_transactions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			player_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			amount INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			prev_hash TEXT NOT NULL,
			entry_hash TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bank_player_time ON bank_transactions(player_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS alliances (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			treasury INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS wars (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alliance_a INTEGER NOT NULL,
			alliance_b INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_wars_active ON wars(alliance_a, alliance_b, ended_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn inside an immediate transaction; any error rolls back the
// whole thing, leaving persisted state untouched.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SetMeta / GetMeta back schema versioning, the applied balance digest and
// the bank ledger head.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, key, value)
	return err
}

func (s *Store) GetMeta(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}
