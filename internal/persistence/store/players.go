package store

import (
	"database/sql"
	"fmt"
	"time"

	"stellardominion.io/internal/sim/empire"
)

const playerColumns = `id, name, level, experience, credits, banked_credits,
	untrained_citizens, workers, soldiers, guards, sentries, spies,
	strength, constitution, wealth, dexterity, charisma,
	attack_turns, last_updated, armory_level, fortification_level,
	foundation_hp, foundation_max_hp, active_vaults, deposits_used,
	last_deposit, alliance_id, deleted, version`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}

// NewPlayerDefaults are the starting balances of a freshly registered
// empire.
type NewPlayerDefaults struct {
	Credits           int64
	UntrainedCitizens int64
	AttackTurns       int
	FoundationHP      int64
}

// DefaultNewPlayer mirrors the registration grants of the original game.
func DefaultNewPlayer() NewPlayerDefaults {
	return NewPlayerDefaults{
		Credits:           50_000,
		UntrainedCitizens: 100,
		AttackTurns:       20,
		FoundationHP:      100_000,
	}
}

// CreatePlayer registers a new player row and returns its id.
func (s *Store) CreatePlayer(name string, now time.Time, d NewPlayerDefaults) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("empty player name")
	}
	res, err := s.db.Exec(`INSERT INTO players
		(name, credits, untrained_citizens, attack_turns, last_updated,
		 foundation_hp, foundation_max_hp, active_vaults)
		VALUES (?,?,?,?,?,?,?,1)`,
		name, d.Credits, d.UntrainedCitizens, d.AttackTurns,
		encodeTime(now), d.FoundationHP, d.FoundationHP)
	if err != nil {
		return 0, fmt.Errorf("create player %q: %w", name, err)
	}
	return res.LastInsertId()
}

// GetPlayer reads one player outside any transaction (status pages,
// leaderboards).
func (s *Store) GetPlayer(id int64) (*empire.Player, error) {
	return scanPlayer(s.db.QueryRow(`SELECT `+playerColumns+` FROM players WHERE id=?`, id))
}

// GetPlayerByName resolves a name to a row (registration, login glue).
func (s *Store) GetPlayerByName(name string) (*empire.Player, error) {
	return scanPlayer(s.db.QueryRow(`SELECT `+playerColumns+` FROM players WHERE name=?`, name))
}

// GetPlayerTx reads one player inside an operation transaction.
func (s *Store) GetPlayerTx(tx *sql.Tx, id int64) (*empire.Player, error) {
	return scanPlayer(tx.QueryRow(`SELECT `+playerColumns+` FROM players WHERE id=?`, id))
}

func scanPlayer(row *sql.Row) (*empire.Player, error) {
	var p empire.Player
	var lastUpdated, lastDeposit string
	var deleted int
	err := row.Scan(
		&p.ID, &p.Name, &p.Level, &p.Experience, &p.Credits, &p.BankedCredits,
		&p.UntrainedCitizens, &p.Workers, &p.Soldiers, &p.Guards, &p.Sentries, &p.Spies,
		&p.Strength, &p.Constitution, &p.Wealth, &p.Dexterity, &p.Charisma,
		&p.AttackTurns, &lastUpdated, &p.ArmoryLevel, &p.FortificationLevel,
		&p.FoundationHP, &p.FoundationMaxHP, &p.ActiveVaults, &p.DepositsUsed,
		&lastDeposit, &p.AllianceID, &deleted, &p.Version,
	)
	if err == sql.ErrNoRows {
		return nil, empire.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Deleted = deleted != 0
	if p.LastUpdated, err = decodeTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("player %d last_updated: %w", p.ID, err)
	}
	if lastDeposit != "" {
		if p.LastDeposit, err = decodeTime(lastDeposit); err != nil {
			return nil, fmt.Errorf("player %d last_deposit: %w", p.ID, err)
		}
	}
	return &p, nil
}

// UpdatePlayerCAS writes a player back, guarded by the version read with
// the row. A stale version means another request committed in between: the
// write is refused and the caller sees empire.ErrConflict.
func (s *Store) UpdatePlayerCAS(tx *sql.Tx, p *empire.Player) error {
	lastDeposit := ""
	if !p.LastDeposit.IsZero() {
		lastDeposit = encodeTime(p.LastDeposit)
	}
	deleted := 0
	if p.Deleted {
		deleted = 1
	}
	res, err := tx.Exec(`UPDATE players SET
		name=?, level=?, experience=?, credits=?, banked_credits=?,
		untrained_citizens=?, workers=?, soldiers=?, guards=?, sentries=?, spies=?,
		strength=?, constitution=?, wealth=?, dexterity=?, charisma=?,
		attack_turns=?, last_updated=?, armory_level=?, fortification_level=?,
		foundation_hp=?, foundation_max_hp=?, active_vaults=?, deposits_used=?,
		last_deposit=?, alliance_id=?, deleted=?, version=version+1
		WHERE id=? AND version=?`,
		p.Name, p.Level, p.Experience, p.Credits, p.BankedCredits,
		p.UntrainedCitizens, p.Workers, p.Soldiers, p.Guards, p.Sentries, p.Spies,
		p.Strength, p.Constitution, p.Wealth, p.Dexterity, p.Charisma,
		p.AttackTurns, encodeTime(p.LastUpdated), p.ArmoryLevel, p.FortificationLevel,
		p.FoundationHP, p.FoundationMaxHP, p.ActiveVaults, p.DepositsUsed,
		lastDeposit, p.AllianceID, deleted,
		p.ID, p.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return empire.ErrConflict
	}
	p.Version++
	return nil
}

// PlayerIDs lists all live players, ascending. Batch jobs (sweep,
// reconcile) iterate it; combat locks pairs in this order.
func (s *Store) PlayerIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM players WHERE deleted=0 ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LeaderboardRow is one line of the net-worth ranking.
type LeaderboardRow struct {
	ID       int64
	Name     string
	Level    int
	NetWorth int64
	Exp      int64
}

func (s *Store) Leaderboard(limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.Query(`SELECT id, name, level, credits+banked_credits, experience
		FROM players WHERE deleted=0
		ORDER BY credits+banked_credits DESC, experience DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LeaderboardRow
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Level, &r.NetWorth, &r.Exp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
