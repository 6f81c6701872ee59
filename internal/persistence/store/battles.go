package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"stellardominion.io/internal/sim/empire"
)

// BattleLogEntry is one immutable attack record. Created exactly once per
// resolved attack; never mutated afterwards.
type BattleLogEntry struct {
	ID              string          `json:"id"`
	AttackerID      int64           `json:"attacker_id"`
	DefenderID      int64           `json:"defender_id"`
	AttackerName    string          `json:"attacker_name"`
	DefenderName    string          `json:"defender_name"`
	Outcome         string          `json:"outcome"`
	TurnsUsed       int             `json:"turns_used"`
	Plunder         int64           `json:"plunder"`
	Tribute         int64           `json:"tribute"`
	GuardCasualties int64           `json:"guard_casualties"`
	StructureDamage int64           `json:"structure_damage"`
	AttackerXP      int64           `json:"attacker_xp"`
	DefenderXP      int64           `json:"defender_xp"`
	Tier            empire.FarmTier `json:"tier"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewBattleLogEntry assembles the persisted record from a resolution.
func NewBattleLogEntry(res empire.BattleResult, attackerName, defenderName string, now time.Time) BattleLogEntry {
	return BattleLogEntry{
		ID:              uuid.NewString(),
		AttackerID:      res.AttackerID,
		DefenderID:      res.DefenderID,
		AttackerName:    attackerName,
		DefenderName:    defenderName,
		Outcome:         string(res.Outcome),
		TurnsUsed:       res.TurnsUsed,
		Plunder:         res.Plunder,
		Tribute:         res.Tribute,
		GuardCasualties: res.GuardCasualties,
		StructureDamage: res.StructureDamage,
		AttackerXP:      res.AttackerXP,
		DefenderXP:      res.DefenderXP,
		Tier:            res.Tier,
		CreatedAt:       now,
	}
}

// InsertBattleTx appends one battle record inside the attack transaction.
func (s *Store) InsertBattleTx(tx *sql.Tx, e BattleLogEntry) error {
	_, err := tx.Exec(`INSERT INTO battle_log
		(id, attacker_id, defender_id, attacker_name, defender_name, outcome,
		 turns_used, plunder, tribute, guard_casualties, structure_damage,
		 attacker_xp, defender_xp, tier, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.AttackerID, e.DefenderID, e.AttackerName, e.DefenderName, e.Outcome,
		e.TurnsUsed, e.Plunder, e.Tribute, e.GuardCasualties, e.StructureDamage,
		e.AttackerXP, e.DefenderXP, string(e.Tier), encodeTime(e.CreatedAt))
	return err
}

// RecentAttacksTx counts prior attacks on the same target inside the
// anti-farm windows. Runs in the attack transaction so the count and the
// insert are consistent.
func (s *Store) RecentAttacksTx(tx *sql.Tx, attackerID, defenderID int64, now time.Time) (empire.RecentAttacks, error) {
	var rec empire.RecentAttacks
	hourAgo := encodeTime(now.Add(-time.Hour))
	dayAgo := encodeTime(now.Add(-24 * time.Hour))
	err := tx.QueryRow(`SELECT
			COUNT(CASE WHEN created_at >= ? THEN 1 END),
			COUNT(CASE WHEN created_at >= ? THEN 1 END)
		FROM battle_log
		WHERE attacker_id=? AND defender_id=? AND outcome != 'ESPIONAGE'`,
		hourAgo, dayAgo, attackerID, defenderID).Scan(&rec.LastHour, &rec.LastDay)
	return rec, err
}

// BattleHistory returns the most recent battles involving a player, newest
// first.
func (s *Store) BattleHistory(playerID int64, limit int) ([]BattleLogEntry, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.Query(`SELECT id, attacker_id, defender_id, attacker_name,
			defender_name, outcome, turns_used, plunder, tribute,
			guard_casualties, structure_damage, attacker_xp, defender_xp,
			tier, created_at
		FROM battle_log
		WHERE attacker_id=? OR defender_id=?
		ORDER BY created_at DESC LIMIT ?`, playerID, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BattleLogEntry
	for rows.Next() {
		var e BattleLogEntry
		var tier, createdAt string
		if err := rows.Scan(&e.ID, &e.AttackerID, &e.DefenderID, &e.AttackerName,
			&e.DefenderName, &e.Outcome, &e.TurnsUsed, &e.Plunder, &e.Tribute,
			&e.GuardCasualties, &e.StructureDamage, &e.AttackerXP, &e.DefenderXP,
			&tier, &createdAt); err != nil {
			return nil, err
		}
		e.Tier = empire.FarmTier(tier)
		if e.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
