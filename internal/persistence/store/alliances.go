package store

import (
	"database/sql"
	"fmt"
	"time"

	"stellardominion.io/internal/sim/empire"
)

// Alliance is a membership aggregate. Its treasury receives combat tribute
// when a member is plundered during a war.
type Alliance struct {
	ID        int64
	Name      string
	Treasury  int64
	CreatedAt time.Time
}

func (s *Store) CreateAlliance(name string, now time.Time) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("empty alliance name")
	}
	res, err := s.db.Exec(`INSERT INTO alliances(name, treasury, created_at) VALUES(?,0,?)`,
		name, encodeTime(now))
	if err != nil {
		return 0, fmt.Errorf("create alliance %q: %w", name, err)
	}
	return res.LastInsertId()
}

func (s *Store) GetAlliance(id int64) (*Alliance, error) {
	var a Alliance
	var createdAt string
	err := s.db.QueryRow(`SELECT id, name, treasury, created_at FROM alliances WHERE id=?`, id).
		Scan(&a.ID, &a.Name, &a.Treasury, &createdAt)
	if err == sql.ErrNoRows {
		return nil, empire.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// AddTreasuryTx credits an alliance treasury inside the combat transaction.
func (s *Store) AddTreasuryTx(tx *sql.Tx, allianceID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	res, err := tx.Exec(`UPDATE alliances SET treasury=treasury+? WHERE id=?`, amount, allianceID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return empire.ErrNotFound
	}
	return nil
}

// DeclareWar opens a conflict between two alliances. Order of the pair does
// not matter; an already-open war is returned as-is.
func (s *Store) DeclareWar(a, b int64, now time.Time) (int64, error) {
	if a == b || a <= 0 || b <= 0 {
		return 0, fmt.Errorf("invalid war pair (%d,%d)", a, b)
	}
	if a > b {
		a, b = b, a
	}
	var existing int64
	err := s.db.QueryRow(`SELECT id FROM wars WHERE alliance_a=? AND alliance_b=? AND ended_at IS NULL`, a, b).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := s.db.Exec(`INSERT INTO wars(alliance_a, alliance_b, started_at) VALUES(?,?,?)`,
		a, b, encodeTime(now))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// EndWar closes an open conflict.
func (s *Store) EndWar(a, b int64, now time.Time) error {
	if a > b {
		a, b = b, a
	}
	res, err := s.db.Exec(`UPDATE wars SET ended_at=? WHERE alliance_a=? AND alliance_b=? AND ended_at IS NULL`,
		encodeTime(now), a, b)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return empire.ErrNotFound
	}
	return nil
}

// AtWarTx reports whether two alliances have an open war, inside the combat
// transaction. Zero alliance ids (unaffiliated players) are never at war.
func (s *Store) AtWarTx(tx *sql.Tx, a, b int64) (bool, error) {
	if a == 0 || b == 0 || a == b {
		return false, nil
	}
	if a > b {
		a, b = b, a
	}
	var id int64
	err := tx.QueryRow(`SELECT id FROM wars WHERE alliance_a=? AND alliance_b=? AND ended_at IS NULL`, a, b).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetPlayerAlliance joins or leaves (allianceID 0) an alliance outside the
// combat path.
func (s *Store) SetPlayerAlliance(playerID, allianceID int64) error {
	if allianceID != 0 {
		if _, err := s.GetAlliance(allianceID); err != nil {
			return err
		}
	}
	res, err := s.db.Exec(`UPDATE players SET alliance_id=?, version=version+1 WHERE id=?`, allianceID, playerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return empire.ErrNotFound
	}
	return nil
}
