package store

import (
	"stellardominion.io/internal/sim/empire"
)

// Export helpers: full-table reads for snapshotting. Not used on the hot
// path.

// AllPlayers returns every player row, ascending id, deleted included so a
// restored database matches the original exactly.
func (s *Store) AllPlayers() ([]*empire.Player, error) {
	ids := []int64{}
	rows, err := s.db.Query(`SELECT id FROM players ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*empire.Player, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetPlayer(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// AllAlliances returns every alliance, ascending id.
func (s *Store) AllAlliances() ([]Alliance, error) {
	rows, err := s.db.Query(`SELECT id, name, treasury, created_at FROM alliances ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Alliance
	for rows.Next() {
		var a Alliance
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Name, &a.Treasury, &createdAt); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// War is one persisted conflict, open or closed.
type War struct {
	ID        int64
	AllianceA int64
	AllianceB int64
	StartedAt string
	EndedAt   string // empty while open
}

// AllWars returns every war row, ascending id.
func (s *Store) AllWars() ([]War, error) {
	rows, err := s.db.Query(`SELECT id, alliance_a, alliance_b, started_at, COALESCE(ended_at, '') FROM wars ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []War
	for rows.Next() {
		var w War
		if err := rows.Scan(&w.ID, &w.AllianceA, &w.AllianceB, &w.StartedAt, &w.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// AllBankTransactions returns the whole ledger in chain order.
func (s *Store) AllBankTransactions() ([]BankTransaction, error) {
	rows, err := s.db.Query(`SELECT seq, id, player_id, kind, amount, created_at,
			prev_hash, entry_hash
		FROM bank_transactions ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBankRows(rows)
}

// ImportPlayer inserts a full player row preserving its id and version.
// Only for restoring into an empty database.
func (s *Store) ImportPlayer(p *empire.Player) error {
	lastDeposit := ""
	if !p.LastDeposit.IsZero() {
		lastDeposit = encodeTime(p.LastDeposit)
	}
	deleted := 0
	if p.Deleted {
		deleted = 1
	}
	_, err := s.db.Exec(`INSERT INTO players (`+playerColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Level, p.Experience, p.Credits, p.BankedCredits,
		p.UntrainedCitizens, p.Workers, p.Soldiers, p.Guards, p.Sentries, p.Spies,
		p.Strength, p.Constitution, p.Wealth, p.Dexterity, p.Charisma,
		p.AttackTurns, encodeTime(p.LastUpdated), p.ArmoryLevel, p.FortificationLevel,
		p.FoundationHP, p.FoundationMaxHP, p.ActiveVaults, p.DepositsUsed,
		lastDeposit, p.AllianceID, deleted, p.Version)
	return err
}

// ImportAlliance inserts an alliance row preserving its id.
func (s *Store) ImportAlliance(a Alliance) error {
	_, err := s.db.Exec(`INSERT INTO alliances(id, name, treasury, created_at) VALUES(?,?,?,?)`,
		a.ID, a.Name, a.Treasury, encodeTime(a.CreatedAt))
	return err
}

// ImportWar inserts a war row preserving its id.
func (s *Store) ImportWar(w War) error {
	var endedAt any
	if w.EndedAt != "" {
		endedAt = w.EndedAt
	}
	_, err := s.db.Exec(`INSERT INTO wars(id, alliance_a, alliance_b, started_at, ended_at) VALUES(?,?,?,?,?)`,
		w.ID, w.AllianceA, w.AllianceB, w.StartedAt, endedAt)
	return err
}

// ImportBankTransaction inserts a ledger row verbatim, hashes included.
func (s *Store) ImportBankTransaction(e BankTransaction) error {
	_, err := s.db.Exec(`INSERT INTO bank_transactions
		(seq, id, player_id, kind, amount, created_at, prev_hash, entry_hash)
		VALUES (?,?,?,?,?,?,?,?)`,
		e.Seq, e.ID, e.PlayerID, e.Kind, e.Amount, encodeTime(e.CreatedAt), e.PrevHash, e.EntryHash)
	return err
}
