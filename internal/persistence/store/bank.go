package store

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// Bank transaction kinds. Sweeps are system-initiated deposits recorded
// under their own kind so the audit trail distinguishes them.
const (
	BankKindDeposit  = "DEPOSIT"
	BankKindWithdraw = "WITHDRAW"
	BankKindSweep    = "SWEEP"
)

const genesisHash = "GENESIS"

// BankTransaction is one immutable ledger row. Rows chain: each entry hash
// covers the previous entry's hash, so any rewrite of history breaks
// verification.
type BankTransaction struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"id"`
	PlayerID  int64     `json:"player_id"`
	Kind      string    `json:"kind"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
	PrevHash  string    `json:"prev_hash"`
	EntryHash string    `json:"entry_hash"`
}

func chainHash(prev string, id string, playerID int64, kind string, amount int64, createdAt string) string {
	payload := fmt.Sprintf("%s|%s|%d|%s|%d|%s", prev, id, playerID, kind, amount, createdAt)
	sum := blake3.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// InsertBankTx appends one ledger entry inside the operation transaction,
// extending the hash chain from the current head.
func (s *Store) InsertBankTx(tx *sql.Tx, playerID int64, kind string, amount int64, now time.Time) (BankTransaction, error) {
	e := BankTransaction{
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: now,
	}

	prev := genesisHash
	err := tx.QueryRow(`SELECT entry_hash FROM bank_transactions ORDER BY seq DESC LIMIT 1`).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		return e, err
	}
	e.PrevHash = prev

	createdAt := encodeTime(now)
	e.EntryHash = chainHash(prev, e.ID, playerID, kind, amount, createdAt)

	res, err := tx.Exec(`INSERT INTO bank_transactions
		(id, player_id, kind, amount, created_at, prev_hash, entry_hash)
		VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.PlayerID, e.Kind, e.Amount, createdAt, e.PrevHash, e.EntryHash)
	if err != nil {
		return e, err
	}
	e.Seq, _ = res.LastInsertId()
	return e, nil
}

// BankHistory returns a player's most recent ledger entries, newest first.
func (s *Store) BankHistory(playerID int64, limit int) ([]BankTransaction, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.Query(`SELECT seq, id, player_id, kind, amount, created_at,
			prev_hash, entry_hash
		FROM bank_transactions WHERE player_id=?
		ORDER BY seq DESC LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBankRows(rows)
}

// VerifyLedger walks the whole chain from genesis, recomputing every entry
// hash. Returns the number of verified entries, or the seq of the first bad
// row.
func (s *Store) VerifyLedger() (int, error) {
	rows, err := s.db.Query(`SELECT seq, id, player_id, kind, amount, created_at,
			prev_hash, entry_hash
		FROM bank_transactions ORDER BY seq ASC`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	entries, err := scanBankRows(rows)
	if err != nil {
		return 0, err
	}

	prev := genesisHash
	for i, e := range entries {
		if e.PrevHash != prev {
			return i, fmt.Errorf("ledger break at seq %d: prev_hash mismatch", e.Seq)
		}
		want := chainHash(e.PrevHash, e.ID, e.PlayerID, e.Kind, e.Amount, encodeTime(e.CreatedAt))
		if e.EntryHash != want {
			return i, fmt.Errorf("ledger break at seq %d: entry_hash mismatch", e.Seq)
		}
		prev = e.EntryHash
	}
	return len(entries), nil
}

func scanBankRows(rows *sql.Rows) ([]BankTransaction, error) {
	var out []BankTransaction
	for rows.Next() {
		var e BankTransaction
		var createdAt string
		if err := rows.Scan(&e.Seq, &e.ID, &e.PlayerID, &e.Kind, &e.Amount,
			&createdAt, &e.PrevHash, &e.EntryHash); err != nil {
			return nil, err
		}
		var err error
		if e.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
