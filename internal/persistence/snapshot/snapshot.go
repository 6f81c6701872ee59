// Package snapshot exports and restores full game state as lz4-framed
// JSON. Snapshots back up the database across migrations and feed offline
// analysis; the sqlite store stays authoritative.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pierrec/lz4/v4"

	"stellardominion.io/internal/persistence/store"
	"stellardominion.io/internal/sim/empire"
)

const FormatVersion = 1

type Header struct {
	Version       int    `json:"version"`
	CreatedAt     string `json:"created_at"`
	BalanceDigest string `json:"balance_digest,omitempty"`
}

// SnapshotV1 is the complete exported state: every player, alliance, war
// and bank ledger row. The battle log is excluded; it is an append-only
// audit trail already mirrored to JSONL.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Players          []PlayerV1               `json:"players"`
	Alliances        []store.Alliance         `json:"alliances"`
	Wars             []store.War              `json:"wars"`
	BankTransactions []store.BankTransaction  `json:"bank_transactions"`
}

// PlayerV1 mirrors the persisted player row with stable wire names.
type PlayerV1 struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Level      int    `json:"level"`
	Experience int64  `json:"experience"`

	Credits           int64 `json:"credits"`
	BankedCredits     int64 `json:"banked_credits"`
	UntrainedCitizens int64 `json:"untrained_citizens"`

	Workers  int64 `json:"workers"`
	Soldiers int64 `json:"soldiers"`
	Guards   int64 `json:"guards"`
	Sentries int64 `json:"sentries"`
	Spies    int64 `json:"spies"`

	Strength     int `json:"strength"`
	Constitution int `json:"constitution"`
	Wealth       int `json:"wealth"`
	Dexterity    int `json:"dexterity"`
	Charisma     int `json:"charisma"`

	AttackTurns int    `json:"attack_turns"`
	LastUpdated string `json:"last_updated"`

	ArmoryLevel        int   `json:"armory_level"`
	FortificationLevel int   `json:"fortification_level"`
	FoundationHP       int64 `json:"foundation_hp"`
	FoundationMaxHP    int64 `json:"foundation_max_hp"`

	ActiveVaults int    `json:"active_vaults"`
	DepositsUsed int    `json:"deposits_used"`
	LastDeposit  string `json:"last_deposit,omitempty"`

	AllianceID int64 `json:"alliance_id,omitempty"`
	Deleted    bool  `json:"deleted,omitempty"`
	Version    int64 `json:"row_version"`
}

func fromPlayer(p *empire.Player) PlayerV1 {
	v := PlayerV1{
		ID: p.ID, Name: p.Name, Level: p.Level, Experience: p.Experience,
		Credits: p.Credits, BankedCredits: p.BankedCredits, UntrainedCitizens: p.UntrainedCitizens,
		Workers: p.Workers, Soldiers: p.Soldiers, Guards: p.Guards, Sentries: p.Sentries, Spies: p.Spies,
		Strength: p.Strength, Constitution: p.Constitution, Wealth: p.Wealth,
		Dexterity: p.Dexterity, Charisma: p.Charisma,
		AttackTurns: p.AttackTurns, LastUpdated: p.LastUpdated.UTC().Format(time.RFC3339Nano),
		ArmoryLevel: p.ArmoryLevel, FortificationLevel: p.FortificationLevel,
		FoundationHP: p.FoundationHP, FoundationMaxHP: p.FoundationMaxHP,
		ActiveVaults: p.ActiveVaults, DepositsUsed: p.DepositsUsed,
		AllianceID: p.AllianceID, Deleted: p.Deleted, Version: p.Version,
	}
	if !p.LastDeposit.IsZero() {
		v.LastDeposit = p.LastDeposit.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func (v PlayerV1) toPlayer() (*empire.Player, error) {
	lastUpdated, err := time.Parse(time.RFC3339Nano, v.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("player %d last_updated: %w", v.ID, err)
	}
	p := &empire.Player{
		ID: v.ID, Name: v.Name, Level: v.Level, Experience: v.Experience,
		Credits: v.Credits, BankedCredits: v.BankedCredits, UntrainedCitizens: v.UntrainedCitizens,
		Workers: v.Workers, Soldiers: v.Soldiers, Guards: v.Guards, Sentries: v.Sentries, Spies: v.Spies,
		Strength: v.Strength, Constitution: v.Constitution, Wealth: v.Wealth,
		Dexterity: v.Dexterity, Charisma: v.Charisma,
		AttackTurns: v.AttackTurns, LastUpdated: lastUpdated,
		ArmoryLevel: v.ArmoryLevel, FortificationLevel: v.FortificationLevel,
		FoundationHP: v.FoundationHP, FoundationMaxHP: v.FoundationMaxHP,
		ActiveVaults: v.ActiveVaults, DepositsUsed: v.DepositsUsed,
		AllianceID: v.AllianceID, Deleted: v.Deleted, Version: v.Version,
	}
	if v.LastDeposit != "" {
		if p.LastDeposit, err = time.Parse(time.RFC3339Nano, v.LastDeposit); err != nil {
			return nil, fmt.Errorf("player %d last_deposit: %w", v.ID, err)
		}
	}
	return p, nil
}

// Export reads the whole store into a snapshot.
func Export(st *store.Store, balanceDigest string, now time.Time) (SnapshotV1, error) {
	snap := SnapshotV1{Header: Header{
		Version:       FormatVersion,
		CreatedAt:     now.UTC().Format(time.RFC3339Nano),
		BalanceDigest: balanceDigest,
	}}

	players, err := st.AllPlayers()
	if err != nil {
		return snap, err
	}
	for _, p := range players {
		snap.Players = append(snap.Players, fromPlayer(p))
	}
	if snap.Alliances, err = st.AllAlliances(); err != nil {
		return snap, err
	}
	if snap.Wars, err = st.AllWars(); err != nil {
		return snap, err
	}
	if snap.BankTransactions, err = st.AllBankTransactions(); err != nil {
		return snap, err
	}
	return snap, nil
}

// Restore writes a snapshot into an empty store, then verifies the bank
// chain survived the round trip.
func Restore(st *store.Store, snap SnapshotV1) error {
	if snap.Header.Version != FormatVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	for _, a := range snap.Alliances {
		if err := st.ImportAlliance(a); err != nil {
			return fmt.Errorf("alliance %d: %w", a.ID, err)
		}
	}
	for _, w := range snap.Wars {
		if err := st.ImportWar(w); err != nil {
			return fmt.Errorf("war %d: %w", w.ID, err)
		}
	}
	for _, v := range snap.Players {
		p, err := v.toPlayer()
		if err != nil {
			return err
		}
		if err := st.ImportPlayer(p); err != nil {
			return fmt.Errorf("player %d: %w", p.ID, err)
		}
	}
	for _, e := range snap.BankTransactions {
		if err := st.ImportBankTransaction(e); err != nil {
			return fmt.Errorf("bank seq %d: %w", e.Seq, err)
		}
	}
	if _, err := st.VerifyLedger(); err != nil {
		return fmt.Errorf("restored ledger: %w", err)
	}
	return nil
}

// Write saves a snapshot to path: one JSON header line, then the JSON body,
// all lz4-framed.
func Write(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := lz4.NewWriter(f)
	defer zw.Close()

	bw := bufio.NewWriterSize(zw, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("snapshot encode: %w", err)
	}
	return nil
}

// Read loads a snapshot from path.
func Read(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	br := bufio.NewReaderSize(lz4.NewReader(f), 256*1024)

	// Header line duplicates the body header; skipping it keeps the read
	// path symmetric with Write.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, err
	}
	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("snapshot decode: %w", err)
	}
	return snap, nil
}
