package engine

import (
	"context"
	"database/sql"
	"log"

	"stellardominion.io/internal/persistence/store"
	"stellardominion.io/internal/sim/empire"
)

// Deposit moves on-hand credits into the banked balance, consuming one
// deposit slot and appending a ledger entry.
func (e *Engine) Deposit(ctx context.Context, playerID, amount int64) error {
	return e.withRetry(ctx, "deposit", func(tx *sql.Tx, tail *txTail) error {
		now := e.now()
		p, err := e.st.GetPlayerTx(tx, playerID)
		if err != nil {
			return err
		}
		if _, err := e.reconcileAndSweep(tx, tail, p, now); err != nil {
			return err
		}
		if err := empire.Deposit(p, amount, now, e.bal); err != nil {
			return err
		}
		entry, err := e.st.InsertBankTx(tx, playerID, store.BankKindDeposit, amount, now)
		if err != nil {
			return err
		}
		tail.bank = append(tail.bank, entry)
		log.Printf("[engine] deposit: player=%d amount=%d", playerID, amount)
		return e.st.UpdatePlayerCAS(tx, p)
	})
}

// Withdraw moves banked credits back on hand. Not slot limited.
func (e *Engine) Withdraw(ctx context.Context, playerID, amount int64) error {
	return e.withRetry(ctx, "withdraw", func(tx *sql.Tx, tail *txTail) error {
		now := e.now()
		p, err := e.st.GetPlayerTx(tx, playerID)
		if err != nil {
			return err
		}
		if _, err := e.reconcileAndSweep(tx, tail, p, now); err != nil {
			return err
		}
		if err := empire.Withdraw(p, amount); err != nil {
			return err
		}
		entry, err := e.st.InsertBankTx(tx, playerID, store.BankKindWithdraw, amount, now)
		if err != nil {
			return err
		}
		tail.bank = append(tail.bank, entry)
		log.Printf("[engine] withdraw: player=%d amount=%d", playerID, amount)
		return e.st.UpdatePlayerCAS(tx, p)
	})
}

// BuyVault purchases one additional vault, raising the on-hand cap.
func (e *Engine) BuyVault(ctx context.Context, playerID int64) error {
	return e.withRetry(ctx, "buy_vault", func(tx *sql.Tx, tail *txTail) error {
		now := e.now()
		p, err := e.st.GetPlayerTx(tx, playerID)
		if err != nil {
			return err
		}
		if _, err := e.reconcileAndSweep(tx, tail, p, now); err != nil {
			return err
		}
		if err := empire.BuyVault(p, e.bal); err != nil {
			return err
		}
		log.Printf("[engine] buy_vault: player=%d vaults=%d", playerID, p.ActiveVaults)
		return e.st.UpdatePlayerCAS(tx, p)
	})
}

// SweepAll reconciles and sweeps every live player. The batch job the
// scheduler runs; also reachable from the admin CLI. Returns the total
// credits moved into banks.
func (e *Engine) SweepAll(ctx context.Context) (int64, error) {
	ids, err := e.st.PlayerIDs()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, id := range ids {
		err := e.withRetry(ctx, "sweep_all", func(tx *sql.Tx, tail *txTail) error {
			now := e.now()
			p, err := e.st.GetPlayerTx(tx, id)
			if err != nil {
				return err
			}
			before := p.BankedCredits
			if _, err := e.reconcileAndSweep(tx, tail, p, now); err != nil {
				return err
			}
			total += p.BankedCredits - before
			return e.st.UpdatePlayerCAS(tx, p)
		})
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
