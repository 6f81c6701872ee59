package engine

import (
	"context"
	"database/sql"
	"log"

	"stellardominion.io/internal/sim/empire"
)

// Train converts untrained citizens into units per the order. The batch is
// all-or-nothing: any shortfall rejects the whole order and persists only
// the turn reconciliation.
func (e *Engine) Train(ctx context.Context, playerID int64, order empire.TrainOrder) (*empire.TrainReceipt, error) {
	var receipt *empire.TrainReceipt
	err := e.withRetry(ctx, "train", func(tx *sql.Tx, tail *txTail) error {
		now := e.now()
		p, err := e.st.GetPlayerTx(tx, playerID)
		if err != nil {
			return err
		}
		if _, err := e.reconcileAndSweep(tx, tail, p, now); err != nil {
			return err
		}
		r, trainErr := empire.ApplyTraining(p, order, e.bal)
		if trainErr != nil {
			// Rolls back the reconciliation too; it re-derives identically
			// on the next call.
			return trainErr
		}
		receipt = r
		return e.st.UpdatePlayerCAS(tx, p)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[engine] train: player=%d units=%d credits=%d", playerID, receipt.CitizensConsumed, receipt.CreditsSpent)
	return receipt, nil
}

// Disband removes units from the player's army. No refund, no citizen
// returned.
func (e *Engine) Disband(ctx context.Context, playerID int64, order empire.TrainOrder) error {
	err := e.withRetry(ctx, "disband", func(tx *sql.Tx, tail *txTail) error {
		now := e.now()
		p, err := e.st.GetPlayerTx(tx, playerID)
		if err != nil {
			return err
		}
		if _, err := e.reconcileAndSweep(tx, tail, p, now); err != nil {
			return err
		}
		if err := empire.ApplyDisband(p, order, e.bal); err != nil {
			return err
		}
		return e.st.UpdatePlayerCAS(tx, p)
	})
	if err == nil {
		log.Printf("[engine] disband: player=%d units=%d", playerID, order.Total())
	}
	return err
}

// AutoTrain trains the largest affordable even basket across all five unit
// kinds and reports what it bought. Training nothing is not an error; the
// receipt is simply empty.
func (e *Engine) AutoTrain(ctx context.Context, playerID int64) (*empire.TrainReceipt, error) {
	receipt := &empire.TrainReceipt{Order: empire.TrainOrder{}}
	err := e.withRetry(ctx, "auto_train", func(tx *sql.Tx, tail *txTail) error {
		now := e.now()
		p, err := e.st.GetPlayerTx(tx, playerID)
		if err != nil {
			return err
		}
		if _, err := e.reconcileAndSweep(tx, tail, p, now); err != nil {
			return err
		}
		total, order := empire.MaxEvenBasket(p.UntrainedCitizens, p.Credits, p.Charisma, e.bal)
		if total > 0 {
			r, trainErr := empire.ApplyTraining(p, order, e.bal)
			if trainErr != nil {
				return trainErr
			}
			receipt = r
		}
		return e.st.UpdatePlayerCAS(tx, p)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[engine] auto_train: player=%d units=%d credits=%d", playerID, receipt.CitizensConsumed, receipt.CreditsSpent)
	return receipt, nil
}
