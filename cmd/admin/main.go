package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"stellardominion.io/internal/persistence/snapshot"
	"stellardominion.io/internal/persistence/store"
	"stellardominion.io/internal/sim/balance"
	"stellardominion.io/internal/sim/engine"
)

var (
	dataDir     string
	dbPath      string
	balancePath string
)

func main() {
	root := &cobra.Command{
		Use:   "admin",
		Short: "Operational tooling for the game database",
		Long: `Inspects and maintains the game database: rankings, batch
reconciliation, bank ledger verification and state snapshots. Run it
against a stopped server or a copy of the database.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data", "./data", "runtime data directory")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite database path (default: <data>/game.db)")
	root.PersistentFlags().StringVar(&balancePath, "balance", "", "path to balance.yaml (default: built-in defaults)")

	root.AddCommand(leaderboardCmd(), reconcileCmd(), sweepCmd(), verifyLedgerCmd(),
		snapshotCmd(), restoreCmd(), balanceCmd(), historyCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore() (*store.Store, error) {
	p := strings.TrimSpace(dbPath)
	if p == "" {
		p = filepath.Join(dataDir, "game.db")
	}
	return store.Open(p)
}

func openEngine() (*engine.Engine, *store.Store, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	bal, err := loadBalance()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	eng, err := engine.New(engine.Config{Store: st, Balance: bal})
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return eng, st, nil
}

func loadBalance() (*balance.Balance, error) {
	p := strings.TrimSpace(balancePath)
	if p == "" {
		b := balance.FromEnv()
		return &b, nil
	}
	b, err := balance.Load(p)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func leaderboardCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the net-worth ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			rows, err := st.Leaderboard(limit)
			if err != nil {
				return err
			}
			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Rank", "ID", "Name", "Level", "Net Worth", "XP"}),
			)
			for i, r := range rows {
				table.Append([]string{
					fmt.Sprintf("%d", i+1),
					fmt.Sprintf("%d", r.ID),
					r.Name,
					fmt.Sprintf("%d", r.Level),
					fmt.Sprintf("%d", r.NetWorth),
					fmt.Sprintf("%d", r.Exp),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "rows to show")
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Advance every player to the current time",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, st, err := openEngine()
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := eng.ReconcileAll(context.Background())
			if err != nil {
				return err
			}
			color.Green("reconciled %d players with elapsed turns", n)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Move over-cap credits into banks for every player",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, st, err := openEngine()
			if err != nil {
				return err
			}
			defer st.Close()

			moved, err := eng.SweepAll(context.Background())
			if err != nil {
				return err
			}
			color.Green("swept %d credits into banks", moved)
			return nil
		},
	}
}

func verifyLedgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-ledger",
		Short: "Recompute the bank transaction hash chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.VerifyLedger()
			if err != nil {
				color.Red("ledger verification FAILED after %d entries: %v", n, err)
				return err
			}
			color.Green("ledger intact: %d entries verified", n)
			return nil
		},
	}
}

func snapshotCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export full game state to an lz4 snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			bal, err := loadBalance()
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			if strings.TrimSpace(out) == "" {
				out = filepath.Join(dataDir, "snapshots", fmt.Sprintf("state-%s.json.lz4", now.Format("2006-01-02-150405")))
			}
			snap, err := snapshot.Export(st, bal.Digest(), now)
			if err != nil {
				return err
			}
			if err := snapshot.Write(out, snap); err != nil {
				return err
			}
			color.Green("wrote %s (%d players, %d ledger entries)", out, len(snap.Players), len(snap.BankTransactions))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output path (default: <data>/snapshots/state-<ts>.json.lz4)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a snapshot into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(in) == "" {
				return fmt.Errorf("missing --in")
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := snapshot.Read(in)
			if err != nil {
				return err
			}
			if err := snapshot.Restore(st, snap); err != nil {
				return err
			}
			color.Green("restored %d players, %d alliances, %d ledger entries",
				len(snap.Players), len(snap.Alliances), len(snap.BankTransactions))
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "snapshot path to restore")
	return cmd
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the effective balance values and digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			bal, err := loadBalance()
			if err != nil {
				return err
			}
			fmt.Printf("digest: %s\n\n", bal.Digest())

			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Knob", "Value"}),
			)
			rows := [][2]string{
				{"turn_minutes", fmt.Sprintf("%d", bal.TurnMinutes)},
				{"citizens_per_turn", fmt.Sprintf("%d", bal.CitizensPerTurn)},
				{"base_income_per_turn", fmt.Sprintf("%d", bal.BaseIncomePerTurn)},
				{"underdog_threshold", fmt.Sprintf("%.3f", bal.UnderdogThreshold)},
				{"turn_power_cap", fmt.Sprintf("%.2f", bal.TurnPowerCap)},
				{"plunder_pct_cap", fmt.Sprintf("%.2f", bal.PlunderPctCap)},
				{"plunder_per_turn_pct", fmt.Sprintf("%.2f", bal.PlunderPerTurnPct)},
				{"min_guard_floor", fmt.Sprintf("%d", bal.MinGuardFloor)},
				{"base_vault_capacity", fmt.Sprintf("%d", bal.BaseVaultCapacity)},
				{"max_active_vaults", fmt.Sprintf("%d", bal.MaxActiveVaults)},
				{"fatigue_purge_pct", fmt.Sprintf("%.2f", bal.FatiguePurgePct)},
			}
			for _, r := range rows {
				table.Append([]string{r[0], r[1]})
			}
			table.Render()
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var playerID int64
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent battles for a player",
		RunE: func(cmd *cobra.Command, args []string) error {
			if playerID == 0 {
				return fmt.Errorf("missing --player")
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.BattleHistory(playerID, limit)
			if err != nil {
				return err
			}
			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"When", "Attacker", "Defender", "Outcome", "Turns", "Plunder", "Tier"}),
			)
			for _, e := range entries {
				table.Append([]string{
					e.CreatedAt.Format(time.RFC3339),
					e.AttackerName,
					e.DefenderName,
					e.Outcome,
					fmt.Sprintf("%d", e.TurnsUsed),
					fmt.Sprintf("%d", e.Plunder),
					string(e.Tier),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Int64Var(&playerID, "player", 0, "player id")
	cmd.Flags().IntVar(&limit, "limit", 25, "rows to show")
	return cmd
}
