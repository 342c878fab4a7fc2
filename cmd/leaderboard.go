package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sasyevadam01/sl-enterprise-sub002/config"
	coreledger "github.com/sasyevadam01/sl-enterprise-sub002/core/ledger"
	infraledger "github.com/sasyevadam01/sl-enterprise-sub002/infra/ledger"
)

var (
	lbMonth int
	lbYear  int
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print the monthly operator leaderboard",
	RunE:  printLeaderboard,
}

func init() {
	now := time.Now().UTC()
	leaderboardCmd.Flags().IntVar(&lbMonth, "month", int(now.Month()), "calendar month (1-12)")
	leaderboardCmd.Flags().IntVar(&lbYear, "year", now.Year(), "calendar year")
	rootCmd.AddCommand(leaderboardCmd)
}

func printLeaderboard(cmd *cobra.Command, args []string) error {
	if lbMonth < 1 || lbMonth > 12 {
		return fmt.Errorf("month must be between 1 and 12")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Backend != "sqlite" {
		return fmt.Errorf("leaderboard command requires the sqlite store backend")
	}
	store, err := infraledger.NewSQLiteStore(cfg.Store.LedgerPath)
	if err != nil {
		return fmt.Errorf("ledger store: %w", err)
	}
	defer func() { _ = store.Close() }()

	rows, err := coreledger.Leaderboard(cmd.Context(), store, time.Month(lbMonth), lbYear)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		cmd.Printf("no events recorded for %d-%02d\n", lbYear, lbMonth)
		return nil
	}
	cmd.Printf("%-4s %-20s %8s %8s %8s %10s %10s\n",
		"rank", "operator", "missions", "points", "penalty", "net", "avg react")
	for _, row := range rows {
		cmd.Printf("%-4d %-20s %8d %8d %8d %10d %9.0fs\n",
			row.Rank, row.OperatorID, row.MissionsCompleted, row.TotalPoints,
			row.PenaltiesReceived, row.NetPoints, row.AvgReactionSeconds)
	}
	return nil
}
