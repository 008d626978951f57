package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/hookbridge/internal/core/config"
	"github.com/vietddude/hookbridge/internal/infra/storage/postgres"
)

var statusSince time.Duration

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent delivery outcomes from the history store",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().DurationVar(&statusSince, "since", 24*time.Hour, "how far back to aggregate outcomes")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		fmt.Println("No database configured; delivery history is in-memory only.")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := postgres.NewDeliveryRepo(db)

	counts, err := repo.CountByStatus(ctx, time.Now().Add(-statusSince))
	if err != nil {
		slog.Error("Failed to aggregate deliveries", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Delivery outcomes (last %s):\n", statusSince)
	for status, n := range counts {
		fmt.Printf("  %-10s %d\n", status, n)
	}

	recs, err := repo.ListRecent(ctx, 15)
	if err != nil {
		slog.Error("Failed to list deliveries", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "HOOK\tEVENT\tSTATUS\tATTEMPTS\tDURATION\tAT")
	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dms\t%s\n",
			r.HookID, r.EventID, r.Status, r.Attempts, r.DurationMS,
			r.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
