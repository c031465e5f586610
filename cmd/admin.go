package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/monitoring"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "migrate")
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("schema up to date", zap.String("driver", cfg.Store.Driver))
		fmt.Println("migrations applied")
		return nil
	},
}

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show filing counts and per-stage progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := monitoring.NewCollector(env.Store).Collect(ctx)
		if err != nil {
			return err
		}
		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		printStatus(os.Stdout, snap)
		return nil
	},
}

func printStatus(w io.Writer, snap *monitoring.Snapshot) {
	fmt.Fprintln(w, "Filings")
	for _, s := range []model.FilingStatus{
		model.FilingPending, model.FilingAnalyzed, model.FilingGenerated, model.FilingPublished, model.FilingFailed,
	} {
		fmt.Fprintf(w, "  %-10s %d\n", s, snap.Filings[s])
	}
	fmt.Fprintf(w, "  %-10s %d\n", "total", snap.Total)

	fmt.Fprintln(w, "\nProgress")
	for _, row := range []struct {
		name string
		p    model.Progress
	}{
		{"analyze", snap.Analyze},
		{"generate", snap.Generate},
		{"publish", snap.Publish},
	} {
		fmt.Fprintf(w, "  %-10s %5.1f%% (%d/%d)\n", row.name, row.p.Percent(), row.p.Done, row.p.Total)
	}
}

var resetAccession string

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete a filing and everything derived from it so the next fetch starts over",
	Long: "Removes the filing row, its content and its deliveries. Use it to retry a failed filing " +
		"or to clear a delivery left in the sending state by an interrupted publish.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if resetAccession == "" {
			return eris.New("--accession is required")
		}

		env, err := initPipeline(ctx, "reset")
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := env.Store.GetFilingByAccession(ctx, resetAccession)
		if err != nil {
			return eris.Wrapf(err, "find filing %s", resetAccession)
		}
		if err := env.Store.DeleteFiling(ctx, f.ID); err != nil {
			return err
		}

		zap.L().Info("filing reset",
			zap.String("accession", f.AccessionNumber),
			zap.String("ticker", f.Ticker),
			zap.String("previous_status", string(f.Status)),
		)
		fmt.Printf("reset %s %s (%s, was %s)\n", f.Ticker, f.FilingType, f.AccessionNumber, f.Status)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the snapshot as JSON")
	resetCmd.Flags().StringVar(&resetAccession, "accession", "", "accession number of the filing to reset")

	rootCmd.AddCommand(migrateCmd, statusCmd, resetCmd)
}
