package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/holdings-etl/internal/etl"
	"github.com/sells-group/holdings-etl/internal/store"
)

var refreshDryRun bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one ingestion and print its result",
	Long:  "Runs the domestic then foreign pipelines once, records the run in etl_runs, and prints the result JSON. Exits non-zero when the run ends in error.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mode := "refresh"
		if refreshDryRun {
			mode = "upstream"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		var st runnerStore
		if refreshDryRun {
			// Writes stay in memory; nothing reaches Postgres.
			st = store.NewMemory()
		} else {
			pg, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer pg.Close() //nolint:errcheck
			st = pg
		}

		res, err := newRunner(cfg, newFetcher(cfg), st).Run(ctx)
		if err != nil {
			return err
		}
		return reportResult(os.Stdout, res)
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshDryRun, "dry-run", false, "fetch and normalize without touching the database")
	rootCmd.AddCommand(refreshCmd)
}

// reportResult prints res and converts a failed run into an error.
func reportResult(out io.Writer, res *etl.Result) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return eris.Wrap(err, "encode result")
	}
	if !res.OK() {
		return eris.Errorf("run %s failed: %s", res.RunID, res.Result.Message)
	}
	return nil
}
