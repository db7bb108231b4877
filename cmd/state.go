package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/holdings-etl/internal/model"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the ingestion watermarks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("db"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListState(ctx)
		if err != nil {
			return eris.Wrap(err, "state")
		}
		formatState(os.Stdout, entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
}

// formatState writes the etl_state rows as a table.
func formatState(out io.Writer, entries []model.EtlState) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tVALUE\tUPDATED")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.Key, e.Value, e.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
}
