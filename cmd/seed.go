package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-etl/internal/fetcher"
	"github.com/sells-group/holdings-etl/internal/model"
	"github.com/sells-group/holdings-etl/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load reference data the pipelines match against",
}

var (
	corpCodesFile  string
	corpCodesBatch int
)

var seedCorpCodesCmd = &cobra.Command{
	Use:   "corpcodes",
	Short: "Import the OpenDART corporate code registry into kr_companies",
	Long:  "Downloads corpCode.xml with dart.api_key, or reads --file (the XML or its ZIP), and upserts every listed company into kr_companies.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("db"); err != nil {
			return err
		}

		data, err := loadCorpCodes(ctx, newFetcher(cfg))
		if err != nil {
			return err
		}
		r, err := seed.OpenCorpCodes(data)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := seed.ImportCorpCodes(ctx, r, st, corpCodesBatch)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

func loadCorpCodes(ctx context.Context, f fetcher.Fetcher) ([]byte, error) {
	if corpCodesFile == "" {
		return seed.DownloadCorpCodes(ctx, f, cfg.Dart.BaseURL, cfg.Dart.APIKey)
	}
	data, err := os.ReadFile(filepath.Clean(corpCodesFile))
	if err != nil {
		return nil, eris.Wrap(err, "read corp code file")
	}
	return data, nil
}

var (
	filersQuarters int
	filersLimit    int
	filersOut      string
	filersIndexURL string
	filersApply    bool
)

var seedFilersCmd = &cobra.Command{
	Use:   "filers",
	Short: "Build a Form 13F filer list from recent EDGAR master indexes",
	Long:  "Scans recent EDGAR full-index master.idx files for 13F-HR filers and writes them as a CSV seed file. With --apply the filers are also upserted into institutions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if filersApply {
			if err := cfg.Validate("db"); err != nil {
				return err
			}
		}
		if cfg.SEC.UserAgent == "" {
			return eris.New("config: sec.user_agent is required")
		}

		insts, err := seed.CollectFilers(ctx, newFetcher(cfg), time.Now(), seed.FilerOptions{
			BaseURL:  filersIndexURL,
			Quarters: filersQuarters,
			Limit:    filersLimit,
		})
		if err != nil {
			return err
		}

		if err := writeFilers(filersOut, insts); err != nil {
			return err
		}
		zap.L().Info("filer seed written", zap.String("path", filersOut), zap.Int("filers", len(insts)))

		if !filersApply {
			return nil
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ids, err := st.UpsertInstitutions(ctx, string(model.SourceForeignBulk), insts)
		if err != nil {
			return err
		}
		zap.L().Info("filers upserted", zap.Int("institutions", len(ids)))
		return nil
	},
}

func writeFilers(path string, insts []model.Institution) error {
	if path == "-" {
		return seed.WriteFilersCSV(os.Stdout, insts)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "create seed dir")
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return eris.Wrap(err, "create seed file")
	}
	if err := seed.WriteFilersCSV(f, insts); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "close seed file")
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

func init() {
	seedCorpCodesCmd.Flags().StringVar(&corpCodesFile, "file", "", "local corpCode.xml or its ZIP instead of downloading")
	seedCorpCodesCmd.Flags().IntVar(&corpCodesBatch, "batch", seed.DefaultCorpCodeBatch, "rows per upsert")

	seedFilersCmd.Flags().IntVar(&filersQuarters, "quarters", 4, "recent quarters to scan")
	seedFilersCmd.Flags().IntVar(&filersLimit, "limit", 200, "maximum distinct filers")
	seedFilersCmd.Flags().StringVar(&filersOut, "out", "seeds/sec_institutions.csv", "CSV output path, - for stdout")
	seedFilersCmd.Flags().StringVar(&filersIndexURL, "index-url", seed.DefaultIndexBaseURL, "EDGAR full-index root")
	seedFilersCmd.Flags().BoolVar(&filersApply, "apply", false, "also upsert the filers into institutions")

	seedCmd.AddCommand(seedCorpCodesCmd, seedFilersCmd)
	rootCmd.AddCommand(seedCmd)
}
