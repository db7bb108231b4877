package seed

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/holdings-etl/internal/fetcher"
	"github.com/sells-group/holdings-etl/internal/model"
)

// DefaultIndexBaseURL is the EDGAR full-index root.
const DefaultIndexBaseURL = "https://www.sec.gov/Archives/edgar/full-index"

const masterIndexHeader = "CIK|Company Name|Form Type|Date Filed|Filename"

var holdingsForms = map[string]bool{"13F-HR": true, "13F-HR/A": true}

// Quarter is one EDGAR index period.
type Quarter struct {
	Year int
	Q    int
}

func (q Quarter) String() string { return fmt.Sprintf("%dQ%d", q.Year, q.Q) }

// RecentQuarters returns n quarters ending with the one containing now,
// newest first.
func RecentQuarters(now time.Time, n int) []Quarter {
	q := Quarter{Year: now.Year(), Q: (int(now.Month())-1)/3 + 1}
	out := make([]Quarter, 0, n)
	for range n {
		out = append(out, q)
		q.Q--
		if q.Q == 0 {
			q.Q = 4
			q.Year--
		}
	}
	return out
}

// MasterIndexURL locates the pipe-delimited master index for q.
func MasterIndexURL(baseURL string, q Quarter) string {
	return fmt.Sprintf("%s/%d/QTR%d/master.idx", strings.TrimRight(baseURL, "/"), q.Year, q.Q)
}

// PadCIK keeps the digits of cik, left-padded to ten.
func PadCIK(cik string) string {
	var b strings.Builder
	for _, r := range cik {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if len(d) >= 10 {
		return d
	}
	return strings.Repeat("0", 10-len(d)) + d
}

// EachIndexEntry calls fn for every filing line after the header of a
// Latin-1 master index. fn returns false to stop early.
func EachIndexEntry(r io.Reader, fn func(cik, name, form string) bool) error {
	sc := bufio.NewScanner(charmap.ISO8859_1.NewDecoder().Reader(r))
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	inBody := false
	for sc.Scan() {
		line := sc.Text()
		if !inBody {
			inBody = strings.HasPrefix(strings.TrimSpace(line), masterIndexHeader)
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 5 {
			continue
		}
		if !fn(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])) {
			return nil
		}
	}
	return eris.Wrap(sc.Err(), "seed: scan master index")
}

// FilerOptions bounds CollectFilers.
type FilerOptions struct {
	BaseURL  string
	Quarters int
	Limit    int
}

// CollectFilers scans recent master indexes for Form 13F filers and returns
// up to Limit distinct CIKs as institutions sorted by name. A quarter that
// fails to download is logged and skipped.
func CollectFilers(ctx context.Context, f fetcher.Fetcher, now time.Time, opts FilerOptions) ([]model.Institution, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultIndexBaseURL
	}
	if opts.Quarters < 1 {
		opts.Quarters = 4
	}
	if opts.Limit < 1 {
		opts.Limit = 200
	}
	log := zap.L().With(zap.String("component", "seed.filers"))

	seen := make(map[string]string)
	for _, q := range RecentQuarters(now, opts.Quarters) {
		if len(seen) >= opts.Limit {
			break
		}
		body, err := f.Download(ctx, MasterIndexURL(opts.BaseURL, q))
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "seed: collect filers")
			}
			log.Warn("master index unavailable", zap.Stringer("quarter", q), zap.Error(err))
			continue
		}
		err = EachIndexEntry(body, func(cik, name, form string) bool {
			if !holdingsForms[form] {
				return true
			}
			if _, ok := seen[cik]; !ok {
				seen[cik] = name
			}
			return len(seen) < opts.Limit
		})
		_ = body.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "seed: read %s master index", q)
		}
	}

	out := make([]model.Institution, 0, len(seen))
	for cik, name := range seen {
		out = append(out, model.Institution{
			Name:            name,
			CountryCode:     "US",
			InstitutionType: "asset_manager",
			Source:          string(model.SourceForeignBulk),
			ExternalID:      PadCIK(cik),
			Active:          true,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out, nil
}

// WriteFilersCSV writes the seed file layout: name, source, country_code,
// external_id.
func WriteFilersCSV(w io.Writer, insts []model.Institution) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "source", "country_code", "external_id"}); err != nil {
		return eris.Wrap(err, "seed: write csv header")
	}
	for _, inst := range insts {
		if err := cw.Write([]string{inst.Name, inst.Source, inst.CountryCode, inst.ExternalID}); err != nil {
			return eris.Wrap(err, "seed: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "seed: flush csv")
}
