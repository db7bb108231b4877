// Package seed loads the reference data the pipelines read but never
// produce: the OpenDART corporate code registry and a starter list of SEC
// Form 13F filers.
package seed

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-etl/internal/db"
	"github.com/sells-group/holdings-etl/internal/fetcher"
	"github.com/sells-group/holdings-etl/internal/model"
)

// CorpCodeMember is the registry document inside the corpCode.xml archive.
const CorpCodeMember = "CORPCODE.xml"

// DefaultCorpCodeBatch matches the registry's upsert chunking.
const DefaultCorpCodeBatch = 1000

// CompanyStore receives registry rows.
type CompanyStore interface {
	UpsertKRCompanies(ctx context.Context, companies []model.KRCompany) (int64, error)
}

// CorpCodeStats summarizes one registry import.
type CorpCodeStats struct {
	Read     int   `json:"read"`
	Unlisted int   `json:"unlisted"`
	Invalid  int   `json:"invalid"`
	Written  int64 `json:"written"`
	Batches  int   `json:"batches"`
}

type corpCodeEntry struct {
	CorpCode   string `xml:"corp_code"`
	CorpName   string `xml:"corp_name"`
	StockCode  string `xml:"stock_code"`
	ModifyDate string `xml:"modify_date"`
}

// CorpCodeURL is the registry download endpoint for apiKey.
func CorpCodeURL(baseURL, apiKey string) string {
	return strings.TrimRight(baseURL, "/") + "/corpCode.xml?crtfc_key=" + url.QueryEscape(apiKey)
}

// DownloadCorpCodes fetches the zipped registry.
func DownloadCorpCodes(ctx context.Context, f fetcher.Fetcher, baseURL, apiKey string) ([]byte, error) {
	if apiKey == "" {
		return nil, eris.New("seed: dart api key is not set")
	}
	data, err := f.Fetch(ctx, CorpCodeURL(baseURL, apiKey), 0)
	if err != nil {
		return nil, eris.Wrap(err, "seed: download corp codes")
	}
	return data, nil
}

type statusDoc struct {
	Status  string `xml:"status"`
	Message string `xml:"message"`
}

// OpenCorpCodes returns the registry XML from either the zipped download or
// an already extracted document. OpenDART answers a bad key with a small XML
// status document instead of an archive.
func OpenCorpCodes(data []byte) (io.Reader, error) {
	if !bytes.HasPrefix(data, []byte("PK")) {
		var sd statusDoc
		if xml.Unmarshal(data, &sd) == nil && sd.Status != "" && sd.Status != "000" {
			return nil, eris.Errorf("seed: corp code registry returned status %s: %s", sd.Status, sd.Message)
		}
		return bytes.NewReader(data), nil
	}
	zr, err := fetcher.OpenZIP(data)
	if err != nil {
		return nil, eris.Wrap(err, "seed: open corp code archive")
	}
	member := fetcher.FindMember(zr, CorpCodeMember)
	if member == nil {
		return nil, eris.Errorf("seed: %s not found in archive", CorpCodeMember)
	}
	xmlData, err := fetcher.ReadMember(member)
	if err != nil {
		return nil, eris.Wrap(err, "seed: read corp codes")
	}
	return bytes.NewReader(xmlData), nil
}

// ImportCorpCodes streams registry entries from r into st. Entries without
// a code or name are invalid; entries without a stock code are unlisted.
// Both are skipped.
func ImportCorpCodes(ctx context.Context, r io.Reader, st CompanyStore, batchSize int) (*CorpCodeStats, error) {
	if batchSize < 1 {
		batchSize = DefaultCorpCodeBatch
	}
	log := zap.L().With(zap.String("component", "seed.corpcode"))
	stats := &CorpCodeStats{}
	batcher := db.NewBatcher[model.KRCompany](batchSize, st.UpsertKRCompanies)

	err := fetcher.EachXML(ctx, r, "list", func(e corpCodeEntry) error {
		stats.Read++
		code := strings.TrimSpace(e.CorpCode)
		name := strings.TrimSpace(e.CorpName)
		stock := strings.TrimSpace(e.StockCode)
		switch {
		case code == "" || name == "":
			stats.Invalid++
			return nil
		case stock == "":
			stats.Unlisted++
			return nil
		}
		return batcher.Add(ctx, model.KRCompany{
			CorpCode:   code,
			StockCode:  stock,
			Name:       name,
			ModifyDate: strings.TrimSpace(e.ModifyDate),
		})
	})
	if err == nil {
		err = batcher.Flush(ctx)
	}
	stats.Written = batcher.Written()
	stats.Batches = batcher.Batches()
	if err != nil {
		return stats, eris.Wrap(err, "seed: import corp codes")
	}

	log.Info("corp codes imported",
		zap.Int("read", stats.Read),
		zap.Int("unlisted", stats.Unlisted),
		zap.Int64("written", stats.Written),
	)
	return stats, nil
}
