package sec13f

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-etl/internal/fetcher"
)

// Members every usable data set contains.
const (
	memberSubmission = "SUBMISSION.TSV"
	memberCoverPage  = "COVERPAGE.TSV"
	memberInfoTable  = "INFOTABLE.TSV"
)

// ErrIncompleteArchive marks a data set missing one of its three tables.
// Such a data set is unusable and is not retried.
var ErrIncompleteArchive = errors.New("sec13f: archive is missing a required table")

var tsvOptions = fetcher.CSVOptions{Delimiter: '\t', Raw: true}

// Archive is an opened data set with its two small tables indexed by
// accession number. The information table is streamed on demand.
type Archive struct {
	Submissions map[string]fetcher.Record
	Covers      map[string]fetcher.Record

	// Accession numbers of Submissions in file order.
	Accessions []string

	info *zip.File
}

// OpenArchive decompresses data in memory, locates the three tables by
// case-insensitive suffix and indexes SUBMISSION and COVERPAGE.
func OpenArchive(ctx context.Context, data []byte) (*Archive, error) {
	zr, err := fetcher.OpenZIP(data)
	if err != nil {
		return nil, eris.Wrap(err, "sec13f: open archive")
	}

	sub := fetcher.FindMember(zr, memberSubmission)
	cover := fetcher.FindMember(zr, memberCoverPage)
	info := fetcher.FindMember(zr, memberInfoTable)
	if sub == nil || cover == nil || info == nil {
		return nil, ErrIncompleteArchive
	}

	a := &Archive{info: info}

	subRecs, err := readTable(ctx, sub)
	if err != nil {
		return nil, err
	}
	a.Submissions = make(map[string]fetcher.Record, len(subRecs))
	for _, r := range subRecs {
		acc := r.Get("ACCESSION_NUMBER")
		if acc == "" {
			continue
		}
		if _, dup := a.Submissions[acc]; !dup {
			a.Accessions = append(a.Accessions, acc)
		}
		a.Submissions[acc] = r
	}

	coverRecs, err := readTable(ctx, cover)
	if err != nil {
		return nil, err
	}
	a.Covers = make(map[string]fetcher.Record, len(coverRecs))
	for _, r := range coverRecs {
		if acc := r.Get("ACCESSION_NUMBER"); acc != "" {
			a.Covers[acc] = r
		}
	}

	return a, nil
}

func readTable(ctx context.Context, f *zip.File) ([]fetcher.Record, error) {
	data, err := fetcher.ReadMember(f)
	if err != nil {
		return nil, eris.Wrap(err, "sec13f: read table")
	}
	recs, err := fetcher.ReadTable(ctx, bytes.NewReader(data), tsvOptions)
	if err != nil {
		return nil, eris.Wrapf(err, "sec13f: parse %s", f.Name)
	}
	return recs, nil
}

// EachInfoRow streams INFOTABLE rows to fn without loading the table into
// memory. fn returning an error stops the stream.
func (a *Archive) EachInfoRow(ctx context.Context, fn func(fetcher.Record) error) error {
	rc, err := a.info.Open()
	if err != nil {
		return eris.Wrap(err, "sec13f: open information table")
	}
	defer rc.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	opts := tsvOptions
	opts.HasHeader = true
	opts.HeaderCh = headerCh

	rows, errs := fetcher.StreamCSV(ctx, rc, opts)

	var index map[string]int
	for row := range rows {
		if index == nil {
			index = fetcher.HeaderIndex(<-headerCh)
		}
		if err := fn(fetcher.NewRecord(index, row)); err != nil {
			cancel()
			for range rows {
			}
			return err
		}
	}
	if err := <-errs; err != nil {
		return eris.Wrap(err, "sec13f: stream information table")
	}
	return nil
}
