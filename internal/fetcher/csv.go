// Package fetcher downloads upstream documents and parses the delimited,
// JSON and ZIP payloads they arrive in.
package fetcher

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

const utf8BOM = "\ufeff"

// CSVOptions configures the streaming delimited-text parser.
type CSVOptions struct {
	Delimiter  rune            // default ','
	HasHeader  bool            // if true, first row is skipped but sent to HeaderCh
	HeaderCh   chan<- []string // optional: receives the header row
	LazyQuotes bool
	TrimSpace  bool

	// Raw splits each line on the delimiter with no quote handling. SEC
	// data sets are tab-separated and never quoted, yet issuer names can
	// start with a double quote.
	Raw bool
}

// StreamCSV reads delimited rows and sends them to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		next := csvReader(r, opts)

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := next()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if first && opts.HasHeader {
				first = false
				if len(record) > 0 {
					record[0] = strings.TrimPrefix(record[0], utf8BOM)
				}
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
						return
					}
				}
				continue
			}
			first = false

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func csvReader(r io.Reader, opts CSVOptions) func() ([]string, error) {
	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}

	if opts.Raw {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
		sep := string(delim)
		return func() ([]string, error) {
			for sc.Scan() {
				line := strings.TrimRight(sc.Text(), "\r")
				if line == "" {
					continue
				}
				return strings.Split(line, sep), nil
			}
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
	}

	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields
	return reader.Read
}

// Record pairs a data row with its header for access by column name.
type Record struct {
	index map[string]int
	row   []string
}

// HeaderIndex maps upper-cased, trimmed column names to positions.
func HeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	return idx
}

// NewRecord wraps a row with a header index built by HeaderIndex.
func NewRecord(index map[string]int, row []string) Record {
	return Record{index: index, row: row}
}

// Get returns the trimmed value of the named column, or "" when the column
// is absent or the row is short.
func (r Record) Get(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.row) {
		return ""
	}
	return strings.TrimSpace(r.row[i])
}

// ReadTable consumes a whole delimited table with a header row.
func ReadTable(ctx context.Context, rd io.Reader, opts CSVOptions) ([]Record, error) {
	headerCh := make(chan []string, 1)
	opts.HasHeader = true
	opts.HeaderCh = headerCh

	rows, errs := StreamCSV(ctx, rd, opts)

	var index map[string]int
	var out []Record
	for row := range rows {
		if index == nil {
			index = HeaderIndex(<-headerCh)
		}
		out = append(out, NewRecord(index, row))
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return out, nil
}
