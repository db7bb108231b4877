package seed

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/holdings-etl/internal/fetcher/mocks"
	"github.com/sells-group/holdings-etl/internal/model"
)

const testIndexBase = "https://www.sec.gov/Archives/edgar/full-index"

func masterIndex(lines ...string) string {
	return "Description:           Master Index of EDGAR Dissemination Feed\n" +
		"Last Data Received:    March 31, 2025\n\n" +
		"CIK|Company Name|Form Type|Date Filed|Filename\n" +
		"--------------------------------------------------------------------------------\n" +
		strings.Join(lines, "\n") + "\n"
}

func body(s string) io.ReadCloser { return io.NopCloser(strings.NewReader(s)) }

func TestRecentQuarters(t *testing.T) {
	got := RecentQuarters(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), 3)
	assert.Equal(t, []Quarter{{2025, 1}, {2024, 4}, {2024, 3}}, got)
	assert.Equal(t, "2024Q4", got[1].String())
}

func TestMasterIndexURL(t *testing.T) {
	assert.Equal(t, testIndexBase+"/2024/QTR4/master.idx", MasterIndexURL(testIndexBase+"/", Quarter{2024, 4}))
}

func TestPadCIK(t *testing.T) {
	assert.Equal(t, "0001067983", PadCIK("1067983"))
	assert.Equal(t, "0000000042", PadCIK(" 42 "))
	assert.Equal(t, "12345678901", PadCIK("12345678901"))
}

func TestEachIndexEntry_Latin1(t *testing.T) {
	raw, err := charmap.ISO8859_1.NewEncoder().String(masterIndex("1234|Société Générale|13F-HR|2025-02-14|edgar/data/1234/x.txt"))
	require.NoError(t, err)

	var names []string
	require.NoError(t, EachIndexEntry(strings.NewReader(raw), func(_, name, _ string) bool {
		names = append(names, name)
		return true
	}))
	assert.Equal(t, []string{"Société Générale"}, names)
}

func TestEachIndexEntry_SkipsPreambleAndShortLines(t *testing.T) {
	doc := masterIndex(
		"1|A|13F-HR|2025-01-01|f",
		"malformed line",
		"2|B|10-K|2025-01-02|f",
	)
	var ciks []string
	require.NoError(t, EachIndexEntry(strings.NewReader(doc), func(cik, _, _ string) bool {
		ciks = append(ciks, cik)
		return true
	}))
	assert.Equal(t, []string{"1", "2"}, ciks)
}

func TestCollectFilers(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f := mocks.NewMockFetcher(t)
	f.On("Download", mock.Anything, testIndexBase+"/2025/QTR2/master.idx").
		Return(nil, errors.New("fetcher: unexpected status 404"))
	f.On("Download", mock.Anything, testIndexBase+"/2025/QTR1/master.idx").
		Return(body(masterIndex(
			"1067983|BERKSHIRE HATHAWAY INC|13F-HR|2025-02-14|a",
			"1067983|BERKSHIRE HATHAWAY INC|13F-HR/A|2025-02-20|b",
			"320193|Apple Inc.|10-K|2025-01-31|c",
			"102909|VANGUARD GROUP INC|13F-HR|2025-02-13|d",
		)), nil)
	f.On("Download", mock.Anything, testIndexBase+"/2024/QTR4/master.idx").
		Return(body(masterIndex("93751|STATE STREET CORP|13F-HR/A|2024-11-14|e")), nil)

	insts, err := CollectFilers(context.Background(), f, now, FilerOptions{Quarters: 3, Limit: 10})
	require.NoError(t, err)
	require.Len(t, insts, 3)

	assert.Equal(t, "BERKSHIRE HATHAWAY INC", insts[0].Name)
	assert.Equal(t, "0001067983", insts[0].ExternalID)
	assert.Equal(t, string(model.SourceForeignBulk), insts[0].Source)
	assert.Equal(t, "US", insts[0].CountryCode)
	assert.True(t, insts[0].Active)
	assert.Equal(t, "STATE STREET CORP", insts[1].Name)
	assert.Equal(t, "0000102909", insts[2].ExternalID)
}

func TestCollectFilers_StopsAtLimit(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f := mocks.NewMockFetcher(t)
	f.On("Download", mock.Anything, testIndexBase+"/2025/QTR2/master.idx").
		Return(body(masterIndex(
			"3|C FUND|13F-HR|2025-04-01|a",
			"1|A FUND|13F-HR|2025-04-02|b",
			"2|B FUND|13F-HR|2025-04-03|c",
		)), nil)

	insts, err := CollectFilers(context.Background(), f, now, FilerOptions{Quarters: 4, Limit: 2})
	require.NoError(t, err)
	require.Len(t, insts, 2)
	assert.Equal(t, "A FUND", insts[0].Name)
	assert.Equal(t, "C FUND", insts[1].Name)
}

func TestWriteFilersCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFilersCSV(&buf, []model.Institution{
		{Name: "Smith, Jones & Co", Source: "FOREIGN_BULK", CountryCode: "US", ExternalID: "0000000001"},
	})
	require.NoError(t, err)
	assert.Equal(t, "name,source,country_code,external_id\n\"Smith, Jones & Co\",FOREIGN_BULK,US,0000000001\n", buf.String())
}
