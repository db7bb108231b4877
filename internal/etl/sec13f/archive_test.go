package sec13f

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/holdings-etl/internal/fetcher"
)

func TestOpenArchive_IndexesTables(t *testing.T) {
	a, err := OpenArchive(context.Background(), fullArchive(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"0000950123-24-000001", "0000950123-24-000002"}, a.Accessions)
	assert.Len(t, a.Submissions, 2)
	assert.Len(t, a.Covers, 1)
	assert.Equal(t, "0001001", a.Submissions["0000950123-24-000001"].Get("CIK"))
	assert.Equal(t, "Alpha Capital LLC", a.Covers["0000950123-24-000001"].Get("FILINGMANAGER_NAME"))
}

func TestOpenArchive_NestedMembers(t *testing.T) {
	data := buildZip(t, map[string]string{
		"2024q1/submission.TSV": submissionTSV,
		"2024q1/coverpage.tsv":  coverTSV,
		"2024q1/infotable.tsv":  infoTSV,
	})
	a, err := OpenArchive(context.Background(), data)
	require.NoError(t, err)
	assert.Len(t, a.Accessions, 2)
}

func TestOpenArchive_MissingMember(t *testing.T) {
	data := buildZip(t, map[string]string{
		"SUBMISSION.tsv": submissionTSV,
		"INFOTABLE.tsv":  infoTSV,
	})
	_, err := OpenArchive(context.Background(), data)
	assert.ErrorIs(t, err, ErrIncompleteArchive)
}

func TestOpenArchive_NotAZip(t *testing.T) {
	_, err := OpenArchive(context.Background(), []byte("<html>maintenance</html>"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrIncompleteArchive))
}

func TestEachInfoRow_StreamsRawFields(t *testing.T) {
	a, err := OpenArchive(context.Background(), fullArchive(t))
	require.NoError(t, err)

	var issuers []string
	err = a.EachInfoRow(context.Background(), func(r fetcher.Record) error {
		issuers = append(issuers, r.Get("NAMEOFISSUER"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"APPLE INC", "\"MICROSOFT CORP", "SPDR S&P 500", "TESLA INC", "ORPHAN"}, issuers)
}

func TestEachInfoRow_StopsOnCallbackError(t *testing.T) {
	a, err := OpenArchive(context.Background(), fullArchive(t))
	require.NoError(t, err)

	boom := errors.New("boom")
	calls := 0
	err = a.EachInfoRow(context.Background(), func(fetcher.Record) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}
