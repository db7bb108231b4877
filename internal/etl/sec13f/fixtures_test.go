package sec13f

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const (
	testListingURL = "https://www.sec.gov/data-research/sec-markets-data/form-13f-data-sets"
	testBaseURL    = "https://www.sec.gov"
	testHref       = "/files/structureddata/data/form-13f-data-sets/01dec2023-29feb2024_form13f.zip"
	testArchiveURL = "https://www.sec.gov" + testHref
)

func tsv(lines ...[]string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(strings.Join(l, "\t"))
		b.WriteString("\r\n")
	}
	return b.String()
}

var (
	submissionTSV = tsv(
		[]string{"ACCESSION_NUMBER", "FILING_DATE", "SUBMISSIONTYPE", "CIK", "PERIODOFREPORT"},
		[]string{"0000950123-24-000001", "14-FEB-2024", "13F-HR", "0001001", "31-DEC-2023"},
		[]string{"0000950123-24-000002", "13-FEB-2024", "13F-HR", "0001002", "31-DEC-2023"},
	)
	// The second accession has no cover page, so no institution.
	coverTSV = tsv(
		[]string{"ACCESSION_NUMBER", "REPORTCALENDARORQUARTER", "FILINGMANAGER_NAME"},
		[]string{"0000950123-24-000001", "31-DEC-2023", "Alpha Capital LLC"},
	)
	infoHeader = []string{
		"ACCESSION_NUMBER", "INFOTABLE_SK", "NAMEOFISSUER", "TITLEOFCLASS", "CUSIP", "VALUE",
		"SSHPRNAMT", "SSHPRNAMTTYPE", "PUTCALL", "INVESTMENTDISCRETION", "OTHERMANAGER",
		"VOTING_AUTH_SOLE", "VOTING_AUTH_SHARED", "VOTING_AUTH_NONE",
	}
	infoTSV = tsv(
		infoHeader,
		[]string{"0000950123-24-000001", "1", "APPLE INC", "COM", "037833100", "1500", "100", "SH", "", "SOLE", "", "100", "0", "0"},
		[]string{"0000950123-24-000001", "2", "\"MICROSOFT CORP", "COM", "594918104", "2,000", "50", "SH", "", "SOLE", "", "50", "0", "0"},
		[]string{"0000950123-24-000001", "3", "SPDR S&P 500", "TR UNIT", "78462F103", "300", "10", "SH", "Put", "DFND", "", "", "", "10"},
		[]string{"0000950123-24-000002", "1", "TESLA INC", "COM", "88160R101", "700", "5", "SH", "", "SOLE", "", "5", "0", "0"},
		[]string{"0000950123-24-999999", "1", "ORPHAN", "COM", "000000000", "1", "1", "SH", "", "SOLE", "", "1", "0", "0"},
	)
)

// buildZip returns an in-memory archive with the given members.
func buildZip(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func fullArchive(t *testing.T) []byte {
	return buildZip(t, map[string]string{
		"SUBMISSION.tsv":     submissionTSV,
		"COVERPAGE.tsv":      coverTSV,
		"INFOTABLE.tsv":      infoTSV,
		"FORM13F_readme.htm": "<html></html>",
	})
}

func listingPage(hrefs ...string) []byte {
	var b strings.Builder
	b.WriteString("<html><body><table>")
	for _, h := range hrefs {
		b.WriteString(`<tr><td><a href="` + h + `">` + h + `</a></td></tr>`)
	}
	b.WriteString("</table></body></html>")
	return []byte(b.String())
}
