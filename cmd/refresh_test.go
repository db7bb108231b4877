//go:build !integration

package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/holdings-etl/internal/config"
	"github.com/sells-group/holdings-etl/internal/etl"
	"github.com/sells-group/holdings-etl/internal/model"
	"github.com/sells-group/holdings-etl/internal/store"
)

func TestReportResult_OK(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, reportResult(&buf, okResult()))

	var body map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &body))
	assert.Equal(t, "3f2a9c1e-0000-0000-0000-000000000000", body["run_id"])
}

func TestReportResult_Error(t *testing.T) {
	res := okResult()
	res.Result = etl.Outcome{Status: model.EtlRunError, Message: "dart: api key is not set"}

	var buf bytes.Buffer
	err := reportResult(&buf, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dart: api key is not set")
	assert.Contains(t, buf.String(), `"status": "error"`)
}

func testArchive(t *testing.T) []byte {
	t.Helper()
	members := map[string]string{
		"SUBMISSION.tsv": "ACCESSION_NUMBER\tFILING_DATE\tCIK\tPERIODOFREPORT\n0001-21-1\t14-FEB-2022\t0000102909\t31-DEC-2021\n",
		"COVERPAGE.tsv":  "ACCESSION_NUMBER\tFILINGMANAGER_NAME\n0001-21-1\tVANGUARD GROUP INC\n",
		"INFOTABLE.tsv":  "ACCESSION_NUMBER\tNAMEOFISSUER\tCUSIP\tVALUE\tSSHPRNAMT\n0001-21-1\tAPPLE INC\t037833100\t2500\t17\n",
	}
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

// TestNewRunner_EndToEnd drives the wired runner against a fake OpenDART
// and SEC host with an in-memory store.
func TestNewRunner_EndToEnd(t *testing.T) {
	archive := testArchive(t)
	var (
		mu         sync.Mutex
		userAgents []string
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/list.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("crtfc_key"))
		_, _ = w.Write([]byte(`{"status":"013","message":"no data"}`))
	})
	mux.HandleFunc("/listing", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		userAgents = append(userAgents, r.UserAgent())
		mu.Unlock()
		_, _ = w.Write([]byte(`<html><a href="/files/2021q4_form13f.zip">Q4 2021</a></html>`))
	})
	mux.HandleFunc("/files/2021q4_form13f.zip", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &config.Config{}
	c.Dart.APIKey = "test-key"
	c.Dart.BaseURL = srv.URL + "/api"
	c.Dart.PageSize = 100
	c.SEC.ListingURL = srv.URL + "/listing"
	c.SEC.BaseURL = srv.URL
	c.SEC.UserAgent = "holdings test@example.com"
	c.SEC.Download = true
	c.SEC.ValueCutoffYear = 2022
	c.SEC.BatchSize = 500
	c.SEC.MaxArchiveMB = 1

	st := store.NewMemory()
	res, err := newRunner(c, newFetcher(c), st).Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.OK(), res.Result.Message)

	holdings := st.Holdings()
	require.Len(t, holdings, 1)
	assert.Equal(t, "2500000", holdings[0].Value.Decimal.String())
	assert.Equal(t, "17", holdings[0].Shares.Decimal.String())
	mu.Lock()
	assert.Equal(t, []string{"holdings test@example.com"}, userAgents)
	mu.Unlock()

	for _, key := range []string{
		model.StateLastDomesticRunAt,
		model.StateLastSEC13FURL,
		model.StateLastSEC13FLabel,
		model.StateLastSuccessfulRunAt,
	} {
		_, ok, err := st.GetState(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}

	// A second run sees the same data set and leaves holdings untouched.
	res, err = newRunner(c, newFetcher(c), st).Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.OK())
	require.NotNil(t, res.Foreign)
	assert.Equal(t, "dataset already processed", res.Foreign.Skipped)
	assert.Len(t, st.Holdings(), 1)
}
