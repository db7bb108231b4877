package dart

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/holdings-etl/internal/fetcher"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type listPage struct {
	status int // HTTP status; 0 means 200
	body   map[string]any
}

// fakeDart serves list.json pages keyed by pblntf_detail_ty and page_no, and
// stock reports keyed by corp_code.
type fakeDart struct {
	t *testing.T

	mu     sync.Mutex
	pages  map[string]map[int]listPage
	major  map[string]any
	exec   map[string]any
	broken map[string]string // corp code -> report path answering 502
	calls  map[string]int    // list calls per detail type
	keys   []string
}

func newFakeDart(t *testing.T) *fakeDart {
	return &fakeDart{
		t:      t,
		pages:  make(map[string]map[int]listPage),
		major:  make(map[string]any),
		exec:   make(map[string]any),
		broken: make(map[string]string),
		calls:  make(map[string]int),
	}
}

func (f *fakeDart) page(detail string, no int, p listPage) {
	if f.pages[detail] == nil {
		f.pages[detail] = make(map[int]listPage)
	}
	f.pages[detail][no] = p
}

func (f *fakeDart) listCalls(detail string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[detail]
}

func (f *fakeDart) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.mu.Lock()
	f.keys = append(f.keys, q.Get("crtfc_key"))
	f.mu.Unlock()

	switch r.URL.Path {
	case "/api/list.json":
		detail := q.Get("pblntf_detail_ty")
		no, _ := strconv.Atoi(q.Get("page_no"))
		f.mu.Lock()
		f.calls[detail]++
		p, ok := f.pages[detail][no]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, map[string]any{"status": "013", "message": "조회된 데이타가 없습니다."})
			return
		}
		if p.status != 0 {
			w.WriteHeader(p.status)
			return
		}
		writeJSON(w, p.body)
	case "/api/majorstock.json", "/api/elestock.json":
		corp := q.Get("corp_code")
		if f.broken[corp] == r.URL.Path {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		src := f.major
		if r.URL.Path == "/api/elestock.json" {
			src = f.exec
		}
		body, ok := src[corp]
		if !ok {
			body = map[string]any{"status": "013", "message": "no data"}
		}
		writeJSON(w, body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func listBody(items ...map[string]any) map[string]any {
	list := make([]any, len(items))
	for i, it := range items {
		list[i] = it
	}
	return map[string]any{"status": "000", "message": "정상", "list": list}
}

func item(rceptNo, corpCode, corpName, rceptDt string) map[string]any {
	return map[string]any{
		"corp_code": corpCode,
		"corp_name": corpName,
		"report_nm": "주식등의대량보유상황보고서",
		"rcept_no":  rceptNo,
		"rcept_dt":  rceptDt,
	}
}

// start returns a client pointed at the fake server.
func (f *fakeDart) start(pageSize int) *Client {
	srv := httptest.NewServer(f)
	f.t.Cleanup(srv.Close)

	fe := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:      5 * time.Second,
		MaxRetries:   2,
		BaseBackoff:  time.Millisecond,
		RateLimiters: map[string]*fetcher.AdaptiveLimiter{},
	})
	return NewClient(fe, "test-key", srv.URL+"/api", pageSize)
}

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}
