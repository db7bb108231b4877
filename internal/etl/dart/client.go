// Package dart ingests shareholding and periodic disclosures from the
// OpenDART API.
package dart

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-etl/internal/fetcher"
)

// StatusOK is the OpenDART success status code.
const StatusOK = "000"

// Kind groups list categories by how their filings are processed.
type Kind string

const (
	KindShareholding Kind = "shareholding"
	KindPeriodic     Kind = "periodic"
)

// Category is one list.json query configuration.
type Category struct {
	Kind   Kind
	Type   string // pblntf_ty
	Detail string // pblntf_detail_ty
}

// Categories are queried in this order on every run.
var Categories = []Category{
	{Kind: KindShareholding, Type: "D", Detail: "D001"},
	{Kind: KindShareholding, Type: "D", Detail: "D002"},
	{Kind: KindPeriodic, Type: "A", Detail: "A001"},
	{Kind: KindPeriodic, Type: "A", Detail: "A002"},
	{Kind: KindPeriodic, Type: "A", Detail: "A003"},
}

// Filing is one disclosure returned by list.json.
type Filing struct {
	CorpCode   string `json:"corp_code"`
	CorpName   string `json:"corp_name"`
	ReportName string `json:"report_nm"`
	RceptNo    string `json:"rcept_no"`
	RceptDt    string `json:"rcept_dt"`
	Kind       Kind   `json:"kind"`
}

// text accepts a JSON string, number or null.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	*t = text(b)
	return nil
}

type listResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	List    []struct {
		CorpCode   text `json:"corp_code"`
		CorpName   text `json:"corp_name"`
		ReportName text `json:"report_nm"`
		RceptNo    text `json:"rcept_no"`
		RceptDt    text `json:"rcept_dt"`
	} `json:"list"`
}

// StockReport is a decoded majorstock.json or elestock.json response.
type StockReport struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	List    []map[string]text `json:"list"`
}

// Client calls the OpenDART endpoints.
type Client struct {
	fetch    fetcher.Fetcher
	apiKey   string
	baseURL  string
	pageSize int
	log      *zap.Logger
}

// NewClient creates a Client. pageSize < 1 falls back to 100.
func NewClient(f fetcher.Fetcher, apiKey, baseURL string, pageSize int) *Client {
	if pageSize < 1 {
		pageSize = 100
	}
	return &Client{
		fetch:    f,
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
		log:      zap.L().With(zap.String("component", "dart.client")),
	}
}

func (c *Client) endpoint(name string, params url.Values) string {
	params.Set("crtfc_key", c.apiKey)
	return c.baseURL + "/" + name + "?" + params.Encode()
}

// ListFilings pages through list.json for every category over [bgn, end]
// (YYYYMMDD). A failed page or a non-success status ends that category
// only. Receipt numbers are unique within each category.
func (c *Client) ListFilings(ctx context.Context, bgn, end string) ([]Filing, error) {
	var out []Filing
	for _, cat := range Categories {
		got, err := c.listCategory(ctx, cat, bgn, end)
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
	}
	return out, nil
}

func (c *Client) listCategory(ctx context.Context, cat Category, bgn, end string) ([]Filing, error) {
	log := c.log.With(zap.String("pblntf_detail_ty", cat.Detail))
	seen := make(map[string]bool)

	var out []Filing
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("bgn_de", bgn)
		params.Set("end_de", end)
		params.Set("page_no", strconv.Itoa(page))
		params.Set("page_count", strconv.Itoa(c.pageSize))
		params.Set("pblntf_ty", cat.Type)
		params.Set("pblntf_detail_ty", cat.Detail)

		data, err := c.fetch.Fetch(ctx, c.endpoint("list.json", params), 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "dart: list filings")
			}
			log.Warn("list page failed, skipping rest of category", zap.Int("page", page), zap.Error(err))
			return out, nil
		}

		resp, err := fetcher.DecodeJSONBytes[listResponse](data)
		if err != nil {
			log.Warn("list page undecodable, skipping rest of category", zap.Int("page", page), zap.Error(err))
			return out, nil
		}
		if resp.Status != StatusOK {
			// 013 means no data for the window.
			log.Debug("list status not ok", zap.String("status", resp.Status), zap.String("message", resp.Message))
			return out, nil
		}

		for _, item := range resp.List {
			no := string(item.RceptNo)
			if no == "" || seen[no] {
				continue
			}
			seen[no] = true
			out = append(out, Filing{
				CorpCode:   string(item.CorpCode),
				CorpName:   string(item.CorpName),
				ReportName: string(item.ReportName),
				RceptNo:    no,
				RceptDt:    string(item.RceptDt),
				Kind:       cat.Kind,
			})
		}

		if len(resp.List) < c.pageSize {
			return out, nil
		}
	}
}

// MajorStock fetches majorstock.json for a company and returns the raw body
// alongside its decoded form.
func (c *Client) MajorStock(ctx context.Context, corpCode string) ([]byte, *StockReport, error) {
	return c.stockReport(ctx, "majorstock.json", corpCode)
}

// ExecStock fetches elestock.json for a company.
func (c *Client) ExecStock(ctx context.Context, corpCode string) ([]byte, *StockReport, error) {
	return c.stockReport(ctx, "elestock.json", corpCode)
}

func (c *Client) stockReport(ctx context.Context, name, corpCode string) ([]byte, *StockReport, error) {
	params := url.Values{}
	params.Set("corp_code", corpCode)

	data, err := c.fetch.Fetch(ctx, c.endpoint(name, params), 0)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "dart: fetch %s for %s", name, corpCode)
	}
	rep, err := fetcher.DecodeJSONBytes[StockReport](data)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "dart: decode %s for %s", name, corpCode)
	}
	return data, rep, nil
}
