// Package sec13f ingests the quarterly SEC Form 13F bulk data sets.
package sec13f

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-etl/internal/fetcher"
)

// Dataset identifies one published archive. Label is the href exactly as it
// appears on the listing page.
type Dataset struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// Locate fetches the listing page and returns the first 13F archive link, or
// nil when the page lists none. Relative links resolve against baseURL.
func Locate(ctx context.Context, f fetcher.Fetcher, listingURL, baseURL string) (*Dataset, error) {
	page, err := f.Fetch(ctx, listingURL, 0)
	if err != nil {
		return nil, eris.Wrap(err, "sec13f: fetch listing")
	}
	return FindDataset(page, baseURL)
}

// FindDataset scans listing HTML for the first anchor whose href ends in
// .zip and mentions 13f, both case-insensitively.
func FindDataset(page []byte, baseURL string) (*Dataset, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, eris.Wrap(err, "sec13f: parse listing")
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, eris.Wrap(err, "sec13f: parse base url")
	}

	var found *Dataset
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		lower := strings.ToLower(href)
		if !strings.HasSuffix(lower, ".zip") || !strings.Contains(lower, "13f") {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		found = &Dataset{URL: base.ResolveReference(ref).String(), Label: href}
		return false
	})
	return found, nil
}
