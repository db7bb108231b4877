package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads upstream documents. Implementations apply per-host rate
// limits and retry transient failures; callers see only terminal errors.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// Fetch downloads the URL into memory, failing when the body exceeds
	// maxBytes. A maxBytes of zero applies the fetcher's default limit.
	Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}
