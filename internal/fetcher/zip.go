package fetcher

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// OpenZIP opens an in-memory ZIP archive.
func OpenZIP(data []byte) (*zip.Reader, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	return r, nil
}

// FindMember returns the first regular file whose name ends with suffix,
// compared case-insensitively, or nil when none does. Directory prefixes
// inside the archive are ignored.
func FindMember(r *zip.Reader, suffix string) *zip.File {
	want := strings.ToUpper(suffix)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToUpper(f.Name), want) {
			return f
		}
	}
	return nil
}

// ReadMember reads a whole archive member into memory.
func ReadMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: read entry %s", f.Name)
	}
	return data, nil
}
