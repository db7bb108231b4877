package fetcher

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// EachXML decodes every element named element into a T and passes it to fn,
// stopping at the first error fn returns. Documents declaring a non-UTF-8
// charset such as EUC-KR are transcoded.
func EachXML[T any](ctx context.Context, r io.Reader, element string, fn func(T) error) error {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "xml: context cancelled")
		}

		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "xml: read token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != element {
			continue
		}

		var item T
		if err := dec.DecodeElement(&item, &se); err != nil {
			return eris.Wrapf(err, "xml: decode <%s>", element)
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}
