package form

import (
	"io"
	"strconv"

	"github.com/badu/streamform/hdr"
)

// CreateFormParser builds a FormParser from a headers map, reading
// Content-Type case-insensitively. A missing Content-Type is a
// *ParserError.
func CreateFormParser(headers hdr.Header, onField FieldHandler, onFile FileHandler, config Config) (*FormParser, error) {
	ct := headers.Get(hdr.ContentType)
	if ct == "" {
		return nil, &ParserError{Reason: "missing Content-Type header"}
	}
	return NewFormParser([]byte(ct), onField, onFile, Options{Config: config})
}

// ParseForm drives r through a FormParser built from headers, in
// fixed-size chunks. If Content-Length is present, at most that many
// bytes are ever read from r — a stream with a longer body than
// declared is truncated at the declared length, which truncates the
// final Field or File's size to match.
func ParseForm(headers hdr.Header, r io.Reader, onField FieldHandler, onFile FileHandler, config Config) error {
	p, err := CreateFormParser(headers, onField, onFile, config)
	if err != nil {
		return err
	}

	limit := int64(-1)
	if cl := headers.Get(hdr.ContentLength); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil {
			return &ParserError{Reason: "invalid Content-Length: " + cl}
		}
		limit = n
	}

	buf := make([]byte, 32*1024)
	var read int64
	for {
		chunk := buf
		if limit >= 0 {
			remaining := limit - read
			if remaining <= 0 {
				break
			}
			if int64(len(chunk)) > remaining {
				chunk = chunk[:remaining]
			}
		}

		n, rerr := r.Read(chunk)
		if n > 0 {
			read += int64(n)
			if _, werr := p.Write(chunk[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	return p.Finalize()
}
