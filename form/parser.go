// Package form is the top-level facade: given a Content-Type and a
// pair of field/file callbacks, it dispatches to whichever of
// multipart, querystring or octetstream actually understands the
// body, and translates that parser's low-level callbacks into Field
// and formfile.File values.
package form

import (
	"fmt"
	"strings"

	"github.com/badu/streamform/decoder"
	"github.com/badu/streamform/formfile"
	"github.com/badu/streamform/multipart"
	"github.com/badu/streamform/octetstream"
	"github.com/badu/streamform/param"
	"github.com/badu/streamform/querystring"
)

const (
	headerContentDisposition      = "content-disposition"
	headerContentTransferEncoding = "content-transfer-encoding"
)

// FieldHandler receives a completed form field.
type FieldHandler func(name string, field *Field)

// FileHandler receives a completed uploaded file.
type FileHandler func(name string, file *formfile.File)

// Options configures a FormParser beyond the Content-Type itself.
type Options struct {
	// Boundary overrides the boundary parsed out of the Content-Type
	// parameters. Required (one way or the other) for
	// multipart/form-data.
	Boundary []byte
	// FileName names the single File created for an
	// application/octet-stream body.
	FileName string
	Config   Config
	// OnEnd fires once, after Finalize succeeds.
	OnEnd func()
}

type backend interface {
	Write(p []byte) (int, error)
	Finalize() error
	Close() error
}

// FormParser drives a byte stream through the format-specific parser
// selected by Content-Type, emitting Fields and Files as parts
// complete. A FormParser is not safe for concurrent use.
type FormParser struct {
	onField FieldHandler
	onFile  FileHandler
	onEnd   func()
	config  Config

	backend    backend
	pendingErr error

	// multipart per-part state.
	headerName  []byte
	headerValue []byte
	headers     map[string]string
	partName    string
	curSink     decoder.Sink
	curField    *Field
	curFile     *formfile.File

	// querystring per-field state.
	qsName  []byte
	qsValue []byte

	// octet-stream state.
	streamName string
}

// NewFormParser constructs a FormParser for the given Content-Type
// value (main type plus parameters, e.g.
// `multipart/form-data; boundary=X`). onField and onFile may be nil.
func NewFormParser(contentType []byte, onField FieldHandler, onFile FileHandler, opts Options) (*FormParser, error) {
	main, params := param.ParseOptionsHeader(contentType)

	p := &FormParser{
		onField: onField,
		onFile:  onFile,
		onEnd:   opts.OnEnd,
		config:  opts.Config,
	}

	switch strings.ToLower(string(main)) {
	case "multipart/form-data":
		boundary := opts.Boundary
		if len(boundary) == 0 {
			boundary = params["boundary"]
		}
		if len(boundary) == 0 {
			return nil, &ParserError{Reason: "multipart/form-data requires a boundary"}
		}
		b, err := multipart.NewParser(boundary, p.multipartCallbacks(), p.config.MaxBodySize)
		if err != nil {
			return nil, err
		}
		p.backend = b

	case "application/x-www-form-urlencoded", "application/x-url-encoded":
		b, err := querystring.NewParser(p.querystringCallbacks(), false, p.config.MaxBodySize)
		if err != nil {
			return nil, err
		}
		p.backend = b

	case "application/octet-stream":
		p.streamName = opts.FileName
		b, err := octetstream.NewParser(p.octetStreamCallbacks(), p.config.MaxBodySize)
		if err != nil {
			return nil, err
		}
		p.backend = b

	default:
		return nil, &ParserError{Reason: fmt.Sprintf("unsupported content type %q", string(main))}
	}

	return p, nil
}

// Write feeds buf to the active backend parser. It returns the number
// of bytes the backend consumed, which can be less than len(buf) if a
// max-size cap was hit. A configuration or dispatch problem raised
// from inside a callback (an unsupported Content-Transfer-Encoding,
// an unwritable UPLOAD_DIR) surfaces here even though the backend's
// own Write succeeded, since the backend's callback signature has no
// room for an error return.
func (p *FormParser) Write(buf []byte) (int, error) {
	n, err := p.backend.Write(buf)
	if err != nil {
		return n, err
	}
	if p.pendingErr != nil {
		err, p.pendingErr = p.pendingErr, nil
		return n, err
	}
	return n, nil
}

// Finalize flushes the backend parser, then fires OnEnd if the whole
// body parsed cleanly.
func (p *FormParser) Finalize() error {
	if err := p.backend.Finalize(); err != nil {
		return err
	}
	if p.pendingErr != nil {
		err := p.pendingErr
		p.pendingErr = nil
		return err
	}
	if p.onEnd != nil {
		p.onEnd()
	}
	return nil
}

// Close delegates to the backend parser's own Close.
func (p *FormParser) Close() error {
	return p.backend.Close()
}

func (p *FormParser) multipartCallbacks() multipart.Callbacks {
	return multipart.Callbacks{
		OnPartBegin: func() {
			p.headers = make(map[string]string)
			p.headerName = nil
			p.headerValue = nil
			p.curSink = nil
			p.curField = nil
			p.curFile = nil
			p.partName = ""
		},
		OnHeaderField: func(buf []byte, start, end int) {
			p.headerName = append(p.headerName, buf[start:end]...)
		},
		OnHeaderValue: func(buf []byte, start, end int) {
			p.headerValue = append(p.headerValue, buf[start:end]...)
		},
		OnHeaderEnd: func() {
			key := strings.ToLower(string(p.headerName))
			p.headers[key] = string(p.headerValue)
			p.headerName = nil
			p.headerValue = nil
		},
		OnHeadersFinished: func() {
			if err := p.beginPart(); err != nil {
				p.pendingErr = err
			}
		},
		OnPartData: func(buf []byte, start, end int) {
			if p.curSink == nil {
				return
			}
			if _, err := p.curSink.Write(buf[start:end]); err != nil {
				p.pendingErr = err
			}
		},
		OnPartEnd: func() {
			if p.curSink == nil {
				return
			}
			if err := p.curSink.Finalize(); err != nil {
				p.pendingErr = err
				return
			}
			switch {
			case p.curFile != nil && p.onFile != nil:
				p.onFile(p.partName, p.curFile)
			case p.curField != nil && p.onField != nil:
				p.onField(p.partName, p.curField)
			}
		},
	}
}

// beginPart parses the accumulated headers for the part that just
// finished its header block, creates the matching Field or File, and
// wraps it in a transfer-encoding decoder if one was declared.
func (p *FormParser) beginPart() error {
	_, params := param.ParseOptionsHeader([]byte(p.headers[headerContentDisposition]))
	name := string(params["name"])
	filename, hasFile := params["filename"]

	var sink decoder.Sink
	if hasFile {
		file := formfile.NewFile(string(filename), p.config.fileConfig())
		p.curFile = file
		sink = file
	} else {
		field := newField(name)
		p.curField = field
		sink = field
	}
	p.partName = name

	cte := strings.ToLower(strings.TrimSpace(p.headers[headerContentTransferEncoding]))
	switch cte {
	case "", "7bit", "8bit", "binary":
		// identity; no wrapping needed.
	case "base64":
		sink = decoder.NewBase64Decoder(sink)
	case "quoted-printable":
		sink = decoder.NewQuotedPrintableDecoder(sink)
	default:
		if p.config.UploadErrorOnBadCTE {
			return &ParserError{Reason: fmt.Sprintf("unsupported content-transfer-encoding %q", cte)}
		}
	}
	p.curSink = sink
	return nil
}

func (p *FormParser) querystringCallbacks() querystring.Callbacks {
	return querystring.Callbacks{
		OnFieldStart: func() {
			p.qsName = nil
			p.qsValue = nil
		},
		OnFieldName: func(buf []byte, start, end int) {
			p.qsName = append(p.qsName, buf[start:end]...)
		},
		OnFieldData: func(buf []byte, start, end int) {
			p.qsValue = append(p.qsValue, buf[start:end]...)
		},
		OnFieldEnd: func() {
			field := newField(string(p.qsName))
			field.value = append(field.value, p.qsValue...)
			if p.onField != nil {
				p.onField(field.name, field)
			}
		},
	}
}

func (p *FormParser) octetStreamCallbacks() octetstream.Callbacks {
	return octetstream.Callbacks{
		OnStart: func() {
			p.curFile = formfile.NewFile(p.streamName, p.config.fileConfig())
		},
		OnData: func(buf []byte, start, end int) {
			if p.curFile == nil {
				return
			}
			if _, err := p.curFile.Write(buf[start:end]); err != nil {
				p.pendingErr = err
			}
		},
		OnEnd: func() {
			if p.curFile == nil {
				p.curFile = formfile.NewFile(p.streamName, p.config.fileConfig())
			}
			if err := p.curFile.Finalize(); err != nil {
				p.pendingErr = err
				return
			}
			if p.onFile != nil {
				p.onFile(p.streamName, p.curFile)
			}
		},
	}
}
