package querystring

import "fmt"

type state int

const (
	beforeField state = iota
	fieldData
)

// Parser is a streaming "k=v&k=v" decoder. Bytes are fed through
// Write in arbitrarily sized chunks; Finalize flushes any field still
// in progress. A Parser is not safe for concurrent use.
type Parser struct {
	callbacks Callbacks
	strict    bool
	maxSize   int64 // 0 means unbounded

	state     state
	offset    int64 // total raw bytes consumed across the parser's lifetime
	started   bool  // on_field_start fired for the field currently in progress
	hasName   bool  // the field in progress has seen at least one name byte
	nameStart int64 // offset of the first name byte of the field in progress
}

// NewParser constructs a Parser. strict enables the two extra
// validity checks from the format's strict mode: consecutive
// separators, and a field with no '=' before the next separator.
// maxSize caps the total raw input bytes the parser will ever
// process; once reached, Write stops consuming input partway through
// a call and reports the reduced count, and every later Write is a
// no-op that reports 0 consumed. 0 means unbounded. A negative
// maxSize is a configuration error.
func NewParser(callbacks Callbacks, strict bool, maxSize int64) (*Parser, error) {
	if maxSize < 0 {
		return nil, fmt.Errorf("querystring: max_size must be >= 0, got %d", maxSize)
	}
	return &Parser{
		callbacks: callbacks,
		strict:    strict,
		maxSize:   maxSize,
		state:     beforeField,
	}, nil
}

// Write decodes buf and fires callbacks as field boundaries and
// content are recognized. Once max_size raw bytes have been consumed
// across the parser's lifetime, Write stops partway through buf and
// reports only the bytes it actually consumed; the caller must not
// feed the unconsumed remainder. It returns a *ParseError, unrecovered,
// if strict mode rejects the input; the parser must not be reused
// after an error.
func (p *Parser) Write(buf []byte) (int, error) {
	base := p.offset
	segStart := -1

	flush := func(end int) {
		if segStart >= 0 {
			p.emit(buf, segStart, end)
			segStart = -1
		}
	}

	limit := len(buf)
	if p.maxSize > 0 {
		remaining := p.maxSize - p.offset
		if remaining <= 0 {
			return 0, nil
		}
		if int64(limit) > remaining {
			limit = int(remaining)
		}
	}

	i := 0
	for ; i < limit; i++ {
		b := buf[i]
		switch p.state {
		case beforeField:
			switch b {
			case '=':
				flush(i)
				p.ensureStarted()
				p.state = fieldData
			case '&', ';':
				flush(i)
				if p.hasName {
					if p.strict {
						return 0, &ParseError{Offset: p.nameStart, Reason: "field has no '=' before separator"}
					}
					p.endField()
				} else if p.strict {
					return 0, &ParseError{Offset: base + int64(i), Reason: "consecutive separators"}
				}
				// lax mode, empty field between separators: skip silently.
			default:
				p.ensureStarted()
				if segStart < 0 {
					segStart = i
				}
				if !p.hasName {
					p.nameStart = base + int64(i)
				}
				p.hasName = true
			}
		case fieldData:
			switch b {
			case '&', ';':
				flush(i)
				p.endField()
				p.state = beforeField
			default:
				if segStart < 0 {
					segStart = i
				}
			}
		}
	}
	flush(i)
	p.offset += int64(i)
	return i, nil
}

// Finalize flushes a field left in progress at end of input —
// including a trailing valueless key, which is terminated here rather
// than by a separator.
func (p *Parser) Finalize() error {
	if p.started {
		p.endField()
	}
	return nil
}

// Close is a no-op; Parser owns no resources of its own. It exists so
// callers driving several body parser types through one interface
// don't need to special-case querystring.
func (p *Parser) Close() error {
	return nil
}

func (p *Parser) ensureStarted() {
	if p.started {
		return
	}
	p.started = true
	if p.callbacks.OnFieldStart != nil {
		p.callbacks.OnFieldStart()
	}
}

func (p *Parser) endField() {
	if p.callbacks.OnFieldEnd != nil {
		p.callbacks.OnFieldEnd()
	}
	p.started = false
	p.hasName = false
}

// emit delivers buf[start:end] to whichever callback matches the
// state that produced it. The max_size budget is already enforced by
// Write's limit on how much of buf is scanned, so emit just routes.
func (p *Parser) emit(buf []byte, start, end int) {
	if start >= end {
		return
	}
	switch p.state {
	case beforeField:
		if p.callbacks.OnFieldName != nil {
			p.callbacks.OnFieldName(buf, start, end)
		}
	case fieldData:
		if p.callbacks.OnFieldData != nil {
			p.callbacks.OnFieldData(buf, start, end)
		}
	}
}
