package multipart

import "fmt"

type parserState int

const (
	stateStart parserState = iota
	stateStartBoundary
	// stateBoundarySuffix is shared plumbing, not one of the named
	// states: after either the first boundary (stateStartBoundary) or a
	// later one found mid-body (statePartData) matches, both paths land
	// here to decide whether "--" (terminator) or CRLF (next part)
	// follows.
	stateBoundarySuffix
	stateHeaderFieldStart
	stateHeaderField
	stateHeaderValueStart
	stateHeaderValue
	stateHeaderValueAlmostDone
	stateHeadersAlmostDone
	statePartDataStart
	statePartData
	stateEnd
)

// Parser is a streaming multipart/form-data boundary scanner. Bytes
// are fed through Write in arbitrarily sized chunks, including one at
// a time; Finalize checks that the terminating boundary was reached.
// A Parser is not safe for concurrent use.
type Parser struct {
	callbacks Callbacks
	maxSize   int64 // 0 means unbounded; caps total raw bytes ever processed

	dashBoundary   []byte // "--" + boundary
	nlDashBoundary []byte // "\r\n" + dashBoundary

	state  parserState
	offset int64 // total raw bytes consumed across the parser's lifetime

	startCR     int // stateStart only: 0 undecided, 1 saw leading CR
	boundaryPos int // stateStartBoundary: match index into dashBoundary
	suffixPos   int // stateBoundarySuffix: 0 undecided, 1 saw '-', 3 saw '\r'
	matchLen    int // statePartData: bytes of nlDashBoundary matched so far
}

// NewParser constructs a Parser for the given boundary (without the
// leading "--"). maxSize caps the total raw input bytes the parser
// will ever process; once reached, Write stops consuming input
// partway through a call and reports the reduced count. 0 means
// unbounded; a negative maxSize is a configuration error.
func NewParser(boundary []byte, callbacks Callbacks, maxSize int64) (*Parser, error) {
	if maxSize < 0 {
		return nil, fmt.Errorf("multipart: max_size must be >= 0, got %d", maxSize)
	}

	dashBoundary := make([]byte, 0, len(boundary)+2)
	dashBoundary = append(dashBoundary, '-', '-')
	dashBoundary = append(dashBoundary, boundary...)

	nlDashBoundary := make([]byte, 0, len(dashBoundary)+2)
	nlDashBoundary = append(nlDashBoundary, '\r', '\n')
	nlDashBoundary = append(nlDashBoundary, dashBoundary...)

	return &Parser{
		callbacks:      callbacks,
		maxSize:        maxSize,
		dashBoundary:   dashBoundary,
		nlDashBoundary: nlDashBoundary,
		state:          stateStart,
	}, nil
}

// Write scans buf and fires callbacks as part boundaries, headers and
// body bytes are recognized. Once max_size raw bytes have been
// consumed across the parser's lifetime, Write stops partway through
// buf and reports only the bytes it actually consumed. It returns a
// *ParseError, unrecovered, on malformed input; the parser must not be
// reused after an error.
func (p *Parser) Write(buf []byte) (int, error) {
	base := p.offset
	dataStart := -1 // in-progress PART_DATA body run
	runStart := -1  // in-progress header field/value run

	flushData := func(end int) {
		if dataStart >= 0 && end > dataStart {
			p.emitPartData(buf, dataStart, end)
		}
		dataStart = -1
	}
	flushRun := func(end int) {
		if runStart >= 0 && end > runStart {
			p.emitHeaderRun(buf, runStart, end)
		}
		runStart = -1
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
	for i < limit {
		b := buf[i]

		switch p.state {
		case stateStart:
			if p.startCR == 0 {
				if b == '\r' {
					p.startCR = 1
					i++
					continue
				}
				p.state = stateStartBoundary
				p.boundaryPos = 0
				continue
			}
			if b != '\n' {
				return 0, &ParseError{Offset: base + int64(i), Reason: "leading CR not followed by LF"}
			}
			p.state = stateStartBoundary
			p.boundaryPos = 0
			i++

		case stateStartBoundary:
			if b != p.dashBoundary[p.boundaryPos] {
				return 0, &ParseError{Offset: base + int64(i), Reason: "malformed start boundary"}
			}
			p.boundaryPos++
			i++
			if p.boundaryPos == len(p.dashBoundary) {
				p.boundaryPos = 0
				p.suffixPos = 0
				p.state = stateBoundarySuffix
			}

		case stateBoundarySuffix:
			if err := p.consumeBoundarySuffix(b, base+int64(i)); err != nil {
				return 0, err
			}
			i++

		case stateHeaderFieldStart:
			if b == '\r' {
				p.state = stateHeadersAlmostDone
				i++
				continue
			}
			p.state = stateHeaderField
			continue

		case stateHeaderField:
			if b == ':' {
				flushRun(i)
				p.state = stateHeaderValueStart
				i++
				continue
			}
			if runStart < 0 {
				runStart = i
			}
			i++

		case stateHeaderValueStart:
			if b == ' ' {
				p.state = stateHeaderValue
				i++
				continue
			}
			p.state = stateHeaderValue
			continue

		case stateHeaderValue:
			if b == '\r' {
				flushRun(i)
				p.state = stateHeaderValueAlmostDone
				i++
				continue
			}
			if runStart < 0 {
				runStart = i
			}
			i++

		case stateHeaderValueAlmostDone:
			if b != '\n' {
				return 0, &ParseError{Offset: base + int64(i), Reason: "expected LF after CR in header value"}
			}
			if p.callbacks.OnHeaderEnd != nil {
				p.callbacks.OnHeaderEnd()
			}
			p.state = stateHeaderFieldStart
			i++

		case stateHeadersAlmostDone:
			if b != '\n' {
				return 0, &ParseError{Offset: base + int64(i), Reason: "expected LF after blank header line"}
			}
			if p.callbacks.OnHeadersFinished != nil {
				p.callbacks.OnHeadersFinished()
			}
			p.state = statePartDataStart
			i++

		case statePartDataStart:
			p.state = statePartData
			p.matchLen = 0
			continue

		case statePartData:
			expected := p.nlDashBoundary[p.matchLen]
			if b == expected {
				if p.matchLen == 0 {
					flushData(i)
				}
				p.matchLen++
				i++
				if p.matchLen == len(p.nlDashBoundary) {
					p.matchLen = 0
					if p.callbacks.OnPartEnd != nil {
						p.callbacks.OnPartEnd()
					}
					p.suffixPos = 0
					p.state = stateBoundarySuffix
				}
				continue
			}
			if p.matchLen > 0 {
				// The bytes matched so far were held back in case they
				// completed the boundary; they didn't, so they were
				// really body data all along. Their content is exactly
				// nlDashBoundary's own prefix, so no separate retained
				// buffer is needed to replay them.
				p.emitPartData(p.nlDashBoundary, 0, p.matchLen)
				p.matchLen = 0
				continue
			}
			if dataStart < 0 {
				dataStart = i
			}
			i++

		case stateEnd:
			i = limit
		}
	}

	flushData(i)
	flushRun(i)
	p.offset += int64(i)
	return i, nil
}

// Finalize checks that the terminating boundary was reached and fires
// OnEnd. A body that stops before the terminator is a truncated
// stream, reported as a *ParseError rather than silently accepted.
func (p *Parser) Finalize() error {
	if p.state != stateEnd {
		return &ParseError{Offset: p.offset, Reason: "truncated multipart body"}
	}
	if p.callbacks.OnEnd != nil {
		p.callbacks.OnEnd()
	}
	return nil
}

// Close is a no-op; Parser owns no resources of its own. It exists so
// callers driving several body parser types through one interface
// don't need to special-case multipart.
func (p *Parser) Close() error {
	return nil
}

// consumeBoundarySuffix advances the shared after-boundary check:
// "--" means the terminating boundary was found, CRLF means a new
// part begins. Both the first boundary and every later one scanned
// out of PART_DATA resolve through here.
func (p *Parser) consumeBoundarySuffix(b byte, offset int64) error {
	switch p.suffixPos {
	case 0:
		switch b {
		case '-':
			p.suffixPos = 1
			return nil
		case '\r':
			p.suffixPos = 3
			return nil
		default:
			return &ParseError{Offset: offset, Reason: "malformed byte after boundary"}
		}
	case 1:
		if b != '-' {
			return &ParseError{Offset: offset, Reason: "malformed byte after boundary"}
		}
		p.state = stateEnd
		return nil
	case 3:
		if b != '\n' {
			return &ParseError{Offset: offset, Reason: "malformed byte after boundary"}
		}
		p.state = stateHeaderFieldStart
		if p.callbacks.OnPartBegin != nil {
			p.callbacks.OnPartBegin()
		}
		return nil
	default:
		return fmt.Errorf("multipart: unreachable boundary suffix state %d", p.suffixPos)
	}
}

func (p *Parser) emitPartData(buf []byte, start, end int) {
	if start >= end {
		return
	}
	if p.callbacks.OnPartData != nil {
		p.callbacks.OnPartData(buf, start, end)
	}
}

// emitHeaderRun routes an accumulated header byte run to whichever of
// OnHeaderField/OnHeaderValue matches the state that produced it.
func (p *Parser) emitHeaderRun(buf []byte, start, end int) {
	if start >= end {
		return
	}
	switch p.state {
	case stateHeaderField:
		if p.callbacks.OnHeaderField != nil {
			p.callbacks.OnHeaderField(buf, start, end)
		}
	case stateHeaderValue:
		if p.callbacks.OnHeaderValue != nil {
			p.callbacks.OnHeaderValue(buf, start, end)
		}
	}
}
