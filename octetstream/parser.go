// Package octetstream implements the trivial streaming parser used
// for "application/octet-stream" request bodies: the body is the
// whole part, with no structure to scan, so the parser only tracks
// start/end-of-stream and a size cap.
package octetstream

import "fmt"

// Callbacks receives the three events a raw body stream produces.
// Every field is optional; a nil field is a no-op. OnData passes a
// (buf, start, end) slice into the buffer given to the triggering
// Write call, valid only for the duration of that call.
type Callbacks struct {
	OnStart func()
	OnData  func(buf []byte, start, end int)
	OnEnd   func()
}

// Parser passes bytes straight through to Callbacks.OnData, firing
// OnStart before the first byte and OnEnd on Finalize. A Parser is
// not safe for concurrent use.
type Parser struct {
	callbacks Callbacks
	maxSize   int64 // 0 means unbounded

	started bool
	sent    int64
}

// NewParser constructs a Parser. maxSize caps the bytes handed to
// OnData; bytes beyond the cap are still accepted (Write still
// reports them consumed) but are discarded rather than delivered.
// maxSize of 0 means unbounded; a negative maxSize is a configuration
// error.
func NewParser(callbacks Callbacks, maxSize int64) (*Parser, error) {
	if maxSize < 0 {
		return nil, fmt.Errorf("octetstream: max_size must be >= 0, got %d", maxSize)
	}
	return &Parser{callbacks: callbacks, maxSize: maxSize}, nil
}

// Write delivers buf to OnData (clipped to the remaining max_size
// budget, if any), firing OnStart first if this is the first byte
// seen. It always reports all of buf as consumed.
func (p *Parser) Write(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if !p.started {
		p.started = true
		if p.callbacks.OnStart != nil {
			p.callbacks.OnStart()
		}
	}

	end := len(buf)
	if p.maxSize > 0 {
		remaining := p.maxSize - p.sent
		if remaining <= 0 {
			end = 0
		} else if int64(end) > remaining {
			end = int(remaining)
		}
	}
	if end > 0 {
		p.sent += int64(end)
		if p.callbacks.OnData != nil {
			p.callbacks.OnData(buf, 0, end)
		}
	}
	return len(buf), nil
}

// Finalize fires OnEnd, whether or not any bytes were ever written —
// an empty body still ends, it just never started.
func (p *Parser) Finalize() error {
	if p.callbacks.OnEnd != nil {
		p.callbacks.OnEnd()
	}
	return nil
}

// Close is a no-op; Parser owns no resources of its own. It exists so
// callers driving several body parser types through one interface
// don't need to special-case octet-stream.
func (p *Parser) Close() error {
	return nil
}
