package decoder

import "github.com/pkg/errors"

// QuotedPrintableDecoder is a Sink that decodes RFC 2045
// quoted-printable data on the fly and forwards the decoded bytes to
// a downstream Sink. A trailing `=`, `=X` or `=\r` at the end of a
// write is held back and resolved once enough of the next write (or
// Finalize) arrives, so a split between `=` and its following hex
// digits or newline is invisible to the decoded output.
type QuotedPrintableDecoder struct {
	downstream Sink
	pending    []byte // an incomplete escape sequence held from the previous write
}

// NewQuotedPrintableDecoder returns a QuotedPrintableDecoder that
// writes decoded bytes to downstream.
func NewQuotedPrintableDecoder(downstream Sink) *QuotedPrintableDecoder {
	return &QuotedPrintableDecoder{downstream: downstream}
}

func (d *QuotedPrintableDecoder) Write(p []byte) (int, error) {
	data := d.pending
	data = append(data, p...)
	d.pending = nil

	var out []byte
	n := len(data)
	i := 0
	for i < n {
		c := data[i]
		if c != '=' {
			out = append(out, c)
			i++
			continue
		}

		rem := n - i - 1
		if rem == 0 {
			// Only "=" so far; we can't tell what follows yet.
			d.pending = append(d.pending, data[i:]...)
			break
		}

		next := data[i+1]
		switch {
		case next == '\n':
			i += 2 // "=\n" soft line break
			continue
		case next == '\r':
			if rem == 1 {
				// "=\r" with nothing after yet; the following byte
				// decides whether this is "=\r\n" or a bare "=\r".
				d.pending = append(d.pending, data[i:]...)
				i = n
				continue
			}
			if data[i+2] == '\n' {
				i += 3 // "=\r\n" soft line break
			} else {
				i += 2 // "=\r" soft line break
			}
			continue
		}

		if rem == 1 {
			// Only one hex digit available so far.
			d.pending = append(d.pending, data[i:]...)
			break
		}

		hi, ok1 := hexDigit(next)
		lo, ok2 := hexDigit(data[i+2])
		if !ok1 || !ok2 {
			return 0, &DecodeError{
				Encoding: "quoted-printable",
				Reason:   "invalid hex digits after '='",
				Cause:    errors.Errorf("got %q", data[i+1:i+3]),
			}
		}
		out = append(out, hi<<4|lo)
		i += 3
	}

	if len(out) > 0 {
		if _, err := d.downstream.Write(out); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Finalize resolves any pending escape sequence. A soft line break
// split across the end of the stream ("=\r" with nothing following)
// is valid and emits nothing; any other incomplete escape is a
// truncated stream and is reported as a *DecodeError.
func (d *QuotedPrintableDecoder) Finalize() error {
	switch len(d.pending) {
	case 0:
		// nothing pending
	case 1:
		return &DecodeError{
			Encoding: "quoted-printable",
			Reason:   "truncated escape sequence at end of input",
		}
	case 2:
		if d.pending[1] != '\r' {
			return &DecodeError{
				Encoding: "quoted-printable",
				Reason:   "truncated escape sequence at end of input",
				Cause:    errors.Errorf("got %q", d.pending),
			}
		}
		// "=\r" at true EOF is a valid (if unusual) soft line break.
	default:
		return &DecodeError{
			Encoding: "quoted-printable",
			Reason:   "truncated escape sequence at end of input",
			Cause:    errors.Errorf("got %q", d.pending),
		}
	}
	d.pending = nil
	return d.downstream.Finalize()
}

// Close releases the downstream sink.
func (d *QuotedPrintableDecoder) Close() error {
	return d.downstream.Close()
}

func hexDigit(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	}
	return 0, false
}
