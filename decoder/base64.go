package decoder

import (
	"encoding/base64"

	"github.com/pkg/errors"
)

// Base64Decoder is a Sink that decodes RFC 4648 standard Base64 on
// the fly and forwards the decoded bytes to a downstream Sink. It
// buffers input until a multiple of 4 encoded bytes is available, so
// it tolerates arbitrary chunk splits, including single-byte writes.
type Base64Decoder struct {
	downstream Sink
	buf        []byte // 0-3 leftover encoded bytes from the last write
}

// NewBase64Decoder returns a Base64Decoder that writes decoded bytes
// to downstream.
func NewBase64Decoder(downstream Sink) *Base64Decoder {
	return &Base64Decoder{downstream: downstream}
}

// Write decodes as many complete 4-byte groups as are available and
// forwards the result downstream. It always reports all of p as
// consumed; a byte outside the Base64 alphabet fails the call that
// delivers it with a *DecodeError, and a misplaced '=' fails the call
// (or Finalize) that completes the 4-byte group holding it.
func (d *Base64Decoder) Write(p []byte) (int, error) {
	for _, c := range p {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/', c == '=':
		default:
			return 0, &DecodeError{
				Encoding: "base64",
				Reason:   "invalid character in encoded data",
				Cause:    errors.Errorf("got %q", c),
			}
		}
	}
	d.buf = append(d.buf, p...)

	usable := len(d.buf) - len(d.buf)%4
	if usable == 0 {
		return len(p), nil
	}

	chunk := d.buf[:usable]
	decoded := make([]byte, base64.StdEncoding.DecodedLen(usable))
	n, err := base64.StdEncoding.Decode(decoded, chunk)
	if err != nil {
		return 0, &DecodeError{
			Encoding: "base64",
			Reason:   "invalid character in encoded data",
			Cause:    errors.Wrap(err, "base64.StdEncoding.Decode"),
		}
	}

	if _, err := d.downstream.Write(decoded[:n]); err != nil {
		return 0, err
	}

	rest := make([]byte, len(d.buf)-usable)
	copy(rest, d.buf[usable:])
	d.buf = rest

	return len(p), nil
}

// Finalize decodes any remaining buffered bytes. A residual length
// that is not a multiple of 4 is a truncated stream and is reported as
// a *DecodeError instead of being silently dropped.
func (d *Base64Decoder) Finalize() error {
	if len(d.buf)%4 != 0 {
		return &DecodeError{
			Encoding: "base64",
			Reason:   errors.Errorf("truncated input: %d leftover bytes", len(d.buf)).Error(),
		}
	}
	if len(d.buf) > 0 {
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(d.buf)))
		n, err := base64.StdEncoding.Decode(decoded, d.buf)
		if err != nil {
			return &DecodeError{
				Encoding: "base64",
				Reason:   "invalid character in encoded data",
				Cause:    errors.Wrap(err, "base64.StdEncoding.Decode"),
			}
		}
		if _, err := d.downstream.Write(decoded[:n]); err != nil {
			return err
		}
		d.buf = nil
	}
	return d.downstream.Finalize()
}

// Close releases the downstream sink.
func (d *Base64Decoder) Close() error {
	return d.downstream.Close()
}
