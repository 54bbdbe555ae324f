package octetstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	starts int
	ends   int
	data   []byte
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnStart: func() { r.starts++ },
		OnData: func(buf []byte, start, end int) {
			r.data = append(r.data, buf[start:end]...)
		},
		OnEnd: func() { r.ends++ },
	}
}

func TestOctetStreamParserSimple(t *testing.T) {
	r := &recorder{}
	p, err := NewParser(r.callbacks(), 0)
	require.NoError(t, err)

	_, err = p.Write([]byte("hello"))
	require.NoError(t, err)
	_, err = p.Write([]byte(" world"))
	require.NoError(t, err)
	require.NoError(t, p.Finalize())

	assert.Equal(t, "hello world", string(r.data))
	assert.Equal(t, 1, r.starts)
	assert.Equal(t, 1, r.ends)
}

func TestOctetStreamParserEmptyBody(t *testing.T) {
	r := &recorder{}
	p, err := NewParser(r.callbacks(), 0)
	require.NoError(t, err)

	require.NoError(t, p.Finalize())

	assert.Equal(t, 0, r.starts)
	assert.Equal(t, 1, r.ends)
	assert.Nil(t, r.data)
}

func TestOctetStreamParserMaxSizeTruncatesData(t *testing.T) {
	r := &recorder{}
	p, err := NewParser(r.callbacks(), 5)
	require.NoError(t, err)

	n, err := p.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	require.NoError(t, p.Finalize())

	assert.Equal(t, "hello", string(r.data))
}

func TestOctetStreamParserMaxSizeAcrossWrites(t *testing.T) {
	r := &recorder{}
	p, err := NewParser(r.callbacks(), 5)
	require.NoError(t, err)

	_, err = p.Write([]byte("he"))
	require.NoError(t, err)
	_, err = p.Write([]byte("llo world"))
	require.NoError(t, err)
	require.NoError(t, p.Finalize())

	assert.Equal(t, "hello", string(r.data))
}

func TestOctetStreamParserNegativeMaxSizeIsConfigError(t *testing.T) {
	r := &recorder{}
	_, err := NewParser(r.callbacks(), -1)
	require.Error(t, err)
}
