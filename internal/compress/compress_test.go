package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrotliRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("bibliothecula full text "), 200)

	var codec Codec = NewBrotli()
	enc, err := codec.Encode(payload)
	require.NoError(t, err)
	dec, err := codec.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, payload, dec)
}

func TestBrotliShrinksAndIsStable(t *testing.T) {
	payload := bytes.Repeat([]byte("abc"), 1000)
	b := NewBrotli()

	first, err := b.Encode(payload)
	require.NoError(t, err)
	second, err := b.Encode(payload)
	require.NoError(t, err)

	assert.Less(t, len(first), len(payload))
	assert.Equal(t, first, second)
}

func TestBrotliDecodeGarbage(t *testing.T) {
	_, err := NewBrotli().Decode([]byte("not brotli at all"))
	assert.Error(t, err)
}
