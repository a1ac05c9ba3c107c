package chain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashZero(t *testing.T) {
	var h Hash
	assert.True(t, h.IsZero())

	nonZero := NewHash([]byte("payload"))
	assert.False(t, nonZero.IsZero())
}

func TestHashHexRoundTrip(t *testing.T) {
	h := NewHash([]byte("round trip me"))

	decoded, err := HashFromHex(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestHashFromHexRejectsBadInput(t *testing.T) {
	_, err := HashFromHex("not-hex")
	assert.ErrorIs(t, err, ErrInvalidHex)

	_, err = HashFromHex("abcd")
	assert.ErrorIs(t, err, ErrInvalidHex)
}

func TestHashJSONRoundTrip(t *testing.T) {
	h := NewHash([]byte("json payload"))

	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Equal(t, `"`+h.String()+`"`, string(data))

	var decoded Hash
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, h, decoded)
}

func TestHashBinaryRoundTrip(t *testing.T) {
	h := NewHash([]byte("binary payload"))

	data, err := h.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, HashSize)

	var decoded Hash
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, h, decoded)
}

func TestHashUnmarshalBinaryRejectsWrongLength(t *testing.T) {
	var h Hash
	err := h.UnmarshalBinary([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidLength)
}
