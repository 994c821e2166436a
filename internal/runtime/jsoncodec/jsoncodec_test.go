package jsoncodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestMarshalUnmarshal(t *testing.T) {
	in := order{ID: 42, Name: "orders"}
	data, err := Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42,"name":"orders"}`, string(data))

	var out order
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)

	indented, err := MarshalIndent(in, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(indented), "\n  \"id\": 42")
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, order{ID: 7, Name: "stream"}))
	assert.JSONEq(t, `{"id":7,"name":"stream"}`, buf.String())
	assert.Equal(t, byte('\n'), buf.Bytes()[buf.Len()-1])
}
