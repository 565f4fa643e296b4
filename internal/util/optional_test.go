package util

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalUnmarshalDistinguishesAbsentFromNull(t *testing.T) {
	type patch struct {
		Name        Optional[string] `json:"name"`
		Description Optional[string] `json:"description"`
	}

	var p patch
	require.NoError(t, json.Unmarshal([]byte(`{"name":"ACME"}`), &p))

	assert.True(t, p.Name.IsSet)
	assert.Equal(t, "ACME", p.Name.Val)
	assert.False(t, p.Description.IsSet)
}

func TestOptionalUnwrapOr(t *testing.T) {
	assert.Equal(t, "kept", None[string]().UnwrapOr("kept"))
	assert.Equal(t, "set", Some("set").UnwrapOr("kept"))
}

func TestOptionalScanNil(t *testing.T) {
	var o Optional[int64]
	require.NoError(t, o.Scan(nil))
	assert.False(t, o.IsSet)

	require.NoError(t, o.Scan(int64(7)))
	assert.True(t, o.IsSet)
	assert.Equal(t, int64(7), o.Val)
}

func TestOptionalValueNilWhenUnset(t *testing.T) {
	v, err := None[int64]().Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
