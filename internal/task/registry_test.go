package task

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, req *Request) (any, error) { return nil, nil }

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(NameMultiply, noopHandler))
	require.NoError(t, r.Register(NameAdd, noopHandler))

	assert.Error(t, r.Register(NameAdd, noopHandler), "duplicate names are rejected")
	assert.Error(t, r.Register("", noopHandler))
	assert.Error(t, r.Register("nil-handler", nil))

	_, ok := r.Lookup(NameAdd)
	assert.True(t, ok)
	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{NameAdd, NameMultiply}, r.Names())
}

func TestRequestArguments(t *testing.T) {
	t.Parallel()

	req := &Request{
		Name:   NameAdd,
		Args:   []json.RawMessage{json.RawMessage(`3.5`), json.RawMessage(`"text"`)},
		Kwargs: map[string]json.RawMessage{"scale": json.RawMessage(`2`)},
	}

	var f float64
	require.NoError(t, req.Arg(0, &f))
	assert.Equal(t, 3.5, f)

	assert.ErrorIs(t, req.Arg(1, &f), ErrInvalidArguments, "string into float")
	assert.ErrorIs(t, req.Arg(2, &f), ErrInvalidArguments, "out of range")
	assert.ErrorIs(t, req.Arg(-1, &f), ErrInvalidArguments)

	require.NoError(t, req.Kwarg("scale", &f))
	assert.Equal(t, 2.0, f)
	assert.ErrorIs(t, req.Kwarg("loc", &f), ErrInvalidArguments)
}
