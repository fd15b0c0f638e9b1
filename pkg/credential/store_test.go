package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centelha-ai/centelha/pkg/kv"
)

type failingKV struct{ err error }

func (f failingKV) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingKV) Set(context.Context, string, string) error         { return f.err }

func TestGetAbsent(t *testing.T) {
	s := New(kv.NewMemory(), "groq_api_key")
	_, ok, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetTrimsAndOverwrites(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := New(mem, "groq_api_key")

	require.NoError(t, s.Set(ctx, "  gsk_one \n"))
	require.NoError(t, s.Set(ctx, "gsk_two"))

	got, ok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gsk_two", got)

	raw, _, _ := mem.Get(ctx, "groq_api_key")
	assert.Equal(t, "gsk_two", raw)
}

func TestSetRejectsBlank(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), "groq_api_key")
	require.NoError(t, s.Set(ctx, "gsk_keep"))

	for _, token := range []string{"", "   ", "\t\n"} {
		err := s.Set(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidCredential, "token %q", token)
	}

	got, ok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gsk_keep", got, "rejected set must not overwrite")
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), "groq_api_key")
	require.NoError(t, s.Set(ctx, "gsk_x"))
	require.NoError(t, s.Clear(ctx))

	_, ok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackendErrorsPropagate(t *testing.T) {
	boom := errors.New("disk full")
	s := New(failingKV{err: boom}, "slot")

	_, _, err := s.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Set(context.Background(), "tok"), boom)
}
