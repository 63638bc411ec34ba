package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func TestMemoryGetMiss(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMiss)

	ok, err := m.Exists(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySetGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	value := []byte("hello")
	require.NoError(t, m.Set(ctx, "k", value, 0))
	value[0] = 'j'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	ok, _ := m.Exists(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestJSONRoundTripThroughProvider(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	want := []payload{{Label: "Melanoma", Score: 0.7}, {Label: "Dermatofibroma", Score: 0.3}}
	require.NoError(t, SetJSON(ctx, m, "classify:x", want, time.Hour))

	got, err := GetJSON[[]payload](ctx, m, "classify:x")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGetJSONPropagatesMissAndDecodeErrors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := GetJSON[payload](ctx, m, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "bad", []byte("{not json"), 0))
	_, err = GetJSON[payload](ctx, m, "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestNewClientUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := NewClient(ctx, Options{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}
