package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waflawe/Omenforcer/backend/testutil"
)

type stats struct {
	Topics int64  `json:"topics"`
	Last   string `json:"last"`
}

func TestCacheSetGetDelete(t *testing.T) {
	client, mr := testutil.NewRedis(t)
	c := New(client, "forum:")
	ctx := context.Background()

	var got stats
	assert.ErrorIs(t, c.Get(ctx, "stats", &got), ErrMiss)

	require.NoError(t, c.Set(ctx, "stats", stats{Topics: 3, Last: "bob"}, time.Minute))
	assert.True(t, mr.Exists("forum:stats"))
	assert.Equal(t, time.Minute, mr.TTL("forum:stats"))

	require.NoError(t, c.Get(ctx, "stats", &got))
	assert.Equal(t, stats{Topics: 3, Last: "bob"}, got)

	require.NoError(t, c.Delete(ctx, "stats"))
	assert.ErrorIs(t, c.Get(ctx, "stats", &got), ErrMiss)
}

func TestRemember(t *testing.T) {
	client, mr := testutil.NewRedis(t)
	c := New(client, "")
	ctx := context.Background()

	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := Remember(ctx, c, "answer", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Remember(ctx, c, "answer", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)

	mr.FastForward(2 * time.Hour)
	_, err = Remember(ctx, c, "answer", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	_, err = Remember(ctx, c, "broken", time.Hour, func() (int, error) { return 0, errors.New("db down") })
	assert.Error(t, err)
}
