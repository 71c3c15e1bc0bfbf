package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestLocalLocker(t *testing.T) {
	t.Parallel()

	l := NewLocalLocker()
	require.NoError(t, l.Lock(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Lock(ctx), context.DeadlineExceeded)

	require.NoError(t, l.Unlock(t.Context()))
	require.NoError(t, l.Lock(t.Context()))
	require.NoError(t, l.Unlock(t.Context()))

	assert.Panics(t, func() { _ = l.Unlock(t.Context()) })
}

func TestLocalLocker_MutualExclusion(t *testing.T) {
	t.Parallel()

	l := NewLocalLocker()
	counter := 0

	var eg errgroup.Group
	for i := 0; i < 64; i++ {
		eg.Go(func() error {
			if err := l.Lock(context.Background()); err != nil {
				return err
			}
			defer func() { _ = l.Unlock(context.Background()) }()

			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, 64, counter)
}
