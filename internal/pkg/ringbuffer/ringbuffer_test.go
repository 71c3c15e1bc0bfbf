package ringbuffer

import (
	"testing"
	"time"

	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRingBuffer_Add(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name       string
		bufferSize int
		items      []int
		wantItems  []int
		wantCount  int
		wantErr    error
	}{
		{
			name:       "invalid buffer size",
			bufferSize: 0,
			wantErr:    errs.ErrInvalidBufferSize,
		}, {
			name:       "empty buffer",
			bufferSize: 4,
			items:      []int{},
			wantItems:  []int{},
			wantCount:  0,
		}, {
			name:       "within buffer size",
			bufferSize: 4,
			items:      []int{1, 2, 3},
			wantItems:  []int{1, 2, 3},
			wantCount:  3,
		}, {
			name:       "over buffer size",
			bufferSize: 4,
			items:      []int{1, 2, 3, 4, 5, 6, 7},
			wantItems:  []int{4, 5, 6, 7},
			wantCount:  4,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			buffer, err := NewRingBuffer[int](tc.bufferSize)
			assert.Equal(t, tc.wantErr, err)
			if err != nil {
				return
			}

			for _, item := range tc.items {
				buffer.Add(item)
			}

			assert.Equal(t, tc.bufferSize, buffer.Size())
			assert.Equal(t, tc.wantCount, buffer.Count())
			assert.Equal(t, tc.wantItems, buffer.Items())

			last, ok := buffer.Last()
			if len(tc.items) == 0 {
				assert.False(t, ok)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tc.items[len(tc.items)-1], last)
		})
	}
}

func TestAvgDuration(t *testing.T) {
	t.Parallel()

	buffer, err := NewRingBuffer[time.Duration](4)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), AvgDuration(buffer))

	buffer.Add(time.Second)
	buffer.Add(2 * time.Second)
	buffer.Add(time.Minute)
	assert.Equal(t, 21*time.Second, AvgDuration(buffer))

	for i := 0; i < 5; i++ {
		buffer.Add(time.Second)
	}
	buffer.Add(time.Minute)
	buffer.Add(time.Minute)
	assert.Equal(t, 30500*time.Millisecond, AvgDuration(buffer))
}

func TestRingBuffer_ThreadSafe(t *testing.T) {
	t.Parallel()

	buffer, err := NewRingBuffer[int](128)
	require.NoError(t, err)

	var eg errgroup.Group
	for i := 0; i < 256; i++ {
		num := i
		eg.Go(func() error {
			buffer.Add(num)
			_ = buffer.Items()
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	assert.Equal(t, 128, buffer.Size())
	assert.Equal(t, 128, buffer.Count())
	assert.Len(t, buffer.Items(), 128)
}
