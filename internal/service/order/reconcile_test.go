package order

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	end := time.Date(2026, 7, 14, 10, 15, 0, 0, time.UTC)
	full := func() domain.CachedOrder {
		return domain.CachedOrder{
			QueueNumber:     ptr(uint64(3)),
			Channel:         ptr("image"),
			DurationMinutes: ptr(10),
			Price:           ptr(decimal.NewFromInt(10)),
			FeeWaived:       ptr(false),
			DisplayEndTime:  ptr(end),
		}
	}

	tcs := []struct {
		name   string
		cached func() domain.CachedOrder
		want   Reconciliation
	}{
		{
			name:   "valid",
			cached: full,
			want: Reconciliation{
				StillValid: true,
				Window:     &domain.DisplayWindow{Start: end.Add(-10 * time.Minute), End: end},
			},
		}, {
			name: "cached start time ignored",
			cached: func() domain.CachedOrder {
				c := full()
				c.DisplayStartTime = ptr(end.Add(-time.Hour))
				return c
			},
			want: Reconciliation{
				StillValid: true,
				Window:     &domain.DisplayWindow{Start: end.Add(-10 * time.Minute), End: end},
			},
		}, {
			name: "zero price is valid",
			cached: func() domain.CachedOrder {
				c := full()
				c.Channel = ptr("birthday")
				c.Price = ptr(decimal.Zero)
				c.FeeWaived = ptr(true)
				return c
			},
			want: Reconciliation{
				StillValid: true,
				Window:     &domain.DisplayWindow{Start: end.Add(-10 * time.Minute), End: end},
			},
		}, {
			name: "missing queue number",
			cached: func() domain.CachedOrder {
				c := full()
				c.QueueNumber = nil
				return c
			},
			want: Reconciliation{Reason: ReasonMissingQueueNumber},
		}, {
			name: "missing channel",
			cached: func() domain.CachedOrder {
				c := full()
				c.Channel = nil
				return c
			},
			want: Reconciliation{Reason: ReasonMissingChannel},
		}, {
			name: "missing duration",
			cached: func() domain.CachedOrder {
				c := full()
				c.DurationMinutes = nil
				return c
			},
			want: Reconciliation{Reason: ReasonMissingDuration},
		}, {
			name: "missing price",
			cached: func() domain.CachedOrder {
				c := full()
				c.Price = nil
				return c
			},
			want: Reconciliation{Reason: ReasonMissingPrice},
		}, {
			name: "unknown channel",
			cached: func() domain.CachedOrder {
				c := full()
				c.Channel = ptr("video")
				return c
			},
			want: Reconciliation{Reason: ReasonInvalidChannel},
		}, {
			name: "non positive duration",
			cached: func() domain.CachedOrder {
				c := full()
				c.DurationMinutes = ptr(0)
				return c
			},
			want: Reconciliation{Reason: ReasonInvalidDuration},
		}, {
			name: "missing end time",
			cached: func() domain.CachedOrder {
				c := full()
				c.DisplayEndTime = nil
				return c
			},
			want: Reconciliation{StillValid: true, Reason: ReasonMissingEndTime},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cached := tc.cached()
			got := Reconcile(cached)
			assert.Equal(t, tc.want, got)

			// 幂等
			assert.Equal(t, got, Reconcile(cached))
		})
	}
}

func TestReconcile_FromJSON(t *testing.T) {
	t.Parallel()

	var cached domain.CachedOrder
	err := json.Unmarshal([]byte(`{
		"queue_number": 7,
		"channel": "text",
		"duration_minutes": 5,
		"price": "5",
		"display_start_time": "2000-01-01T00:00:00Z",
		"display_end_time": "2026-07-14T10:05:00Z"
	}`), &cached)
	require.NoError(t, err)

	got := Reconcile(cached)
	require.True(t, got.StillValid)
	require.NotNil(t, got.Window)
	assert.True(t, got.Window.Start.Equal(time.Date(2026, 7, 14, 10, 0, 0, 0, time.UTC)))
	assert.True(t, got.Window.End.Equal(time.Date(2026, 7, 14, 10, 5, 0, 0, time.UTC)))

	var partial domain.CachedOrder
	require.NoError(t, json.Unmarshal([]byte(`{"channel":"text","duration_minutes":5,"price":0}`), &partial))
	assert.False(t, Reconcile(partial).StillValid)
}
