package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPreviousWeekStart(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid_week",
			now:  time.Date(2026, 8, 27, 15, 30, 0, 0, time.UTC), // Thursday
			want: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monday",
			now:  time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday",
			now:  time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC),
			want: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := previousWeekStart(tt.now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, time.Monday, got.Weekday())
		})
	}
}
