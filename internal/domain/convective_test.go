package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConvectiveDay(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "afternoon stays on its date",
			in:   time.Date(2011, 4, 27, 18, 30, 0, 0, time.UTC),
			want: time.Date(2011, 4, 27, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "just before the boundary belongs to the previous date",
			in:   time.Date(2011, 4, 28, 5, 59, 59, 0, time.UTC),
			want: time.Date(2011, 4, 27, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at the boundary starts the new day",
			in:   time.Date(2011, 4, 28, 6, 0, 0, 0, time.UTC),
			want: time.Date(2011, 4, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "midnight belongs to the previous date",
			in:   time.Date(2011, 4, 28, 0, 0, 0, 0, time.UTC),
			want: time.Date(2011, 4, 27, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConvectiveDay(tt.in))
		})
	}
}

func TestConvectiveDay_PreservesLocation(t *testing.T) {
	// The caller's zone is authoritative; the system zone is never used.
	zone := time.FixedZone("CST", -6*3600)
	in := time.Date(2011, 4, 28, 2, 0, 0, 0, zone)

	got := ConvectiveDay(in)
	assert.Equal(t, zone, got.Location())
	assert.Equal(t, time.Date(2011, 4, 27, 0, 0, 0, 0, zone), got)
}
