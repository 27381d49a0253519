package groundtruth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, min int) time.Time {
	return time.Date(2024, 6, 15, hour, min, 0, 0, time.UTC)
}

func TestIsDaytime_NormalWindow(t *testing.T) {
	sunrise := at(6, 0)
	sunset := at(20, 0)

	tests := []struct {
		name    string
		capture time.Time
		want    bool
	}{
		{"midday", at(12, 0), true},
		{"at sunrise", at(6, 0), true},
		{"at sunset", at(20, 0), true},
		{"before sunrise", at(5, 59), false},
		{"after sunset", at(20, 1), false},
		{"midnight", at(0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDaytime(tt.capture, sunrise, sunset))
		})
	}
}

func TestIsDaytime_WindowSpansMidnight(t *testing.T) {
	// High-latitude summer: sunset time-of-day lands before sunrise.
	sunrise := at(22, 0)
	sunset := at(5, 0)

	tests := []struct {
		name    string
		capture time.Time
		want    bool
	}{
		{"before midnight", at(23, 30), true},
		{"after midnight", at(2, 0), true},
		{"at sunrise", at(22, 0), true},
		{"at sunset", at(5, 0), true},
		{"midafternoon is night here", at(14, 0), false},
		{"just after sunset", at(5, 1), false},
		{"just before sunrise", at(21, 59), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDaytime(tt.capture, sunrise, sunset))
		})
	}
}
