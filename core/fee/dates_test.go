package fee

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "date", in: "2024-01-01", want: "2024-01-01"},
		{name: "padded", in: " 2024-01-01 ", want: "2024-01-01"},
		{name: "rfc3339", in: "2024-01-01T23:30:00+05:30", want: "2024-01-01"},
		{name: "iso without zone", in: "2024-02-29T10:00:00", want: "2024-02-29"},
		{name: "space separated", in: "2024-02-29 10:00:00", want: "2024-02-29"},
		{name: "empty", in: "", wantErr: true},
		{name: "invalid day", in: "2023-02-29", wantErr: true},
		{name: "garbage", in: "tomorrow", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				_, ok := err.(*InvalidDateError)
				assert.True(t, ok, "error = %v", err)
				return
			}
			if assert.NoError(t, err) {
				assert.Equal(t, tt.want, got.Format(DateLayout))
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func Test_addMonths(t *testing.T) {
	tests := []struct {
		start  string
		months int
		want   string
	}{
		{"2024-01-01", 6, "2024-07-01"},
		{"2024-01-31", 1, "2024-02-29"},
		{"2023-01-31", 1, "2023-02-28"},
		{"2024-08-31", 6, "2025-02-28"},
		{"2024-12-15", 1, "2025-01-15"},
		{"2024-03-31", 0, "2024-03-31"},
	}
	for _, tt := range tests {
		t.Run(tt.start, func(t *testing.T) {
			assert.Equal(t, tt.want, addMonths(day(tt.start), tt.months).Format(DateLayout))
		})
	}
}
