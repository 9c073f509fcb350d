package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrecision(t *testing.T) {
	tests := []struct {
		in   string
		want Precision
	}{
		{"minute", PrecisionMinute},
		{"Hour", PrecisionHour},
		{" day ", PrecisionDay},
		{"second", PrecisionSecond},
		{"13", PrecisionHour},
	}
	for _, tt := range tests {
		got, err := ParsePrecision(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "fortnight", "0", "-4"} {
		_, err := ParsePrecision(bad)
		assert.ErrorIs(t, err, ErrUnknownPrecision, bad)
	}
}

func TestPrecisionTruncate(t *testing.T) {
	ts := "2024-02-01 10:15:42"
	assert.Equal(t, "2024", PrecisionYear.Truncate(ts))
	assert.Equal(t, "2024-02", PrecisionMonth.Truncate(ts))
	assert.Equal(t, "2024-02-01 10:15", PrecisionMinute.Truncate(ts))
	assert.Equal(t, ts, PrecisionSecond.Truncate(ts))
	assert.Equal(t, "short", PrecisionMinute.Truncate("short"))
}

func TestPrecisionString(t *testing.T) {
	assert.Equal(t, "minute", PrecisionMinute.String())
	assert.Equal(t, "12", Precision(12).String())
}
