package stats

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCounterParamsDates(t *testing.T) {
	tests := []struct {
		start, end string
	}{
		{"2020-01-01", "2020-01-31"},
		{"1999-12-31", "2000-02-29"},
		{"2024-02-29", "2024-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.start, func(t *testing.T) {
			got, err := ParseCounterParams(URLValues{"start_date": {tt.start}, "end_date": {tt.end}})
			require.NoError(t, err)
			require.NotNil(t, got.StartDate)
			require.NotNil(t, got.EndDate)
			assert.Equal(t, tt.start, got.StartDate.Format("2006-01-02"))
			assert.Equal(t, tt.end, got.EndDate.Format("2006-01-02"))
			assert.Equal(t, time.UTC, got.StartDate.Location())
		})
	}
}

func TestParseCounterParamsEmpty(t *testing.T) {
	got, err := ParseCounterParams(URLValues{})
	require.NoError(t, err)
	assert.NotNil(t, got.CounterNames)
	assert.Empty(t, got.CounterNames)
	assert.Nil(t, got.StartDate)
	assert.Nil(t, got.EndDate)
}

func TestParseCounterParamsKeepsOrderAndDuplicates(t *testing.T) {
	q, err := url.ParseQuery("counter_name=a&counter_name=b&counter_name=a")
	require.NoError(t, err)

	got, err := ParseCounterParams(URLValues(q))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a"}, got.CounterNames)
}

func TestParseCounterParamsEmptyDateIsAbsent(t *testing.T) {
	got, err := ParseCounterParams(URLValues{"start_date": {""}})
	require.NoError(t, err)
	assert.Nil(t, got.StartDate)
}

func TestParseCounterParamsMalformedDate(t *testing.T) {
	for _, bad := range []string{"2020-13-01", "01/02/2020", "2020-1-1", "yesterday"} {
		t.Run(bad, func(t *testing.T) {
			_, err := ParseCounterParams(URLValues{"end_date": {bad}})
			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "end_date", fe.Param)
			assert.Equal(t, bad, fe.Value)
		})
	}
}

func TestParseZeroBetween(t *testing.T) {
	tests := map[string]bool{
		"":      false,
		"0":     false,
		"false": false,
		"f":     false,
		"FALSE": false,
		"1":     true,
		"true":  true,
		"yes":   true,
	}
	for raw, want := range tests {
		assert.Equal(t, want, parseZeroBetween(URLValues{"zero_between": {raw}}), raw)
	}
	assert.False(t, parseZeroBetween(URLValues{}))
}

func TestParseWindowSize(t *testing.T) {
	size, err := parseWindowSize(URLValues{}, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, size)

	size, err = parseWindowSize(URLValues{"window_size": {"7"}}, 20)
	require.NoError(t, err)
	assert.Equal(t, 7, size)

	_, err = parseWindowSize(URLValues{"window_size": {"seven"}}, 20)
	var fe *FormatError
	assert.ErrorAs(t, err, &fe)
}
