package stats

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/internal/counters"
)

// DefaultWindowSize is the moving-average window the graph uses when the
// request does not name one.
const DefaultWindowSize = 20

// QueryParams is read access to request parameters. *webapp.Request and
// URLValues implement it.
type QueryParams interface {
	Single(name string) (string, bool)
	Repeated(name string) []string
}

// URLValues adapts url.Values to QueryParams.
type URLValues url.Values

func (v URLValues) Single(name string) (string, bool) {
	values := v[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (v URLValues) Repeated(name string) []string {
	out := make([]string, len(v[name]))
	copy(out, v[name])
	return out
}

// CounterParams selects counters and an optional inclusive day range.
type CounterParams struct {
	CounterNames []string
	StartDate    *time.Time
	EndDate      *time.Time
}

// FormatError reports a parameter whose value could not be parsed.
type FormatError struct {
	Param string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed %s %q: %v", e.Param, e.Value, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ParseCounterParams reads every counter_name in order, duplicates kept, and
// the optional start_date and end_date in YYYY-MM-DD form. Empty dates count
// as absent.
func ParseCounterParams(q QueryParams) (CounterParams, error) {
	params := CounterParams{CounterNames: q.Repeated("counter_name")}
	if params.CounterNames == nil {
		params.CounterNames = []string{}
	}

	var err error
	if params.StartDate, err = parseDate(q, "start_date"); err != nil {
		return CounterParams{}, err
	}
	if params.EndDate, err = parseDate(q, "end_date"); err != nil {
		return CounterParams{}, err
	}
	return params, nil
}

func parseDate(q QueryParams, name string) (*time.Time, error) {
	raw, ok := q.Single(name)
	if !ok || raw == "" {
		return nil, nil
	}
	t, err := time.Parse(counters.DayLayout, raw)
	if err != nil {
		return nil, &FormatError{Param: name, Value: raw, Err: err}
	}
	return &t, nil
}

// parseZeroBetween treats any non-empty value as true unless it parses as a
// false boolean ("0", "false", ...).
func parseZeroBetween(q QueryParams) bool {
	raw, ok := q.Single("zero_between")
	if !ok || raw == "" {
		return false
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return true
}

func parseWindowSize(q QueryParams, fallback int) (int, error) {
	raw, ok := q.Single("window_size")
	if !ok {
		return fallback, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &FormatError{Param: "window_size", Value: raw, Err: err}
	}
	return size, nil
}
