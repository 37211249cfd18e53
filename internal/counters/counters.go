// Package counters stores per-day counter totals and serves them back as
// aggregate series for the stats endpoints.
package counters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/errors"
)

// DayLayout is the bucket and query date format.
const DayLayout = "2006-01-02"

// maxNameLength bounds counter names accepted for writes.
const maxNameLength = 256

// DataPoint is one day of a counter. It encodes as [timestamp, value] where
// timestamp is the Unix time of the UTC day start.
type DataPoint struct {
	Timestamp int64
	Value     int64
}

func (p DataPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{p.Timestamp, p.Value})
}

func (p *DataPoint) UnmarshalJSON(data []byte) error {
	var pair [2]int64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding data point: %w", err)
	}
	p.Timestamp, p.Value = pair[0], pair[1]
	return nil
}

// AggregateData maps each requested counter name to its points in time order.
type AggregateData map[string][]DataPoint

// Service returns aggregate data for counters between two optional dates,
// both inclusive. A nil bound is open.
type Service interface {
	GetCounterData(ctx context.Context, names []string, start, end *time.Time) (AggregateData, error)
}

// Incrementer adds delta to the bucket of counter name for the day of at.
type Incrementer interface {
	Increment(ctx context.Context, name string, delta int64, at time.Time) error
}

// BatchIncrementer applies the same increment to several counters as one
// unit: either every counter is incremented or none is.
type BatchIncrementer interface {
	IncrementAll(ctx context.Context, names []string, delta int64, at time.Time) error
}

// DayKey returns the UTC day bucket for t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// ValidateName rejects names that cannot be stored.
func ValidateName(name string) error {
	if name == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "counter name is required")
	}
	if len(name) > maxNameLength {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "counter name exceeds %d bytes", maxNameLength)
	}
	return nil
}

func newAggregate(names []string) AggregateData {
	data := make(AggregateData, len(names))
	for _, name := range names {
		data[name] = []DataPoint{}
	}
	return data
}

func inRange(day time.Time, start, end *time.Time) bool {
	if start != nil && day.Before(truncateDay(*start)) {
		return false
	}
	if end != nil && day.After(truncateDay(*end)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// pointsFromDays converts day-keyed totals into sorted points, skipping
// buckets that fall outside the range or cannot be parsed.
func pointsFromDays(days map[string]string, start, end *time.Time) ([]DataPoint, error) {
	points := make([]DataPoint, 0, len(days))
	for key, raw := range days {
		day, err := time.Parse(DayLayout, key)
		if err != nil {
			continue
		}
		if !inRange(day, start, end) {
			continue
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %s bucket value %q: %w", key, raw, err)
		}
		points = append(points, DataPoint{Timestamp: day.Unix(), Value: value})
	}
	sortPoints(points)
	return points, nil
}

func sortPoints(points []DataPoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
}
