// Package stats serves counter statistics: raw aggregate data as JSON, a
// rendered graph page, and an endpoint for recording increments.
package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/internal/counters"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/internal/webapp"
	apperrors "github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/metrics"
)

// Options wires the handlers to their collaborators. Only Service is needed
// for the read endpoints.
type Options struct {
	Service     counters.Service
	Incrementer counters.Incrementer
	// Templates holds graph.html. Nil means the compiled-in templates.
	Templates fs.FS
	// WindowSize overrides DefaultWindowSize when positive.
	WindowSize int
	Metrics    *metrics.Metrics
	// Now stamps increments. Nil means time.Now.
	Now func() time.Time
}

func (o Options) windowSize() int {
	if o.WindowSize > 0 {
		return o.WindowSize
	}
	return DefaultWindowSize
}

func (o Options) templates() fs.FS {
	if o.Templates == nil {
		return DefaultTemplates()
	}
	return o.Templates
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// counterQuery is shared by the read handlers.
type counterQuery struct {
	webapp.BaseHandler
	opts    Options
	handler string
}

func (q *counterQuery) fetch(params CounterParams) (counters.AggregateData, error) {
	if q.opts.Service == nil {
		return nil, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "counter service not configured")
	}

	start := time.Now()
	data, err := q.opts.Service.GetCounterData(q.Request().Context(), params.CounterNames, params.StartDate, params.EndDate)
	if m := q.opts.Metrics; m != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		m.CounterQueriesTotal.WithLabelValues(q.handler, outcome).Inc()
		m.CounterQueryLatency.WithLabelValues(q.handler).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("fetching counter data: %w", err)
	}

	logger.FromContext(q.Request().Context()).Debug("counter data fetched",
		"handler", q.handler,
		"counters", len(params.CounterNames),
		"duration", time.Since(start),
	)
	return data, nil
}

// CounterDataHandler serves GET /_titan/stats/counterdata.
type CounterDataHandler struct {
	counterQuery
}

func NewCounterDataHandler(opts Options) webapp.HandlerFactory {
	return func() webapp.Handler {
		return &CounterDataHandler{counterQuery{opts: opts, handler: "counterdata"}}
	}
}

// Get writes the aggregate data for the requested counters as JSON.
//
// Params:
//
//	counter_name  a counter name; may repeat
//	start_date    YYYY-MM-DD, optional
//	end_date      YYYY-MM-DD, optional
func (h *CounterDataHandler) Get(args ...string) error {
	params, err := ParseCounterParams(h.Request())
	if err != nil {
		return err
	}
	data, err := h.fetch(params)
	if err != nil {
		return err
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding counter data: %w", err)
	}
	h.Response().Header().Set("Content-Type", "application/json")
	_, err = h.Response().Write(body)
	return err
}

// GraphHandler serves GET /_titan/stats/graph.
type GraphHandler struct {
	counterQuery
}

func NewGraphHandler(opts Options) webapp.HandlerFactory {
	return func() webapp.Handler {
		return &GraphHandler{counterQuery{opts: opts, handler: "graph"}}
	}
}

// Get renders graph.html for the requested counters. Besides the counter
// params it reads zero_between (bool) and window_size (int).
func (h *GraphHandler) Get(args ...string) error {
	req := h.Request()
	zeroBetween := parseZeroBetween(req)
	windowSize, err := parseWindowSize(req, h.opts.windowSize())
	if err != nil {
		return err
	}
	params, err := ParseCounterParams(req)
	if err != nil {
		return err
	}
	data, err := h.fetch(params)
	if err != nil {
		return err
	}

	tmpl, err := template.ParseFS(h.opts.templates(), graphTemplate)
	if err != nil {
		return fmt.Errorf("loading graph template: %w", err)
	}
	var buf bytes.Buffer
	err = tmpl.ExecuteTemplate(&buf, graphTemplate, map[string]any{
		"aggregate_data": data,
		"window_size":    windowSize,
		"zero_between":   zeroBetween,
	})
	if err != nil {
		return fmt.Errorf("rendering graph template: %w", err)
	}
	_, err = h.Response().Write(buf.Bytes())
	return err
}

// IncrementHandler serves POST /_titan/stats/increment.
type IncrementHandler struct {
	webapp.BaseHandler
	opts Options
}

func NewIncrementHandler(opts Options) webapp.HandlerFactory {
	return func() webapp.Handler {
		return &IncrementHandler{opts: opts}
	}
}

type incrementResponse struct {
	Status   string   `json:"status"`
	Counters []string `json:"counters"`
}

// Post adds delta (default 1) to today's bucket of every counter_name. With a
// BatchIncrementer the names are applied all-or-nothing; otherwise they are
// applied in order and a failure leaves the earlier names incremented.
func (h *IncrementHandler) Post(args ...string) error {
	if h.opts.Incrementer == nil {
		return apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "counter writes not configured")
	}

	req := h.Request()
	names := req.Repeated("counter_name")
	if len(names) == 0 {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "counter_name is required")
	}
	delta, err := strconv.ParseInt(req.Get("delta", "1"), 10, 64)
	if err != nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "delta must be an integer: %v", err)
	}
	for _, name := range names {
		if err := counters.ValidateName(name); err != nil {
			return err
		}
	}

	if err := h.increment(req.Context(), names, delta, h.opts.now()); err != nil {
		return err
	}

	body, err := json.Marshal(incrementResponse{Status: "recorded", Counters: names})
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	h.Response().Header().Set("Content-Type", "application/json")
	_, err = h.Response().Write(body)
	return err
}

func (h *IncrementHandler) increment(ctx context.Context, names []string, delta int64, at time.Time) error {
	if batch, ok := h.opts.Incrementer.(counters.BatchIncrementer); ok {
		if err := batch.IncrementAll(ctx, names, delta, at); err != nil {
			return fmt.Errorf("incrementing counters: %w", err)
		}
		return nil
	}
	for i, name := range names {
		if err := h.opts.Incrementer.Increment(ctx, name, delta, at); err != nil {
			return fmt.Errorf("incrementing %s (%d of %d already recorded): %w", name, i, len(names), err)
		}
	}
	return nil
}
