// Command loadtest drives a mix of stats reads and counter writes against a
// running stats service and prints a latency report.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-writes 0.2]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	WriteRatio  float64
	Counters    []string
	Days        int
}

type endpointStats struct {
	requests  atomic.Int64
	errors    atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
}

type Stats struct {
	endpoints   map[string]*endpointStats
	statusCodes map[int]*atomic.Int64
	statusMu    sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		endpoints: map[string]*endpointStats{
			"counterdata": {},
			"graph":       {},
			"increment":   {},
		},
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) Record(endpoint string, duration time.Duration, statusCode int, err error) {
	e := s.endpoints[endpoint]
	e.requests.Add(1)
	if err != nil || statusCode < 200 || statusCode >= 300 {
		e.errors.Add(1)
	}
	if err != nil {
		return
	}

	e.mu.Lock()
	e.latencies = append(e.latencies, duration)
	e.mu.Unlock()

	s.statusMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the stats service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	writes := flag.Float64("writes", 0.2, "fraction of requests that are increments")
	counterList := flag.String("counters", "page/view,api/call,signup,login,search", "comma-separated counter names")
	days := flag.Int("days", 30, "width of the queried date range in days")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimSuffix(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		WriteRatio:  *writes,
		Counters:    strings.Split(*counterList, ","),
		Days:        *days,
	}

	fmt.Println("=== Titan Stats Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Write ratio: %.2f\n", cfg.WriteRatio)
	fmt.Printf("Counters:    %d\n", len(cfg.Counters))
	fmt.Println()

	stats := runLoadTest(cfg)
	if !printReport(stats, cfg.Duration) {
		os.Exit(1)
	}
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for seq := workerID; ; seq += cfg.Concurrency {
				select {
				case <-ctx.Done():
					return
				default:
				}

				endpoint, req, err := buildRequest(ctx, cfg, seq, time.Now())
				if err != nil {
					fmt.Fprintf(os.Stderr, "building request: %v\n", err)
					return
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					stats.Record(endpoint, elapsed, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.Record(endpoint, elapsed, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// buildRequest picks the endpoint for request number seq deterministically:
// every round(1/WriteRatio)th request is an increment, and reads alternate
// between counterdata and graph.
func buildRequest(ctx context.Context, cfg Config, seq int, now time.Time) (string, *http.Request, error) {
	name := cfg.Counters[seq%len(cfg.Counters)]

	if cfg.WriteRatio > 0 && seq%writeEvery(cfg.WriteRatio) == 0 {
		form := url.Values{"counter_name": {name}, "delta": {"1"}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/_titan/stats/increment", strings.NewReader(form.Encode()))
		if err != nil {
			return "", nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return "increment", req, nil
	}

	query := url.Values{
		"counter_name": {name, cfg.Counters[(seq+1)%len(cfg.Counters)]},
		"start_date":   {now.AddDate(0, 0, -cfg.Days).UTC().Format("2006-01-02")},
		"end_date":     {now.UTC().Format("2006-01-02")},
	}
	endpoint := "counterdata"
	if seq%2 == 1 {
		endpoint = "graph"
		query.Set("window_size", "7")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/_titan/stats/"+endpoint+"?"+query.Encode(), nil)
	return endpoint, req, err
}

func writeEvery(ratio float64) int {
	every := int(math.Round(1 / ratio))
	if every < 1 {
		return 1
	}
	return every
}

func printReport(stats *Stats, duration time.Duration) bool {
	names := []string{"counterdata", "graph", "increment"}
	var total int64
	for _, name := range names {
		e := stats.endpoints[name]
		requests := e.requests.Load()
		total += requests
		if requests == 0 {
			continue
		}

		e.mu.Lock()
		latencies := append([]time.Duration(nil), e.latencies...)
		e.mu.Unlock()
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		fmt.Printf("=== %s ===\n", name)
		fmt.Printf("Requests:     %d\n", requests)
		fmt.Printf("Errors:       %d (%.2f%%)\n", e.errors.Load(), float64(e.errors.Load())/float64(requests)*100)
		fmt.Printf("Requests/sec: %.2f\n", float64(requests)/duration.Seconds())
		if len(latencies) > 0 {
			fmt.Printf("P50:          %s\n", percentile(latencies, 50))
			fmt.Printf("P95:          %s\n", percentile(latencies, 95))
			fmt.Printf("P99:          %s\n", percentile(latencies, 99))
			fmt.Printf("Max:          %s\n", latencies[len(latencies)-1])
		}
		fmt.Println()
	}

	fmt.Println("=== Status Codes ===")
	stats.statusMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
