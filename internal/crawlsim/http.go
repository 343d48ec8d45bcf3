package crawlsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/crawlplan/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Do sends a request with an optional JSON body and reads the whole response.
// headers is a flat list of name, value pairs.
func (c *HTTPClient) Do(ctx context.Context, method, url string, body any, headers ...string) (*Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// expect checks the status code and decodes the body into v when v is not nil.
func (r *Response) expect(status int, v any) error {
	if r.Status != status {
		body := r.Body
		if len(body) > MaxErrorBodyBytes {
			body = body[:MaxErrorBodyBytes]
		}
		return fmt.Errorf("expected status %d, got %d: %s", status, r.Status, bytes.TrimSpace(body))
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// runPlanners runs every virtual planner on a pool of workers.
func runPlanners(ctx context.Context, config *Config, stats *Stats) []Result {
	log := logger.Get().Named("crawlsim")
	log.Info(ctx, "starting planners",
		logger.Int("planners", config.Planners),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	results := make([]Result, config.Planners)
	for n := range results {
		results[n] = Result{Planner: n, Failed: "start", Error: "not run"}
	}

	var (
		finished  int64
		succeeded int64
		failed    int64
	)

	var lastReport atomic.Int64
	reportInterval := time.Second

	jobs := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for n := range jobs {
				if ctx.Err() != nil {
					results[n].Error = ctx.Err().Error()
					continue
				}
				res := runScenario(ctx, client, config, n)
				results[n] = res

				atomic.AddInt64(&finished, 1)
				if res.OK() {
					atomic.AddInt64(&succeeded, 1)
				} else {
					atomic.AddInt64(&failed, 1)
					log.Debug(ctx, "planner failed",
						logger.Int("planner", n),
						logger.String("step", res.Failed),
						logger.String("error", res.Error))
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(reportInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Int64("finished", atomic.LoadInt64(&finished)),
						logger.Int("planners", config.Planners),
						logger.Int64("succeeded", atomic.LoadInt64(&succeeded)),
						logger.Int64("failed", atomic.LoadInt64(&failed)))
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for n := 0; n < config.Planners; n++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- n:
			}
		}
	}()

	wg.Wait()

	stats.PlannersStarted = int(atomic.LoadInt64(&finished))
	stats.PlannersSucceeded = int(atomic.LoadInt64(&succeeded))
	stats.PlannersFailed = int(atomic.LoadInt64(&failed))
	for _, r := range results {
		stats.StepsCompleted += r.Steps
		stats.Replays += r.Replays
	}
	return results
}
