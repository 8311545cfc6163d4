package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/fleetworks/wcs-go/internal/adapters/metrics"
	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 5
	defaultBackoffBase = time.Second

	// Five pollers per AMR at sub-second budgets add up quickly; the
	// limiter protects the vendor controller, not us.
	defaultRateLimit = 50
	defaultBurst     = 50

	breakerMaxFailures = 5
	breakerTimeout     = 30 * time.Second
)

// AMRVendorClient implements the AMRClient interface against the AMR
// maker's REST controller
type AMRVendorClient struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	breaker     *CircuitBreaker
	collector   *metrics.APIMetricsCollector
	baseURL     string
	maxRetries  int
	backoffBase time.Duration
	clock       shared.Clock
}

// NewAMRVendorClient creates a vendor API client with default settings
// Rate limit: 50 requests per second with burst of 50
// Retry: max 5 attempts with 1s exponential backoff + jitter
// Circuit breaker: opens after 5 exhausted requests, retests after 30s
func NewAMRVendorClient(baseURL string) *AMRVendorClient {
	return NewAMRVendorClientWithConfig(
		baseURL,
		defaultMaxRetries,
		defaultBackoffBase,
		nil, // no metrics
		nil, // Use RealClock by default
	)
}

// NewAMRVendorClientWithConfig creates a vendor API client with custom
// configuration. collector may be nil; if clock is nil, uses RealClock.
func NewAMRVendorClientWithConfig(
	baseURL string,
	maxRetries int,
	backoffBase time.Duration,
	collector *metrics.APIMetricsCollector,
	clock shared.Clock,
) *AMRVendorClient {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &AMRVendorClient{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		breaker:     NewCircuitBreaker(breakerMaxFailures, breakerTimeout, clock),
		collector:   collector,
		baseURL:     baseURL,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		clock:       clock,
	}
}

var _ common.AMRClient = (*AMRVendorClient)(nil)

// FetchLocation retrieves the live position report of one AMR
func (c *AMRVendorClient) FetchLocation(ctx context.Context, amrID string) (*common.AMRLocation, error) {
	path := fmt.Sprintf("/api/amr/%s/location", amrID)

	var response struct {
		X       float64 `json:"x"`
		Y       float64 `json:"y"`
		NodeQR  string  `json:"nodeQr"`
		FloorID int     `json:"floorId"`
		Heading float64 `json:"heading"`
	}

	if err := c.request(ctx, "GET", "location", path, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch location for %s: %w", amrID, err)
	}

	return &common.AMRLocation{
		X:       response.X,
		Y:       response.Y,
		NodeQR:  response.NodeQR,
		FloorID: response.FloorID,
		Heading: response.Heading,
	}, nil
}

// FetchBattery retrieves the battery report of one AMR
func (c *AMRVendorClient) FetchBattery(ctx context.Context, amrID string) (*common.AMRBattery, error) {
	path := fmt.Sprintf("/api/amr/%s/battery", amrID)

	var response struct {
		Percent  float64 `json:"percent"`
		Charging bool    `json:"charging"`
	}

	if err := c.request(ctx, "GET", "battery", path, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch battery for %s: %w", amrID, err)
	}

	return &common.AMRBattery{
		Percent:  response.Percent,
		Charging: response.Charging,
	}, nil
}

// FetchCargo retrieves the cargo deck report of one AMR
func (c *AMRVendorClient) FetchCargo(ctx context.Context, amrID string) (*common.AMRCargo, error) {
	path := fmt.Sprintf("/api/amr/%s/cargo", amrID)

	var response struct {
		Loaded bool   `json:"loaded"`
		RackID string `json:"rackId"`
	}

	if err := c.request(ctx, "GET", "cargo", path, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch cargo for %s: %w", amrID, err)
	}

	return &common.AMRCargo{
		Loaded: response.Loaded,
		RackID: response.RackID,
	}, nil
}

// FetchStatus retrieves the operational status of one AMR
func (c *AMRVendorClient) FetchStatus(ctx context.Context, amrID string) (*common.AMRStatus, error) {
	path := fmt.Sprintf("/api/amr/%s/status", amrID)

	var response struct {
		State     string `json:"state"`
		ErrorCode int    `json:"errorCode"`
		TaskID    string `json:"taskId"`
	}

	if err := c.request(ctx, "GET", "status", path, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch status for %s: %w", amrID, err)
	}

	return &common.AMRStatus{
		State:     response.State,
		ErrorCode: response.ErrorCode,
		TaskID:    response.TaskID,
	}, nil
}

// FetchSensors retrieves the safety sensor report of one AMR
func (c *AMRVendorClient) FetchSensors(ctx context.Context, amrID string) (*common.AMRSensors, error) {
	path := fmt.Sprintf("/api/amr/%s/sensors", amrID)

	var response struct {
		ObstacleDetected bool `json:"obstacleDetected"`
		EmergencyStop    bool `json:"emergencyStop"`
		LidarHealthy     bool `json:"lidarHealthy"`
	}

	if err := c.request(ctx, "GET", "sensors", path, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch sensors for %s: %w", amrID, err)
	}

	return &common.AMRSensors{
		ObstacleDetected: response.ObstacleDetected,
		EmergencyStop:    response.EmergencyStop,
		LidarHealthy:     response.LidarHealthy,
	}, nil
}

// SendMoveTask pushes a move task list to the AMR controller
func (c *AMRVendorClient) SendMoveTask(ctx context.Context, amrID string, task *common.AMRMoveTask) error {
	path := fmt.Sprintf("/api/amr/%s/move-task", amrID)

	if err := c.request(ctx, "POST", "move-task", path, task, nil); err != nil {
		return fmt.Errorf("failed to send move task to %s: %w", amrID, err)
	}
	return nil
}

// addJitter adds random jitter to a duration to avoid thundering herd
// Returns a duration between 50% and 150% of the original value
func addJitter(d time.Duration) time.Duration {
	jitter := 0.5 + rand.Float64() // 0.5 to 1.5
	return time.Duration(float64(d) * jitter)
}

// request makes an HTTP request with rate limiting, circuit breaking and
// exponential backoff retries. endpoint is the stable metrics label for
// the operation; path carries the concrete AMR id.
func (c *AMRVendorClient) request(ctx context.Context, method, endpoint, path string, body interface{}, result interface{}) error {
	return c.breaker.Call(func() error {
		return c.doRequest(ctx, method, endpoint, path, body, result)
	})
}

func (c *AMRVendorClient) doRequest(ctx context.Context, method, endpoint, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Wait for rate limiter
		waitStart := c.clock.Now()
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}
		if c.collector != nil {
			c.collector.RecordRateLimitWait(method, endpoint, c.clock.Since(waitStart).Seconds())
		}

		var reqBody io.Reader
		if body != nil {
			jsonData, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			reqBody = bytes.NewBuffer(jsonData)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		start := c.clock.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network error - retryable
			lastErr = fmt.Errorf("network error: %w", err)
			if c.collector != nil {
				c.collector.RecordAPIRetry(method, endpoint, "network")
			}
			if attempt >= c.maxRetries {
				break
			}
			if ctx.Err() != nil {
				return fmt.Errorf("context cancelled: %w", ctx.Err())
			}
			c.clock.Sleep(addJitter(c.backoffBase * time.Duration(1<<attempt)))
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if c.collector != nil {
			c.collector.RecordAPIRequest(method, endpoint, resp.StatusCode, c.clock.Since(start).Seconds())
		}

		// 429: honor Retry-After when the controller provides one
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			if c.collector != nil {
				c.collector.RecordAPIRetry(method, endpoint, "429")
			}
			if attempt >= c.maxRetries {
				break
			}
			if ctx.Err() != nil {
				return fmt.Errorf("context cancelled: %w", ctx.Err())
			}
			backoffDelay := addJitter(c.backoffBase * time.Duration(1<<attempt))
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					backoffDelay = time.Duration(seconds) * time.Second
				}
			}
			c.clock.Sleep(backoffDelay)
			continue
		}

		// 5xx server errors - retryable
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error (%d)", resp.StatusCode)
			if c.collector != nil {
				c.collector.RecordAPIRetry(method, endpoint, strconv.Itoa(resp.StatusCode))
			}
			if attempt >= c.maxRetries {
				break
			}
			if ctx.Err() != nil {
				return fmt.Errorf("context cancelled: %w", ctx.Err())
			}
			c.clock.Sleep(addJitter(c.backoffBase * time.Duration(1<<attempt)))
			continue
		}

		// Remaining non-2xx are client errors - NOT retryable
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("AMR API error (status %d): %s", resp.StatusCode, string(respBody))
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to unmarshal response: %w", err)
			}
		}
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return fmt.Errorf("max retries exceeded")
}
