package plc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fleetworks/wcs-go/internal/domain/lifter"
)

// gatewayTimeout bounds one tag round trip. Tag reads drive the
// sensor poll loop, so a hung bridge must fail fast.
const gatewayTimeout = 5 * time.Second

// GatewayClient talks to the S7 tag bridge over its REST surface. The
// bridge exposes each boolean tag at /tags/{name}: GET reads, PUT
// writes. Sites without a bridge run the Simulator instead.
type GatewayClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewGatewayClient creates a client for the tag bridge at baseURL
func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		httpClient: &http.Client{Timeout: gatewayTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

var _ lifter.PLCClient = (*GatewayClient)(nil)

// ReadBool reads one boolean tag
func (c *GatewayClient) ReadBool(ctx context.Context, tag string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tags/"+tag, nil)
	if err != nil {
		return false, fmt.Errorf("building read request for tag %s: %w", tag, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("reading tag %s: %w", tag, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("reading tag %s: bridge returned status %d", tag, resp.StatusCode)
	}

	var body struct {
		Value bool `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decoding tag %s: %w", tag, err)
	}
	return body.Value, nil
}

// WriteBool writes one boolean tag
func (c *GatewayClient) WriteBool(ctx context.Context, tag string, value bool) error {
	payload, err := json.Marshal(struct {
		Value bool `json:"value"`
	}{Value: value})
	if err != nil {
		return fmt.Errorf("encoding tag %s: %w", tag, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/tags/"+tag, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building write request for tag %s: %w", tag, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("writing tag %s: %w", tag, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("writing tag %s: bridge returned status %d", tag, resp.StatusCode)
	}
	return nil
}

// Close is part of the PLCClient contract. The bridge is stateless
// HTTP, so there is no connection to tear down.
func (c *GatewayClient) Close() error {
	return nil
}
