package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/justinsudev/wikisearch/internal/shardapi"
	apperrors "github.com/justinsudev/wikisearch/pkg/errors"
	"github.com/justinsudev/wikisearch/pkg/resilience"
)

// ShardClient fetches ranked hits from one shard server over HTTP. Calls run
// behind a circuit breaker so a dead shard stops costing the fan-out its full
// timeout on every query.
type ShardClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	timeout    time.Duration
	logger     *slog.Logger
}

// NewShardClient creates a client for the shard hits endpoint at baseURL
// (e.g. "http://localhost:9000/api/v1/hits/").
func NewShardClient(baseURL string, timeout time.Duration) *ShardClient {
	return &ShardClient{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		breaker:    resilience.NewCircuitBreaker("shard:"+baseURL, resilience.CircuitBreakerConfig{}),
		timeout:    timeout,
		logger:     slog.Default().With("component", "shard-client", "shard", baseURL),
	}
}

// URL returns the shard endpoint this client targets.
func (c *ShardClient) URL() string { return c.baseURL }

// Hits queries the shard. The call is bounded by the client's per-shard
// timeout regardless of the parent context's deadline.
func (c *ShardClient) Hits(ctx context.Context, query string, weight float64, mode string) (shardapi.HitsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("w", strconv.FormatFloat(weight, 'g', -1, 64))
	params.Set("semantic", mode)
	reqURL := c.baseURL + "?" + params.Encode()

	var resp shardapi.HitsResponse
	err := c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("building shard request: %w", err)
		}
		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("calling shard: %w", err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: status %d from %s", apperrors.ErrShardUnavailable, httpResp.StatusCode, c.baseURL)
		}
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return fmt.Errorf("decoding shard response: %w", err)
		}
		return nil
	})
	if err != nil {
		return shardapi.HitsResponse{}, err
	}
	return resp, nil
}

// State exposes the breaker state for health reporting.
func (c *ShardClient) State() resilience.State {
	return c.breaker.GetState()
}
