package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/domain"
)

const (
	defaultDailyLimit = 2000
	defaultCacheTTL   = 6 * time.Hour
)

// Client is an HTTP market data client with response caching and a daily
// request budget. Fetches carry the configured timeout; a timeout is a
// per-symbol failure for the caller, never a pipeline failure.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger

	mu           sync.Mutex
	requestCount int
	dailyLimit   int
	countDate    time.Time
	cache        map[string]cacheEntry
	cacheTTL     time.Duration
}

type cacheEntry struct {
	series    *domain.PriceSeries
	expiresAt time.Time
}

// NewClient creates a new market data client
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		log:        log.With().Str("client", "marketdata").Logger(),
		dailyLimit: defaultDailyLimit,
		countDate:  time.Now().Truncate(24 * time.Hour),
		cache:      make(map[string]cacheEntry),
		cacheTTL:   defaultCacheTTL,
	}
}

// SetDailyLimit overrides the daily request budget
func (c *Client) SetDailyLimit(limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dailyLimit = limit
}

// RemainingRequests returns how many requests are left in today's budget
func (c *Client) RemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollCounterLocked()
	return c.dailyLimit - c.requestCount
}

// Fetch retrieves the daily series for one symbol over [start, end]
func (c *Client) Fetch(ctx context.Context, symbol string, start, end time.Time) (*domain.PriceSeries, error) {
	key := cacheKey(symbol, start, end)
	if series, ok := c.getCached(key); ok {
		return series, nil
	}

	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s",
		c.baseURL, url.PathEscape(symbol), rangeQuery(start, end))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode chart payload for %s: %w", symbol, err)
	}

	series, err := parseChartResult(symbol, payload)
	if err != nil {
		return nil, err
	}

	c.setCached(key, series)
	return series, nil
}

// FetchMulti retrieves daily series for several symbols in one call.
// The spark endpoint returns one layered column group per symbol; a group
// without a resolvable close field yields ErrNoCloseColumn for the batch.
func (c *Client) FetchMulti(ctx context.Context, symbols []string, start, end time.Time) (map[string]*domain.PriceSeries, error) {
	if len(symbols) == 0 {
		return map[string]*domain.PriceSeries{}, nil
	}

	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v7/finance/spark?symbols=%s&%s",
		c.baseURL, url.QueryEscape(strings.Join(symbols, ",")), rangeQuery(start, end))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch multi [%s]: %w", strings.Join(symbols, ","), err)
	}

	var payload sparkResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode spark payload: %w", err)
	}

	return parseSparkResult(symbols, payload)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "vigil/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// checkRateLimit consumes one unit of the daily budget
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollCounterLocked()
	if c.requestCount >= c.dailyLimit {
		return ErrRateLimitExceeded{Limit: c.dailyLimit}
	}
	c.requestCount++
	return nil
}

func (c *Client) rollCounterLocked() {
	today := time.Now().Truncate(24 * time.Hour)
	if today.After(c.countDate) {
		c.requestCount = 0
		c.countDate = today
	}
}

func (c *Client) getCached(key string) (*domain.PriceSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.series, true
}

func (c *Client) setCached(key string, series *domain.PriceSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{series: series, expiresAt: time.Now().Add(c.cacheTTL)}
}

func cacheKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s|%d|%d", symbol, start.Unix(), end.Unix())
}

func rangeQuery(start, end time.Time) string {
	return fmt.Sprintf("period1=%d&period2=%d&interval=1d", start.Unix(), end.Unix())
}
