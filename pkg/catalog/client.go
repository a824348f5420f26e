package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tiendaweb/tienda-backend/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// Cache is the subset of a key/value cache the client needs. A nil Cache
// disables caching.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

// Client talks to the product directory over HTTP.
type Client struct {
	config     Config
	httpClient *http.Client
	cache      Cache
	group      singleflight.Group
}

// NewClient creates a new product directory client with the given configuration
func NewClient(config Config, cache Cache) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		cache:      cache,
	}, nil
}

// GetConfig returns the client configuration
func (c *Client) GetConfig() Config {
	return c.config
}

func productKey(id uint) string {
	return "product:" + strconv.FormatUint(uint64(id), 10)
}

// GetProduct reads the product live from the directory. Concurrent calls for
// the same id share one request. The shared request is detached from every
// caller's cancellation and bounded by the client timeout; each caller stops
// waiting when its own ctx ends.
func (c *Client) GetProduct(ctx context.Context, id uint) (*Product, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(productKey(id), func() (interface{}, error) {
		body, err := c.doRequest(shared, http.MethodGet, fmt.Sprintf("/api/productos/%d", id), nil, nil)
		if err != nil {
			return nil, err
		}
		return decodeProduct(body)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	// Callers may mutate the result; hand each one its own copy.
	product := *res.Val.(*Product)
	return &product, nil
}

// LookupProduct is GetProduct behind the cache. Use it where slightly stale
// data is acceptable, never for stock validation.
func (c *Client) LookupProduct(ctx context.Context, id uint) (*Product, error) {
	key := productKey(id)

	if c.cache != nil {
		var cached Product
		hit, err := c.cache.Get(ctx, key, &cached)
		if err != nil {
			logger.Warn("Product cache read failed", map[string]interface{}{
				"product_id": id,
				"error":      err.Error(),
			})
		}
		if hit {
			return &cached, nil
		}
	}

	product, err := c.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, product); err != nil {
			logger.Warn("Product cache write failed", map[string]interface{}{
				"product_id": id,
				"error":      err.Error(),
			})
		}
	}
	return product, nil
}

// DecrementStock subtracts quantity from the product's stock. idempotencyKey
// lets the directory drop replays of a request it has already applied.
func (c *Client) DecrementStock(ctx context.Context, id uint, quantity int, idempotencyKey string) (*Product, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	body, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/api/productos/%d/stock", id),
		StockRequest{Quantity: quantity, Operation: "restar"}, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement stock: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Delete(ctx, productKey(id)); err != nil {
			logger.Warn("Product cache invalidation failed", map[string]interface{}{
				"product_id": id,
				"error":      err.Error(),
			})
		}
	}

	return decodeProduct(body)
}

func decodeProduct(body []byte) (*Product, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product response: %w", err)
	}
	if env.Data != nil {
		return env.Data, nil
	}

	var product Product
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product response: %w", err)
	}
	return &product, nil
}

// doRequest performs an HTTP request against the directory
func (c *Client) doRequest(ctx context.Context, method, path string, payload interface{}, headers map[string]string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := c.config.BaseURL + path
	logger.Debug("Product directory request", map[string]interface{}{
		"method": method,
		"url":    url,
	})

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrNetworkError, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	var errResp ErrorResponse
	_ = json.Unmarshal(body, &errResp)
	errorMsg := fmt.Sprintf("status %d: %s", resp.StatusCode, errResp.text())

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, errorMsg)
	case resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(errResp.text()), "stock insuficiente"):
		return nil, fmt.Errorf("%w: %s", ErrInsufficientStock, errorMsg)
	default:
		logger.Warn("Unexpected product directory response", map[string]interface{}{
			"method": method,
			"url":    url,
			"status": resp.StatusCode,
			"body":   string(body),
		})
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, errorMsg)
	}
}
