package rpc

import (
	"context"
	"fmt"
	"net/http"

	"handv-deploy/internal/logger"
)

// HTTPClient 定义HTTP客户端接口
type HTTPClient interface {
	Get(ctx context.Context, path string, params map[string]interface{}) (*HTTPResponse, error)
	Close() error
}

type httpClient struct {
	config *HTTPConfig
	client *http.Client
}

/**
 * Create new HTTP client
 * @param {*HTTPConfig} config - base URL and timeout, localhost:80 when nil
 * @returns {HTTPClient}
 * @example
 * client := NewHTTPClient(DefaultHTTPConfig(6666))
 * defer client.Close()
 * resp, err := client.Get(ctx, "/api/ping", nil)
 */
func NewHTTPClient(config *HTTPConfig) HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig(80)
	}
	return &httpClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (c *httpClient) do(ctx context.Context, method, path string, params map[string]interface{}) (*HTTPResponse, error) {
	u, err := buildURL(c.config.BaseURL, path, params)
	if err != nil {
		return nil, err
	}
	logger.Debugf("Sending %s request to %s", method, u)

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return deserializeResponse(resp)
}

func (c *httpClient) Get(ctx context.Context, path string, params map[string]interface{}) (*HTTPResponse, error) {
	return c.do(ctx, http.MethodGet, path, params)
}

func (c *httpClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

/**
 * Probe a service liveness endpoint
 * @param {context.Context} ctx - request context
 * @param {int} port - service port on localhost
 * @param {string} path - endpoint such as /api/ping
 * @returns {error} nil when the endpoint answered 2xx
 */
func Ping(ctx context.Context, port int, path string) error {
	client := NewHTTPClient(DefaultHTTPConfig(port))
	defer client.Close()
	resp, err := client.Get(ctx, path, nil)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, resp.Error)
	}
	return nil
}
