// Package rpc is a small HTTP client for talking to the supervised services
package rpc

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"handv-deploy/internal/models"
)

// HTTPConfig 定义HTTP客户端配置
type HTTPConfig struct {
	BaseURL string        // 基础URL，例如 http://127.0.0.1:6666
	Timeout time.Duration // 单次请求超时
}

// DefaultHTTPConfig returns the configuration for a service listening on localhost:port
func DefaultHTTPConfig(port int) *HTTPConfig {
	return &HTTPConfig{
		BaseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		Timeout: 5 * time.Second,
	}
}

// HTTPResponse 定义HTTP响应结构
type HTTPResponse struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
	Error      string              `json:"error"`
}

func (r *HTTPResponse) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// buildURL 构建完整的URL
func buildURL(baseURL, path string, params map[string]interface{}) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")

	if len(params) > 0 {
		q := u.Query()
		for key, value := range params {
			q.Set(key, fmt.Sprintf("%v", value))
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// deserializeResponse 读取响应，非 2xx 时尽量从 ErrorResponse 中取出错误信息
func deserializeResponse(resp *http.Response) (*HTTPResponse, error) {
	defer resp.Body.Close()
	httpResp := &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	httpResp.Body = body
	if httpResp.OK() {
		return httpResp, nil
	}
	var errBody models.ErrorResponse
	if len(body) > 0 && json.Unmarshal(body, &errBody) == nil && errBody.Error != "" {
		httpResp.Error = errBody.Error
	} else {
		httpResp.Error = resp.Status
	}
	return httpResp, nil
}
