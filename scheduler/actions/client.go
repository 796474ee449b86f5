package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/BaSui01/monitorflow/internal/circuitbreaker"
	"github.com/BaSui01/monitorflow/internal/httpx"
)

// maxResponseBody 响应体最多保留的字节数
const maxResponseBody = 1 << 20

type request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

type response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON 尝试将响应体解码为 JSON，失败时返回原始文本
func (r *response) JSON() any {
	if len(r.Body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(r.Body, &v); err == nil {
		return v
	}
	return string(r.Body)
}

// httpCaller 出站 HTTP 调用，按目标主机熔断
type httpCaller struct {
	client   *http.Client
	breakers *circuitbreaker.Group
}

// do 执行请求。429 与 5xx 以可重试错误返回并计入熔断；其余 4xx 只返回响应。
func (c *httpCaller) do(ctx context.Context, req request) (*response, error) {
	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" {
		return nil, invalid("invalid url %q", req.URL)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	return circuitbreaker.CallWithResultTyped(c.breakers.Get(u.Host), ctx,
		func(ctx context.Context) (*response, error) {
			var body io.Reader
			if req.Body != nil {
				body = bytes.NewReader(req.Body)
			}
			httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
			if err != nil {
				return nil, fmt.Errorf("failed to create request: %w", err)
			}
			if req.Body != nil {
				httpReq.Header.Set("Content-Type", "application/json")
			}
			for k, v := range req.Headers {
				httpReq.Header.Set(k, v)
			}

			resp, err := c.client.Do(httpReq)
			if err != nil {
				return nil, httpx.TransportError(u.Host, err)
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
			if err != nil {
				return nil, httpx.TransportError(u.Host, err)
			}
			out := &response{Status: resp.StatusCode, Header: resp.Header, Body: data}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return out, httpx.MapStatus(resp.StatusCode, httpx.ReadErrorMessage(bytes.NewReader(data)), u.Host)
			}
			return out, nil
		})
}

// expectOK 调用并要求 2xx/3xx
func (c *httpCaller) expectOK(ctx context.Context, req request, target string) (*response, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return resp, err
	}
	if resp.Status >= 400 {
		return resp, httpx.MapStatus(resp.Status, httpx.ReadErrorMessage(bytes.NewReader(resp.Body)), target)
	}
	return resp, nil
}

func jsonBody(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, invalid("encode request body: %v", err)
	}
	return data, nil
}
