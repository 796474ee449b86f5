// Package httpx 汇集出站 HTTP 调用共用的错误映射与响应读取辅助函数。
package httpx

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BaSui01/monitorflow/internal/tlsutil"
	"github.com/BaSui01/monitorflow/types"
)

// maxErrorBody 错误响应体最多读取的字节数
const maxErrorBody = 64 << 10

// NewClient 创建带超时与 TLS 加固的 HTTP 客户端
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return tlsutil.SecureHTTPClient(timeout)
}

// MapStatus 将 HTTP 状态码映射为带重试标记的 types.Error。
// 429 与 5xx 可重试，其余 4xx 不可重试。
func MapStatus(status int, msg, target string) *types.Error {
	message := fmt.Sprintf("%s returned status %d", target, status)
	if msg != "" {
		message += ": " + msg
	}
	switch {
	case status == http.StatusNotFound:
		return types.NewError(types.ErrNotFound, message)
	case status == http.StatusTooManyRequests, status >= 500:
		return types.NewError(types.ErrUpstream, message).WithRetryable(true)
	case status >= 400:
		return types.NewError(types.ErrInvalidInput, message)
	default:
		return types.NewError(types.ErrUpstream, message)
	}
}

// TransportError 网络层错误，可重试
func TransportError(target string, err error) *types.Error {
	return types.WrapError(types.ErrUpstream, target+" request failed", err).WithRetryable(true)
}

// ReadErrorMessage 读取响应体中的错误消息
// 尝试解析 JSON 错误响应，失败则回退到原始文本
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil {
		switch e := errResp.Error.(type) {
		case string:
			if e != "" {
				return e
			}
		case map[string]any:
			if m, ok := e["message"].(string); ok && m != "" {
				return m
			}
		}
		if errResp.Message != "" {
			return errResp.Message
		}
	}

	return string(data)
}

// DecodeJSON 解码响应体，失败视为上游错误
func DecodeJSON(body io.Reader, v any, target string) error {
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return types.WrapError(types.ErrUpstream, "decode "+target+" response", err)
	}
	return nil
}
