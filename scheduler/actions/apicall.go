package actions

import (
	"context"
	"net/http"
	"strings"

	"github.com/BaSui01/monitorflow/types"
)

// APICallExecutor 通用 HTTP 调用
type APICallExecutor struct {
	http *httpCaller
}

// NewAPICallExecutor 创建 API 调用执行器
func NewAPICallExecutor(caller *httpCaller) *APICallExecutor {
	return &APICallExecutor{http: caller}
}

// Execute 参数: url, method(默认 GET), headers, data。
// 4xx 返回 success=false 而不是错误，429/5xx 与网络错误返回可重试错误。
func (e *APICallExecutor) Execute(ctx context.Context, params map[string]any) (types.ActionResult, error) {
	target := stringParam(params, "url", "")
	if target == "" {
		return types.ActionResult{}, invalid("api_call requires url")
	}
	method := strings.ToUpper(stringParam(params, "method", http.MethodGet))

	headers := make(map[string]string)
	for k, v := range mapParam(params, "headers") {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	body, err := jsonBody(params["data"])
	if err != nil {
		return types.ActionResult{}, err
	}

	resp, err := e.http.do(ctx, request{Method: method, URL: target, Headers: headers, Body: body})
	if err != nil {
		return types.ActionResult{}, err
	}

	result := types.ActionResult{
		Success:    resp.Status < 400,
		StatusCode: resp.Status,
		Output: map[string]any{
			"url":      target,
			"method":   method,
			"response": resp.JSON(),
		},
	}
	if !result.Success {
		result.Error = http.StatusText(resp.Status)
	}
	return result, nil
}
