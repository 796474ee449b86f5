package actions

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/BaSui01/monitorflow/types"
)

// SignatureHeader webhook 签名头，值为 sha256=<hex>
const SignatureHeader = "X-Webhook-Signature"

// EventHeader webhook 事件名头
const EventHeader = "X-Webhook-Event"

// WebhookExecutor 发送 JSON webhook，配置了密钥时附带 HMAC 签名
type WebhookExecutor struct {
	secret string
	http   *httpCaller
}

// NewWebhookExecutor 创建 webhook 执行器
func NewWebhookExecutor(secret string, caller *httpCaller) *WebhookExecutor {
	return &WebhookExecutor{secret: secret, http: caller}
}

// Execute 参数: url, payload(或 data), event, secret
func (e *WebhookExecutor) Execute(ctx context.Context, params map[string]any) (types.ActionResult, error) {
	target := stringParam(params, "url", "")
	if target == "" {
		return types.ActionResult{}, invalid("webhook requires url")
	}
	payload, ok := params["payload"]
	if !ok {
		payload = params["data"]
	}
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := jsonBody(payload)
	if err != nil {
		return types.ActionResult{}, err
	}

	headers := map[string]string{}
	if ev := stringParam(params, "event", ""); ev != "" {
		headers[EventHeader] = ev
	}
	if secret := stringParam(params, "secret", e.secret); secret != "" {
		headers[SignatureHeader] = Sign(secret, body)
	}

	output := map[string]any{"url": target}
	resp, err := e.http.expectOK(ctx, request{Method: "POST", URL: target, Headers: headers, Body: body}, "webhook")
	if resp != nil {
		output["status_code"] = resp.Status
	}
	if err != nil {
		return types.ActionResult{Output: output}, err
	}
	return types.ActionResult{Success: true, StatusCode: resp.Status, Output: output}, nil
}

// Sign 计算 body 的 HMAC-SHA256 签名
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
