package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/monitorflow/config"
	"github.com/BaSui01/monitorflow/internal/circuitbreaker"
	"github.com/BaSui01/monitorflow/internal/httpx"
	"github.com/BaSui01/monitorflow/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// runRequest POST /v1/workflows/{name}/runs 请求体
type runRequest struct {
	Input          types.AIWorkflowInput `json:"input"`
	TimeoutSeconds int                   `json:"timeout_seconds"`
	DryRun         bool                  `json:"dry_run"`
}

// HTTPOrchestrator 通过 REST 调用远程编排服务
type HTTPOrchestrator struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger

	secret   []byte
	issuer   string
	tokenTTL time.Duration
	maxWait  time.Duration
	dryRun   bool
	now      func() time.Time
}

// NewHTTPOrchestrator 创建 HTTP 编排客户端
func NewHTTPOrchestrator(cfg config.OrchestratorConfig, logger *zap.Logger) (*HTTPOrchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, types.NewError(types.ErrInvalidInput, fmt.Sprintf("invalid orchestrator base_url %q", cfg.BaseURL))
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	logger = logger.With(zap.String("component", "orchestrator"))

	return &HTTPOrchestrator{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		// 超时由每次调用的 ctx 控制
		client: httpx.NewClient(cfg.RequestTimeout + 30*time.Second),
		breaker: circuitbreaker.New("orchestrator", circuitbreaker.Config{
			Threshold:    cfg.BreakerThreshold,
			ResetTimeout: cfg.BreakerTimeout,
		}, logger),
		logger:   logger,
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		tokenTTL: ttl,
		maxWait:  cfg.RequestTimeout,
		dryRun:   cfg.DryRun,
		now:      time.Now,
	}, nil
}

// RunWorkflow 同步执行工作流，等待至多 min(timeout, request_timeout)
func (o *HTTPOrchestrator) RunWorkflow(ctx context.Context, workflowName string, input types.AIWorkflowInput, timeout time.Duration) (*Response, error) {
	if strings.TrimSpace(workflowName) == "" {
		return nil, types.NewError(types.ErrInvalidInput, "workflow name is required")
	}
	if o.maxWait > 0 && (timeout <= 0 || timeout > o.maxWait) {
		timeout = o.maxWait
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := json.Marshal(runRequest{
		Input:          input,
		TimeoutSeconds: int(timeout / time.Second),
		DryRun:         input.DryRun || o.dryRun,
	})
	if err != nil {
		return nil, types.WrapError(types.ErrInvalidInput, "encode workflow input", err)
	}
	endpoint := o.baseURL + "/v1/workflows/" + url.PathEscape(workflowName) + "/runs"

	return circuitbreaker.CallWithResultTyped(o.breaker, ctx, func(ctx context.Context) (*Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if len(o.secret) > 0 {
			token, err := o.token(workflowName)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if id, ok := types.TraceID(ctx); ok {
			req.Header.Set("X-Trace-ID", id)
		}

		resp, err := o.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, types.WrapError(types.ErrTimeout, "workflow "+workflowName+" timed out", ctx.Err()).WithRetryable(true)
			}
			return nil, httpx.TransportError("orchestrator", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return nil, httpx.MapStatus(resp.StatusCode, httpx.ReadErrorMessage(resp.Body), "orchestrator")
		}
		var out Response
		if err := httpx.DecodeJSON(resp.Body, &out, "orchestrator"); err != nil {
			return nil, err
		}
		if out.WorkflowName == "" {
			out.WorkflowName = workflowName
		}

		o.logger.Debug("workflow completed",
			zap.String("workflow", workflowName),
			zap.String("run_id", out.RunID),
			zap.Bool("success", out.Success))
		return &out, nil
	})
}

// token 签发短期 HS256 token
func (o *HTTPOrchestrator) token(workflowName string) (string, error) {
	now := o.now()
	claims := jwt.RegisteredClaims{
		Issuer:    o.issuer,
		Subject:   workflowName,
		Audience:  jwt.ClaimStrings{"orchestrator"},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(o.tokenTTL)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(o.secret)
	if err != nil {
		return "", types.WrapError(types.ErrInvalidInput, "sign orchestrator token", err)
	}
	return signed, nil
}

// BreakerState 熔断器状态
func (o *HTTPOrchestrator) BreakerState() circuitbreaker.State {
	return o.breaker.State()
}
