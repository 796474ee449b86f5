package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/BaSui01/monitorflow/internal/httpx"
	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/types"
	"go.uber.org/zap"
)

// itemKeys 对象形式响应中承载条目列表的常见字段
var itemKeys = []string{"items", "tasks", "messages", "emails", "data"}

// HTTPSource 通用 JSON 数据源。
// 响应可以是对象数组，或包含 items/tasks/messages/emails/data 数组的对象。
type HTTPSource struct {
	URL      string
	Token    string
	Type     types.DataType
	Source   string
	IDPrefix string

	client *http.Client
	logger *zap.Logger
}

// NewHTTPSource 按条目配置创建数据源，未配置 source_url 时返回 nil
func NewHTTPSource(p checkpoint.Params, typ types.DataType, source string, deps Deps) *HTTPSource {
	url := strings.TrimSpace(p.String("source_url", ""))
	if url == "" {
		return nil
	}
	return &HTTPSource{
		URL:      url,
		Token:    p.String("source_token", ""),
		Type:     typ,
		Source:   p.String("source_name", source),
		IDPrefix: source + "_",
		client:   deps.HTTPClient,
		logger:   deps.Logger.With(zap.String("component", "http_source"), zap.String("source", source)),
	}
}

// Fetch 拉取并转换监控条目，缺少 id 的条目被跳过
func (s *HTTPSource) Fetch(ctx context.Context) ([]types.MonitoringData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, httpx.TransportError(s.Source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, httpx.MapStatus(resp.StatusCode, httpx.ReadErrorMessage(resp.Body), s.Source)
	}

	var raw json.RawMessage
	if err := httpx.DecodeJSON(resp.Body, &raw, s.Source); err != nil {
		return nil, err
	}
	records, err := extractRecords(raw)
	if err != nil {
		return nil, types.WrapError(types.ErrUpstream, "unexpected "+s.Source+" payload", err)
	}

	items := make([]types.MonitoringData, 0, len(records))
	skipped := 0
	for _, rec := range records {
		id := fmt.Sprint(rec["id"])
		if rec["id"] == nil || id == "" {
			skipped++
			continue
		}
		item, err := types.NewMonitoringData(s.IDPrefix+id, s.Type, s.Source, rec)
		if err != nil {
			skipped++
			continue
		}
		items = append(items, item)
	}
	if skipped > 0 {
		s.logger.Debug("records skipped", zap.Int("skipped", skipped))
	}
	return items, nil
}

func extractRecords(raw json.RawMessage) ([]map[string]any, error) {
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	for _, key := range itemKeys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, &list); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		return list, nil
	}
	return nil, fmt.Errorf("no item list found")
}

// sourced 为持有可选 HTTPSource 的检查点提供 FetchData
type sourced struct {
	source *HTTPSource
	filter func(types.MonitoringData) bool
}

// FetchData 实现 checkpoint.DataFetcher，未配置数据源时返回空列表
func (s *sourced) FetchData(ctx context.Context) ([]types.MonitoringData, error) {
	if s.source == nil {
		return nil, nil
	}
	items, err := s.source.Fetch(ctx)
	if err != nil || s.filter == nil {
		return items, err
	}
	out := items[:0]
	for _, item := range items {
		if s.filter(item) {
			out = append(out, item)
		}
	}
	return out, nil
}
