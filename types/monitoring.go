package types

import (
	"fmt"
	"strings"
	"time"
)

// DataType identifies the kind of source a monitoring item came from.
type DataType string

const (
	DataTypeClickUpTask  DataType = "clickup_task"
	DataTypeSlackMessage DataType = "slack_message"
	DataTypeEmailAlert   DataType = "email_alert"
	DataTypeWebhookEvent DataType = "webhook_event"
	DataTypeCustom       DataType = "custom_data"
)

// Valid reports whether t is one of the known data types.
func (t DataType) Valid() bool {
	switch t {
	case DataTypeClickUpTask, DataTypeSlackMessage, DataTypeEmailAlert, DataTypeWebhookEvent, DataTypeCustom:
		return true
	}
	return false
}

// MonitoringData 单个监控条目
// 由数据拉取阶段创建，评估阶段消费，创建后不再修改
type MonitoringData struct {
	ID        string         `json:"id"`
	Type      DataType       `json:"type"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewMonitoringData 创建并校验监控条目，id 与 source 会去除首尾空白
func NewMonitoringData(id string, typ DataType, source string, data map[string]any) (MonitoringData, error) {
	item := MonitoringData{
		ID:        strings.TrimSpace(id),
		Type:      typ,
		Source:    strings.TrimSpace(source),
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	if item.Data == nil {
		item.Data = map[string]any{}
	}
	if err := item.Validate(); err != nil {
		return MonitoringData{}, err
	}
	return item, nil
}

// Validate 校验必填字段
func (d MonitoringData) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return NewError(ErrInvalidInput, "monitoring data id cannot be empty")
	}
	if strings.TrimSpace(d.Source) == "" {
		return NewError(ErrInvalidInput, "monitoring data source cannot be empty")
	}
	if !d.Type.Valid() {
		return NewError(ErrInvalidInput, fmt.Sprintf("unknown monitoring data type %q", d.Type))
	}
	return nil
}

// Field 按点号路径读取 data 中的字段，例如 "status.status"
func (d MonitoringData) Field(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var current any = d.Data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// StringField 返回字符串字段，不存在或类型不符时返回空字符串
func (d MonitoringData) StringField(path string) string {
	v, ok := d.Field(path)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// StringSliceField 返回字符串列表字段，兼容 []string 与 []any
func (d MonitoringData) StringSliceField(path string) []string {
	v, ok := d.Field(path)
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Summary returns the identifying fields used in logs and audit records.
func (d MonitoringData) Summary() map[string]any {
	return map[string]any{
		"data_item_id":     d.ID,
		"data_item_type":   string(d.Type),
		"data_item_source": d.Source,
	}
}
