package checkpoint

import (
	"fmt"
	"strconv"
	"time"
)

// Params 检查点条目的配置映射。
// YAML 解码为 int，JSON 解码为 float64，访问器兼容两者。
type Params map[string]any

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String 读取字符串
func (p Params) String(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	switch vv := v.(type) {
	case string:
		return vv
	case fmt.Stringer:
		return vv.String()
	default:
		return fmt.Sprint(vv)
	}
}

// Int 读取整数
func (p Params) Int(key string, def int) int {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	switch vv := v.(type) {
	case int:
		return vv
	case int64:
		return int(vv)
	case int32:
		return int(vv)
	case uint64:
		return int(vv)
	case float64:
		return int(vv)
	case float32:
		return int(vv)
	case string:
		if n, err := strconv.Atoi(vv); err == nil {
			return n
		}
	}
	return def
}

// Float 读取浮点数
func (p Params) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	switch vv := v.(type) {
	case float64:
		return vv
	case float32:
		return float64(vv)
	case int:
		return float64(vv)
	case int64:
		return float64(vv)
	case string:
		if f, err := strconv.ParseFloat(vv, 64); err == nil {
			return f
		}
	}
	return def
}

// Bool 读取布尔值
func (p Params) Bool(key string, def bool) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	switch vv := v.(type) {
	case bool:
		return vv
	case string:
		if b, err := strconv.ParseBool(vv); err == nil {
			return b
		}
	}
	return def
}

// Strings 读取字符串列表，兼容 []string 与 []any
func (p Params) Strings(key string, def []string) []string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
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
	case string:
		return []string{vv}
	}
	return def
}

// Duration 读取时长，字符串按 time.ParseDuration 解析，数字按秒处理
func (p Params) Duration(key string, def time.Duration) time.Duration {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
		return def
	}
	if secs := p.Float(key, -1); secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}

// Map 读取嵌套映射
func (p Params) Map(key string) map[string]any {
	v, ok := p[key]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case map[string]any:
		return vv
	case Params:
		return vv
	}
	return nil
}

// Clone 返回浅拷贝
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
