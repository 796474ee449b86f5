package builtin

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/monitorflow/types"
)

var completedStatuses = map[string]bool{"done": true, "completed": true, "closed": true}

// taskStatus 兼容 {"status":{"status":"open"}} 与 {"status":"open"}
func taskStatus(item types.MonitoringData) string {
	if s := item.StringField("status.status"); s != "" {
		return strings.ToLower(s)
	}
	if v, ok := item.Field("status"); ok {
		if s, ok := v.(string); ok {
			return strings.ToLower(s)
		}
	}
	return ""
}

// taskPriority 兼容 {"priority":{"priority":"urgent"}} 与 {"priority":"urgent"}
func taskPriority(item types.MonitoringData) string {
	if s := item.StringField("priority.priority"); s != "" {
		return strings.ToLower(s)
	}
	if v, ok := item.Field("priority"); ok {
		if s, ok := v.(string); ok {
			return strings.ToLower(s)
		}
	}
	return ""
}

func taskTags(item types.MonitoringData) []string {
	v, ok := item.Field("tags")
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return lower(item.StringSliceField("tags"))
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		switch tag := e.(type) {
		case string:
			out = append(out, strings.ToLower(tag))
		case map[string]any:
			if name, ok := tag["name"].(string); ok {
				out = append(out, strings.ToLower(name))
			}
		}
	}
	return out
}

// firstAssignee 返回第一个负责人标识，兼容映射与列表两种形式
func firstAssignee(item types.MonitoringData) string {
	v, ok := item.Field("assignees")
	if !ok {
		return ""
	}
	switch a := v.(type) {
	case map[string]any:
		best := ""
		for k := range a {
			if best == "" || k < best {
				best = k
			}
		}
		return best
	case []any:
		if len(a) == 0 {
			return ""
		}
		switch first := a[0].(type) {
		case string:
			return first
		case map[string]any:
			if email, ok := first["email"].(string); ok && email != "" {
				return email
			}
			if id, ok := first["id"]; ok && id != nil {
				return fmt.Sprint(id)
			}
		}
	}
	return ""
}

// parseDueDate 兼容 RFC3339 字符串与毫秒时间戳
func parseDueDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case string:
		d = strings.TrimSpace(d)
		if d == "" {
			return time.Time{}, false
		}
		if t, err := time.Parse(time.RFC3339, d); err == nil {
			return t, true
		}
		if ms, err := strconv.ParseInt(d, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	case float64:
		return time.UnixMilli(int64(d)).UTC(), true
	case int64:
		return time.UnixMilli(d).UTC(), true
	case int:
		return time.UnixMilli(int64(d)).UTC(), true
	}
	return time.Time{}, false
}

// daysBetween 向下取整的天数差
func daysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}

func matchKeywords(text string, keywords []string) []string {
	var found []string
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			found = append(found, kw)
		}
	}
	return found
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

// assigneeEmail 负责人标识本身是邮箱时直接使用，否则按 domain 拼接
func assigneeEmail(assignee, domain string) string {
	if assignee == "" {
		return ""
	}
	if strings.Contains(assignee, "@") {
		return assignee
	}
	if domain == "" {
		return ""
	}
	return "user_" + assignee + "@" + domain
}
