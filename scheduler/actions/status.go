package actions

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/BaSui01/monitorflow/config"
	"github.com/BaSui01/monitorflow/types"
)

// StatusUpdateExecutor 更新外部系统中实体的状态、标签与评论
type StatusUpdateExecutor struct {
	cfg  config.ActionsConfig
	http *httpCaller
}

// NewStatusUpdateExecutor 创建状态更新执行器
func NewStatusUpdateExecutor(cfg config.ActionsConfig, caller *httpCaller) *StatusUpdateExecutor {
	return &StatusUpdateExecutor{cfg: cfg, http: caller}
}

// Execute 参数: system(clickup|jira|github), entity_id, new_status, reason, add_tags
func (e *StatusUpdateExecutor) Execute(ctx context.Context, params map[string]any) (types.ActionResult, error) {
	system := stringParam(params, "system", "clickup")
	entity := stringParam(params, "entity_id", "")
	if entity == "" {
		entity = stringParam(params, "task_id", "")
	}
	if entity == "" {
		return types.ActionResult{}, invalid("status_update requires entity_id")
	}
	u := update{
		entity: entity,
		status: stringParam(params, "new_status", ""),
		reason: stringParam(params, "reason", ""),
		tags:   stringsParam(params, "add_tags"),
	}
	if u.status == "" && len(u.tags) == 0 && u.reason == "" {
		return types.ActionResult{}, invalid("status_update has nothing to change")
	}

	var (
		calls int
		err   error
	)
	switch system {
	case "clickup":
		calls, err = e.clickup(ctx, u)
	case "jira":
		calls, err = e.jira(ctx, u)
	case "github":
		calls, err = e.github(ctx, u)
	default:
		err = invalid("unsupported status system: %s", system)
	}

	output := map[string]any{"system": system, "entity_id": entity, "requests": calls}
	if u.status != "" {
		output["new_status"] = u.status
	}
	if len(u.tags) > 0 {
		output["tags"] = u.tags
	}
	if err != nil {
		return types.ActionResult{Output: output}, err
	}
	return types.ActionResult{Success: true, Output: output}, nil
}

type update struct {
	entity string
	status string
	reason string
	tags   []string
}

// ---- ClickUp ----

func (e *StatusUpdateExecutor) clickup(ctx context.Context, u update) (int, error) {
	if e.cfg.ClickUpToken == "" {
		return 0, invalid("clickup token is not configured")
	}
	base := strings.TrimRight(e.cfg.ClickUpBaseURL, "/")
	headers := map[string]string{"Authorization": e.cfg.ClickUpToken}
	taskURL := base + "/api/v2/task/" + url.PathEscape(u.entity)

	calls := 0
	if u.status != "" {
		body, err := jsonBody(map[string]any{"status": u.status})
		if err != nil {
			return calls, err
		}
		calls++
		if _, err := e.http.expectOK(ctx, request{Method: "PUT", URL: taskURL, Headers: headers, Body: body}, "clickup"); err != nil {
			return calls, err
		}
	}
	for _, tag := range u.tags {
		calls++
		req := request{Method: "POST", URL: taskURL + "/tag/" + url.PathEscape(tag), Headers: headers}
		if _, err := e.http.expectOK(ctx, req, "clickup"); err != nil {
			return calls, err
		}
	}
	if u.reason != "" {
		body, err := jsonBody(map[string]any{"comment_text": u.reason, "notify_all": false})
		if err != nil {
			return calls, err
		}
		calls++
		if _, err := e.http.expectOK(ctx, request{Method: "POST", URL: taskURL + "/comment", Headers: headers, Body: body}, "clickup"); err != nil {
			return calls, err
		}
	}
	return calls, nil
}

// ---- Jira ----

// jira 状态流转依赖工作流 transition id，这里以评论记录目标状态，标签直接更新
func (e *StatusUpdateExecutor) jira(ctx context.Context, u update) (int, error) {
	if e.cfg.JiraBaseURL == "" {
		return 0, invalid("jira base url is not configured")
	}
	base := strings.TrimRight(e.cfg.JiraBaseURL, "/")
	cred := base64.StdEncoding.EncodeToString([]byte(e.cfg.JiraUser + ":" + e.cfg.JiraToken))
	headers := map[string]string{"Authorization": "Basic " + cred, "Accept": "application/json"}
	issueURL := base + "/rest/api/2/issue/" + url.PathEscape(u.entity)

	calls := 0
	if len(u.tags) > 0 {
		ops := make([]map[string]string, 0, len(u.tags))
		for _, tag := range u.tags {
			ops = append(ops, map[string]string{"add": tag})
		}
		body, err := jsonBody(map[string]any{"update": map[string]any{"labels": ops}})
		if err != nil {
			return calls, err
		}
		calls++
		if _, err := e.http.expectOK(ctx, request{Method: "PUT", URL: issueURL, Headers: headers, Body: body}, "jira"); err != nil {
			return calls, err
		}
	}

	comment := u.reason
	if u.status != "" {
		comment = strings.TrimSpace(fmt.Sprintf("Status -> %s. %s", u.status, u.reason))
	}
	if comment != "" {
		body, err := jsonBody(map[string]any{"body": comment})
		if err != nil {
			return calls, err
		}
		calls++
		if _, err := e.http.expectOK(ctx, request{Method: "POST", URL: issueURL + "/comment", Headers: headers, Body: body}, "jira"); err != nil {
			return calls, err
		}
	}
	return calls, nil
}

// ---- GitHub ----

// github entity_id 格式 owner/repo#number
func (e *StatusUpdateExecutor) github(ctx context.Context, u update) (int, error) {
	repo, number, ok := strings.Cut(u.entity, "#")
	if !ok || strings.Count(repo, "/") != 1 || number == "" {
		return 0, invalid("github entity_id must be owner/repo#number, got %q", u.entity)
	}
	base := strings.TrimRight(e.cfg.GitHubBaseURL, "/")
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if e.cfg.GitHubToken != "" {
		headers["Authorization"] = "Bearer " + e.cfg.GitHubToken
	}
	issueURL := base + "/repos/" + repo + "/issues/" + url.PathEscape(number)

	calls := 0
	if len(u.tags) > 0 {
		body, err := jsonBody(map[string]any{"labels": u.tags})
		if err != nil {
			return calls, err
		}
		calls++
		if _, err := e.http.expectOK(ctx, request{Method: "POST", URL: issueURL + "/labels", Headers: headers, Body: body}, "github"); err != nil {
			return calls, err
		}
	}
	if u.reason != "" {
		body, err := jsonBody(map[string]any{"body": u.reason})
		if err != nil {
			return calls, err
		}
		calls++
		if _, err := e.http.expectOK(ctx, request{Method: "POST", URL: issueURL + "/comments", Headers: headers, Body: body}, "github"); err != nil {
			return calls, err
		}
	}
	switch strings.ToLower(u.status) {
	case "":
	case "open", "closed":
		body, err := jsonBody(map[string]any{"state": strings.ToLower(u.status)})
		if err != nil {
			return calls, err
		}
		calls++
		if _, err := e.http.expectOK(ctx, request{Method: "PATCH", URL: issueURL, Headers: headers, Body: body}, "github"); err != nil {
			return calls, err
		}
	default:
		return calls, invalid("github issues only support open or closed, got %q", u.status)
	}
	return calls, nil
}
