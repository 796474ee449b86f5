package types

import (
	"fmt"
	"time"
)

// ResultType 检查结果类型
type ResultType string

const (
	ResultMatch   ResultType = "match"
	ResultNoMatch ResultType = "no_match"
	ResultError   ResultType = "error"
	ResultSkip    ResultType = "skip"
)

// CheckResult 检查点对单个监控条目的评估结果
// 创建后除回填 CheckpointName/CheckpointType 外不再修改
type CheckResult struct {
	CheckpointName       string         `json:"checking_point_name"`
	CheckpointType       string         `json:"checking_point_type"`
	ResultType           ResultType     `json:"result_type"`
	ShouldAct            bool           `json:"should_act"`
	Reason               string         `json:"reason"`
	Confidence           float64        `json:"confidence"`
	Context              map[string]any `json:"context,omitempty"`
	SuggestedActions     []string       `json:"suggested_actions,omitempty"`
	ErrorMessage         string         `json:"error_message,omitempty"`
	EvaluationDurationMs int64          `json:"evaluation_duration_ms"`
	EvaluatedAt          time.Time      `json:"evaluated_at"`
}

// Validate 校验置信度范围
func (r CheckResult) Validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return NewError(ErrInvalidInput, fmt.Sprintf("confidence %.3f out of range [0,1]", r.Confidence))
	}
	return nil
}

// IsMatch reports whether the result is a positive match.
func (r CheckResult) IsMatch() bool {
	return r.ResultType == ResultMatch
}

// Backfill fills identifying fields the evaluator left empty.
func (r *CheckResult) Backfill(name, typ string) {
	if r.CheckpointName == "" {
		r.CheckpointName = name
	}
	if r.CheckpointType == "" {
		r.CheckpointType = typ
	}
	if r.EvaluatedAt.IsZero() {
		r.EvaluatedAt = time.Now().UTC()
	}
}

// ErrorResult 将评估异常转换为 ERROR 结果，不触发任何动作
func ErrorResult(name, typ string, err error) CheckResult {
	msg := "evaluation failed"
	if err != nil {
		msg = err.Error()
	}
	return CheckResult{
		CheckpointName: name,
		CheckpointType: typ,
		ResultType:     ResultError,
		ShouldAct:      false,
		Confidence:     0,
		Reason:         "Evaluation failed: " + msg,
		ErrorMessage:   msg,
		EvaluatedAt:    time.Now().UTC(),
	}
}

// SkipResult 检查点无法处理该条目时的结果
func SkipResult(name, typ, reason string) CheckResult {
	return CheckResult{
		CheckpointName: name,
		CheckpointType: typ,
		ResultType:     ResultSkip,
		ShouldAct:      false,
		Confidence:     1,
		Reason:         reason,
		EvaluatedAt:    time.Now().UTC(),
	}
}

// ClampConfidence bounds v to [0,1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
