package monitor

import (
	"errors"
	"time"

	"github.com/BaSui01/monitorflow/scheduler/store"
	"github.com/BaSui01/monitorflow/types"
)

// =============================================================================
// 错误分类
// =============================================================================

// SourceFetchError 单个数据源拉取失败，该源被跳过，循环继续
type SourceFetchError struct {
	Source string
	Err    error
}

func (e SourceFetchError) Error() string {
	return "source " + e.Source + ": " + e.Err.Error()
}

func (e SourceFetchError) Unwrap() error {
	return e.Err
}

func sourceFetchError(source string, err error) SourceFetchError {
	return SourceFetchError{
		Source: source,
		Err:    types.WrapError(types.ErrSourceFetch, "fetch failed", err).WithCheckpoint(source),
	}
}

func dispatchError(checkpoint, itemID, msg string, cause error) *types.Error {
	return types.WrapError(types.ErrDispatch, msg, cause).WithCheckpoint(checkpoint).WithItem(itemID)
}

func evaluationError(checkpoint, itemID string, cause error) *types.Error {
	return types.WrapError(types.ErrEvaluation, "evaluation failed", cause).WithCheckpoint(checkpoint).WithItem(itemID)
}

func cycleError(msg string, cause error) *types.Error {
	return types.WrapError(types.ErrCycle, msg, cause).WithRetryable(true)
}

func fatalError(msg string, cause error) *types.Error {
	return types.WrapError(types.ErrFatal, msg, cause)
}

// =============================================================================
// 阶段报告
// =============================================================================

// FetchReport 数据拉取阶段的结果
type FetchReport struct {
	Items        []types.MonitoringData
	Sources      []SourceReport
	SourceErrors []SourceFetchError
}

// SourceReport 单个数据源的拉取情况
type SourceReport struct {
	Source   string        `json:"source"`
	Items    int           `json:"items"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Outcome 检查点对单个条目的处理结论
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkip    Outcome = "skip"
	OutcomeError   Outcome = "error"
)

// PointReport 单个检查点的处理记录
type PointReport struct {
	Checkpoint string                   `json:"checking_point"`
	Outcome    Outcome                  `json:"outcome"`
	Result     *types.CheckResult       `json:"result,omitempty"`
	Actions    []ActionReport           `json:"actions,omitempty"`
	AIResults  []types.AIWorkflowResult `json:"ai_results,omitempty"`
	Stopped    bool                     `json:"stopped,omitempty"`
	Errors     []error                  `json:"-"`
}

// Err 合并该检查点上的全部错误
func (p PointReport) Err() error {
	return errors.Join(p.Errors...)
}

// ActionReport 单个即时动作的执行记录
type ActionReport struct {
	Name     string             `json:"name"`
	Type     types.ActionType   `json:"type"`
	Result   types.ActionResult `json:"result"`
	Attempts int                `json:"attempts"`
	Replayed bool               `json:"replayed,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// ItemReport 单个条目经过全部检查点后的记录
type ItemReport struct {
	ItemID string        `json:"item_id"`
	Points []PointReport `json:"points"`
}

// Matches 触发动作的检查点数
func (r ItemReport) Matches() int {
	n := 0
	for _, p := range r.Points {
		if p.Result != nil && p.Result.ShouldAct {
			n++
		}
	}
	return n
}

// CycleReport 单次循环的汇总
type CycleReport struct {
	CycleID         string    `json:"cycle_id"`
	Resumed         bool      `json:"resumed,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationMs      int64     `json:"duration_ms"`
	ItemsFetched    int       `json:"items_fetched"`
	ItemsProcessed  int       `json:"items_processed"`
	Matches         int       `json:"matches"`
	ActionsExecuted int       `json:"actions_executed"`
	ActionsFailed   int       `json:"actions_failed"`
	AIExecuted      int       `json:"ai_executed"`
	AIFailed        int       `json:"ai_failed"`
	SourceErrors    int       `json:"source_errors"`
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
}

func (r *CycleReport) add(item ItemReport) {
	r.ItemsProcessed++
	r.Matches += item.Matches()
	for _, p := range item.Points {
		for _, a := range p.Actions {
			if a.Result.Success {
				r.ActionsExecuted++
			} else {
				r.ActionsFailed++
			}
		}
		for _, ai := range p.AIResults {
			if ai.Success {
				r.AIExecuted++
			} else {
				r.AIFailed++
			}
		}
	}
}

func (r CycleReport) summary(monitor string) store.CycleSummary {
	return store.CycleSummary{
		CycleID:         r.CycleID,
		MonitorName:     monitor,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
		DurationMs:      r.DurationMs,
		ItemsFetched:    r.ItemsFetched,
		ItemsProcessed:  r.ItemsProcessed,
		Matches:         r.Matches,
		ActionsExecuted: r.ActionsExecuted,
		ActionsFailed:   r.ActionsFailed,
		AIExecuted:      r.AIExecuted,
		AIFailed:        r.AIFailed,
		SourceErrors:    r.SourceErrors,
		Success:         r.Success,
		ErrorMessage:    r.Error,
	}
}
