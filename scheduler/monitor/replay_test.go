package monitor_test

import (
	"context"
	"sync"
	"testing"

	"github.com/BaSui01/monitorflow/scheduler/journal"
	"github.com/BaSui01/monitorflow/scheduler/monitor"
	"github.com/BaSui01/monitorflow/scheduler/step"
	"github.com/BaSui01/monitorflow/testutil/mocks"
	"github.com/BaSui01/monitorflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// withJournal 让 harness 的步骤执行器使用 j，与生产装配一致
func (h *harness) withJournal(t *testing.T, j journal.Journal) {
	t.Helper()
	h.runtime.Runner = step.NewRunner(zap.NewNop(), step.WithSleep(noSleep), step.WithJournal(j))
}

func newJournal(t *testing.T) *journal.MemoryJournal {
	t.Helper()
	j := journal.NewMemoryJournal(0, zap.NewNop())
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func channelNotify(channel string) types.Action {
	return types.Action{Type: types.ActionNotification, Name: "notify", Params: map[string]any{"channel": channel}}
}

func replayedFlags(r monitor.ItemReport) []bool {
	var out []bool
	for _, p := range r.Points {
		for _, a := range p.Actions {
			out = append(out, a.Replayed)
		}
	}
	return out
}

func TestJournal_ActionsWithinOneCycle(t *testing.T) {
	tests := []struct {
		name    string
		actions []types.Action
	}{
		{name: "same name different params", actions: []types.Action{channelNotify("#ops"), channelNotify("#oncall")}},
		{name: "identical actions", actions: []types.Action{channelNotify("#ops"), channelNotify("#ops")}},
		{name: "different names", actions: []types.Action{notify("a"), notify("b"), notify("c")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := mocks.NewMockFetchingCheckingPoint("src", item("42"))
			src.WithMatch(1).WithActions(tt.actions...)
			h := newHarness(t, src)
			h.withJournal(t, newJournal(t))
			m := h.build(t)

			report, err := m.RunCycle(context.Background())
			require.NoError(t, err)
			assert.Equal(t, len(tt.actions), h.dispatcher.Count())
			assert.Equal(t, len(tt.actions), report.ActionsExecuted)
		})
	}
}

func TestJournal_ProcessItemOutsideCycleAlwaysExecutes(t *testing.T) {
	p := mocks.NewMockCheckingPoint("p").WithMatch(1).WithActions(channelNotify("#ops"), channelNotify("#oncall"))
	h := newHarness(t, p)
	h.withJournal(t, newJournal(t))
	m := h.build(t)

	first := m.ProcessItem(context.Background(), item("42"))
	second := m.ProcessItem(context.Background(), item("42"))

	assert.Equal(t, 4, h.dispatcher.Count())
	assert.Equal(t, []bool{false, false}, replayedFlags(first))
	assert.Equal(t, []bool{false, false}, replayedFlags(second))
}

func TestJournal_RematchInNextCycleExecutesAgain(t *testing.T) {
	src := mocks.NewMockFetchingCheckingPoint("src", item("42"))
	src.WithMatch(1).WithActions(notify("n1"))
	h := newHarness(t, src)
	h.withJournal(t, newJournal(t))
	m := h.build(t)

	var ids []string
	for i := 0; i < 3; i++ {
		report, err := m.RunCycle(context.Background())
		require.NoError(t, err)
		assert.False(t, report.Resumed)
		ids = append(ids, report.CycleID)
	}

	assert.Equal(t, 3, h.dispatcher.Count())
	assert.NotEqual(t, ids[0], ids[1])
	assert.NotEqual(t, ids[1], ids[2])
}

// cancelOnCall 在第 n 次调用时取消循环的父 context，模拟进程在分发中途退出
type cancelOnCall struct {
	*mocks.MockDispatcher
	mu     sync.Mutex
	calls  int
	n      int
	cancel context.CancelFunc
}

func (d *cancelOnCall) Execute(ctx context.Context, action types.Action) (types.ActionResult, error) {
	d.mu.Lock()
	d.calls++
	hit := d.calls == d.n
	d.mu.Unlock()
	if hit {
		d.cancel()
		return types.ActionResult{Type: action.Type, Name: action.Name, Error: "interrupted"}, context.Canceled
	}
	return d.MockDispatcher.Execute(ctx, action)
}

func TestJournal_InterruptedCycleResumesAndReplays(t *testing.T) {
	j := newJournal(t)
	src := mocks.NewMockFetchingCheckingPoint("src", item("1"), item("2"))
	src.WithMatch(1).WithActions(notify("n1"))

	// 第一个进程：条目 1 的动作完成后，在条目 2 的动作中途退出
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h1 := newHarness(t, src)
	h1.withJournal(t, j)
	first := &cancelOnCall{MockDispatcher: mocks.NewMockDispatcher(), n: 2, cancel: cancel}
	h1.runtime.Actions = first
	m1 := h1.build(t)

	interrupted, err := m1.RunCycle(ctx)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCycle))
	assert.Equal(t, 1, first.Count())

	// 重启后沿用同一 cycle_id：条目 1 的动作重放，条目 2 的动作执行
	h2 := newHarness(t, src)
	h2.withJournal(t, j)
	m2 := h2.build(t)

	resumed, err := m2.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, interrupted.CycleID, resumed.CycleID)
	assert.Equal(t, 1, h2.dispatcher.Count())
	assert.Equal(t, 2, resumed.ActionsExecuted)

	// 恢复的循环正常结束后，下一个循环是新的
	next, err := m2.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, next.Resumed)
	assert.NotEqual(t, resumed.CycleID, next.CycleID)
	assert.Equal(t, 3, h2.dispatcher.Count())
}
