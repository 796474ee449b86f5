package monitor_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/BaSui01/monitorflow/config"
	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"github.com/BaSui01/monitorflow/scheduler/monitor"
	"github.com/BaSui01/monitorflow/scheduler/step"
	"github.com/BaSui01/monitorflow/testutil/mocks"
	"github.com/BaSui01/monitorflow/types"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

// 命中的 stop_on_match 检查点之前的都被评估，之后的都不被评估
func TestProperty_StopOnMatchOrdering(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "points")
		reg := checkpoint.NewRegistry(zap.NewNop())
		cfg := config.DefaultMonitorConfig()
		cfg.Name = "property"

		points := make([]*mocks.MockCheckingPoint, n)
		stopAt := -1
		for i := range n {
			name := fmt.Sprintf("cp_%d", i)
			matches := rapid.Bool().Draw(rt, name+"_matches")
			stops := rapid.Bool().Draw(rt, name+"_stops")
			handles := rapid.Bool().Draw(rt, name+"_handles")

			cp := mocks.NewMockCheckingPoint(name).WithStopOnMatch(stops)
			cp.WithCanHandle(func(types.MonitoringData) bool { return handles })
			if matches {
				cp.WithMatch(1)
			} else {
				cp.WithNoMatch()
			}
			if stopAt < 0 && handles && matches && stops {
				stopAt = i
			}
			points[i] = cp
			if err := reg.Register(name, cp.Constructor()); err != nil {
				rt.Fatalf("register: %v", err)
			}
			cfg.CheckingPoints = append(cfg.CheckingPoints, config.CheckpointEntry{Type: name})
		}

		m, err := monitor.New(cfg, monitor.Runtime{
			Registry: reg,
			Runner:   step.NewRunner(zap.NewNop(), step.WithSleep(noSleep)),
			Actions:  mocks.NewMockDispatcher(),
			AI:       mocks.NewMockAIExecutor(),
		})
		if err != nil {
			rt.Fatalf("new monitor: %v", err)
		}

		report := m.ProcessItem(context.Background(), item("x"))

		last := n - 1
		if stopAt >= 0 {
			last = stopAt
		}
		if len(report.Points) != last+1 {
			rt.Fatalf("expected %d point reports, got %d", last+1, len(report.Points))
		}
		for i, cp := range points {
			want := 0
			if i <= last && cp.CanHandle(item("x")) {
				want = 1
			}
			if got := cp.EvaluateCalls(); got != want {
				rt.Fatalf("cp_%d evaluated %d times, want %d (stopAt=%d)", i, got, want, stopAt)
			}
		}
	})
}
