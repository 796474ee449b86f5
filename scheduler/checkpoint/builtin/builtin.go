// Package builtin 提供内置检查点及其显式注册表。
package builtin

import (
	"net/http"
	"time"

	"github.com/BaSui01/monitorflow/internal/httpx"
	"github.com/BaSui01/monitorflow/scheduler/checkpoint"
	"go.uber.org/zap"
)

// Deps 内置检查点共享的依赖
type Deps struct {
	HTTPClient *http.Client
	Logger     *zap.Logger
	Now        func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.HTTPClient == nil {
		d.HTTPClient = httpx.NewClient(30 * time.Second)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Register 将所有内置检查点登记到 reg
func Register(reg *checkpoint.Registry, deps Deps) error {
	deps = deps.withDefaults()

	table := []struct {
		typ  checkpoint.Type
		ctor checkpoint.Constructor
	}{
		{checkpoint.TypeClickUpUrgentTask, func(p checkpoint.Params) (checkpoint.CheckingPoint, error) {
			return NewUrgentTask(p, deps), nil
		}},
		{checkpoint.TypeClickUpOverdueTask, func(p checkpoint.Params) (checkpoint.CheckingPoint, error) {
			return NewOverdueTask(p, deps), nil
		}},
		{checkpoint.TypeClickUpSmartAssignment, func(p checkpoint.Params) (checkpoint.CheckingPoint, error) {
			return NewSmartAssignment(p, deps), nil
		}},
		{checkpoint.TypeSlackBotMention, func(p checkpoint.Params) (checkpoint.CheckingPoint, error) {
			return NewBotMention(p, deps), nil
		}},
		{checkpoint.TypeEmailAlert, func(p checkpoint.Params) (checkpoint.CheckingPoint, error) {
			cp, err := NewEmailAlert(p, deps)
			if err != nil {
				return nil, err
			}
			return cp, nil
		}},
	}

	for _, e := range table {
		if err := reg.Register(string(e.typ), e.ctor); err != nil {
			return err
		}
	}
	return nil
}
