package step

import (
	"context"
	"encoding/json"
	"fmt"
)

// Do is a type-safe generic wrapper around Runner.Run.
// A replayed result is decoded from the journal into T.
//
// Usage:
//
//	items, res, err := step.Do(ctx, runner, s, func(ctx context.Context) ([]types.MonitoringData, error) {
//	    return src.FetchData(ctx)
//	})
func Do[T any](ctx context.Context, r *Runner, s Step, fn func(ctx context.Context) (T, error)) (T, *Result, error) {
	var zero T
	res, err := r.Run(ctx, s, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, res, err
	}

	if res.Replayed {
		var v T
		if len(res.Raw) > 0 {
			if err := json.Unmarshal(res.Raw, &v); err != nil {
				return zero, res, fmt.Errorf("step %s: decode replayed result: %w", s.Name, err)
			}
		}
		return v, res, nil
	}

	v, _ := res.Value.(T)
	return v, res, nil
}
