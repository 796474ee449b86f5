package circuitbreaker

import "context"

// CallWithResultTyped is a type-safe generic wrapper around Breaker.CallWithResult.
//
// Usage:
//
//	resp, err := circuitbreaker.CallWithResultTyped(cb, ctx, func(ctx context.Context) (*http.Response, error) {
//	    return client.Do(req.WithContext(ctx))
//	})
func CallWithResultTyped[T any](cb *Breaker, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	result, err := cb.CallWithResult(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	v, _ := result.(T)
	return v, err
}
