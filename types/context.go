package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID    contextKey = "trace_id"
	keyCycleID    contextKey = "cycle_id"
	keyItemID     contextKey = "item_id"
	keyCheckpoint contextKey = "checking_point"
)

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithCycleID adds the monitoring cycle ID to context.
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, keyCycleID, cycleID)
}

// CycleID extracts the monitoring cycle ID from context.
func CycleID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyCycleID).(string)
	return v, ok && v != ""
}

// WithItemID adds the monitoring item ID to context.
func WithItemID(ctx context.Context, itemID string) context.Context {
	return context.WithValue(ctx, keyItemID, itemID)
}

// ItemID extracts the monitoring item ID from context.
func ItemID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyItemID).(string)
	return v, ok && v != ""
}

// WithCheckpoint adds the checking point name to context.
func WithCheckpoint(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyCheckpoint, name)
}

// Checkpoint extracts the checking point name from context.
func Checkpoint(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyCheckpoint).(string)
	return v, ok && v != ""
}

// Correlation returns every correlation identifier present in ctx.
func Correlation(ctx context.Context) map[string]string {
	out := make(map[string]string, 4)
	if v, ok := TraceID(ctx); ok {
		out[string(keyTraceID)] = v
	}
	if v, ok := CycleID(ctx); ok {
		out[string(keyCycleID)] = v
	}
	if v, ok := ItemID(ctx); ok {
		out[string(keyItemID)] = v
	}
	if v, ok := Checkpoint(ctx); ok {
		out[string(keyCheckpoint)] = v
	}
	return out
}
