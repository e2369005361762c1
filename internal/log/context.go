package log

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	executionIDKey
	scheduleIDKey
)

// NewRequestID generates a random UUID v4 request ID.
func NewRequestID() string {
	return uuid.NewString()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns "" if ctx carries no request ID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithExecution tags ctx with the execution and its owning schedule.
func WithExecution(ctx context.Context, executionID, scheduleID string) context.Context {
	ctx = context.WithValue(ctx, executionIDKey, executionID)
	return context.WithValue(ctx, scheduleIDKey, scheduleID)
}

func ExecutionID(ctx context.Context) string {
	id, _ := ctx.Value(executionIDKey).(string)
	return id
}

func ScheduleID(ctx context.Context) string {
	id, _ := ctx.Value(scheduleIDKey).(string)
	return id
}
