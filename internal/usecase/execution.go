package usecase

import (
	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

type ExecutionUsecase struct {
	dispatcher Dispatcher
}

func NewExecutionUsecase(dispatcher Dispatcher) *ExecutionUsecase {
	return &ExecutionUsecase{dispatcher: dispatcher}
}

func (u *ExecutionUsecase) GetExecution(id string) (domain.TaskExecution, error) {
	return u.dispatcher.Get(id)
}

type ListExecutionsResult struct {
	Executions []domain.TaskExecution
	Total      int
	Completed  int
	Failed     int
	Running    int
}

// ListExecutions returns history newest first. Counts cover the returned
// page only.
func (u *ExecutionUsecase) ListExecutions(scheduleID string, limit int) (*ListExecutionsResult, error) {
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, &domain.ValidationError{Field: "limit", Reason: "must be between 1 and 1000"}
	}

	execs := u.dispatcher.History(scheduleID, limit)
	result := &ListExecutionsResult{Executions: execs, Total: len(execs)}
	for _, e := range execs {
		switch e.Status {
		case domain.ExecutionCompleted:
			result.Completed++
		case domain.ExecutionFailed:
			result.Failed++
		case domain.ExecutionRunning:
			result.Running++
		}
	}
	return result, nil
}
