package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
)

type ListSchedulesInput struct {
	Status domain.ScheduleStatus // empty means all
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	GetByID(ctx context.Context, id string) (*domain.Schedule, error)
	List(ctx context.Context, input ListSchedulesInput) ([]*domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	SetStatus(ctx context.Context, id string, status domain.ScheduleStatus) error
	MarkRun(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}
