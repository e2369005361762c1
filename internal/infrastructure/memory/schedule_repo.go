package memory

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/repository"
	"github.com/google/uuid"
)

// ScheduleRepository keeps schedules in process memory. Every value
// crossing the boundary is cloned so callers never alias stored state.
type ScheduleRepository struct {
	mu        sync.RWMutex
	schedules map[string]*domain.Schedule
	now       func() time.Time
	logger    *slog.Logger
}

func NewScheduleRepository(logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{
		schedules: make(map[string]*domain.Schedule),
		now:       time.Now,
		logger:    logger.With("component", "schedule_repo"),
	}
}

func (r *ScheduleRepository) Create(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	created := s.Clone()
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	now := r.now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	r.mu.Lock()
	r.schedules[created.ID] = created
	r.mu.Unlock()

	r.logger.Debug("schedule stored", "schedule_id", created.ID)
	return created.Clone(), nil
}

func (r *ScheduleRepository) GetByID(_ context.Context, id string) (*domain.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schedules[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	return s.Clone(), nil
}

// List returns schedules oldest first, optionally filtered by status.
func (r *ScheduleRepository) List(_ context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error) {
	r.mu.RLock()
	out := make([]*domain.Schedule, 0, len(r.schedules))
	for _, s := range r.schedules {
		if input.Status != "" && s.Status != input.Status {
			continue
		}
		out = append(out, s.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *domain.Schedule) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Update replaces the stored definition, keeping CreatedAt and LastRunAt.
func (r *ScheduleRepository) Update(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.schedules[s.ID]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	updated := s.Clone()
	updated.CreatedAt = existing.CreatedAt
	updated.LastRunAt = existing.LastRunAt
	updated.UpdatedAt = r.now().UTC()
	r.schedules[s.ID] = updated
	return updated.Clone(), nil
}

func (r *ScheduleRepository) SetStatus(_ context.Context, id string, status domain.ScheduleStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.schedules[id]
	if !ok {
		return domain.ErrScheduleNotFound
	}
	s.Status = status
	s.UpdatedAt = r.now().UTC()
	return nil
}

func (r *ScheduleRepository) MarkRun(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.schedules[id]
	if !ok {
		return domain.ErrScheduleNotFound
	}
	at = at.UTC()
	s.LastRunAt = &at
	return nil
}

func (r *ScheduleRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[id]; !ok {
		return domain.ErrScheduleNotFound
	}
	delete(r.schedules, id)
	return nil
}
