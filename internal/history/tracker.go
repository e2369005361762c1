package history

import "github.com/ErlanBelekov/pipeline-scheduler/internal/domain"

// Tracker records executions in creation order and evicts the oldest
// beyond its limit. It is not safe for concurrent use; the owner
// serializes access.
type Tracker struct {
	ring *Ring[*domain.TaskExecution]
}

func NewTracker(limit int) *Tracker {
	return &Tracker{ring: NewRing[*domain.TaskExecution](limit)}
}

// Append records e and returns the execution that fell off, if any.
func (t *Tracker) Append(e *domain.TaskExecution) *domain.TaskExecution {
	evicted, ok := t.ring.Push(e)
	if !ok {
		return nil
	}
	return evicted
}

func (t *Tracker) Find(id string) *domain.TaskExecution {
	for e := range t.ring.Backward() {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// List returns up to limit executions newest first. An empty scheduleID
// matches every execution; limit <= 0 means no limit.
func (t *Tracker) List(scheduleID string, limit int) []*domain.TaskExecution {
	var out []*domain.TaskExecution
	for e := range t.ring.Backward() {
		if scheduleID != "" && e.ScheduleID != scheduleID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Counts tallies retained executions by status.
func (t *Tracker) Counts() map[domain.ExecutionStatus]int {
	counts := make(map[domain.ExecutionStatus]int)
	for e := range t.ring.All() {
		counts[e.Status]++
	}
	return counts
}

func (t *Tracker) Len() int { return t.ring.Len() }
