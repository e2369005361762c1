package scheduler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/collaborator"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
)

const defaultETLTaskName = "Scheduled ETL Task"

var errMissingCollectionTaskID = errors.New("collection_task_id is required for ETL processing")

func (d *Dispatcher) execute(ctx context.Context, exec *domain.TaskExecution) (map[string]any, error) {
	switch exec.TaskType {
	case domain.TaskTypeDataCollection:
		return d.runCollection(ctx, exec)
	case domain.TaskTypeETLProcessing:
		return d.runETL(ctx, exec)
	case domain.TaskTypePipeline:
		return d.runPipeline(ctx, exec)
	default:
		return nil, fmt.Errorf("unknown task type: %s", exec.TaskType)
	}
}

func (d *Dispatcher) runCollection(ctx context.Context, exec *domain.TaskExecution) (map[string]any, error) {
	config := d.config(exec)

	taskID, err := d.collection.Submit(ctx, collaborator.Submission{Body: config})
	if err != nil {
		return nil, fmt.Errorf("submit data collection: %w", err)
	}
	d.update(exec, func(e *domain.TaskExecution) { e.CollectionTaskID = &taskID })
	d.logger.DebugContext(ctx, "data collection submitted", "collection_task_id", taskID)

	result, err := d.await(ctx, d.collection, taskID)
	if err != nil {
		return nil, fmt.Errorf("data collection failed: %w", err)
	}
	return map[string]any{
		"collection_task_id": taskID,
		"status":             collaborator.StatusCompleted,
		"result":             result,
	}, nil
}

func (d *Dispatcher) runETL(ctx context.Context, exec *domain.TaskExecution) (map[string]any, error) {
	config := d.config(exec)

	collectionID, _ := config["collection_task_id"].(string)
	if collectionID == "" {
		return nil, errMissingCollectionTaskID
	}
	name, _ := config["task_name"].(string)
	if name == "" {
		name = defaultETLTaskName
	}

	taskID, err := d.etl.Submit(ctx, collaborator.Submission{
		Query: url.Values{"collection_task_id": {collectionID}, "task_name": {name}},
	})
	if err != nil {
		return nil, fmt.Errorf("submit ETL processing: %w", err)
	}
	d.update(exec, func(e *domain.TaskExecution) { e.ETLTaskID = &taskID })
	d.logger.DebugContext(ctx, "ETL processing submitted", "etl_task_id", taskID)

	result, err := d.await(ctx, d.etl, taskID)
	if err != nil {
		return nil, fmt.Errorf("ETL processing failed: %w", err)
	}
	return map[string]any{
		"etl_task_id": taskID,
		"status":      collaborator.StatusCompleted,
		"result":      result,
	}, nil
}

// runPipeline chains a collection run into an ETL run over its output.
func (d *Dispatcher) runPipeline(ctx context.Context, exec *domain.TaskExecution) (map[string]any, error) {
	collection, err := d.runCollection(ctx, exec)
	if err != nil {
		return nil, err
	}
	d.update(exec, func(e *domain.TaskExecution) {
		e.TaskConfig["collection_task_id"] = collection["collection_task_id"]
	})

	etl, err := d.runETL(ctx, exec)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"collection": collection,
		"etl":        etl,
		"status":     collaborator.StatusCompleted,
	}, nil
}

// await polls a remote task until it settles. There is no overall
// deadline; only ctx ends the wait.
func (d *Dispatcher) await(ctx context.Context, c Collaborator, taskID string) (map[string]any, error) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		report, err := c.Status(ctx, taskID)
		if err != nil {
			return nil, err
		}
		switch report.Status {
		case collaborator.StatusCompleted:
			return report.Result, nil
		case collaborator.StatusFailed:
			return nil, &collaborator.Error{Service: c.Name(), Op: "task " + taskID, Message: report.Message()}
		}
		d.logger.DebugContext(ctx, "remote task not settled", "service", c.Name(), "task_id", taskID, "status", report.Status)
	}
}

func (d *Dispatcher) config(exec *domain.TaskExecution) map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(exec.TaskConfig)
}

func (d *Dispatcher) update(exec *domain.TaskExecution, fn func(*domain.TaskExecution)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(exec)
}
