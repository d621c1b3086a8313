package tasks

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/chimeradata/chimera/pkg/observability"
	"github.com/hibiken/asynq"
)

const (
	// QueueIngest holds ingestion tasks
	QueueIngest = "ingest"
	// QueuePipeline holds alignment and correlation tasks
	QueuePipeline = "pipeline"
)

// QueueManager enqueues pipeline and ingestion tasks and inspects queue state.
type QueueManager struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	prefix    string
}

// NewQueueManager creates a new queue manager. The prefix namespaces queue
// names so multiple deployments can share one Redis.
func NewQueueManager(redisOpt *asynq.RedisClientOpt, prefix string) *QueueManager {
	return &QueueManager{
		client:    asynq.NewClient(*redisOpt),
		inspector: asynq.NewInspector(*redisOpt),
		prefix:    prefix,
	}
}

// QueueName returns the namespaced name of a queue.
func (q *QueueManager) QueueName(queue string) string {
	if q.prefix == "" {
		return queue
	}

	return q.prefix + ":" + queue
}

// EnqueueIngest enqueues an ingestion task for one source category.
func (q *QueueManager) EnqueueIngest(category, trigger string, opts ...asynq.Option) error {
	payload := IngestPayload{
		Category:   category,
		Trigger:    trigger,
		EnqueuedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeIngest(category), data)

	defaultOpts := []asynq.Option{
		asynq.TaskID(payload.UniqueID()),
		asynq.Queue(q.QueueName(QueueIngest)),
		asynq.MaxRetry(3),
		asynq.Timeout(10 * time.Minute),
	}

	if _, err := q.client.Enqueue(task, append(defaultOpts, opts...)...); err != nil {
		return err
	}

	observability.TasksEnqueued.WithLabelValues(TypeIngest(category), trigger).Inc()

	return nil
}

// EnqueuePipeline enqueues an alignment or correlation task.
func (q *QueueManager) EnqueuePipeline(taskType, trigger string, opts ...asynq.Option) error {
	stage := strings.TrimPrefix(taskType, "pipeline:")
	payload := PipelinePayload{
		Stage:      stage,
		Trigger:    trigger,
		EnqueuedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskType, data)

	defaultOpts := []asynq.Option{
		asynq.TaskID(payload.UniqueID()),
		asynq.Queue(q.QueueName(QueuePipeline)),
		asynq.MaxRetry(2),
		asynq.Timeout(30 * time.Minute),
	}

	if _, err := q.client.Enqueue(task, append(defaultOpts, opts...)...); err != nil {
		return err
	}

	observability.TasksEnqueued.WithLabelValues(taskType, trigger).Inc()

	return nil
}

// IsTaskPendingOrRunning checks whether a task with the given ID is waiting
// or executing in the given queue.
func (q *QueueManager) IsTaskPendingOrRunning(queue, taskID string) (bool, error) {
	info, err := q.inspector.GetTaskInfo(q.QueueName(queue), taskID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}

		return false, err
	}

	return info.State == asynq.TaskStatePending ||
		info.State == asynq.TaskStateActive ||
		info.State == asynq.TaskStateRetry, nil
}

// GetQueueStats returns statistics for a queue.
func (q *QueueManager) GetQueueStats(queue string) (*asynq.QueueInfo, error) {
	return q.inspector.GetQueueInfo(q.QueueName(queue))
}

// Close closes the queue manager.
func (q *QueueManager) Close() error {
	return q.client.Close()
}

func isNotFound(err error) bool {
	msg := err.Error()

	return strings.Contains(msg, "NOT FOUND") ||
		strings.Contains(msg, "queue not found") ||
		strings.Contains(msg, "task not found")
}
