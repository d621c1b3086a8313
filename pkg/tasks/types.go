// Package tasks provides task queue management using Asynq
package tasks

import (
	"fmt"
	"time"
)

const (
	// TypeIngestPrefix prefixes per-category ingestion task types
	TypeIngestPrefix = "ingest:"
	// TypePipelineAlignment is the task type for alignment runs
	TypePipelineAlignment = "pipeline:alignment"
	// TypePipelineCorrelation is the task type for correlation runs
	TypePipelineCorrelation = "pipeline:correlation"
)

const (
	// TriggerSchedule marks tasks enqueued by the cron scheduler
	TriggerSchedule = "schedule"
	// TriggerManual marks tasks enqueued through the API
	TriggerManual = "manual"
)

// TypeIngest returns the task type for one source category.
func TypeIngest(category string) string {
	return TypeIngestPrefix + category
}

// IngestPayload is the payload of an ingestion task.
type IngestPayload struct {
	Category   string    `json:"category"`
	Trigger    string    `json:"trigger"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// UniqueID returns the deduplication identifier for this task. One pending
// ingestion per category at a time.
func (p IngestPayload) UniqueID() string {
	return fmt.Sprintf("ingest:%s", p.Category)
}

// PipelinePayload is the payload of an alignment or correlation task.
type PipelinePayload struct {
	Stage      string    `json:"stage"` // alignment or correlation
	Trigger    string    `json:"trigger"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// UniqueID returns the deduplication identifier for this task. One pending
// run per stage at a time.
func (p PipelinePayload) UniqueID() string {
	return fmt.Sprintf("pipeline:%s", p.Stage)
}
