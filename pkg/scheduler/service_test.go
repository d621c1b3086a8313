package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/chimeradata/chimera/pkg/tasks"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	mu         sync.Mutex
	categories []string
	taskTypes  []string
	err        error
}

func (r *recordingEnqueuer) EnqueueIngest(category, _ string, _ ...asynq.Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories = append(r.categories, category)

	return r.err
}

func (r *recordingEnqueuer) EnqueuePipeline(taskType, _ string, _ ...asynq.Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taskTypes = append(r.taskTypes, taskType)

	return r.err
}

func newTestScheduler(t *testing.T, cfg *Config) (*service, *recordingEnqueuer) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	queue := &recordingEnqueuer{}
	svc, err := NewService(log, cfg, queue)
	require.NoError(t, err)

	return svc.(*service), queue
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "empty config", cfg: Config{}},
		{name: "valid schedules", cfg: Config{
			Ingest:      map[string]string{"market": "*/30 * * * *"},
			Alignment:   "5 * * * *",
			Correlation: "@hourly",
		}},
		{name: "invalid ingest expression", cfg: Config{
			Ingest: map[string]string{"market": "not a cron"},
		}, wantErr: true},
		{name: "invalid alignment expression", cfg: Config{Alignment: "61 * * * *"}, wantErr: true},
		{name: "disabled schedule", cfg: Config{Alignment: "", Correlation: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRegisterSchedules(t *testing.T) {
	svc, _ := newTestScheduler(t, &Config{
		Ingest: map[string]string{
			"market":      "*/15 * * * *",
			"geomagnetic": "0 * * * *",
			"schumann":    "", // disabled
		},
		Alignment:   "5 * * * *",
		Correlation: "15 * * * *",
	})

	registered, err := svc.registerSchedules()
	require.NoError(t, err)
	assert.Equal(t, 4, registered)
	assert.Len(t, svc.cron.Entries(), 4)
}

func TestRegisterSchedulesNothingConfigured(t *testing.T) {
	svc, _ := newTestScheduler(t, &Config{Alignment: "", Correlation: ""})

	registered, err := svc.registerSchedules()
	require.NoError(t, err)
	assert.Equal(t, 0, registered)
}

func TestScheduledJobsEnqueue(t *testing.T) {
	svc, queue := newTestScheduler(t, &Config{
		Ingest:      map[string]string{"gcp": "* * * * *"},
		Alignment:   "* * * * *",
		Correlation: "* * * * *",
	})

	_, err := svc.registerSchedules()
	require.NoError(t, err)

	// Run every job body directly rather than waiting out a cron tick
	for _, entry := range svc.cron.Entries() {
		entry.Job.Run()
	}

	assert.Equal(t, []string{"gcp"}, queue.categories)
	assert.ElementsMatch(t, []string{tasks.TypePipelineAlignment, tasks.TypePipelineCorrelation}, queue.taskTypes)
}

func TestStartStop(t *testing.T) {
	svc, _ := newTestScheduler(t, &Config{
		Alignment:   "5 * * * *",
		Correlation: "15 * * * *",
	})

	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Stop())
}
