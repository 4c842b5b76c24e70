package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingJob struct {
	name     string
	interval time.Duration
	delayed  bool
	runs     atomic.Int64
}

func (j *countingJob) Name() string            { return j.name }
func (j *countingJob) Interval() time.Duration { return j.interval }
func (j *countingJob) DelayFirstRun() bool     { return j.delayed }
func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

func TestManager_RunsJobImmediately(t *testing.T) {
	m := NewManager(context.Background())
	job := &countingJob{name: "immediate", interval: time.Hour}
	m.Register(job)

	m.Start()
	defer m.Stop()

	assert.Eventually(t, func() bool {
		return job.runs.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestManager_DelayedJobWaitsFirstInterval(t *testing.T) {
	m := NewManager(context.Background())
	job := &countingJob{name: "delayed", interval: time.Hour, delayed: true}
	m.Register(job)

	m.Start()
	defer m.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, job.runs.Load(), "delayed job must not run at startup")
}

func TestManager_StopCancelsJobs(t *testing.T) {
	m := NewManager(context.Background())
	job := &countingJob{name: "ticking", interval: 10 * time.Millisecond}
	m.Register(job)

	m.Start()
	time.Sleep(50 * time.Millisecond)
	m.Stop()
	m.Wait()

	runs := job.runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, runs, job.runs.Load(), "no runs after Stop")
}
