package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs int
	err  error
}

func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func (j *countingJob) Name() string {
	return j.name
}

func TestScheduler_AddJob(t *testing.T) {
	sched := New(zerolog.Nop())

	err := sched.AddJob("@every 1h", &countingJob{name: "test"})
	assert.NoError(t, err)
}

func TestScheduler_AddJobInvalidSchedule(t *testing.T) {
	sched := New(zerolog.Nop())

	err := sched.AddJob("not a schedule", &countingJob{name: "test"})
	assert.Error(t, err)
}

func TestScheduler_RunNow(t *testing.T) {
	sched := New(zerolog.Nop())
	job := &countingJob{name: "test"}

	require.NoError(t, sched.RunNow(job))
	assert.Equal(t, 1, job.runs)
}

func TestScheduler_RunNowPropagatesError(t *testing.T) {
	sched := New(zerolog.Nop())
	job := &countingJob{name: "failing", err: errors.New("boom")}

	assert.Error(t, sched.RunNow(job))
}

func TestScheduler_StartStop(t *testing.T) {
	sched := New(zerolog.Nop())
	sched.Start()
	sched.Stop()
}
