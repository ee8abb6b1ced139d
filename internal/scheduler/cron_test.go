package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls    int
	deadline bool
	err      error
}

func (r *countingRunner) ProcessCampaignsInWorkingHours(ctx context.Context) (Report, error) {
	r.calls++
	_, r.deadline = ctx.Deadline()
	return Report{RunID: "run-1", Dispatched: 1}, r.err
}

func TestNewTrigger_InvalidSpec(t *testing.T) {
	_, err := NewTrigger("every tuesday", &countingRunner{}, time.Second)
	require.Error(t, err)
}

func TestTrigger_TickRunsWithDeadline(t *testing.T) {
	r := &countingRunner{}
	tr, err := NewTrigger("*/5 * * * *", r, time.Second)
	require.NoError(t, err)

	tr.tick()
	assert.Equal(t, 1, r.calls)
	assert.True(t, r.deadline)

	r.err = errors.New("load failed")
	tr.tick()
	assert.Equal(t, 2, r.calls)
}

func TestTrigger_StartStop(t *testing.T) {
	tr, err := NewTrigger("0 9 * * 1-5", &countingRunner{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, tr.timeout)

	tr.Start()
	tr.Stop()
}
