package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/krisefikser/internal/service"
)

type countingPruner struct {
	calls atomic.Int32
	err   error
}

func (p *countingPruner) PruneExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestTokenReaperRunsUntilCancelled(t *testing.T) {
	p := &countingPruner{}
	r := service.NewTokenReaper(p, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}

func TestTokenReaperSurvivesErrors(t *testing.T) {
	p := &countingPruner{err: errors.New("db down")}
	r := service.NewTokenReaper(p, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestTokenReaperRejectsZeroInterval(t *testing.T) {
	r := service.NewTokenReaper(&countingPruner{}, 0, nil)
	assert.Error(t, r.Run(context.Background()))
}
