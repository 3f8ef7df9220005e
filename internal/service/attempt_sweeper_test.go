package service

import (
	"sync/atomic"
	"testing"
	"time"

	"tryout_backend/internal/config"
	"tryout_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
)

type fakeSweepTarget struct {
	calls int64
}

func (f *fakeSweepTarget) SweepExpired() (int, error) {
	atomic.AddInt64(&f.calls, 1)
	return 0, nil
}

func TestAttemptSweeperRunAndStop(t *testing.T) {
	logger.InitLogger(&config.Config{})

	target := &fakeSweepTarget{}
	sweeper := NewAttemptSweeper(target, 10*time.Millisecond)

	go sweeper.Run()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&target.calls) >= 2
	}, time.Second, 5*time.Millisecond)

	sweeper.Stop()

	// Stop 之后不再触发扫描
	after := atomic.LoadInt64(&target.calls)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt64(&target.calls))
}
