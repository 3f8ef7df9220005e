package service

import (
	"time"

	"tryout_backend/pkg/logger"

	"go.uber.org/zap"
)

type expiredAttemptSweeper interface {
	SweepExpired() (int, error)
}

// AttemptSweeper 定时扫描到期未交卷的尝试并自动交卷。
// Stop 之后不再触发任何扫描；交卷本身在事务内有完成态保护，
// 与手动提交竞争时最多只计分一次。
type AttemptSweeper struct {
	svc      expiredAttemptSweeper
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewAttemptSweeper(svc expiredAttemptSweeper, interval time.Duration) *AttemptSweeper {
	return &AttemptSweeper{
		svc:      svc,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *AttemptSweeper) Run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			count, err := w.svc.SweepExpired()
			if err != nil {
				logger.Log.Error("attempt sweep error", zap.Error(err))
				continue
			}
			if count > 0 {
				logger.Log.Info("auto-submitted expired attempts", zap.Int("count", count))
			}
		case <-w.stop:
			return
		}
	}
}

func (w *AttemptSweeper) Stop() {
	close(w.stop)
	<-w.done
}
