package service

import (
	"sync"
	"testing"
	"time"

	"tryout_backend/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestSweepGraceHotReload(t *testing.T) {
	cfg := &config.Config{}
	cfg.Tryout.GraceSeconds = 5

	svc := NewAttemptService(nil, nil, nil, cfg, nil)
	assert.Equal(t, 5*time.Second, svc.sweepGrace())

	svc.SetGraceSeconds(30)
	assert.Equal(t, 30*time.Second, svc.sweepGrace())

	// watcher 协程改写、扫描协程读取可以并发进行
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				svc.SetGraceSeconds(n)
				_ = svc.sweepGrace()
			}
		}(i + 1)
	}
	wg.Wait()
	assert.Greater(t, svc.sweepGrace(), time.Duration(0))
}

func TestCacheTTLHotReload(t *testing.T) {
	cfg := &config.Config{}
	cfg.Tryout.CacheTTLSeconds = 300

	svc := NewTryoutService(nil, nil, nil, nil, cfg)
	assert.Equal(t, 300*time.Second, svc.cacheTTL())

	svc.SetCacheTTLSeconds(60)
	assert.Equal(t, 60*time.Second, svc.cacheTTL())
}
