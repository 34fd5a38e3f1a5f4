package project

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"novel-studio-api/pkg/logger"
)

// Flusher 可被周期刷盘的对象
type Flusher interface {
	Flush(ctx context.Context) error
}

// Autosaver 按 cron 表达式周期调用 Flush
type Autosaver struct {
	cron    *cron.Cron
	target  Flusher
	timeout time.Duration
}

// NewAutosaver spec 支持标准 cron 表达式与 @every 描述符
func NewAutosaver(target Flusher, spec string, timeout time.Duration) (*Autosaver, error) {
	if target == nil {
		return nil, fmt.Errorf("autosave target is nil")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	a := &Autosaver{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		target:  target,
		timeout: timeout,
	}
	if _, err := a.cron.AddFunc(spec, a.run); err != nil {
		return nil, fmt.Errorf("invalid autosave spec %q: %w", spec, err)
	}
	return a, nil
}

func (a *Autosaver) run() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	start := time.Now()
	if err := a.target.Flush(ctx); err != nil {
		logger.Error(ctx, "autosave failed", err)
		return
	}
	logger.Debug(ctx, "autosave completed", "duration_ms", time.Since(start).Milliseconds())
}

// Start 启动调度
func (a *Autosaver) Start() {
	a.cron.Start()
}

// Stop 停止调度并执行最后一次刷盘
func (a *Autosaver) Stop(ctx context.Context) error {
	stopped := a.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return a.target.Flush(ctx)
}
