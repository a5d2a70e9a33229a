package server

import (
	"context"
	"sync"
	"time"
)

// Checkpointer 定期把注册表快照写入存储，独立于消息处理路径
type Checkpointer struct {
	registry *Registry
	objects  *ObjectRegistry
	store    Store
	metrics  *Metrics
	interval time.Duration

	mu    sync.Mutex // 串行化 Flush，避免定时存档与退出存档交错
	saved uint64
	dirty bool
}

func NewCheckpointer(registry *Registry, objects *ObjectRegistry, store Store, metrics *Metrics, interval time.Duration) *Checkpointer {
	return &Checkpointer{
		registry: registry,
		objects:  objects,
		store:    store,
		metrics:  metrics,
		interval: interval,
		saved:    registry.Version(),
		dirty:    true, // 首次总是落盘一次，写入物体列表
	}
}

// Run 按间隔存档直到 ctx 结束；写入失败只记录日志，下一次重试
func (c *Checkpointer) Run(ctx context.Context) {
	if c.interval <= 0 {
		return
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Flush(); err != nil {
				Log.Warnw("checkpoint failed", "err", err)
			}
		}
	}
}

// Flush 若状态自上次存档后有变化则写入存储
func (c *Checkpointer) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, version := c.registry.Snapshot()
	if !c.dirty && version == c.saved {
		return nil
	}
	snap.Objects = c.objects.Objects()
	start := time.Now()
	if err := c.store.Save(snap); err != nil {
		c.metrics.IncCheckpointFailure()
		return err
	}
	c.saved = version
	c.dirty = false
	c.metrics.IncCheckpoint()
	Log.Debugw("checkpoint written", "units", len(snap.Units), "nextID", snap.NextID, "took", time.Since(start))
	return nil
}
