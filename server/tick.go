package server

import (
	"context"
	"time"
)

// Run 渲染循环主体：不限速地推进 Tick，直到写失败或 ctx 结束。
// 写失败即返回（画布连接不重试）。
func (s *Streamer) Run(ctx context.Context) error {
	Log.Infof("streaming started at %v facing %s, repeats=%d frameDuration=%v policy=%s",
		s.position, s.facing, s.tuning.Repeats(), s.tuning.FrameDuration(), s.policy)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		// 核心循环：处理输入 → 移动 → 推流
		start := time.Now()
		if err := s.Tick(); err != nil {
			return err
		}
		s.metrics.AddTick(time.Since(start).Nanoseconds())
	}
}
