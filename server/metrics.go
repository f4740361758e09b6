package server

import (
	"sync/atomic"
)

// Metrics 记录运行期的关键指标（用于监控与调试）
type Metrics struct {
	TickCount      int64 // 移动 Tick 次数
	FramesWritten  int64 // 写出的帧数
	BytesWritten   int64 // 写到画布连接的字节数
	TotalTickNs    int64 // Tick 累计耗时（纳秒）
	InputsIgnored  int64 // 无法识别而被忽略的输入
	QueueFull      int64 // 发送时控制通道已满的次数
	RemoteConns    int64 // 当前 TCP 遥控连接数
	KeyboardInputs int64
	TCPInputs      int64
	HTTPInputs     int64
	WSInputs       int64
}

func (m *Metrics) IncIgnored()   { atomic.AddInt64(&m.InputsIgnored, 1) }
func (m *Metrics) IncQueueFull() { atomic.AddInt64(&m.QueueFull, 1) }

// ConnOpened 返回当前连接数（含新连接）
func (m *Metrics) ConnOpened() int64 { return atomic.AddInt64(&m.RemoteConns, 1) }
func (m *Metrics) ConnClosed()       { atomic.AddInt64(&m.RemoteConns, -1) }

func (m *Metrics) IncAccepted(source string) {
	switch source {
	case SourceKeyboard:
		atomic.AddInt64(&m.KeyboardInputs, 1)
	case SourceTCP:
		atomic.AddInt64(&m.TCPInputs, 1)
	case SourceHTTP:
		atomic.AddInt64(&m.HTTPInputs, 1)
	case SourceWS:
		atomic.AddInt64(&m.WSInputs, 1)
	}
}

func (m *Metrics) AddFrame(bytes int) {
	atomic.AddInt64(&m.FramesWritten, 1)
	atomic.AddInt64(&m.BytesWritten, int64(bytes))
}

func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":     tick,
		"frames_written": atomic.LoadInt64(&m.FramesWritten),
		"bytes_written":  atomic.LoadInt64(&m.BytesWritten),
		"inputs_ignored": atomic.LoadInt64(&m.InputsIgnored),
		"queue_full":     atomic.LoadInt64(&m.QueueFull),
		"remote_conns":   atomic.LoadInt64(&m.RemoteConns),
		"inputs": map[string]int64{
			SourceKeyboard: atomic.LoadInt64(&m.KeyboardInputs),
			SourceTCP:      atomic.LoadInt64(&m.TCPInputs),
			SourceHTTP:     atomic.LoadInt64(&m.HTTPInputs),
			SourceWS:       atomic.LoadInt64(&m.WSInputs),
		},
		"avg_tick_ms": avgMs,
	}
}
