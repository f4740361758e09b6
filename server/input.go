package server

import (
	"context"
	"fmt"
)

// Input 来源标识
const (
	SourceKeyboard = "keyboard"
	SourceTCP      = "tcp"
	SourceHTTP     = "http"
	SourceWS       = "ws"
)

// DefaultQueueSize 控制通道容量；消费者每个 Tick 都会取，足够吸收突发输入
const DefaultQueueSize = 1024

// Input 一次方向意图，由输入源产生，在渲染循环的下一次 Tick 中生效
type Input struct {
	Dir    Direction
	Source string
}

// 入站输入的 JSON 结构（WebSocket 文本消息）
// 示例：{"type":"move","command":"up"}
type InputMessage struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// PollPolicy 每个 Tick 从控制通道取多少条
type PollPolicy int

const (
	// PollOne 每个 Tick 至多取一条（最旧的），突发输入被平滑到后续 Tick
	PollOne PollPolicy = iota
	// PollLatest 每个 Tick 取空队列，只保留最新一条
	PollLatest
)

func (p PollPolicy) String() string {
	if p == PollLatest {
		return "latest"
	}
	return "one"
}

func ParsePollPolicy(s string) (PollPolicy, error) {
	switch s {
	case "one", "":
		return PollOne, nil
	case "latest":
		return PollLatest, nil
	default:
		return PollOne, fmt.Errorf("unknown poll policy %q (want one|latest)", s)
	}
}

// Controls 多生产者、单消费者的方向队列；输入源与渲染循环之间唯一的同步点
type Controls struct {
	ch      chan Input
	metrics *Metrics
}

func NewControls(size int, m *Metrics) *Controls {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Controls{ch: make(chan Input, size), metrics: m}
}

// Send 入队一条输入。队列满时阻塞等待消费者（每个 Tick 都会取走），
// 只有 ctx 结束才返回错误
func (c *Controls) Send(ctx context.Context, in Input) error {
	select {
	case c.ch <- in:
	default:
		if c.metrics != nil {
			c.metrics.IncQueueFull()
		}
		select {
		case c.ch <- in:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.metrics != nil {
		c.metrics.IncAccepted(in.Source)
	}
	return nil
}

// TryReceive 非阻塞取一条（最旧的）
func (c *Controls) TryReceive() (Input, bool) {
	select {
	case in := <-c.ch:
		return in, true
	default:
		return Input{}, false
	}
}

// Poll 按策略取输入；没有输入时返回 false，调用方保持原方向
func (c *Controls) Poll(policy PollPolicy) (Input, bool) {
	in, ok := c.TryReceive()
	if !ok || policy != PollLatest {
		return in, ok
	}
	for {
		next, more := c.TryReceive()
		if !more {
			return in, true
		}
		in = next
	}
}

// Len 当前排队数量
func (c *Controls) Len() int { return len(c.ch) }
