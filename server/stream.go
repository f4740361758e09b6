package server

import (
	"errors"
	"fmt"
	"image"
	"io"
	"sync/atomic"
	"time"

	"pacflut/canvas"
	"pacflut/sprite"
)

// DefaultRepeats 每次移动 Tick 之间重复绘制的帧数：越大吞吐越高，输入延迟也越大
const DefaultRepeats = 10

// Tuning 运行期可调参数（/admin/config 热更新），渲染循环每个 Tick 读取一次
type Tuning struct {
	repeats       atomic.Int64
	frameDuration atomic.Int64
}

func NewTuning(repeats int, frameDuration time.Duration) (*Tuning, error) {
	t := &Tuning{}
	if err := t.SetRepeats(repeats); err != nil {
		return nil, err
	}
	if err := t.SetFrameDuration(frameDuration); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tuning) Repeats() int { return int(t.repeats.Load()) }

func (t *Tuning) SetRepeats(n int) error {
	if n < 1 {
		return fmt.Errorf("repeats must be >= 1, got %d", n)
	}
	t.repeats.Store(int64(n))
	return nil
}

func (t *Tuning) FrameDuration() time.Duration { return time.Duration(t.frameDuration.Load()) }

func (t *Tuning) SetFrameDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("frame duration must be > 0, got %v", d)
	}
	t.frameDuration.Store(int64(d))
	return nil
}

// Status 渲染循环状态快照，给 /ws 与 /metrics 只读展示
type Status struct {
	Tick   int64  `json:"tick"`
	X      uint16 `json:"x"`
	Y      uint16 `json:"y"`
	Width  uint16 `json:"width"`
	Height uint16 `json:"height"`
	Facing string `json:"facing"`
	Frame  int    `json:"frame"`
}

// StreamConfig 渲染循环的构造参数
type StreamConfig struct {
	Bank    *sprite.Bank
	Size    canvas.Size
	StartX  int
	StartY  int
	Policy  PollPolicy
	Tuning  *Tuning
	Metrics *Metrics
	Now     func() time.Time // 测试注入；默认 time.Now
}

// Streamer 渲染/推流循环：独占 position 与 facing，单 goroutine 推进，无需加锁
type Streamer struct {
	bank     *sprite.Bank
	enc      *canvas.Encoder
	controls *Controls
	policy   PollPolicy
	tuning   *Tuning
	metrics  *Metrics
	now      func() time.Time
	start    time.Time

	position canvas.Coordinates
	facing   Direction
	frame    int
	tickSeq  int64

	status atomic.Pointer[Status]
}

// NewStreamer 创建渲染循环；w 通常是画布连接
func NewStreamer(w io.Writer, controls *Controls, cfg StreamConfig) (*Streamer, error) {
	if cfg.Bank == nil || cfg.Bank.Len() == 0 {
		return nil, errors.New("stream: empty frame bank")
	}
	if cfg.Size.Width == 0 || cfg.Size.Height == 0 {
		return nil, fmt.Errorf("stream: invalid canvas size %v", cfg.Size)
	}
	if cfg.Tuning == nil {
		t, err := NewTuning(DefaultRepeats, sprite.DefaultFrameDuration)
		if err != nil {
			return nil, err
		}
		cfg.Tuning = t
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &Metrics{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Streamer{
		bank:     cfg.Bank,
		enc:      canvas.NewEncoder(w),
		controls: controls,
		policy:   cfg.Policy,
		tuning:   cfg.Tuning,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
		position: cfg.Size.Wrap(cfg.StartX, cfg.StartY),
		facing:   DirRight,
	}
	s.start = s.now()
	s.publish()
	return s, nil
}

func (s *Streamer) Position() canvas.Coordinates { return s.position }
func (s *Streamer) Facing() Direction            { return s.facing }

// Status 可在任意 goroutine 调用
func (s *Streamer) Status() Status { return *s.status.Load() }

// ProcessInputs 非阻塞取控制通道；有新方向就锁存，否则沿用上一个方向
func (s *Streamer) ProcessInputs() {
	if s.controls == nil {
		return
	}
	in, ok := s.controls.Poll(s.policy)
	if !ok || in.Dir == DirNone {
		return
	}
	if in.Dir != s.facing {
		Log.Debugf("facing %s -> %s (source=%s)", s.facing, in.Dir, in.Source)
	}
	s.facing = in.Dir
}

// Advance 沿当前朝向移动一个单位，越界环绕
func (s *Streamer) Advance() {
	dx, dy := s.facing.Delta()
	s.position = s.position.Offset(dx, dy)
}

func (s *Streamer) frames() []*image.RGBA {
	switch s.facing {
	case DirLeft:
		return s.bank.Left
	case DirUp:
		return s.bank.Up
	case DirDown:
		return s.bank.Down
	default:
		return s.bank.Right
	}
}

// DrawFrame 按当前时间选帧并序列化到缓冲区
func (s *Streamer) DrawFrame() error {
	frames := s.frames()
	s.frame = sprite.FrameIndex(s.now().Sub(s.start), s.tuning.FrameDuration(), len(frames))
	n, err := s.enc.EncodeFrame(frames[s.frame], s.position)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	s.metrics.AddFrame(n)
	return nil
}

// Tick 一次外层迭代：取输入 → 移动 → 连续绘制 Repeats 帧 → 刷出
func (s *Streamer) Tick() error {
	s.ProcessInputs()
	s.Advance()
	repeats := s.tuning.Repeats()
	for i := 0; i < repeats; i++ {
		if err := s.DrawFrame(); err != nil {
			return err
		}
	}
	if err := s.enc.Flush(); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	s.tickSeq++
	s.publish()
	return nil
}

func (s *Streamer) publish() {
	s.status.Store(&Status{
		Tick:   s.tickSeq,
		X:      s.position.X,
		Y:      s.position.Y,
		Width:  s.position.Bounds.Width,
		Height: s.position.Bounds.Height,
		Facing: s.facing.String(),
		Frame:  s.frame,
	})
}
