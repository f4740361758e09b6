package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"pacflut/canvas"
	"pacflut/sprite"
)

// fakeClock 由测试手动推进的时钟
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// solidFrames n 帧纯色图，第 i 帧颜色为 (i, 0, 0)
func solidFrames(n, size int) []image.Image {
	out := make([]image.Image, n)
	for i := range out {
		img := image.NewRGBA(image.Rect(0, 0, size, size))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+3] = uint8(i), 0xff
		}
		out[i] = img
	}
	return out
}

func newTestStreamer(t *testing.T, w *bytes.Buffer, c *Controls, clock *fakeClock, repeats int) *Streamer {
	t.Helper()
	bank, err := sprite.NewBank(solidFrames(4, 2), 2)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	tuning, err := NewTuning(repeats, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("NewTuning: %v", err)
	}
	s, err := NewStreamer(w, c, StreamConfig{
		Bank:   bank,
		Size:   canvas.Size{Width: 100, Height: 100},
		Tuning: tuning,
		Now:    clock.Now,
	})
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	return s
}

func TestStreamerWrapsAroundCanvas(t *testing.T) {
	var out bytes.Buffer
	clock := &fakeClock{t: time.Unix(0, 0)}
	s := newTestStreamer(t, &out, NewControls(4, nil), clock, 1)

	if s.Facing() != DirRight {
		t.Fatalf("initial facing = %v", s.Facing())
	}
	if err := s.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if p := s.Position(); p.X != 1 || p.Y != 0 {
		t.Fatalf("after 1 tick: %v, want (1,0)", p)
	}
	for i := 1; i < 100; i++ {
		if err := s.Tick(); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if p := s.Position(); p.X != 0 || p.Y != 0 {
		t.Fatalf("after 100 ticks: %v, want (0,0)", p)
	}
	if st := s.Status(); st.Tick != 100 || st.Facing != "right" {
		t.Fatalf("status = %+v", st)
	}
}

func TestStreamerWritesRepeatsFramesPerTick(t *testing.T) {
	var out bytes.Buffer
	clock := &fakeClock{t: time.Unix(0, 0)}
	s := newTestStreamer(t, &out, NewControls(4, nil), clock, 3)
	if err := s.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	// 2x2 帧 × 3 次重复
	if got := strings.Count(out.String(), "\n"); got != 12 {
		t.Fatalf("lines = %d, want 12", got)
	}
	if !strings.HasPrefix(out.String(), "PX 1 0 000000\n") {
		t.Fatalf("unexpected first line: %q", strings.SplitN(out.String(), "\n", 2)[0])
	}
}

func TestStreamerFrameFollowsClock(t *testing.T) {
	var out bytes.Buffer
	clock := &fakeClock{t: time.Unix(0, 0)}
	s := newTestStreamer(t, &out, NewControls(4, nil), clock, 1)

	cases := []struct {
		advance time.Duration
		frame   int
	}{
		{0, 0},
		{99 * time.Millisecond, 0},
		{1 * time.Millisecond, 1},
		{250 * time.Millisecond, 3},
		{100 * time.Millisecond, 0},
	}
	for _, tc := range cases {
		clock.Advance(tc.advance)
		out.Reset()
		if err := s.Tick(); err != nil {
			t.Fatalf("tick: %v", err)
		}
		if s.Status().Frame != tc.frame {
			t.Fatalf("frame = %d, want %d", s.Status().Frame, tc.frame)
		}
		// 纯色帧：红色分量就是帧号
		want := []byte{"0123456789abcdef"[tc.frame>>4], "0123456789abcdef"[tc.frame&0xf]}
		if line := strings.SplitN(out.String(), "\n", 2)[0]; !strings.HasSuffix(line, string(want)+"0000") {
			t.Fatalf("line %q does not show frame %d", line, tc.frame)
		}
	}
}

func TestStreamerLatchesOneDirectionPerTick(t *testing.T) {
	var out bytes.Buffer
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewControls(4, nil)
	s := newTestStreamer(t, &out, c, clock, 1)

	ctx := context.Background()
	_ = c.Send(ctx, Input{Dir: DirUp})
	_ = c.Send(ctx, Input{Dir: DirLeft})

	_ = s.Tick()
	if s.Facing() != DirUp {
		t.Fatalf("after first tick facing = %v, want up", s.Facing())
	}
	if p := s.Position(); p.X != 0 || p.Y != 99 {
		t.Fatalf("position = %v, want (0,99)", p)
	}
	_ = s.Tick()
	if s.Facing() != DirLeft {
		t.Fatalf("after second tick facing = %v, want left", s.Facing())
	}
	_ = s.Tick()
	if s.Facing() != DirLeft {
		t.Fatalf("facing must stay latched, got %v", s.Facing())
	}
	if p := s.Position(); p.X != 98 || p.Y != 99 {
		t.Fatalf("position = %v, want (98,99)", p)
	}
}

func TestStreamerPollLatest(t *testing.T) {
	var out bytes.Buffer
	bank, _ := sprite.NewBank(solidFrames(1, 2), 2)
	c := NewControls(4, nil)
	s, err := NewStreamer(&out, c, StreamConfig{
		Bank:   bank,
		Size:   canvas.Size{Width: 10, Height: 10},
		StartX: 5, StartY: 5,
		Policy: PollLatest,
	})
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	_ = c.Send(context.Background(), Input{Dir: DirUp})
	_ = c.Send(context.Background(), Input{Dir: DirDown})
	_ = s.Tick()
	if s.Facing() != DirDown {
		t.Fatalf("facing = %v, want down", s.Facing())
	}
	if p := s.Position(); p.X != 5 || p.Y != 6 {
		t.Fatalf("position = %v, want (5,6)", p)
	}
}

func TestStreamerUsesDirectionalFrames(t *testing.T) {
	// 左上角一个白点，便于判断使用的是哪个方向的帧
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{0xff, 0xff, 0xff, 0xff})
	bank, _ := sprite.NewBank([]image.Image{img}, 2)

	var out bytes.Buffer
	c := NewControls(4, nil)
	s, _ := NewStreamer(&out, c, StreamConfig{Bank: bank, Size: canvas.Size{Width: 10, Height: 10}})
	_ = c.Send(context.Background(), Input{Dir: DirLeft})
	_ = s.Tick()
	// 朝左：向左移动到 x=9，白点镜像到局部 (1,0) → 画布 (0,0)
	if !strings.Contains(out.String(), "PX 0 0 ffffff\n") {
		t.Fatalf("left-facing frame not mirrored:\n%s", out.String())
	}
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestStreamerRunStopsOnWriteError(t *testing.T) {
	bank, _ := sprite.NewBank(solidFrames(1, 2), 2)
	s, err := NewStreamer(errWriter{}, NewControls(4, nil), StreamConfig{Bank: bank, Size: canvas.Size{Width: 10, Height: 10}})
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	err = s.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("Run err = %v, want write error", err)
	}
}

func TestStreamerRunHonoursContext(t *testing.T) {
	bank, _ := sprite.NewBank(solidFrames(1, 2), 2)
	m := &Metrics{}
	var out discardWriter
	s, _ := NewStreamer(&out, NewControls(4, nil), StreamConfig{Bank: bank, Size: canvas.Size{Width: 10, Height: 10}, Metrics: m})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run err = %v", err)
	}
	snap := m.Snapshot()
	if snap["tick_count"].(int64) == 0 || snap["frames_written"].(int64) == 0 {
		t.Fatalf("metrics not recorded: %v", snap)
	}
}

type discardWriter struct{}

func (*discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestNewStreamerValidates(t *testing.T) {
	if _, err := NewStreamer(&bytes.Buffer{}, nil, StreamConfig{Size: canvas.Size{Width: 1, Height: 1}}); err == nil {
		t.Fatalf("expected error for missing bank")
	}
	bank, _ := sprite.NewBank(solidFrames(1, 2), 2)
	if _, err := NewStreamer(&bytes.Buffer{}, nil, StreamConfig{Bank: bank}); err == nil {
		t.Fatalf("expected error for zero canvas")
	}
}

func TestTuningRejectsInvalid(t *testing.T) {
	if _, err := NewTuning(0, time.Second); err == nil {
		t.Fatalf("expected error for zero repeats")
	}
	if _, err := NewTuning(1, 0); err == nil {
		t.Fatalf("expected error for zero frame duration")
	}
}
