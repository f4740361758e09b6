// Package sprite 负责动画帧：GIF 解码、内置精灵、按方向预计算的帧库，
// 以及由经过时间决定当前帧的时钟函数。
package sprite

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// DefaultSize 精灵边长（像素）
const DefaultSize = 60

// DefaultFrameDuration 每帧显示时长
const DefaultFrameDuration = 200 * time.Millisecond

var ErrNoFrames = errors.New("sprite: animation has no frames")

// Bank 四个朝向的帧序列，启动时一次性构建，此后只读（可跨 goroutine 共享）
type Bank struct {
	Size  int
	Right []*image.RGBA
	Left  []*image.RGBA
	Up    []*image.RGBA
	Down  []*image.RGBA
}

// NewBank 先把每帧最近邻缩放到 size×size，再派生其余方向：
// Left = 水平镜像(Right)，Down = 顺时针旋转(Right)，Up = 垂直镜像(Down)
func NewBank(frames []image.Image, size int) (*Bank, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if size <= 0 {
		return nil, fmt.Errorf("sprite: invalid size %d", size)
	}
	right := make([]*image.RGBA, len(frames))
	for i, f := range frames {
		right[i] = Resize(f, size)
	}
	down := mapFrames(right, Rotate90)
	return &Bank{
		Size:  size,
		Right: right,
		Left:  mapFrames(right, FlipHorizontal),
		Down:  down,
		Up:    mapFrames(down, FlipVertical),
	}, nil
}

func (b *Bank) Len() int { return len(b.Right) }

// FrameIndex = floor(elapsed / frameDuration) mod n
// 只依赖时间，与实际发送了多少帧无关
func FrameIndex(elapsed, frameDuration time.Duration, n int) int {
	if n <= 0 {
		return 0
	}
	if elapsed < 0 || frameDuration <= 0 {
		return 0
	}
	return int((elapsed / frameDuration) % time.Duration(n))
}
