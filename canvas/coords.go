// Package canvas 实现 pixelflut 画布侧：环绕坐标、PX 命令编码与服务端连接。
package canvas

import "fmt"

// Size 画布尺寸，启动时由服务端 SIZE 应答给出，之后不再变化
type Size struct {
	Width  uint16
	Height uint16
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Wrap 将任意整数坐标折回画布范围内（欧几里得取模，负数同样有效）
func (s Size) Wrap(x, y int) Coordinates {
	return Coordinates{
		X:      uint16(wrap(x, int(s.Width))),
		Y:      uint16(wrap(y, int(s.Height))),
		Bounds: s,
	}
}

// Coordinates 画布上的点，始终满足 0 <= X < Width, 0 <= Y < Height
type Coordinates struct {
	X      uint16
	Y      uint16
	Bounds Size
}

// Add 环绕加法：两轴分别对边界取模，结果沿用 c 的边界
func (c Coordinates) Add(o Coordinates) Coordinates {
	if c.Bounds != o.Bounds {
		panic(fmt.Sprintf("canvas: adding coordinates with different bounds %v and %v", c.Bounds, o.Bounds))
	}
	return Coordinates{
		X:      uint16((uint32(c.X) + uint32(o.X)) % uint32(c.Bounds.Width)),
		Y:      uint16((uint32(c.Y) + uint32(o.Y)) % uint32(c.Bounds.Height)),
		Bounds: c.Bounds,
	}
}

// Offset 按 (dx, dy) 平移并环绕，移动 Tick 使用
func (c Coordinates) Offset(dx, dy int) Coordinates {
	return c.Bounds.Wrap(int(c.X)+dx, int(c.Y)+dy)
}

func (c Coordinates) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
