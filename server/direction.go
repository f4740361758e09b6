package server

import "strings"

// Direction 移动方向，由任一输入源产生，只由渲染循环消费
type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "none"
	}
}

// Delta 单位位移；画布 y 轴向下
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	default:
		return 0, 0
	}
}

// ParseKey w/a/s/d → 上/左/下/右；其他输入返回 false（静默忽略）
func ParseKey(s string) (Direction, bool) {
	switch s {
	case "w":
		return DirUp, true
	case "a":
		return DirLeft, true
	case "s":
		return DirDown, true
	case "d":
		return DirRight, true
	default:
		return DirNone, false
	}
}

// ParseCommand up/down/left/right（大小写不敏感），WebSocket JSON 使用
func ParseCommand(s string) (Direction, bool) {
	switch strings.ToLower(s) {
	case "up":
		return DirUp, true
	case "down":
		return DirDown, true
	case "left":
		return DirLeft, true
	case "right":
		return DirRight, true
	default:
		return DirNone, false
	}
}
