package sprite

import (
	"image"
	"image/color"
	"math"
)

var (
	pacmanYellow = color.RGBA{R: 0xff, G: 0xe0, B: 0x00, A: 0xff}
	pacmanEye    = color.RGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xff}
)

// Pacman 生成内置的吃豆人张嘴动画（面朝右），未指定 GIF 时使用。
// 嘴巴张角在 0° 和 80° 之间往返。
func Pacman(size, frames int) []image.Image {
	if frames < 1 {
		frames = 1
	}
	out := make([]image.Image, frames)
	for i := 0; i < frames; i++ {
		// 三角波：0 → 1 → 0
		phase := 0.0
		if frames > 1 {
			phase = float64(i) / float64(frames)
			phase = 1 - math.Abs(2*phase-1)
		}
		out[i] = drawPacman(size, phase*40*math.Pi/180)
	}
	return out
}

func drawPacman(size int, halfMouth float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := float64(size-1) / 2
	r := float64(size) / 2
	eyeX, eyeY := c+r*0.1, c-r*0.5
	eyeR := r * 0.12
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			if dx*dx+dy*dy > r*r {
				continue
			}
			if halfMouth > 0 && dx > 0 && math.Abs(math.Atan2(dy, dx)) < halfMouth {
				continue
			}
			ex, ey := float64(x)-eyeX, float64(y)-eyeY
			if ex*ex+ey*ey <= eyeR*eyeR {
				img.SetRGBA(x, y, pacmanEye)
				continue
			}
			img.SetRGBA(x, y, pacmanYellow)
		}
	}
	return img
}
