package sprite

import (
	"image"

	"golang.org/x/image/draw"
)

// Resize 最近邻缩放到 size×size；保留硬边缘，输出本身就是逐像素绘制
func Resize(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// FlipHorizontal 左右镜像
func FlipHorizontal(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copyPixel(dst, w-1-x, y, src, b.Min.X+x, b.Min.Y+y)
		}
	}
	return dst
}

// FlipVertical 上下镜像
func FlipVertical(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copyPixel(dst, x, h-1-y, src, b.Min.X+x, b.Min.Y+y)
		}
	}
	return dst
}

// Rotate90 顺时针旋转 90°：源 (x, y) 落到 (h-1-y, x)
func Rotate90(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copyPixel(dst, h-1-y, x, src, b.Min.X+x, b.Min.Y+y)
		}
	}
	return dst
}

func copyPixel(dst *image.RGBA, dx, dy int, src *image.RGBA, sx, sy int) {
	d := dst.PixOffset(dx, dy)
	s := src.PixOffset(sx, sy)
	copy(dst.Pix[d:d+4], src.Pix[s:s+4])
}

func mapFrames(frames []*image.RGBA, fn func(*image.RGBA) *image.RGBA) []*image.RGBA {
	out := make([]*image.RGBA, len(frames))
	for i, f := range frames {
		out[i] = fn(f)
	}
	return out
}
