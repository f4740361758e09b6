package sprite

import (
	"fmt"
	"image"
	"image/gif"
	"io"
	"os"

	"golang.org/x/image/draw"
)

// LoadGIF 打开并解码 GIF 文件
func LoadGIF(path string) ([]image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeGIF(f)
}

// DecodeGIF 解码所有帧并按 disposal 方式合成到逻辑屏幕上，
// 返回的每一帧都是完整的 RGBA 画面（而不是 GIF 中的局部子图）
func DecodeGIF(r io.Reader) ([]image.Image, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, ErrNoFrames
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		for _, p := range g.Image {
			bounds = bounds.Union(p.Bounds())
		}
	}

	screen := image.NewRGBA(bounds)
	frames := make([]image.Image, 0, len(g.Image))
	for i, p := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		var saved *image.RGBA
		if disposal == gif.DisposalPrevious {
			saved = cloneRGBA(screen)
		}

		draw.Draw(screen, p.Bounds(), p, p.Bounds().Min, draw.Over)
		frames = append(frames, cloneRGBA(screen))

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(screen, p.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			screen = saved
		}
	}
	return frames, nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
