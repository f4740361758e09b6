package sprite

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"strings"
	"testing"
)

var testPalette = color.Palette{
	color.RGBA{0, 0, 0, 0},
	color.RGBA{255, 0, 0, 255},
	color.RGBA{0, 0, 255, 255},
}

func encodeGIF(t *testing.T, g *gif.GIF) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return &buf
}

func TestDecodeGIFComposites(t *testing.T) {
	full := image.NewPaletted(image.Rect(0, 0, 4, 4), testPalette)
	for i := range full.Pix {
		full.Pix[i] = 1
	}
	// 第二帧只覆盖右下角 2x2
	patch := image.NewPaletted(image.Rect(2, 2, 4, 4), testPalette)
	for i := range patch.Pix {
		patch.Pix[i] = 2
	}
	g := &gif.GIF{
		Image:    []*image.Paletted{full, patch},
		Delay:    []int{10, 10},
		Disposal: []byte{gif.DisposalNone, gif.DisposalNone},
		Config:   image.Config{ColorModel: testPalette, Width: 4, Height: 4},
	}

	frames, err := DecodeGIF(encodeGIF(t, g))
	if err != nil {
		t.Fatalf("DecodeGIF: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames = %d", len(frames))
	}
	second := frames[1]
	if second.Bounds() != image.Rect(0, 0, 4, 4) {
		t.Fatalf("second frame bounds = %v, want full screen", second.Bounds())
	}
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	if got := color.RGBAModel.Convert(second.At(0, 0)); got != red {
		t.Fatalf("(0,0) = %v, want red from first frame", got)
	}
	if got := color.RGBAModel.Convert(second.At(3, 3)); got != blue {
		t.Fatalf("(3,3) = %v, want blue from patch", got)
	}
}

func TestDecodeGIFDisposalBackground(t *testing.T) {
	a := image.NewPaletted(image.Rect(0, 0, 2, 2), testPalette)
	for i := range a.Pix {
		a.Pix[i] = 1
	}
	b := image.NewPaletted(image.Rect(0, 0, 1, 1), testPalette)
	b.Pix[0] = 2
	g := &gif.GIF{
		Image:    []*image.Paletted{a, b},
		Delay:    []int{10, 10},
		Disposal: []byte{gif.DisposalBackground, gif.DisposalNone},
		Config:   image.Config{ColorModel: testPalette, Width: 2, Height: 2},
	}
	frames, err := DecodeGIF(encodeGIF(t, g))
	if err != nil {
		t.Fatalf("DecodeGIF: %v", err)
	}
	if _, _, _, alpha := frames[1].At(1, 1).RGBA(); alpha != 0 {
		t.Fatalf("(1,1) should be cleared after background disposal")
	}
}

func TestDecodeGIFInvalid(t *testing.T) {
	if _, err := DecodeGIF(strings.NewReader("not a gif")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLoadGIFMissingFile(t *testing.T) {
	if _, err := LoadGIF("does-not-exist.gif"); err == nil {
		t.Fatalf("expected error")
	}
}
