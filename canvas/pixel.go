package canvas

import (
	"bufio"
	"image"
	"io"
	"strconv"
)

const hexDigits = "0123456789abcdef"

// Color 24 位颜色，alpha 不上线
type Color struct {
	R, G, B uint8
}

// colorAt 取 frame 在 (x, y) 的 RGB 分量，即预乘后的值（等同叠在黑底上），alpha 丢弃
func colorAt(frame *image.RGBA, x, y int) Color {
	off := frame.PixOffset(x, y)
	return Color{R: frame.Pix[off], G: frame.Pix[off+1], B: frame.Pix[off+2]}
}

// Pixel 协议的最小单元：一个点加一个颜色
type Pixel struct {
	Point Coordinates
	Color Color
}

// AppendTo 追加一条 "PX <x> <y> <rrggbb>\n" 命令
func (p Pixel) AppendTo(dst []byte) []byte {
	dst = append(dst, 'P', 'X', ' ')
	dst = strconv.AppendUint(dst, uint64(p.Point.X), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(p.Point.Y), 10)
	dst = append(dst, ' ',
		hexDigits[p.Color.R>>4], hexDigits[p.Color.R&0x0f],
		hexDigits[p.Color.G>>4], hexDigits[p.Color.G&0x0f],
		hexDigits[p.Color.B>>4], hexDigits[p.Color.B&0x0f],
		'\n')
	return dst
}

func (p Pixel) String() string {
	return string(p.AppendTo(nil))
}

// Encoder 将整帧序列化为 PX 命令写入连接（带缓冲）
type Encoder struct {
	w   *bufio.Writer
	buf []byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:   bufio.NewWriterSize(w, 64<<10),
		buf: make([]byte, 0, 32),
	}
}

// EncodeFrame 按行优先顺序（先 y 后 x）输出 frame 的每个像素，
// 局部坐标先折回画布范围再与 pos 做环绕加法。返回写出的字节数。
func (e *Encoder) EncodeFrame(frame *image.RGBA, pos Coordinates) (int, error) {
	b := frame.Bounds()
	total := 0
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := Pixel{
				Point: pos.Bounds.Wrap(x, y).Add(pos),
				Color: colorAt(frame, b.Min.X+x, b.Min.Y+y),
			}
			e.buf = px.AppendTo(e.buf[:0])
			n, err := e.w.Write(e.buf)
			total += n
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// Flush 把缓冲区剩余字节推到连接上
func (e *Encoder) Flush() error {
	return e.w.Flush()
}
