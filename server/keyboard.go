package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const byteCtrlC = 0x03

// ErrInterrupted raw 模式下 SIGINT 不会产生，Ctrl+C 以该错误返回
var ErrInterrupted = errors.New("interrupted")

// OpenTerminal 把 stdin 切到 raw 模式（逐字符、无回显），返回恢复函数
func OpenTerminal() (restore func(), err error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("entering raw mode: %w", err)
	}
	rawTerminal.Store(true)
	return func() {
		rawTerminal.Store(false)
		_ = term.Restore(fd, oldState)
	}, nil
}

// RunKeyboard 逐字节读取 r：w/a/s/d 转换为方向，其他字符忽略。
// 读到 EOF 返回 nil；读到 Ctrl+C 返回 ErrInterrupted。
func RunKeyboard(ctx context.Context, r io.Reader, c *Controls) error {
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b == byteCtrlC {
				return ErrInterrupted
			}
			dir, ok := ParseKey(string(b))
			if !ok {
				continue
			}
			if err := c.Send(ctx, Input{Dir: dir, Source: SourceKeyboard}); err != nil {
				return err
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
	}
}
