package canvas

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ErrMalformedSize SIZE 应答无法解析
var ErrMalformedSize = errors.New("malformed size response")

// Conn 到 pixelflut 服务端的持久 TCP 连接：启动时查询一次尺寸，之后只写
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial 建立到服务端的连接
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return NewConn(nc), nil
}

// NewConn 包装已建立的连接（测试中配合 net.Pipe 使用）
func NewConn(nc net.Conn) *Conn {
	return &Conn{conn: nc, r: bufio.NewReader(nc)}
}

// QuerySize 发送 "SIZE\n" 并解析一行应答
func (c *Conn) QuerySize() (Size, error) {
	if _, err := c.conn.Write([]byte("SIZE\n")); err != nil {
		return Size{}, fmt.Errorf("send size request: %w", err)
	}
	line, err := c.r.ReadString('\n')
	if err != nil && line == "" {
		return Size{}, fmt.Errorf("read size response: %w", err)
	}
	return ParseSize(line)
}

func (c *Conn) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// ParseSize 解析 "SIZE <w> <h>"：首个 token 忽略，第二、三个为 uint16
func ParseSize(line string) (Size, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Size{}, fmt.Errorf("%w: want 3 tokens, got %d in %q", ErrMalformedSize, len(fields), strings.TrimSpace(line))
	}
	w, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return Size{}, fmt.Errorf("%w: width: %v", ErrMalformedSize, err)
	}
	h, err := strconv.ParseUint(fields[2], 10, 16)
	if err != nil {
		return Size{}, fmt.Errorf("%w: height: %v", ErrMalformedSize, err)
	}
	if w == 0 || h == 0 {
		return Size{}, fmt.Errorf("%w: empty canvas %dx%d", ErrMalformedSize, w, h)
	}
	return Size{Width: uint16(w), Height: uint16(h)}, nil
}
