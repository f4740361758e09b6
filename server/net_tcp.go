package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// 单行最大长度，超出部分按无效行忽略
const maxControlLine = 4 << 10

// TCPControl 行协议遥控：每行 trim 后为 w/a/s/d 之一才生效。
// 每个连接一个 goroutine，互不影响；accept 循环不会因单个连接出错而退出。
type TCPControl struct {
	ln       net.Listener
	controls *Controls
	metrics  *Metrics

	wg sync.WaitGroup
}

// ListenTCP 绑定遥控端口；失败由调用方记录并降级为无此输入源
func ListenTCP(addr string, c *Controls, m *Metrics) (*TCPControl, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = &Metrics{}
	}
	return &TCPControl{ln: ln, controls: c, metrics: m}, nil
}

func (t *TCPControl) Addr() net.Addr { return t.ln.Addr() }

// Serve accept 循环；ctx 结束时关闭监听并等待所有连接退出
func (t *TCPControl) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = t.ln.Close() })
	defer stop()
	defer t.wg.Wait()

	var backoff time.Duration
	for {
		conn, err := t.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// 临时错误（如 fd 耗尽）：退避后继续
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			Log.Warnf("tcp control accept: %v; retrying in %v", err, backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.handle(ctx, conn)
		}()
	}
}

func (t *TCPControl) handle(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr()
	n := t.metrics.ConnOpened()
	Log.Infof("remote control connected (ip=%s connections=%d)", peer, n)
	defer func() {
		t.metrics.ConnClosed()
		_ = conn.Close()
	}()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	r := bufio.NewReaderSize(conn, maxControlLine)
	skipping := false
	for {
		line, err := r.ReadSlice('\n')
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			// 超长行整行丢弃，连接保持
			if !skipping {
				t.metrics.IncIgnored()
				skipping = true
			}
			continue
		case skipping:
			skipping = false
		case len(line) > 0:
			dir, ok := ParseKey(strings.TrimSpace(string(line)))
			if !ok {
				t.metrics.IncIgnored()
			} else if err := t.controls.Send(ctx, Input{Dir: dir, Source: SourceTCP}); err != nil {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				Log.Warnf("remote control %s: %v", peer, err)
			}
			break
		}
	}
	Log.Infof("remote control disconnected (ip=%s)", peer)
}
