package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// StatusInterval WebSocket 状态推送间隔
const StatusInterval = 200 * time.Millisecond

// ClientConn 一个 WebSocket 遥控客户端：读协程注入输入，写协程推送状态
type ClientConn struct {
	ws       *websocket.Conn
	controls *Controls
	metrics  *Metrics
	status   func() Status
	done     chan struct{}
}

func NewClientConn(ws *websocket.Conn, c *Controls, m *Metrics, status func() Status) *ClientConn {
	return &ClientConn{
		ws:       ws,
		controls: c,
		metrics:  m,
		status:   status,
		done:     make(chan struct{}),
	}
}

// writePump 独立协程，定时推送状态并发送 ping；readPump 结束后退出
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(StatusInterval)
	defer ticker.Stop()
	ping := time.NewTicker(25 * time.Second)
	defer ping.Stop()
	defer c.ws.Close()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.status == nil {
				continue
			}
			b, err := json.Marshal(c.status())
			if err != nil {
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端输入，转换为 Input 注入控制通道
func (c *ClientConn) readPump(ctx context.Context) {
	defer close(c.done)
	defer c.ws.Close()
	c.ws.SetReadLimit(1 << 10)
	_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		dir, ok := parseWSMessage(payload)
		if !ok {
			if c.metrics != nil {
				c.metrics.IncIgnored()
			}
			continue
		}
		if err := c.controls.Send(ctx, Input{Dir: dir, Source: SourceWS}); err != nil {
			return
		}
	}
}

// parseWSMessage 接受裸按键 "w"，或 {"type":"move","command":"up"}
func parseWSMessage(payload []byte) (Direction, bool) {
	text := strings.TrimSpace(string(payload))
	if dir, ok := ParseKey(text); ok {
		return dir, true
	}
	var im InputMessage
	if err := json.Unmarshal(payload, &im); err != nil {
		return DirNone, false
	}
	if strings.ToLower(im.Type) != "move" {
		return DirNone, false
	}
	if dir, ok := ParseKey(im.Command); ok {
		return dir, true
	}
	return ParseCommand(im.Command)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 遥控页面可能来自另一端口的控制 HTTP 服务
		return true
	},
}

// NewWSHandler WebSocket 接入：GET /ws。
// 请求 ctx 在 handler 返回后即被取消，读协程使用服务生命周期的 ctx
func NewWSHandler(ctx context.Context, c *Controls, m *Metrics, status func() Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			Log.Warnf("ws upgrade: %v", err)
			return
		}
		Log.Infof("ws remote control connected (ip=%s)", r.RemoteAddr)
		client := NewClientConn(ws, c, m, status)
		go client.writePump()
		go client.readPump(ctx)
	}
}
