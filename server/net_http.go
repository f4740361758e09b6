package server

import (
	"context"
	_ "embed"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

//go:embed web/index.html
var indexHTML []byte

// NewControlHandler 遥控 HTTP 接口：
// GET /            静态控制页
// POST /w|a|s|d    入队 上/左/下/右，200 空 body
// 其他             404
func NewControlHandler(c *Controls) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(indexHTML)
		case r.Method == http.MethodPost:
			dir, ok := ParseKey(strings.TrimPrefix(r.URL.Path, "/"))
			if !ok {
				http.NotFound(w, r)
				return
			}
			if err := c.Send(r.Context(), Input{Dir: dir, Source: SourceHTTP}); err != nil {
				http.Error(w, "control queue unavailable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	})
}

// Serve 在已绑定的 ln 上运行 HTTP 服务；ctx 结束时优雅关闭
func Serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	}
}
