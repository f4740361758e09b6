package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Admin 管理与监控接口所需的运行期对象
type Admin struct {
	Tuning   *Tuning
	Metrics  *Metrics
	Controls *Controls
	Status   func() Status
}

// Mux 管理监听器的路由：/admin/config /metrics /healthz /ws
func (a *Admin) Mux(ctx context.Context) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/config", a.HandleConfig)
	mux.HandleFunc("/metrics", a.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", NewWSHandler(ctx, a.Controls, a.Metrics, a.Status))
	return mux
}

type tuningConfig struct {
	Repeats         *int   `json:"repeats,omitempty"`
	FrameDurationMs *int64 `json:"frameDurationMs,omitempty"`
}

// HandleConfig 读取与热更新渲染参数
// GET /admin/config   返回当前配置
// POST /admin/config  以 JSON 载荷更新部分字段，如 {"repeats":4}
func (a *Admin) HandleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		repeats := a.Tuning.Repeats()
		ms := a.Tuning.FrameDuration().Milliseconds()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tuningConfig{Repeats: &repeats, FrameDurationMs: &ms})
	case http.MethodPost:
		var body tuningConfig
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		// 先全部校验再写入，避免部分生效
		if body.Repeats != nil && *body.Repeats < 1 {
			http.Error(w, "repeats must be >= 1", http.StatusBadRequest)
			return
		}
		if body.FrameDurationMs != nil && *body.FrameDurationMs <= 0 {
			http.Error(w, "frameDurationMs must be > 0", http.StatusBadRequest)
			return
		}
		if body.Repeats != nil {
			_ = a.Tuning.SetRepeats(*body.Repeats)
		}
		if body.FrameDurationMs != nil {
			_ = a.Tuning.SetFrameDuration(time.Duration(*body.FrameDurationMs) * time.Millisecond)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		Log.Infof("config updated: repeats=%d frameDuration=%v", a.Tuning.Repeats(), a.Tuning.FrameDuration())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出运行指标与当前状态
// GET /metrics
func (a *Admin) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"metrics": a.Metrics.Snapshot(),
		"queued":  a.Controls.Len(),
	}
	if a.Status != nil {
		payload["status"] = a.Status()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
