package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminConfig 房间常量（只读）与入站限流配置
// GET  /admin/config  返回当前配置
// POST /admin/config  以 JSON 载荷更新限流字段，仅对新连接生效
func (w *World) HandleAdminConfig(rw http.ResponseWriter, r *http.Request) {
	type room struct {
		Width         float64 `json:"roomWidth"`
		Height        float64 `json:"roomHeight"`
		WallThickness float64 `json:"wallThickness"`
		Radius        float64 `json:"radius"`
	}
	type cfg struct {
		Room              *room    `json:"room,omitempty"`
		MessagesPerSecond *float64 `json:"messagesPerSecond,omitempty"`
		Burst             *int     `json:"burst,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		limits := w.Limits()
		cur := cfg{
			Room:              &room{Width: RoomWidth, Height: RoomHeight, WallThickness: WallThickness, Radius: Radius},
			MessagesPerSecond: &limits.Rate,
			Burst:             &limits.Burst,
		}
		writeJSON(rw, cur)
		return
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(rw, "invalid json", http.StatusBadRequest)
			return
		}
		if body.Room != nil {
			http.Error(rw, "room constants are read-only", http.StatusBadRequest)
			return
		}
		limits := w.Limits()
		if body.MessagesPerSecond != nil {
			limits.Rate = *body.MessagesPerSecond
		}
		if body.Burst != nil {
			limits.Burst = *body.Burst
		}
		w.SetLimits(limits)
		writeJSON(rw, map[string]any{"ok": true})
		Log.Infow("config updated", "messagesPerSecond", limits.Rate, "burst", limits.Burst)
		return
	default:
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
}

// HandleMetrics 输出运行指标
// GET /metrics
func (w *World) HandleMetrics(rw http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"online":  len(w.registry.Online()),
		"metrics": w.metrics.Snapshot(),
	}
	writeJSON(rw, payload)
}

// HandleUnits 列出注册表中的全部单位
// GET /admin/units
func (w *World) HandleUnits(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(rw, map[string]any{"units": w.registry.Units()})
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}
