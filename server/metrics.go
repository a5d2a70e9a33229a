package server

import (
	"sync/atomic"
)

// Metrics 记录运行期的关键指标（用于监控与调试）
type Metrics struct {
	Connections       int64 // 当前 WebSocket 连接数
	SessionsBound     int64 // 累计完成绑定的会话数
	MovesApplied      int64 // 权威移动次数
	Corrections       int64 // 发给移动者的位置校正
	MessagesSent      int64 // 成功入队的出站消息
	SendDropped       int64 // 因出站队列满被丢弃的消息
	RateLimited       int64 // 因入站限流被丢弃的消息
	Malformed         int64 // 无法解析而断开的连接
	InertMessages     int64 // 未知类型、未绑定时的 move 等被忽略的消息
	Checkpoints       int64 // 成功写入的存档次数
	CheckpointFailure int64 // 存档失败次数
}

func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) ConnOpened() { atomic.AddInt64(&m.Connections, 1) }
func (m *Metrics) ConnClosed() { atomic.AddInt64(&m.Connections, -1) }
func (m *Metrics) IncBound() { atomic.AddInt64(&m.SessionsBound, 1) }
func (m *Metrics) IncMoves() { atomic.AddInt64(&m.MovesApplied, 1) }
func (m *Metrics) IncCorrections() { atomic.AddInt64(&m.Corrections, 1) }
func (m *Metrics) IncSent() { atomic.AddInt64(&m.MessagesSent, 1) }
func (m *Metrics) IncSendDropped() { atomic.AddInt64(&m.SendDropped, 1) }
func (m *Metrics) IncRateLimited() { atomic.AddInt64(&m.RateLimited, 1) }
func (m *Metrics) IncMalformed() { atomic.AddInt64(&m.Malformed, 1) }
func (m *Metrics) IncInert() { atomic.AddInt64(&m.InertMessages, 1) }
func (m *Metrics) IncCheckpoint() { atomic.AddInt64(&m.Checkpoints, 1) }
func (m *Metrics) IncCheckpointFailure() { atomic.AddInt64(&m.CheckpointFailure, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"connections":         atomic.LoadInt64(&m.Connections),
		"sessions_bound":      atomic.LoadInt64(&m.SessionsBound),
		"moves_applied":       atomic.LoadInt64(&m.MovesApplied),
		"corrections":         atomic.LoadInt64(&m.Corrections),
		"messages_sent":       atomic.LoadInt64(&m.MessagesSent),
		"send_dropped":        atomic.LoadInt64(&m.SendDropped),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"malformed":           atomic.LoadInt64(&m.Malformed),
		"inert_messages":      atomic.LoadInt64(&m.InertMessages),
		"checkpoints":         atomic.LoadInt64(&m.Checkpoints),
		"checkpoint_failures": atomic.LoadInt64(&m.CheckpointFailure),
	}
}
