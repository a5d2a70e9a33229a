package server

import "github.com/google/uuid"

// Sender 会话的出站端：非阻塞入队，返回是否成功
type Sender interface {
	Enqueue(b []byte) bool
}

// SessionState 会话协议状态
type SessionState int

const (
	Unbound SessionState = iota
	Bound
)

func (s SessionState) String() string {
	if s == Bound {
		return "bound"
	}
	return "unbound"
}

// Session 一条连接与至多一个单位的绑定。只在 World 协程中读写。
type Session struct {
	ID    string // 连接标识，仅用于日志与排查
	seq   uint64 // 接入顺序，广播遍历按此排序
	conn  Sender
	state SessionState
	unit  UnitID
}

// NewSession 为新连接创建未绑定会话
func NewSession(conn Sender) *Session {
	return &Session{ID: uuid.NewString(), conn: conn}
}

// State 当前状态
func (s *Session) State() SessionState { return s.state }

// BoundID 已绑定的单位 ID
func (s *Session) BoundID() (UnitID, bool) {
	return s.unit, s.state == Bound
}

// Bind Unbound→Bound，每个会话只发生一次；已绑定时返回 false
func (s *Session) Bind(id UnitID) bool {
	if s.state == Bound {
		return false
	}
	s.unit = id
	s.state = Bound
	return true
}

// Send 向该会话入队一条消息
func (s *Session) Send(b []byte) bool {
	if s.conn == nil {
		return false
	}
	return s.conn.Enqueue(b)
}
