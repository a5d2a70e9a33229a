package server

import "sort"

// Router 存活会话表，按接入顺序遍历。只在 World 协程中使用。
type Router struct {
	sessions []*Session
	nextSeq  uint64
	metrics  *Metrics
}

func NewRouter(metrics *Metrics) *Router {
	return &Router{metrics: metrics}
}

// Add 登记新会话并分配接入序号
func (r *Router) Add(s *Session) {
	r.nextSeq++
	s.seq = r.nextSeq
	r.sessions = append(r.sessions, s)
}

// Remove 移除会话；不存在时返回 false
func (r *Router) Remove(s *Session) bool {
	i := r.index(s)
	if i < 0 {
		return false
	}
	r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
	return true
}

func (r *Router) index(s *Session) int {
	i := sort.Search(len(r.sessions), func(i int) bool { return r.sessions[i].seq >= s.seq })
	if i < len(r.sessions) && r.sessions[i] == s {
		return i
	}
	return -1
}

// Len 存活会话数
func (r *Router) Len() int { return len(r.sessions) }

// Others 除 s 之外的会话，按接入顺序
func (r *Router) Others(s *Session) []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, other := range r.sessions {
		if other != s {
			out = append(out, other)
		}
	}
	return out
}

// BoundTo 绑定到 id 的存活会话数
func (r *Router) BoundTo(id UnitID) int {
	n := 0
	for _, s := range r.sessions {
		if bound, ok := s.BoundID(); ok && bound == id {
			n++
		}
	}
	return n
}

// SendTo 发给单个会话
func (r *Router) SendTo(s *Session, b []byte) {
	r.deliver(s, b)
}

// SendAll 发给所有存活会话（包括发起者）
func (r *Router) SendAll(b []byte) {
	for _, s := range r.sessions {
		r.deliver(s, b)
	}
}

// SendAllExcept 发给除 except 之外的所有会话
func (r *Router) SendAllExcept(except *Session, b []byte) {
	for _, s := range r.sessions {
		if s != except {
			r.deliver(s, b)
		}
	}
}

// 出站队列满时该消息只对该会话丢弃，不影响其他会话
func (r *Router) deliver(s *Session, b []byte) {
	if s.Send(b) {
		r.metrics.IncSent()
		return
	}
	r.metrics.IncSendDropped()
	Log.Debugw("outbound message dropped", "session", s.ID)
}
