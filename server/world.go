package server

import (
	"context"
	"sync"
)

type eventKind int

const (
	evJoin eventKind = iota
	evMessage
	evLeave
)

type event struct {
	kind    eventKind
	session *Session
	msg     ClientMessage
	reply   chan [][]byte // 仅 evJoin：握手帧回传给连接协程
}

// World 房间权威：所有注册表写入与广播决策都在 Run 的单个协程中串行执行。
// 同一连接的 join/消息/leave 走同一条通道，断开一定在其已入队的 move 之后处理。
type World struct {
	registry  *Registry
	objects   *ObjectRegistry
	router    *Router
	validator *Validator
	metrics   *Metrics

	events  chan event
	stopped chan struct{}

	limitsMu sync.RWMutex
	limits   Limits
}

// NewWorld 组装房间权威
func NewWorld(registry *Registry, objects *ObjectRegistry, metrics *Metrics, limits Limits) *World {
	return &World{
		registry:  registry,
		objects:   objects,
		router:    NewRouter(metrics),
		validator: NewValidator(registry),
		metrics:   metrics,
		events:    make(chan event, 256), // 缓冲，避免网络读阻塞影响处理
		stopped:   make(chan struct{}),
		limits:    limits,
	}
}

func (w *World) Registry() *Registry { return w.registry }
func (w *World) Objects() *ObjectRegistry { return w.objects }
func (w *World) Metrics() *Metrics { return w.metrics }

// Limits 新连接使用的入站限流配置
func (w *World) Limits() Limits {
	w.limitsMu.RLock()
	defer w.limitsMu.RUnlock()
	return w.limits
}

// SetLimits 更新限流配置，仅对之后建立的连接生效
func (w *World) SetLimits(l Limits) {
	w.limitsMu.Lock()
	w.limits = l
	w.limitsMu.Unlock()
}

// Run 处理事件直到 ctx 结束
func (w *World) Run(ctx context.Context) {
	defer close(w.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.events:
			w.handle(ev)
		}
	}
}

// Join 新连接接入（在任何消息之前）。
// 返回的握手帧（物体列表和已绑定单位的位置）由调用方在启动写协程之前直接写出，
// 不经过有界发送队列，因此不会因队列容量被丢弃。
func (w *World) Join(s *Session) ([][]byte, bool) {
	reply := make(chan [][]byte, 1)
	if !w.post(event{kind: evJoin, session: s, reply: reply}) {
		return nil, false
	}
	select {
	case frames := <-reply:
		return frames, true
	case <-w.stopped:
		return nil, false
	}
}

// Deliver 投递一条已解析的入站消息
func (w *World) Deliver(s *Session, msg ClientMessage) bool {
	return w.post(event{kind: evMessage, session: s, msg: msg})
}

// Leave 连接断开
func (w *World) Leave(s *Session) bool {
	return w.post(event{kind: evLeave, session: s})
}

// World 已停止时不再阻塞调用方
func (w *World) post(ev event) bool {
	select {
	case w.events <- ev:
		return true
	case <-w.stopped:
		return false
	}
}

func (w *World) handle(ev event) {
	switch ev.kind {
	case evJoin:
		frames := w.handleJoin(ev.session)
		if ev.reply != nil {
			ev.reply <- frames
		}
	case evMessage:
		w.handleMessage(ev.session, ev.msg)
	case evLeave:
		w.handleLeave(ev.session)
	}
}

// handleJoin 生成新会话的握手帧：先物体列表，再其他已绑定单位的位置。
// 会话在返回前加入路由，之后的广播排在握手帧之后。
func (w *World) handleJoin(s *Session) [][]byte {
	others := w.router.Others(s)
	frames := make([][]byte, 0, len(others)+1)
	frames = append(frames, w.objects.Payload())
	for _, other := range others {
		id, ok := other.BoundID()
		if !ok {
			continue
		}
		u, ok := w.registry.Get(id)
		if !ok {
			continue
		}
		b, err := encodeUnitPosition(u)
		if err != nil {
			Log.Errorw("encode unit position", "unit", id, "err", err)
			continue
		}
		frames = append(frames, b)
	}
	w.router.Add(s)
	Log.Infow("session joined", "session", s.ID, "sessions", w.router.Len(), "handshake_frames", len(frames))
	return frames
}

func (w *World) handleMessage(s *Session, msg ClientMessage) {
	switch msg.Type {
	case TypeRequestID:
		w.handleRequestID(s)
	case TypeID:
		w.handleClaimID(s, msg.ID)
	case TypeMove:
		w.handleMove(s, msg)
	default:
		w.metrics.IncInert()
		Log.Debugw("ignoring message", "session", s.ID, "type", msg.Type)
	}
}

func (w *World) handleRequestID(s *Session) {
	if s.State() == Bound {
		w.metrics.IncInert()
		return
	}
	id, err := w.registry.NextID()
	if err != nil {
		w.metrics.IncInert()
		Log.Errorw("cannot mint unit id", "session", s.ID, "err", err)
		return
	}
	u, _ := w.registry.UpsertOnConnect(id)
	w.bind(s, w.settle(u))
	Log.Infow("unit minted", "session", s.ID, "unit", id)
}

func (w *World) handleClaimID(s *Session, id UnitID) {
	if s.State() == Bound || id <= 0 || id > MaxUnitID {
		w.metrics.IncInert()
		Log.Debugw("ignoring ID claim", "session", s.ID, "unit", id, "state", s.State())
		return
	}
	u, created := w.registry.UpsertOnConnect(id)
	w.bind(s, w.settle(u))
	Log.Infow("unit claimed", "session", s.ID, "unit", id, "created", created)
}

// settle 上线的单位若与其他在线单位重叠（出生点被占或断线期间被占），先把它挪开
func (w *World) settle(u Unit) Unit {
	placed, err := w.validator.Settle(u.ID)
	if err != nil {
		Log.Warnw("settle unit", "unit", u.ID, "err", err)
		return u
	}
	if placed.Position() != u.Position() {
		Log.Debugw("unit displaced on bind", "unit", u.ID, "from", u.Position(), "to", placed.Position())
	}
	return placed
}

// bind 绑定会话，回复 ID，并把该单位位置广播给所有会话（包括自己）
func (w *World) bind(s *Session, u Unit) {
	s.Bind(u.ID)
	w.metrics.IncBound()
	b, err := encodeID(u.ID)
	w.sendEncoded(s, b, err)
	b, err = encodeUnitPosition(u)
	if err != nil {
		Log.Errorw("encode unit position", "unit", u.ID, "err", err)
		return
	}
	w.router.SendAll(b)
}

func (w *World) handleMove(s *Session, msg ClientMessage) {
	id, ok := s.BoundID()
	if !ok {
		// 握手窗口内可能出现，静默忽略
		w.metrics.IncInert()
		return
	}
	res, err := w.validator.Apply(id, MoveRequest{
		DeltaX:      msg.DeltaX,
		DeltaY:      msg.DeltaY,
		ClientX:     msg.ClientX,
		ClientY:     msg.ClientY,
		ClientAngle: msg.ClientAngle,
	})
	if err != nil {
		Log.Warnw("move rejected", "session", s.ID, "unit", id, "err", err)
		return
	}
	w.metrics.IncMoves()
	if res.Corrected {
		w.metrics.IncCorrections()
		b, err := encodePosition(res.Unit)
		w.sendEncoded(s, b, err)
	}
	if res.Moved {
		b, err := encodeUnitPosition(res.Unit)
		if err != nil {
			Log.Errorw("encode unit position", "unit", id, "err", err)
			return
		}
		w.router.SendAllExcept(s, b)
	}
}

// handleLeave 移除会话；同一单位没有其他存活会话时才标记离线并通知其他会话
func (w *World) handleLeave(s *Session) {
	if !w.router.Remove(s) {
		return
	}
	id, ok := s.BoundID()
	if !ok {
		Log.Infow("session left", "session", s.ID, "bound", false)
		return
	}
	if w.router.BoundTo(id) > 0 {
		Log.Infow("session left, unit still bound elsewhere", "session", s.ID, "unit", id)
		return
	}
	if err := w.registry.MarkOffline(id); err != nil {
		Log.Warnw("mark offline", "unit", id, "err", err)
	}
	b, err := encodeDisconnected(id)
	if err != nil {
		Log.Errorw("encode disconnected", "unit", id, "err", err)
		return
	}
	w.router.SendAll(b)
	Log.Infow("session left", "session", s.ID, "unit", id)
}

func (w *World) sendEncoded(s *Session, b []byte, err error) {
	if err != nil {
		Log.Errorw("encode message", "session", s.ID, "err", err)
		return
	}
	w.router.SendTo(s, b)
}
