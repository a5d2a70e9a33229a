package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 16
	sendQueueSize  = 64
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	limiter   *rate.Limiter
}

func NewClientConn(ws *websocket.Conn, limiter *rate.Limiter) *ClientConn {
	return &ClientConn{
		ws:      ws,
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
		limiter: limiter,
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃，已关闭返回 false）
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		// 慢连接只影响自己：丢弃该条，避免阻塞 World
		return false
	}
}

// Close 关闭底层连接；send 通道不关闭，写协程通过 done 退出
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping 保活
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeHandshake 在写协程启动前同步写出握手帧，此时没有其他写者
func (c *ClientConn) writeHandshake(frames [][]byte) error {
	for _, msg := range frames {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
	return nil
}

// readPump 读取客户端消息，解析后投递给 World。
// 无法解析的帧只断开本连接；超出速率的 move 被丢弃；退出时通知 World 处理断开。
func (c *ClientConn) readPump(world *World, s *Session) {
	defer c.Close()
	defer world.Leave(s)
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				Log.Infow("connection read error", "session", s.ID, "err", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		msg, err := DecodeClientMessage(payload)
		if err != nil {
			world.Metrics().IncMalformed()
			Log.Warnw("malformed message, closing connection", "session", s.ID, "err", err)
			return
		}
		// 只限制 move；requestID/ID 握手帧不消耗令牌，突发移动不会让绑定丢失
		if msg.Type == TypeMove && c.limiter != nil && !c.limiter.Allow() {
			world.Metrics().IncRateLimited()
			continue
		}
		if !world.Deliver(s, msg) {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 无鉴权：允许所有来源
		return true
	},
}

// HandleWS WebSocket 接入：每个连接一个读协程和一个写协程
func (w *World) HandleWS(rw http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		Log.Warnw("upgrade error", "remote", r.RemoteAddr, "err", err)
		return
	}

	client := NewClientConn(ws, w.Limits().newLimiter())
	session := NewSession(client)
	w.metrics.ConnOpened()
	Log.Infow("connection opened", "session", session.ID, "remote", r.RemoteAddr)

	frames, ok := w.Join(session)
	if !ok {
		w.metrics.ConnClosed()
		client.Close()
		return
	}
	if err := client.writeHandshake(frames); err != nil {
		Log.Infow("handshake write failed", "session", session.ID, "err", err)
		w.Leave(session)
		w.metrics.ConnClosed()
		client.Close()
		return
	}

	go client.writePump()
	go func() {
		defer w.metrics.ConnClosed()
		client.readPump(w, session)
	}()
}
