package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	loadTimeout    = 10 * time.Second
)

// ClientConn is the write side of one websocket client.
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte
	quit chan struct{}
	once sync.Once
}

func NewClientConn(ws *websocket.Conn, queue int) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, queue),
		quit: make(chan struct{}),
	}
}

// Enqueue queues msg without blocking; a full queue drops it.
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Close is idempotent. The write pump flushes queued messages before closing.
func (c *ClientConn) Close() {
	c.once.Do(func() { close(c.quit) })
}

// writePump drains the send queue to the socket and pings periodically.
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.quit:
			for {
				select {
				case msg := <-c.send:
					if err := c.write(msg); err != nil {
						return
					}
				default:
					_ = c.ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
					return
				}
			}
		}
	}
}

func (c *ClientConn) write(msg []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

// readPump forwards client messages to the world loop.
func (c *ClientConn) readPump(w *World, id ConnID, log *zap.SugaredLogger) {
	defer func() {
		w.Leave(id)
		c.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugw("read error", "conn", id, "err", err)
			}
			return
		}
		var env clientEnvelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			continue
		}
		w.Dispatch(id, env.Type, env.Payload)
	}
}

// Handler is the session gate in front of the world: it resolves the session,
// upgrades, loads the account and hands the connection to the loop.
type Handler struct {
	world     *World
	sessions  SessionResolver
	log       *zap.SugaredLogger
	sendQueue int
	upgrader  websocket.Upgrader
}

func NewHandler(w *World, sessions SessionResolver, log *zap.SugaredLogger) *Handler {
	return &Handler{
		world:     w,
		sessions:  sessions,
		log:       log,
		sendQueue: w.cfg.SendQueue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origin checks belong to the fronting proxy
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	username, err := h.sessions.Resolve(r)
	if err != nil {
		h.world.metrics.reject("unauthorized")
		h.log.Infow("connection refused", "remote", r.RemoteAddr, "err", err)
		http.Error(rw, err.Error(), http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		h.log.Warnw("upgrade error", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := NewClientConn(ws, h.sendQueue)
	go c.writePump()

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	u, err := h.world.LoadUser(ctx, username)
	if err != nil {
		h.world.metrics.reject("load_failed")
		h.log.Errorw("load user failed", "user", username, "err", err)
		h.closeWith(c, "forceDisconnect", "Could not load your account, try again later")
		return
	}
	if u.Banned {
		h.world.metrics.reject("banned")
		h.log.Infow("banned user refused", "user", u.Username)
		msg := "Your account has been banned."
		if u.BanReason != "" {
			msg = "Your account has been banned: " + u.BanReason
		}
		h.closeWith(c, "banned", msg)
		return
	}

	id := h.world.Join(c, u)
	go c.readPump(h.world, id, h.log)
}

func (h *Handler) closeWith(c *ClientConn, msgType, message string) {
	if b, err := encodeMessage(msgType, notice{Message: message}); err == nil {
		c.Enqueue(b)
	}
	c.Close()
}
