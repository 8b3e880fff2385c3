package server

import (
	"context"
	"encoding/json"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"jumpi/store"
)

// Conn is the send side of a client connection. Enqueue never blocks; it
// reports false when the message was dropped.
type Conn interface {
	Enqueue(msg []byte) bool
	Close()
}

// World owns every piece of shared real-time state: registry, rooms, trades and
// the shop. All of it is touched only from the loop goroutine, one event at a
// time.
type World struct {
	cfg     Config
	log     *zap.SugaredLogger
	store   store.UserStore
	metrics *Metrics
	now     func() time.Time

	registry *Registry
	rooms    *RoomManager
	trades   *TradeBook
	shop     *Shop
	filter   *ChatFilter
	conns    map[ConnID]Conn
	routes   map[string]route

	// dirty is set by any change visible in updatePlayers; the broadcast tick
	// clears it.
	dirty bool

	nextID  atomic.Uint64
	inbox   chan func(*World, *effects)
	writer  *writeBehind
	stop    chan struct{}
	stopped chan struct{}
}

type Option func(*World)

// WithClock replaces time.Now for rate limits, chat expiry and timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *World) { w.now = now }
}

func WithMetrics(m *Metrics) Option {
	return func(w *World) { w.metrics = m }
}

func WithChatFilter(f *ChatFilter) Option {
	return func(w *World) { w.filter = f }
}

func NewWorld(cfg Config, st store.UserStore, log *zap.SugaredLogger, opts ...Option) *World {
	w := &World{
		cfg:      cfg,
		log:      log,
		store:    st,
		now:      time.Now,
		registry: NewRegistry(),
		rooms:    NewRoomManager(cfg),
		trades:   NewTradeBook(),
		shop:     NewShop(),
		conns:    make(map[ConnID]Conn),
		inbox:    make(chan func(*World, *effects), 1024),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.metrics == nil {
		w.metrics = NewMetrics()
	}
	if w.filter == nil {
		w.filter = NewChatFilter(nil)
	}
	w.routes = buildRoutes()
	w.writer = newWriteBehind(w)
	return w
}

func (w *World) Metrics() *Metrics { return w.metrics }

// Start launches the event loop and the persistence worker.
func (w *World) Start(ctx context.Context) {
	go w.writer.run(ctx)
	go w.run(ctx)
}

// Stop halts the loop, drains queued writes and saves every online player.
func (w *World) Stop(ctx context.Context) error {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	<-w.stopped
	w.writer.close()

	users := make([]*store.User, 0, w.registry.Len())
	for _, id := range w.registry.IDs() {
		p, _ := w.registry.Get(id)
		users = append(users, p.Record())
	}
	for _, c := range w.conns {
		c.Close()
	}
	if len(users) == 0 {
		return nil
	}
	if err := w.store.SaveMany(ctx, users...); err != nil {
		w.log.Errorw("final flush failed", "players", len(users), "err", err)
		return err
	}
	w.log.Infow("final flush done", "players", len(users))
	return nil
}

// post queues fn for the loop. Returns false once the loop has stopped.
func (w *World) post(fn func(*World, *effects)) bool {
	select {
	case <-w.stopped:
		return false
	default:
	}
	select {
	case w.inbox <- fn:
		return true
	case <-w.stopped:
		return false
	}
}

// Call runs fn inside the loop and waits for it.
func (w *World) Call(fn func(w *World)) bool {
	done := make(chan struct{})
	if !w.post(func(w *World, _ *effects) {
		defer close(done)
		fn(w)
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-w.stopped:
		return false
	}
}

// NewConnID hands out a fresh connection id.
func (w *World) NewConnID() ConnID {
	return ConnID(w.nextID.Add(1))
}

// Join binds conn to the authenticated user record under a new connection id.
func (w *World) Join(conn Conn, u *store.User) ConnID {
	id := w.NewConnID()
	if !w.post(func(w *World, fx *effects) { w.join(id, conn, u, fx) }) {
		conn.Close()
	}
	return id
}

// Dispatch queues one inbound client message.
func (w *World) Dispatch(id ConnID, msgType string, payload json.RawMessage) {
	w.post(func(w *World, fx *effects) { w.dispatch(id, msgType, payload, fx) })
}

// Leave queues the disconnect of id.
func (w *World) Leave(id ConnID) {
	w.post(func(w *World, fx *effects) {
		if _, ok := w.conns[id]; !ok {
			return
		}
		fx.close(id)
		w.dropConn(id, fx)
	})
}

func (w *World) step(fn func(*World, *effects)) {
	start := time.Now()
	fx := &effects{w: w}
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Errorw("event handler panic", "panic", r, zap.Stack("stack"))
			}
		}()
		fn(w, fx)
	}()
	w.flush(fx)
	w.metrics.eventSeconds.Observe(time.Since(start).Seconds())
}

func (w *World) join(id ConnID, conn Conn, u *store.User, fx *effects) {
	if old, ok := w.registry.GetByUsername(u.Username); ok && old.ID != id {
		fx.send(old.ID, "forceDisconnect", notice{Message: "You signed in from another window"})
		fx.close(old.ID)
		w.dropConn(old.ID, fx)
		w.log.Infow("replaced existing connection", "user", u.Username, "old", old.ID, "new", id)
	}

	w.conns[id] = conn
	p := w.registry.Bind(id, u, w.cfg)
	if p.HomeID != "" {
		w.rooms.GetOrCreateHomeRoom(p.HomeID, p.Username)
	}
	roomID, err := w.rooms.PlaceNew(id)
	if err != nil {
		fx.send(id, "forceDisconnect", notice{Message: "Every room is full, try again later"})
		fx.close(id)
		w.registry.Remove(id)
		delete(w.conns, id)
		w.metrics.reject("full")
		return
	}

	fx.send(id, "updateInventory", p.Inventory)
	fx.send(id, "updateEquipped", p.Equipped)
	fx.send(id, "updateCoins", p.Coins)
	fx.send(id, "updateDiamonds", p.Diamonds)
	fx.send(id, "userInfo", userInfo{
		Username: p.Username,
		IsAdmin:  p.IsAdmin,
		SocketID: id,
		HomeID:   p.HomeID,
		Diamonds: p.Diamonds,
		Room:     roomID,
	})
	fx.send(id, "playersInTrade", w.trades.BusySet())
	fx.occupancy = true
	w.dirty = true
	w.metrics.connections.Set(float64(w.registry.Len()))
	w.log.Infow("player joined", "user", p.Username, "conn", id, "room", roomID)
}

// dropConn removes every trace of id in one step: trades and requests are
// cancelled with notice to the counterparties, room occupancy is released and
// the registry entry is deleted.
func (w *World) dropConn(id ConnID, fx *effects) {
	t, requests := w.trades.DropConn(id)
	if t != nil {
		other := t.Other(id)
		fx.send(other, "tradeCanceled", tradeActor{SenderID: id, Reason: "The other player left"})
		fx.tradeSet = true
		w.metrics.trades.WithLabelValues("canceled").Inc()
	}
	for _, r := range requests {
		if r.From == id {
			fx.send(r.To, "tradeRequestCanceled", r)
		} else {
			fx.send(r.From, "tradeRequestDeclined", r)
		}
	}
	if w.rooms.Release(id) != "" {
		fx.occupancy = true
	}
	if p, ok := w.registry.Remove(id); ok {
		w.log.Infow("player left", "user", p.Username, "conn", id)
	}
	delete(w.conns, id)
	w.dirty = true
	w.metrics.connections.Set(float64(w.registry.Len()))
}

// disconnect tells id why it is being removed, then removes it.
func (w *World) disconnect(id ConnID, msgType, message string, fx *effects) {
	fx.send(id, msgType, notice{Message: message})
	fx.close(id)
	w.dropConn(id, fx)
}

func (w *World) broadcastPlayers(fx *effects) {
	fx.broadcast("updatePlayers", w.registry.SnapshotAll(w.rooms))
	w.dirty = false
	w.metrics.broadcasts.Inc()
}

// effects collects the outbound consequences of one event. Targets are resolved
// when queued, so a connection removed later in the same event still gets its
// final messages.
type effects struct {
	w      *World
	sends  []delivery
	closes []Conn
	jobs   []writeJob

	occupancy bool
	tradeSet  bool
}

type delivery struct {
	conn Conn
	msg  []byte
}

type serverEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func encodeMessage(msgType string, payload any) ([]byte, error) {
	return json.Marshal(serverEnvelope{Type: msgType, Payload: payload})
}

func (fx *effects) encode(msgType string, payload any) []byte {
	b, err := encodeMessage(msgType, payload)
	if err != nil {
		fx.w.log.Errorw("encode outbound message", "type", msgType, "err", err)
		return nil
	}
	return b
}

func (fx *effects) send(to ConnID, msgType string, payload any) {
	c, ok := fx.w.conns[to]
	if !ok {
		return
	}
	if b := fx.encode(msgType, payload); b != nil {
		fx.sends = append(fx.sends, delivery{conn: c, msg: b})
	}
}

func (fx *effects) sendMany(ids []ConnID, msgType string, payload any) {
	b := fx.encode(msgType, payload)
	if b == nil {
		return
	}
	for _, id := range ids {
		if c, ok := fx.w.conns[id]; ok {
			fx.sends = append(fx.sends, delivery{conn: c, msg: b})
		}
	}
}

func (fx *effects) broadcast(msgType string, payload any) {
	ids := make([]ConnID, 0, len(fx.w.conns))
	for id := range fx.w.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fx.sendMany(ids, msgType, payload)
}

func (fx *effects) close(id ConnID) {
	if c, ok := fx.w.conns[id]; ok {
		fx.closes = append(fx.closes, c)
	}
}

func (fx *effects) persist(job writeJob) {
	fx.jobs = append(fx.jobs, job)
}

func (w *World) flush(fx *effects) {
	if fx.occupancy {
		fx.broadcast("roomOccupancyUpdate", occupancyUpdate{Rooms: w.rooms.OccupancySnapshot()})
	}
	if fx.tradeSet {
		fx.broadcast("playersInTrade", w.trades.BusySet())
	}
	for _, d := range fx.sends {
		if !d.conn.Enqueue(d.msg) {
			w.metrics.sendsDropped.Inc()
		}
	}
	for _, c := range fx.closes {
		c.Close()
	}
	for _, job := range fx.jobs {
		w.writer.submit(job)
	}
}
