// Package chat runs the per-ride group chat over persistent WebSocket
// connections. Each grouped ride gets one room; appends within a room are
// serialized so every open connection observes the same order.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gotogether/internal/domain"
	"gotogether/internal/observability"
	"gotogether/internal/repository"
)

var (
	// ErrRoomClosed is returned when joining a room whose ride has ended.
	ErrRoomClosed = errors.New("chat room is closed")

	// ErrInvalidBody is returned for an empty or oversized message body.
	ErrInvalidBody = errors.New("message body must be 1 to 2000 characters")
)

// Directory resolves the users entitled to a ride's chat.
type Directory interface {
	Roster(ctx context.Context, groupID string) ([]domain.RosterMember, error)
}

// AlertSink forwards alerts to users who have no open connection on the room.
type AlertSink interface {
	PublishAlert(ctx context.Context, userID string, alert Alert) error
}

// Options tunes connection handling.
type Options struct {
	SendBuffer    int
	HistoryLimit  int
	WriteWait     time.Duration
	PongWait      time.Duration
	PingPeriod    time.Duration
	MaxFrameBytes int64
}

// DefaultOptions returns the production connection settings.
func DefaultOptions() Options {
	return Options{
		SendBuffer:    256,
		HistoryLimit:  500,
		WriteWait:     10 * time.Second,
		PongWait:      60 * time.Second,
		PingPeriod:    54 * time.Second,
		MaxFrameBytes: 16 * 1024,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendBuffer < 2 {
		o.SendBuffer = d.SendBuffer
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = d.HistoryLimit
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = d.MaxFrameBytes
	}
	return o
}

// Hub owns every live room in the process.
type Hub struct {
	store  repository.ChatRepository
	dir    Directory
	sink   AlertSink
	logger *slog.Logger
	opts   Options
	now    func() time.Time

	mu      sync.Mutex
	rooms   map[string]*room
	retired map[string]struct{}
}

// NewHub creates a Hub. sink may be nil.
func NewHub(store repository.ChatRepository, dir Directory, sink AlertSink, logger *slog.Logger, opts Options) *Hub {
	return &Hub{
		store:   store,
		dir:     dir,
		sink:    sink,
		logger:  logger,
		opts:    opts.withDefaults(),
		now:     time.Now,
		rooms:   make(map[string]*room),
		retired: make(map[string]struct{}),
	}
}

// Serve attaches an upgraded connection to the ride's room and blocks until
// the connection closes.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, groupID string, user domain.RosterMember) error {
	c, err := h.join(ctx, conn, groupID, user)
	if err != nil {
		deadline := time.Now().Add(h.opts.WriteWait)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()), deadline)
		_ = conn.Close()
		return err
	}

	h.logger.Info("chat connection opened", "group_id", groupID, "user_id", user.UserID)
	go c.writePump()
	c.readPump(ctx)
	h.logger.Info("chat connection closed", "group_id", groupID, "user_id", user.UserID)
	return nil
}

// Retire closes every connection on the ride's room and refuses new ones.
func (h *Hub) Retire(groupID, reason string) {
	h.mu.Lock()
	r := h.rooms[groupID]
	delete(h.rooms, groupID)
	h.retired[groupID] = struct{}{}
	h.mu.Unlock()

	if r == nil {
		return
	}

	frame := encode(closedFrame{Type: FrameClosed, GroupID: groupID, Reason: reason})
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for c := range r.clients {
		select {
		case c.send <- frame:
		default:
		}
		r.removeLocked(c, websocket.CloseNormalClosure, reason)
	}
}

// Shutdown retires every live room. Hijacked connections are not closed by
// http.Server.Shutdown, so the server calls this on its way out.
func (h *Hub) Shutdown(reason string) {
	h.mu.Lock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.Retire(id, reason)
	}
}

// Leave disconnects one user from the ride's room, e.g. after they reject the ride.
func (h *Hub) Leave(groupID, userID string) {
	h.mu.Lock()
	r := h.rooms[groupID]
	h.mu.Unlock()
	if r == nil {
		return
	}

	frame := encode(closedFrame{Type: FrameClosed, GroupID: groupID, Reason: "removed from ride"})
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		if c.user.UserID != userID {
			continue
		}
		select {
		case c.send <- frame:
		default:
		}
		r.removeLocked(c, websocket.ClosePolicyViolation, "removed from ride")
	}
}

// Connections returns how many connections are open on the ride's room.
func (h *Hub) Connections(groupID string) int {
	h.mu.Lock()
	r := h.rooms[groupID]
	h.mu.Unlock()
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (h *Hub) join(ctx context.Context, conn *websocket.Conn, groupID string, user domain.RosterMember) (*client, error) {
	h.mu.Lock()
	if _, ok := h.retired[groupID]; ok {
		h.mu.Unlock()
		return nil, ErrRoomClosed
	}
	r := h.rooms[groupID]
	if r == nil {
		r = &room{id: groupID, hub: h, clients: make(map[*client]struct{})}
		h.rooms[groupID] = r
	}
	h.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomClosed
	}
	if !r.loaded {
		opCtx, cancel := context.WithTimeout(ctx, h.opts.WriteWait)
		seq, err := h.store.LastSeq(opCtx, groupID)
		cancel()
		if err != nil {
			return nil, err
		}
		r.lastSeq = seq
		r.loaded = true
	}

	c := &client{
		hub:  h,
		room: r,
		user: user,
		conn: conn,
		send: make(chan []byte, h.opts.SendBuffer),
	}
	r.clients[c] = struct{}{}
	observability.ChatConnections.Inc()
	r.deliverLocked(c, encode(readyFrame{
		Type:    FrameReady,
		GroupID: groupID,
		UserID:  user.UserID,
		LastSeq: r.lastSeq,
	}))
	return c, nil
}

// post validates, persists and broadcasts one message from c.
func (h *Hub) post(ctx context.Context, c *client, body, clientRef string) {
	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > domain.MaxChatBodyLength {
		c.reply(errorFrame{Type: FrameError, Kind: "validation", Message: ErrInvalidBody.Error(), ClientRef: clientRef})
		return
	}

	r := c.room
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		c.reply(errorFrame{Type: FrameError, Kind: "conflict", Message: ErrRoomClosed.Error(), ClientRef: clientRef})
		return
	}
	if _, ok := r.clients[c]; !ok {
		// Removed by Leave or a slow-consumer drop; its queued sends die with it.
		r.mu.Unlock()
		return
	}

	msg := &domain.ChatMessage{
		ID:            uuid.New().String(),
		GroupedRideID: r.id,
		Seq:           r.lastSeq + 1,
		SenderID:      c.user.UserID,
		SenderKind:    c.user.Kind,
		Body:          body,
		CreatedAt:     h.now().UTC(),
	}

	opCtx, cancel := context.WithTimeout(ctx, h.opts.WriteWait)
	err := h.store.Append(opCtx, msg)
	if errors.Is(err, repository.ErrDuplicate) {
		// Another writer advanced the log; resync and let the client retry.
		if seq, seqErr := h.store.LastSeq(opCtx, r.id); seqErr == nil {
			r.lastSeq = seq
		}
	}
	cancel()
	if err != nil {
		r.mu.Unlock()
		h.logger.Error("chat append failed", "group_id", r.id, "user_id", c.user.UserID, "error", err)
		c.reply(errorFrame{Type: FrameError, Kind: "transport", Message: "message was not stored, retry", ClientRef: clientRef})
		return
	}
	r.lastSeq = msg.Seq

	wire := MessageFromDomain(msg)
	plain := encode(messageFrame{Type: FrameMessage, Message: wire})
	echo := plain
	if clientRef != "" {
		echo = encode(messageFrame{Type: FrameMessage, Message: wire, ClientRef: clientRef})
	}

	online := make(map[string]bool, len(r.clients))
	for cl := range r.clients {
		frame := plain
		if cl == c {
			frame = echo
		}
		if r.deliverLocked(cl, frame) {
			online[cl.user.UserID] = true
		}
	}
	r.mu.Unlock()

	observability.ChatMessages.Inc()
	h.alertOffline(ctx, msg, online)
}

// replay sends c the messages after afterSeq. Holding the room lock keeps
// the history frame ordered before any message appended afterwards.
func (h *Hub) replay(ctx context.Context, c *client, afterSeq int64, limit int) {
	if afterSeq < 0 {
		afterSeq = 0
	}
	if limit <= 0 || limit > h.opts.HistoryLimit {
		limit = h.opts.HistoryLimit
	}

	r := c.room
	r.mu.Lock()
	defer r.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, h.opts.WriteWait)
	msgs, err := h.store.History(opCtx, r.id, afterSeq, limit)
	cancel()
	if err != nil {
		h.logger.Error("chat history failed", "group_id", r.id, "error", err)
		r.deliverLocked(c, encode(errorFrame{Type: FrameError, Kind: "transport", Message: "history unavailable, retry"}))
		return
	}

	frame := historyFrame{
		Type:     FrameHistory,
		GroupID:  r.id,
		Messages: make([]Message, 0, len(msgs)),
		LastSeq:  r.lastSeq,
	}
	for _, m := range msgs {
		frame.Messages = append(frame.Messages, MessageFromDomain(m))
	}
	if n := len(msgs); n == limit && msgs[n-1].Seq < r.lastSeq {
		frame.HasMore = true
	}
	r.deliverLocked(c, encode(frame))
}

// alertOffline notifies roster members who saw the message on no connection of this room.
func (h *Hub) alertOffline(ctx context.Context, msg *domain.ChatMessage, online map[string]bool) {
	opCtx, cancel := context.WithTimeout(ctx, h.opts.WriteWait)
	defer cancel()

	roster, err := h.dir.Roster(opCtx, msg.GroupedRideID)
	if err != nil {
		observability.ChatAlerts.WithLabelValues("roster_error").Inc()
		h.logger.Warn("chat roster lookup failed", "group_id", msg.GroupedRideID, "error", err)
		return
	}

	alert := NewAlert(msg)
	frame := encode(alertFrame{Type: FrameAlert, Alert: alert})
	for _, m := range roster {
		if m.UserID == msg.SenderID || online[m.UserID] {
			continue
		}
		if n := h.deliverElsewhere(m.UserID, msg.GroupedRideID, frame); n > 0 {
			observability.ChatAlerts.WithLabelValues("delivered").Inc()
		}
		if h.sink == nil {
			continue
		}
		if err := h.sink.PublishAlert(opCtx, m.UserID, alert); err != nil {
			observability.ChatAlerts.WithLabelValues("failed").Inc()
			h.logger.Warn("chat alert publish failed", "user_id", m.UserID, "group_id", msg.GroupedRideID, "error", err)
			continue
		}
		observability.ChatAlerts.WithLabelValues("published").Inc()
	}
}

// deliverElsewhere pushes frame to userID's connections on rooms other than skip.
func (h *Hub) deliverElsewhere(userID, skip string, frame []byte) int {
	h.mu.Lock()
	rooms := make([]*room, 0, len(h.rooms))
	for id, r := range h.rooms {
		if id != skip {
			rooms = append(rooms, r)
		}
	}
	h.mu.Unlock()

	delivered := 0
	for _, r := range rooms {
		r.mu.Lock()
		for c := range r.clients {
			if c.user.UserID == userID && r.deliverLocked(c, frame) {
				delivered++
			}
		}
		r.mu.Unlock()
	}
	return delivered
}

type room struct {
	id  string
	hub *Hub

	mu      sync.Mutex
	loaded  bool
	closed  bool
	lastSeq int64
	clients map[*client]struct{}
}

// deliverLocked queues frame for c, dropping c if its queue is full.
func (r *room) deliverLocked(c *client, frame []byte) bool {
	if _, ok := r.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		observability.ChatSlowClosed.Inc()
		r.hub.logger.Warn("chat connection too slow, closing", "group_id", r.id, "user_id", c.user.UserID)
		r.removeLocked(c, websocket.CloseTryAgainLater, "too slow, reconnect and replay history")
		return false
	}
}

// removeLocked detaches c and lets its writer flush queued frames and close.
func (r *room) removeLocked(c *client, code int, reason string) {
	if _, ok := r.clients[c]; !ok {
		return
	}
	delete(r.clients, c)
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
	observability.ChatConnections.Dec()
}
