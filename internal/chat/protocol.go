package chat

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"gotogether/internal/domain"
)

// Frame types sent by the server.
const (
	FrameReady   = "ready"
	FrameHistory = "history"
	FrameMessage = "message"
	FrameAlert   = "alert"
	FrameError   = "error"
	FramePong    = "pong"
	FrameClosed  = "closed"
)

// Frame types sent by clients.
const (
	InboundSend    = "send"
	InboundHistory = "history"
	InboundPing    = "ping"
)

const (
	alertTitle       = "New message in group"
	previewRuneLimit = 50
)

// Inbound is any frame a client may send.
type Inbound struct {
	Type      string `json:"type"`
	AfterSeq  int64  `json:"after_seq,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Body      string `json:"body,omitempty"`
	ClientRef string `json:"client_ref,omitempty"`
}

// Message is the wire form of a persisted chat message.
type Message struct {
	ID         string            `json:"id"`
	GroupID    string            `json:"group_id"`
	Seq        int64             `json:"seq"`
	SenderID   string            `json:"sender_id"`
	SenderKind domain.SenderKind `json:"sender_kind"`
	Body       string            `json:"body"`
	CreatedAt  time.Time         `json:"created_at"`
}

// MessageFromDomain converts a stored message to its wire form.
func MessageFromDomain(m *domain.ChatMessage) Message {
	return Message{
		ID:         m.ID,
		GroupID:    m.GroupedRideID,
		Seq:        m.Seq,
		SenderID:   m.SenderID,
		SenderKind: m.SenderKind,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

// Alert tells a roster member without an open connection that the ride's chat moved.
type Alert struct {
	GroupID    string            `json:"group_id"`
	Seq        int64             `json:"seq"`
	SenderID   string            `json:"sender_id"`
	SenderKind domain.SenderKind `json:"sender_kind"`
	Title      string            `json:"title"`
	Preview    string            `json:"preview"`
}

// NewAlert builds the alert for a freshly appended message.
func NewAlert(m *domain.ChatMessage) Alert {
	return Alert{
		GroupID:    m.GroupedRideID,
		Seq:        m.Seq,
		SenderID:   m.SenderID,
		SenderKind: m.SenderKind,
		Title:      alertTitle,
		Preview:    Preview(m.Body),
	}
}

// Preview shortens a body to at most 50 characters, marking truncation with "...".
func Preview(body string) string {
	if utf8.RuneCountInString(body) <= previewRuneLimit {
		return body
	}
	return string([]rune(body)[:previewRuneLimit]) + "..."
}

type readyFrame struct {
	Type    string `json:"type"`
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id"`
	LastSeq int64  `json:"last_seq"`
}

type historyFrame struct {
	Type     string    `json:"type"`
	GroupID  string    `json:"group_id"`
	Messages []Message `json:"messages"`
	LastSeq  int64     `json:"last_seq"`
	HasMore  bool      `json:"has_more"`
}

type messageFrame struct {
	Type      string  `json:"type"`
	Message   Message `json:"message"`
	ClientRef string  `json:"client_ref,omitempty"`
}

type alertFrame struct {
	Type  string `json:"type"`
	Alert Alert  `json:"alert"`
}

type errorFrame struct {
	Type      string `json:"type"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	ClientRef string `json:"client_ref,omitempty"`
}

type pongFrame struct {
	Type string `json:"type"`
}

type closedFrame struct {
	Type    string `json:"type"`
	GroupID string `json:"group_id"`
	Reason  string `json:"reason"`
}

// encode marshals a frame. Frames hold only plain data, so marshalling cannot fail.
func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
