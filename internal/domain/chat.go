package domain

import "time"

// SenderKind identifies who authored a chat message.
type SenderKind string

const (
	SenderRider    SenderKind = "rider"
	SenderDriver   SenderKind = "driver"
	SenderOperator SenderKind = "operator"
)

// MaxChatBodyLength bounds a message body after trimming.
const MaxChatBodyLength = 2000

// ChatMessage is one entry of a grouped ride's append-only conversation.
type ChatMessage struct {
	ID            string
	GroupedRideID string
	Seq           int64
	SenderID      string
	SenderKind    SenderKind
	Body          string
	CreatedAt     time.Time
}

// RosterMember is a user entitled to a grouped ride's chat.
type RosterMember struct {
	UserID string     `json:"user_id"`
	Kind   SenderKind `json:"kind"`
}
