package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"gotogether/internal/domain"
)

func fixtureMessage(id string, seq int64, sender string, kind domain.SenderKind, body string, at time.Time) *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:            id,
		GroupedRideID: "g-1",
		Seq:           seq,
		SenderID:      sender,
		SenderKind:    kind,
		Body:          body,
		CreatedAt:     at,
	}
}

func TestFrames_Golden(t *testing.T) {
	m1 := MessageFromDomain(fixtureMessage("m-1", 1, "alice", domain.SenderRider, "On my way",
		time.Date(2026, 11, 2, 7, 0, 0, 0, time.UTC)))
	// Non-UTC timestamps are normalized on the wire.
	m2 := MessageFromDomain(fixtureMessage("m-2", 2, "drv-1", domain.SenderDriver, "Waiting at the north entrance",
		time.Date(2026, 11, 2, 8, 1, 30, 0, time.FixedZone("CET", 3600))))
	long := fixtureMessage("m-3", 3, "alice", domain.SenderRider,
		"Running about ten minutes late because of traffic on the bridge, sorry!", time.Time{})

	frames := map[string]any{
		"ready":             readyFrame{Type: FrameReady, GroupID: "g-1", UserID: "alice", LastSeq: 4},
		"message_echo":      messageFrame{Type: FrameMessage, Message: m1, ClientRef: "c-1"},
		"message_broadcast": messageFrame{Type: FrameMessage, Message: m2},
		"alert_truncated":   alertFrame{Type: FrameAlert, Alert: NewAlert(long)},
		"history":           historyFrame{Type: FrameHistory, GroupID: "g-1", Messages: []Message{m1, m2}, LastSeq: 7, HasMore: true},
		"history_empty":     historyFrame{Type: FrameHistory, GroupID: "g-1", Messages: []Message{}},
		"error":             errorFrame{Type: FrameError, Kind: "validation", Message: ErrInvalidBody.Error(), ClientRef: "c-9"},
		"closed":            closedFrame{Type: FrameClosed, GroupID: "g-1", Reason: "ride completed"},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for name, frame := range frames {
		g.Assert(t, name, encode(frame))
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()
	exact := strings.Repeat("a", previewRuneLimit)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"short", "See you soon", "See you soon"},
		{"exactly the limit", exact, exact},
		{"one over", exact + "b", exact + "..."},
		{"multibyte runes", strings.Repeat("é", 60), strings.Repeat("é", 50) + "..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Preview(tt.body), tt.name)
	}
}

func TestNewAlert(t *testing.T) {
	t.Parallel()
	a := NewAlert(fixtureMessage("m-1", 9, "drv-1", domain.SenderDriver, "Here", time.Time{}))

	assert.Equal(t, Alert{
		GroupID:    "g-1",
		Seq:        9,
		SenderID:   "drv-1",
		SenderKind: domain.SenderDriver,
		Title:      "New message in group",
		Preview:    "Here",
	}, a)
}
