package repository

import (
	"context"

	"gotogether/internal/domain"
)

// ChatRepository defines the persistence operations for chat messages.
type ChatRepository interface {
	// Append persists a message at msg.Seq. Returns ErrDuplicate if the
	// sequence number is already taken for the grouped ride.
	Append(ctx context.Context, msg *domain.ChatMessage) error

	// History retrieves up to limit messages with seq > afterSeq, in order.
	History(ctx context.Context, groupID string, afterSeq int64, limit int) ([]*domain.ChatMessage, error)

	// LastSeq returns the highest sequence number stored for the grouped ride, or 0.
	LastSeq(ctx context.Context, groupID string) (int64, error)
}
