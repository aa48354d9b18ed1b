package postgres

import (
	"context"

	"gotogether/internal/domain"
	"gotogether/internal/repository"
)

// ChatRepository is a PostgreSQL implementation of repository.ChatRepository.
type ChatRepository struct {
	q Querier
}

var _ repository.ChatRepository = (*ChatRepository)(nil)

// Append persists a message. The (grouped_ride_id, seq) unique index rejects a reused sequence number.
func (r *ChatRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, grouped_ride_id, seq, sender_id, sender_kind, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.ExecContext(ctx, query,
		msg.ID,
		msg.GroupedRideID,
		msg.Seq,
		msg.SenderID,
		msg.SenderKind,
		msg.Body,
		msg.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// History retrieves messages after afterSeq in sequence order.
func (r *ChatRepository) History(ctx context.Context, groupID string, afterSeq int64, limit int) ([]*domain.ChatMessage, error) {
	query := `
		SELECT id, grouped_ride_id, seq, sender_id, sender_kind, body, created_at
		FROM chat_messages
		WHERE grouped_ride_id = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3
	`
	rows, err := r.q.QueryContext(ctx, query, groupID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(
			&m.ID,
			&m.GroupedRideID,
			&m.Seq,
			&m.SenderID,
			&m.SenderKind,
			&m.Body,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// LastSeq returns the highest stored sequence number, or 0.
func (r *ChatRepository) LastSeq(ctx context.Context, groupID string) (int64, error) {
	var seq int64
	err := r.q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM chat_messages WHERE grouped_ride_id = $1`, groupID,
	).Scan(&seq)
	return seq, err
}
