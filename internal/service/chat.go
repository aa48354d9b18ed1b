package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"

	"gotogether/internal/chat"
	"gotogether/internal/domain"
	"gotogether/internal/repository"
)

// ChatService authorizes access to ride chats and hands connections to the hub.
type ChatService struct {
	store        repository.Store
	roster       *RosterService
	hub          *chat.Hub
	historyLimit int
	logger       *slog.Logger
}

// NewChatService creates a new ChatService.
func NewChatService(store repository.Store, roster *RosterService, hub *chat.Hub, historyLimit int, logger *slog.Logger) *ChatService {
	if historyLimit <= 0 {
		historyLimit = chat.DefaultOptions().HistoryLimit
	}
	return &ChatService{
		store:        store,
		roster:       roster,
		hub:          hub,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Authorize resolves the caller's chat identity on a ride. Operators always
// pass; everyone else must be on the roster. When connecting, rides that have
// ended are refused.
func (s *ChatService) Authorize(ctx context.Context, p domain.Principal, groupID string, connecting bool) (domain.RosterMember, error) {
	g, err := s.store.Repositories().Groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.RosterMember{}, ErrGroupNotFound
		}
		return domain.RosterMember{}, err
	}

	var member domain.RosterMember
	if p.IsOperator() {
		member = domain.RosterMember{UserID: p.Subject, Kind: domain.SenderOperator}
	} else {
		roster, err := s.roster.Roster(ctx, groupID)
		if err != nil {
			return domain.RosterMember{}, err
		}
		m, ok := rosterContains(roster, p.Subject)
		if !ok {
			return domain.RosterMember{}, ErrNotChatMember
		}
		member = m
	}

	if connecting && g.Status.IsTerminal() {
		return domain.RosterMember{}, ErrChatRoomClosed
	}
	return member, nil
}

// HistoryPage is a slice of a ride's chat log.
type HistoryPage struct {
	Messages []*domain.ChatMessage
	LastSeq  int64
	HasMore  bool
}

// History returns up to limit messages after afterSeq. It stays readable
// after the ride has ended.
func (s *ChatService) History(ctx context.Context, p domain.Principal, groupID string, afterSeq int64, limit int) (*HistoryPage, error) {
	if _, err := s.Authorize(ctx, p, groupID, false); err != nil {
		return nil, err
	}
	if afterSeq < 0 {
		afterSeq = 0
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}

	chatRepo := s.store.Repositories().Chat
	msgs, err := chatRepo.History(ctx, groupID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	last, err := chatRepo.LastSeq(ctx, groupID)
	if err != nil {
		return nil, err
	}

	page := &HistoryPage{Messages: msgs, LastSeq: last}
	if n := len(msgs); n == limit && msgs[n-1].Seq < last {
		page.HasMore = true
	}
	return page, nil
}

// Serve runs an authorized, upgraded connection until it closes.
func (s *ChatService) Serve(ctx context.Context, conn *websocket.Conn, groupID string, member domain.RosterMember) error {
	err := s.hub.Serve(ctx, conn, groupID, member)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chat.ErrRoomClosed):
		return ErrChatRoomClosed
	default:
		s.logger.Warn("chat connection failed to open", "group_id", groupID, "user_id", member.UserID, "error", err)
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
}
