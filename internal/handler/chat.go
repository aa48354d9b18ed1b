package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"gotogether/internal/chat"
	"gotogether/internal/middleware"
	"gotogether/internal/service"
)

// ChatHandler serves chat history and upgrades chat connections.
type ChatHandler struct {
	chats    *service.ChatService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewChatHandler creates a new ChatHandler. allowedOrigins follows the CORS
// setting; "*" accepts any origin.
func NewChatHandler(chats *service.ChatService, allowedOrigins []string, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		chats: chats,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// HistoryResponse is a page of a ride's chat log.
type HistoryResponse struct {
	GroupID  string         `json:"group_id"`
	Messages []chat.Message `json:"messages"`
	LastSeq  int64          `json:"last_seq"`
	HasMore  bool           `json:"has_more"`
}

// History handles GET /v1/chat/:groupId/history?after_seq=&limit=
func (h *ChatHandler) History(c *gin.Context) {
	var afterSeq int64
	if v := c.Query("after_seq"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondBadRequest(c, "after_seq must be a number")
			return
		}
		afterSeq = n
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondBadRequest(c, "limit must be a number")
			return
		}
		limit = n
	}

	groupID := c.Param("groupId")
	page, err := h.chats.History(c.Request.Context(), middleware.Principal(c), groupID, afterSeq, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	msgs := make([]chat.Message, 0, len(page.Messages))
	for _, m := range page.Messages {
		msgs = append(msgs, chat.MessageFromDomain(m))
	}
	respondJSON(c, http.StatusOK, HistoryResponse{
		GroupID:  groupID,
		Messages: msgs,
		LastSeq:  page.LastSeq,
		HasMore:  page.HasMore,
	})
}

// Connect handles GET /v1/chat/:groupId/ws
func (h *ChatHandler) Connect(c *gin.Context) {
	groupID := c.Param("groupId")
	p := middleware.Principal(c)

	// Authorize before upgrading so refusals are plain HTTP errors.
	member, err := h.chats.Authorize(c.Request.Context(), p, groupID, true)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.Warn("chat upgrade failed", "group_id", groupID, "user_id", p.Subject, "error", err)
		return
	}

	if err := h.chats.Serve(c.Request.Context(), conn, groupID, member); err != nil {
		h.logger.Info("chat connection refused", "group_id", groupID, "user_id", p.Subject, "error", err)
	}
}
