package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"gotogether/internal/domain"
)

// client is one open connection. The writer goroutine is the only one that
// writes to conn; the reader goroutine is the only one that reads.
type client struct {
	hub  *Hub
	room *room
	user domain.RosterMember
	conn *websocket.Conn

	// send is closed by the room when the client is detached.
	send chan []byte

	// Set before send is closed, read by writePump after it observes the close.
	closeCode   int
	closeReason string
}

// reply queues a frame for this client alone.
func (c *client) reply(v any) {
	c.room.mu.Lock()
	defer c.room.mu.Unlock()
	c.room.deliverLocked(c, encode(v))
}

func (c *client) readPump(ctx context.Context) {
	defer c.detach()

	opts := c.hub.opts
	c.conn.SetReadLimit(opts.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("chat read failed", "group_id", c.room.id, "user_id", c.user.UserID, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.reply(errorFrame{Type: FrameError, Kind: "validation", Message: "malformed frame"})
			continue
		}

		switch in.Type {
		case InboundSend:
			c.hub.post(ctx, c, in.Body, in.ClientRef)
		case InboundHistory:
			c.hub.replay(ctx, c, in.AfterSeq, in.Limit)
		case InboundPing:
			c.reply(pongFrame{Type: FramePong})
		default:
			c.reply(errorFrame{Type: FrameError, Kind: "validation", Message: "unknown frame type " + in.Type, ClientRef: in.ClientRef})
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, c.closeReason))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// detach removes the client from its room after the reader stops.
func (c *client) detach() {
	c.room.mu.Lock()
	defer c.room.mu.Unlock()
	c.room.removeLocked(c, websocket.CloseNormalClosure, "")
}
