package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// WSConn - сокет гостя поверх coder/websocket
type WSConn struct {
	conn *websocket.Conn
}

func NewWSConn(c *websocket.Conn) *WSConn {
	return &WSConn{conn: c}
}

func (w *WSConn) Send(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return w.conn.Write(ctx, websocket.MessageText, payload)
}

func (w *WSConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}

// Serve регистрирует сокет и держит его до отключения гостя
func (h *Hub) Serve(ctx context.Context, guestID string, c *websocket.Conn) error {
	conn := NewWSConn(c)
	if err := h.Register(guestID, conn); err != nil {
		c.Close(websocket.StatusGoingAway, "server shutting down")
		return err
	}
	defer c.CloseNow()
	defer h.Unregister(guestID, conn)

	// входящие сообщения от гостя не ожидаются
	ctx = c.CloseRead(ctx)

	hello, _ := json.Marshal(Message{
		Type: TypeConnection,
		Data: map[string]interface{}{
			"guest_id":     guestID,
			"connected_at": time.Now().UTC(),
		},
	})
	if err := conn.Send(ctx, hello); err != nil {
		return err
	}

	h.log.Info().Str("guest_id", guestID).Msg("guest socket connected")
	<-ctx.Done()
	h.log.Info().Str("guest_id", guestID).Msg("guest socket disconnected")
	return nil
}
