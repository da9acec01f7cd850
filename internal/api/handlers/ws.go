package handlers

import (
	"taskmanager/internal/middleware"
	myws "taskmanager/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// the websocket conn only sees string-keyed locals
const wsUserKey = "ws_user_id"

// UpgradeTaskEvents lets authenticated websocket upgrades through.
func (h *Handler) UpgradeTaskEvents(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "No auth token, Access Denied")
	}
	c.Locals(wsUserKey, identity.UserID.String())
	return c.Next()
}

// TaskEvents streams the caller's task events until the socket closes.
func (h *Handler) TaskEvents() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		raw, _ := conn.Locals(wsUserKey).(string)
		userID, err := uuid.Parse(raw)
		if err != nil {
			conn.Close()
			return
		}

		client := myws.NewClient(userID)
		if !h.deps.Hub.Register(client) {
			conn.Close()
			return
		}
		h.deps.Log.Audit.Info("Task event stream opened", zap.String("user_id", userID.String()))

		// conn is released to the pool when this func returns, so the pump
		// must finish first
		pumped := make(chan struct{})
		go func() {
			defer close(pumped)
			_ = client.WritePump(conn)
		}()

		// inbound messages are ignored; reading detects the close
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		h.deps.Hub.Unregister(client)
		<-pumped
	})
}
