package handler

import (
	"net/http"

	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/daonbank/kcs/kcs-backend/internal/websocket"
)

// JWTValidator authorizes a handshake token and resolves the event
// channel its subject may follow.
type JWTValidator interface {
	ValidateToken(token string) (channel string, err error)
}

// WebSocketHandler upgrades authenticated GET /ws requests into hub
// subscriptions for the real-time decision and EWS feed.
type WebSocketHandler struct {
	hub       *websocket.Hub
	validator JWTValidator
	origins   map[string]struct{}
	upgrader  ws.Upgrader
}

func NewWebSocketHandler(hub *websocket.Hub, validator JWTValidator, allowedOrigins []string) *WebSocketHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	h := &WebSocketHandler{hub: hub, validator: validator, origins: origins}
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin admits configured origins and requests without an
// Origin header (same-origin and non-browser clients).
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, ok := h.origins[origin]; ok {
		return true
	}
	log.Warn().Str("origin", origin).Msg("WebSocket origin rejected")
	return false
}

// HandleWS authenticates the handshake, upgrades the connection, and
// hands it to the hub. The token rides a query parameter because
// browsers cannot set headers on an upgrade request.
func (h *WebSocketHandler) HandleWS(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	channel, err := h.validator.ValidateToken(token)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket token rejected")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return err
	}

	client := websocket.NewClient(conn, channel, h.hub)
	h.hub.Attach(client)
	log.Info().Str("channel", channel).Str("subscriber_id", client.ID()).Msg("WebSocket subscriber connected")

	go client.Run()
	return nil
}
