package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daonbank/kcs/kcs-backend/internal/websocket"
)

type stubValidator struct {
	channel string
	err     error
}

func (v stubValidator) ValidateToken(string) (string, error) {
	return v.channel, v.err
}

func newWSHandler(v JWTValidator) *WebSocketHandler {
	return NewWebSocketHandler(websocket.NewHub(), v, []string{"http://localhost:3000", "https://ops.daonbank.kr"})
}

func wsRequest(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandleWS_MissingToken(t *testing.T) {
	h := newWSHandler(stubValidator{channel: websocket.OpsChannel})
	c, _ := wsRequest("/ws")

	err := h.HandleWS(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestHandleWS_RejectedToken(t *testing.T) {
	h := newWSHandler(stubValidator{err: errors.New("bad signature")})
	c, _ := wsRequest("/ws?token=tampered")

	err := h.HandleWS(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestHandleWS_AuthPassesBeforeUpgrade(t *testing.T) {
	// A plain GET with a valid token clears auth but fails the upgrade,
	// proving the token check runs first.
	h := newWSHandler(stubValidator{channel: "f9f1c3a0-7f6e-4c59-9f7a-2b8d4e5a6c71"})
	c, _ := wsRequest("/ws?token=valid")

	err := h.HandleWS(c)

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "unauthorized")
}

func TestCheckOrigin(t *testing.T) {
	h := newWSHandler(stubValidator{channel: websocket.OpsChannel})

	cases := []struct {
		name   string
		origin string
		want   bool
	}{
		{"configured origin", "http://localhost:3000", true},
		{"configured https origin", "https://ops.daonbank.kr", true},
		{"unknown origin", "https://evil.example", false},
		{"no origin header", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			assert.Equal(t, tc.want, h.checkOrigin(req))
		})
	}
}
