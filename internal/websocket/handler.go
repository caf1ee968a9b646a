package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/cwinters/pocketmoney/internal/auth"
)

// Handler returns an HTTP handler that upgrades connections to WebSocket
// and runs them as Hub clients. Browsers cannot set an Authorization
// header on a WebSocket upgrade, so the token rides in the query string.
func Handler(hub *Hub, tokens *auth.TokenIssuer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := tokens.Verify(r.URL.Query().Get("token")); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Allow connections from any origin (household LAN)
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn)
		client.Run(r.Context())
	}
}
