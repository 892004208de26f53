package websocket

import (
	"log/slog"
	"net/http"
	"net/url"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/brightwork/internal/auth"
)

// OriginPatterns returns the host of baseURL for use as an accepted Origin.
func OriginPatterns(baseURL string) []string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

// Handler upgrades an authenticated admin request and streams hub messages
// until the browser goes away. It must sit behind the admin auth guard.
func Handler(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := auth.Email(r.Context())

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "email", email, "error", err)
			return
		}

		NewClient(hub, conn, email).Run(r.Context())
	}
}
