package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// NewUpgrader returns an upgrader that accepts the listed origins. A "*"
// entry or a request without an Origin header is always accepted.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed["*"]; ok {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}
