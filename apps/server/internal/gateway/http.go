package gateway

import "net/http"

// RegisterRoutes mounts the decision feed.
func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/decisions", g.HandleWebSocket)
}
