package gateway

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler terminates HTTP at the gateway: WebSocket upgrade requests
// become managed connections, anything else gets a trivial fixed reply.
type Handler struct {
	cm         *ConnectionManager
	dispatcher *Dispatcher
}

func NewHandler(cm *ConnectionManager, dispatcher *Dispatcher) *Handler {
	return &Handler{cm: cm, dispatcher: dispatcher}
}

// HandleConnection upgrades the request and, when a ?room= access token
// is present, subscribes the new connection before its first read.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Hello world!"))
		return
	}

	accessID := r.URL.Query().Get("room")
	if err := h.cm.UpgradeConnection(w, r, h.dispatcher, accessID); err != nil {
		log.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("failed to upgrade WebSocket connection")
	}
}

// RegisterRoutes registers the gateway endpoint with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.HandleConnection)
}
