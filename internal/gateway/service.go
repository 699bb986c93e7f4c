package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/roundtimer/roundtimer/internal/rooms"
	"github.com/rs/zerolog/log"
)

// Service bundles the room state machine, the WebSocket layer and the
// inactivity reaper into one unit the binary can run.
type Service struct {
	app        *rooms.App
	cm         *ConnectionManager
	dispatcher *Dispatcher
	handler    *Handler
	reaper     *rooms.Reaper
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	TokenLength      int
	SweepInterval    time.Duration
	IdleThreshold    time.Duration
}

// DefaultConfig returns the reference policy: sweep every 12 hours,
// evict rooms idle for more than 24.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		TokenLength:      12,
		SweepInterval:    12 * time.Hour,
		IdleThreshold:    24 * time.Hour,
	}
}

// NewService wires the room registry, dispatcher and reaper together.
func NewService(config Config, clock clockwork.Clock) *Service {
	app := rooms.NewApp(clock, config.TokenLength)
	cm := NewConnectionManager(config.ConnectionConfig)
	dispatcher := NewDispatcher(app, cm)
	handler := NewHandler(cm, dispatcher)
	reaper := rooms.NewReaper(app, cm, clock, config.SweepInterval, config.IdleThreshold)

	return &Service{
		app:        app,
		cm:         cm,
		dispatcher: dispatcher,
		handler:    handler,
		reaper:     reaper,
	}
}

// Start runs the inactivity reaper until the context is cancelled.
// Connections are handled per-request by the HTTP layer and need no
// central loop.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting timer sync service")
	s.reaper.Run(ctx)
}

// RegisterRoutes registers the gateway's HTTP routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

// Stats returns a snapshot of live rooms and subscriptions.
func (s *Service) Stats() map[string]int {
	groups, subscriptions := s.cm.GroupStats()
	return map[string]int{
		"rooms":         s.app.RoomCount(),
		"groups":        groups,
		"subscriptions": subscriptions,
	}
}
