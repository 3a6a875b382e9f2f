// Package handlers serves the gateway's HTTP surface: the WebSocket
// endpoint, the status probes and the operator session routes.
package handlers

import (
	"context"

	"github.com/nahidhasan98/whatsapp-bridge/internal/broadcast"
	"github.com/nahidhasan98/whatsapp-bridge/internal/config"
	"github.com/nahidhasan98/whatsapp-bridge/internal/logger"
	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
	"github.com/nahidhasan98/whatsapp-bridge/internal/session"
)

// Session is what the HTTP handlers need from the session manager
type Session interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context, reason string) error
	Stop(ctx context.Context) error
	Snapshot() session.Snapshot
	Join(ctx context.Context, register func()) (*models.ReadyEvent, error)
}

// CommandHandler processes one raw command frame from a connection
type CommandHandler interface {
	Handle(ctx context.Context, connID string, raw []byte)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	session  Session
	hub      *broadcast.Broadcaster
	commands CommandHandler
	ws       config.WebSocketConfig
	log      *logger.Logger
}

// New creates a new handler instance
func New(s Session, hub *broadcast.Broadcaster, commands CommandHandler, ws config.WebSocketConfig, log *logger.Logger) *Handler {
	return &Handler{
		session:  s,
		hub:      hub,
		commands: commands,
		ws:       ws,
		log:      log,
	}
}
