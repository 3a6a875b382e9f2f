package handlers

import (
	"context"
	"net/http"
	"slices"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nahidhasan98/whatsapp-bridge/internal/errors"
	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
)

// wsConn adapts a websocket connection to broadcast.Conn
type wsConn struct {
	id   string
	conn *websocket.Conn
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// WebSocket upgrades the request and serves one client until it leaves
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Error("Failed to accept WebSocket", err)
		return
	}
	ws.SetReadLimit(h.ws.ReadLimit)

	conn := &wsConn{id: uuid.NewString(), conn: ws}
	log := h.log.With("conn_id", conn.id)

	defer func() {
		h.hub.Unregister(conn.id)
		if closeErr := ws.Close(websocket.StatusNormalClosure, ""); closeErr != nil {
			log.Debugf("Failed to close websocket: %v", closeErr)
		}
	}()

	ctx := r.Context()

	// A client joining a ready session gets the snapshot straight away
	ready, err := h.session.Join(ctx, func() { h.hub.Register(conn) })
	if err != nil {
		log.WarnErr("Session manager unavailable", err)
		return
	}
	if ready != nil {
		if err := h.hub.SendTo(ctx, conn.id, ready); err != nil {
			log.WarnErr("Failed to send ready snapshot", err)
			return
		}
	}

	h.readLoop(ctx, conn)
}

// readLoop hands every text frame to the command handler on its own
// goroutine. Commands outlive the connection that sent them; their replies
// are dropped once it is gone.
func (h *Handler) readLoop(ctx context.Context, conn *wsConn) {
	log := h.log.With("conn_id", conn.id)
	limiter := rate.NewLimiter(rate.Limit(h.ws.CommandRate), h.ws.CommandBurst)
	cmdCtx := context.WithoutCancel(ctx)

	for {
		typ, data, err := conn.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Debug("WebSocket closed by client")
			} else {
				log.Debugf("WebSocket read ended: %v", err)
			}
			return
		}

		if typ != websocket.MessageText {
			h.sendError(ctx, conn.id, errors.InvalidRequest("Only text frames are accepted"))
			continue
		}

		if !limiter.Allow() {
			log.Warn("Command rate limit exceeded")
			h.sendError(ctx, conn.id, errors.TooManyRequests())
			continue
		}

		go h.commands.Handle(cmdCtx, conn.id, data)
	}
}

func (h *Handler) sendError(ctx context.Context, connID string, appErr *errors.AppError) {
	if err := h.hub.SendTo(ctx, connID, models.NewErrorEvent(appErr.Message, string(appErr.Code))); err != nil {
		h.log.With("conn_id", connID).WarnErr("Failed to deliver error frame", err)
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.ws.AllowedOrigins, "*") {
		return true
	}
	if slices.Contains(h.ws.AllowedOrigins, origin) {
		return true
	}
	h.log.Warnf("WebSocket origin rejected: %s", origin)
	return false
}
