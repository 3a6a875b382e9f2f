// Package router decodes client command frames and dispatches them
// against the session.
package router

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nahidhasan98/whatsapp-bridge/internal/errors"
	"github.com/nahidhasan98/whatsapp-bridge/internal/logger"
	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
	"github.com/nahidhasan98/whatsapp-bridge/internal/platform"
	"github.com/nahidhasan98/whatsapp-bridge/internal/session"
	"github.com/nahidhasan98/whatsapp-bridge/internal/validation"
)

// Session is what the router needs from the session manager
type Session interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context, reason string) error
	Snapshot() session.Snapshot
	ReadyEvent() *models.ReadyEvent
	LastQR() string

	Contacts(ctx context.Context) ([]models.Contact, error)
	Chats(ctx context.Context) ([]models.Chat, error)
	Messages(ctx context.Context, chatID string) ([]models.Message, error)
	MarkRead(ctx context.Context, chatID string) error
	SendText(ctx context.Context, to, body string) (string, error)
	SendMedia(ctx context.Context, to string, media platform.OutgoingMedia) (string, error)
}

// Hub delivers frames to clients
type Hub interface {
	SendTo(ctx context.Context, connID string, frame any) error
	Broadcast(ctx context.Context, frame any)
}

// Router handles client commands. Results go to the requesting connection
// only; state changes reach everyone through the session's broadcasts.
type Router struct {
	session   Session
	hub       Hub
	validator *validation.Validator
	log       *logger.Logger
}

// New creates a router
func New(s Session, hub Hub, validator *validation.Validator, log *logger.Logger) *Router {
	return &Router{session: s, hub: hub, validator: validator, log: log}
}

// Handle processes one raw frame from connection connID
func (r *Router) Handle(ctx context.Context, connID string, raw []byte) {
	log := r.log.With("conn_id", connID)

	var cmd models.Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		log.WarnErr("Malformed command frame", err)
		r.replyError(ctx, connID, errors.InvalidRequest("Malformed command frame"))
		return
	}
	if cmd.Type == "" {
		r.replyError(ctx, connID, errors.InvalidRequest("Command type is required"))
		return
	}

	log = log.With("command", cmd.Type)
	log.Debug("Handling command")

	if cmd.Type.RequiresReady() && !r.session.Snapshot().Ready() {
		r.replyError(ctx, connID, errors.SessionNotReady())
		return
	}

	frame, appErr := r.dispatch(ctx, connID, &cmd, log)
	if appErr != nil {
		if appErr.Err != nil {
			log.Error(appErr.Message, appErr.Err)
		}
		r.replyError(ctx, connID, appErr)
		return
	}
	if frame != nil {
		r.reply(ctx, connID, frame)
	}

	if cmd.Type == models.CommandGetMessages {
		r.markRead(ctx, cmd.ChatID, log)
	}
}

func (r *Router) dispatch(ctx context.Context, connID string, cmd *models.Command, log *logger.Logger) (any, *errors.AppError) {
	switch cmd.Type {
	case models.CommandGetStatus:
		return r.status(), nil

	case models.CommandConnect:
		if err := r.session.Connect(ctx); err != nil {
			return nil, errors.ConnectionFailed(err)
		}
		return nil, nil

	case models.CommandDisconnect:
		if err := r.session.Disconnect(ctx, session.ReasonUserLogout); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternalError, "Failed to disconnect")
		}
		return nil, nil

	case models.CommandSendMessage:
		return r.sendMessage(ctx, cmd)

	case models.CommandSendMedia:
		return r.sendMedia(ctx, cmd, log)

	case models.CommandGetContacts:
		list, err := r.session.Contacts(ctx)
		if err != nil {
			return nil, sessionError(err, errors.FetchFailed("contacts", err))
		}
		return models.NewContactsEvent(list), nil

	case models.CommandGetChats:
		chats, err := r.session.Chats(ctx)
		if err != nil {
			return nil, sessionError(err, errors.FetchFailed("chats", err))
		}
		return models.NewChatsEvent(chats), nil

	case models.CommandGetMessages:
		chatID, appErr := r.validator.ValidateChatID(cmd.ChatID)
		if appErr != nil {
			return nil, appErr
		}
		cmd.ChatID = chatID

		msgs, err := r.session.Messages(ctx, chatID)
		if err != nil {
			return nil, sessionError(err, errors.FetchFailed("messages", err))
		}
		return models.NewChatMessagesEvent(chatID, msgs), nil

	default:
		return nil, errors.UnknownCommand(string(cmd.Type))
	}
}

// status describes the current state using the frame a client would have
// seen on entering it
func (r *Router) status() any {
	snap := r.session.Snapshot()
	switch snap.State {
	case session.Ready:
		if ev := r.session.ReadyEvent(); ev != nil {
			return ev
		}
		return models.NewAuthenticatedEvent()
	case session.Authenticated:
		return models.NewAuthenticatedEvent()
	case session.AwaitingPairing:
		if qr := r.session.LastQR(); qr != "" {
			return models.NewQREvent(qr)
		}
		return models.NewConnectingEvent()
	case session.Initializing:
		return models.NewConnectingEvent()
	default:
		return models.NewDisconnectedEvent(snap.State.String())
	}
}

func (r *Router) sendMessage(ctx context.Context, cmd *models.Command) (any, *errors.AppError) {
	to, appErr := r.validator.NormalizeJID(cmd.To)
	if appErr != nil {
		return nil, appErr
	}
	body, appErr := r.validator.ValidateText(cmd.Message)
	if appErr != nil {
		return nil, appErr
	}

	id, err := r.session.SendText(ctx, to, body)
	if err != nil {
		return nil, sessionError(err, errors.MessageSendFailed(err))
	}
	return models.NewMessageSentEvent(id, nil, cmd.TempID, to), nil
}

// sendMedia sends the media, then the caption as a separate text message.
// A failed caption still reports the media as sent.
func (r *Router) sendMedia(ctx context.Context, cmd *models.Command, log *logger.Logger) (any, *errors.AppError) {
	to, appErr := r.validator.NormalizeJID(cmd.To)
	if appErr != nil {
		return nil, appErr
	}
	media, appErr := r.validator.ValidateMedia(cmd.Media)
	if appErr != nil {
		return nil, appErr
	}

	id, err := r.session.SendMedia(ctx, to, media)
	if err != nil {
		return nil, sessionError(err, errors.MessageSendFailed(err))
	}

	var captionID *string
	if caption := strings.TrimSpace(cmd.Media.Caption); caption != "" {
		body, appErr := r.validator.ValidateText(caption)
		if appErr != nil {
			log.Warnf("Skipping caption: %s", appErr.Message)
		} else if cid, err := r.session.SendText(ctx, to, body); err != nil {
			log.WarnErr("Media sent but caption failed", err)
		} else {
			captionID = &cid
		}
	}

	return models.NewMessageSentEvent(id, captionID, cmd.TempID, to), nil
}

// markRead is best effort; chat_read goes out only when it worked
func (r *Router) markRead(ctx context.Context, chatID string, log *logger.Logger) {
	if err := r.session.MarkRead(ctx, chatID); err != nil {
		log.WarnErr("Failed to mark chat as read", err)
		return
	}
	r.hub.Broadcast(ctx, models.NewChatReadEvent(chatID))
}

func (r *Router) reply(ctx context.Context, connID string, frame any) {
	if err := r.hub.SendTo(ctx, connID, frame); err != nil {
		r.log.With("conn_id", connID).WarnErr("Failed to deliver reply", err)
	}
}

func (r *Router) replyError(ctx context.Context, connID string, appErr *errors.AppError) {
	r.reply(ctx, connID, models.NewErrorEvent(appErr.Message, string(appErr.Code)))
}

// sessionError turns a lost session into SESSION_NOT_READY and anything else into fallback
func sessionError(err error, fallback *errors.AppError) *errors.AppError {
	if errors.Is(err, session.ErrNotReady) {
		return errors.SessionNotReady()
	}
	return fallback
}
