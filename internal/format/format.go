// Package format turns the engine's raw contacts, chats and messages into
// the gateway's wire schema.
package format

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nahidhasan98/whatsapp-bridge/internal/contacts"
	"github.com/nahidhasan98/whatsapp-bridge/internal/logger"
	"github.com/nahidhasan98/whatsapp-bridge/internal/media"
	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
	"github.com/nahidhasan98/whatsapp-bridge/internal/platform"
)

// Downloader fetches the media of a message
type Downloader interface {
	DownloadMedia(ctx context.Context, msg platform.RawMessage) (*platform.Media, error)
}

// Formatter converts raw engine shapes to wire shapes
type Formatter struct {
	log     *logger.Logger
	workers int
}

// New creates a formatter that downloads at most workers media at once
func New(log *logger.Logger, workers int) *Formatter {
	if workers < 1 {
		workers = 1
	}
	return &Formatter{log: log, workers: workers}
}

// Contact formats a single contact
func (f *Formatter) Contact(raw platform.RawContact) models.Contact {
	number := raw.Number
	if number == "" && !raw.IsGroup && isPhoneJID(raw.ID) {
		number = userPart(raw.ID)
	}
	number = contacts.Digits(number)

	return models.Contact{
		ID:               raw.ID,
		DisplayName:      firstNonEmpty(raw.Name, raw.PushName, raw.VerifiedName, number, userPart(raw.ID)),
		NormalizedNumber: number,
		IsKnownContact:   raw.IsMyContact,
		IsGroup:          raw.IsGroup,
		IsBlocked:        raw.IsBlocked,
		AvatarURL:        raw.AvatarURL,
		VerifiedName:     raw.VerifiedName,
		PushName:         raw.PushName,
	}
}

// Contacts formats a contact list, keeping order
func (f *Formatter) Contacts(raw []platform.RawContact) []models.Contact {
	out := make([]models.Contact, 0, len(raw))
	for _, c := range raw {
		out = append(out, f.Contact(c))
	}
	return out
}

// Chat formats a single chat
func (f *Formatter) Chat(raw platform.RawChat) models.Chat {
	chat := models.Chat{
		ID:             raw.ID,
		DisplayName:    firstNonEmpty(raw.Name, userPart(raw.ID)),
		IsGroup:        raw.IsGroup,
		UnreadCount:    max(raw.UnreadCount, 0),
		LastActivityAt: raw.Timestamp,
	}

	if last := raw.LastMessage; last != nil && last.ID != "" && last.Timestamp > 0 {
		chat.LastMessage = &models.LastMessage{
			ID:        last.ID,
			Body:      last.Body,
			Type:      messageType(last.Type),
			Direction: direction(last.FromMe),
			SentAt:    last.Timestamp,
			Ack:       clampAck(last.Ack),
		}
		chat.LastActivityAt = max(chat.LastActivityAt, last.Timestamp)
	}

	return chat
}

// Chats formats a chat list, most recently active first
func (f *Formatter) Chats(raw []platform.RawChat) []models.Chat {
	out := make([]models.Chat, 0, len(raw))
	for _, c := range raw {
		out = append(out, f.Chat(c))
	}
	slices.SortStableFunc(out, func(a, b models.Chat) int {
		if c := cmp.Compare(b.LastActivityAt, a.LastActivityAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Message formats one message, downloading its media through dl when it
// has any. A failed download keeps the message without media fields; a
// message without id or with a non-positive timestamp is an error.
func (f *Formatter) Message(ctx context.Context, raw platform.RawMessage, dl Downloader) (*models.Message, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("message has no id")
	}
	if raw.Timestamp <= 0 {
		return nil, fmt.Errorf("message %s has invalid timestamp %d", raw.ID, raw.Timestamp)
	}

	msg := &models.Message{
		ID:        raw.ID,
		ChatID:    raw.ChatID,
		Body:      raw.Body,
		Direction: direction(raw.FromMe),
		SentAt:    raw.Timestamp,
		Type:      messageType(raw.Type),
		Ack:       clampAck(raw.Ack),
		Author:    raw.Author,
	}

	if msg.Type == models.MessageTypeAudio || msg.Type == models.MessageTypeVoiceNote {
		msg.Duration = max(raw.Duration, 0)
	}

	if !raw.HasMedia || dl == nil {
		return msg, nil
	}

	downloaded, err := dl.DownloadMedia(ctx, raw)
	if err != nil || downloaded == nil {
		if err == nil {
			err = fmt.Errorf("empty media")
		}
		f.log.With("message_id", raw.ID).WarnErr("Media download failed, sending message without media", err)
		return msg, nil
	}

	mime := firstNonEmpty(downloaded.MimeType, raw.MimeType)
	msg.MediaURL = media.DataURI(mime, downloaded.Data)
	msg.Mimetype = mime
	msg.Filename = firstNonEmpty(downloaded.Filename, raw.Filename)
	msg.Filesize = int64(len(downloaded.Data))
	return msg, nil
}

// Messages formats a batch concurrently, keeping input order. Messages
// that fail to format are logged and left out.
func (f *Formatter) Messages(ctx context.Context, raw []platform.RawMessage, dl Downloader) []models.Message {
	results := make([]*models.Message, len(raw))

	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, r := range raw {
		g.Go(func() error {
			msg, err := f.Message(ctx, r, dl)
			if err != nil {
				f.log.WarnErr("Dropping message that failed to format", err)
				return nil
			}
			results[i] = msg
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.Message, 0, len(results))
	for _, msg := range results {
		if msg != nil {
			out = append(out, *msg)
		}
	}
	return out
}

func messageType(native string) models.MessageType {
	switch native {
	case platform.TypeImage, platform.TypeSticker:
		return models.MessageTypeImage
	case platform.TypeVideo:
		return models.MessageTypeVideo
	case platform.TypeAudio:
		return models.MessageTypeAudio
	case platform.TypePTT:
		return models.MessageTypeVoiceNote
	case platform.TypeDocument:
		return models.MessageTypeDocument
	default:
		return models.MessageTypeText
	}
}

func direction(fromMe bool) models.Direction {
	if fromMe {
		return models.DirectionOutbound
	}
	return models.DirectionInbound
}

func clampAck(ack int) int {
	return min(max(ack, models.AckQueued), models.AckPlayed)
}

// userPart returns the part of a JID before '@' and any device suffix
func userPart(jid string) string {
	user, _, _ := strings.Cut(jid, "@")
	user, _, _ = strings.Cut(user, ":")
	return user
}

func isPhoneJID(jid string) bool {
	return strings.HasSuffix(jid, "@s.whatsapp.net") || strings.HasSuffix(jid, "@c.us")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
