package app

import (
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/nahidhasan98/whatsapp-bridge/internal/media"
	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
	"github.com/nahidhasan98/whatsapp-bridge/internal/platform"
)

// rawMessage converts a whatsmeow message. Messages without displayable
// content (reactions, protocol messages) report false.
func rawMessage(info types.MessageInfo, msg *waE2E.Message) (platform.RawMessage, bool) {
	raw := platform.RawMessage{
		ID:        info.ID,
		ChatID:    info.Chat.ToNonAD().String(),
		FromMe:    info.IsFromMe,
		Timestamp: info.Timestamp.Unix(),
		Native:    msg,
	}
	if info.IsGroup && !info.IsFromMe {
		raw.Author = info.Sender.ToNonAD().String()
	}
	if info.IsFromMe {
		raw.Ack = models.AckSent
	}

	switch {
	case msg.GetImageMessage() != nil:
		m := msg.GetImageMessage()
		raw.Type = platform.TypeImage
		raw.Body = m.GetCaption()
		raw.MimeType = m.GetMimetype()
		raw.FileSize = int64(m.GetFileLength())
	case msg.GetVideoMessage() != nil:
		m := msg.GetVideoMessage()
		raw.Type = platform.TypeVideo
		raw.Body = m.GetCaption()
		raw.MimeType = m.GetMimetype()
		raw.FileSize = int64(m.GetFileLength())
	case msg.GetAudioMessage() != nil:
		m := msg.GetAudioMessage()
		raw.Type = platform.TypeAudio
		if m.GetPTT() {
			raw.Type = platform.TypePTT
		}
		raw.MimeType = m.GetMimetype()
		raw.FileSize = int64(m.GetFileLength())
		raw.Duration = int(m.GetSeconds())
	case msg.GetDocumentMessage() != nil:
		m := msg.GetDocumentMessage()
		raw.Type = platform.TypeDocument
		raw.Body = m.GetCaption()
		raw.MimeType = m.GetMimetype()
		raw.FileSize = int64(m.GetFileLength())
		raw.Filename = m.GetFileName()
	case msg.GetStickerMessage() != nil:
		m := msg.GetStickerMessage()
		raw.Type = platform.TypeSticker
		raw.MimeType = m.GetMimetype()
		raw.FileSize = int64(m.GetFileLength())
	case msg.GetConversation() != "":
		raw.Type = platform.TypeChat
		raw.Body = msg.GetConversation()
	case msg.GetExtendedTextMessage() != nil:
		raw.Type = platform.TypeChat
		raw.Body = msg.GetExtendedTextMessage().GetText()
	default:
		return platform.RawMessage{}, false
	}

	raw.HasMedia = raw.Type != platform.TypeChat
	return raw, true
}

// downloadable returns the media part of a message, if any
func downloadable(msg *waE2E.Message) whatsmeow.DownloadableMessage {
	switch {
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage()
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage()
	case msg.GetStickerMessage() != nil:
		return msg.GetStickerMessage()
	default:
		return nil
	}
}

func mediaType(kind string) whatsmeow.MediaType {
	switch kind {
	case "image":
		return whatsmeow.MediaImage
	case "video":
		return whatsmeow.MediaVideo
	case "audio":
		return whatsmeow.MediaAudio
	default:
		return whatsmeow.MediaDocument
	}
}

// mediaMessage builds the message referencing uploaded media
func mediaMessage(up whatsmeow.UploadResponse, m platform.OutgoingMedia) *waE2E.Message {
	switch media.Kind(m.MimeType) {
	case "image":
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(m.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	case "video":
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(m.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	case "audio":
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(m.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			PTT:           proto.Bool(m.VoiceNote),
		}}
	default:
		name := m.Filename
		if name == "" {
			name = "file"
		}
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(m.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			FileName:      proto.String(name),
			Title:         proto.String(name),
		}}
	}
}

// receiptAck maps a receipt to an ack level
func receiptAck(t types.ReceiptType) (int, bool) {
	switch t {
	case types.ReceiptTypeDelivered:
		return models.AckDelivered, true
	case types.ReceiptTypeRead:
		return models.AckRead, true
	case types.ReceiptTypePlayed:
		return models.AckPlayed, true
	default:
		return 0, false
	}
}

// statusAck maps the stored status of a synced outbound message to an ack level
func statusAck(status waWeb.WebMessageInfo_Status) int {
	switch status {
	case waWeb.WebMessageInfo_SERVER_ACK:
		return models.AckSent
	case waWeb.WebMessageInfo_DELIVERY_ACK:
		return models.AckDelivered
	case waWeb.WebMessageInfo_READ:
		return models.AckRead
	case waWeb.WebMessageInfo_PLAYED:
		return models.AckPlayed
	default:
		return models.AckQueued
	}
}

// rawContact converts a contact from the device store
func rawContact(jid types.JID, info types.ContactInfo, blocked bool) platform.RawContact {
	c := platform.RawContact{
		ID:           jid.ToNonAD().String(),
		Name:         info.FullName,
		PushName:     info.PushName,
		VerifiedName: info.BusinessName,
		IsMyContact:  info.FullName != "" || info.FirstName != "",
		IsBlocked:    blocked,
	}
	if c.Name == "" {
		c.Name = info.FirstName
	}
	if jid.Server == types.DefaultUserServer {
		c.Number = jid.User
	}
	return c
}
