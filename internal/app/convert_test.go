package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
	"github.com/nahidhasan98/whatsapp-bridge/internal/platform"
)

func groupInfo(fromMe bool) types.MessageInfo {
	return types.MessageInfo{
		MessageSource: types.MessageSource{
			Chat:     types.NewJID("120363000000000001", types.GroupServer),
			Sender:   types.NewADJID("5511988887777", 0, 3),
			IsFromMe: fromMe,
			IsGroup:  true,
		},
		ID:        "3EB0ABC",
		Timestamp: time.Unix(1700000000, 0),
	}
}

func TestRawMessage_Text(t *testing.T) {
	raw, ok := rawMessage(groupInfo(false), &waE2E.Message{Conversation: proto.String("hello")})
	require.True(t, ok)

	assert.Equal(t, "3EB0ABC", raw.ID)
	assert.Equal(t, "120363000000000001@g.us", raw.ChatID)
	assert.Equal(t, "5511988887777@s.whatsapp.net", raw.Author)
	assert.Equal(t, int64(1700000000), raw.Timestamp)
	assert.Equal(t, platform.TypeChat, raw.Type)
	assert.Equal(t, "hello", raw.Body)
	assert.False(t, raw.HasMedia)
	assert.Equal(t, models.AckQueued, raw.Ack)
}

func TestRawMessage_ExtendedTextFromMe(t *testing.T) {
	raw, ok := rawMessage(groupInfo(true), &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("see https://example.com")},
	})
	require.True(t, ok)
	assert.Equal(t, "see https://example.com", raw.Body)
	assert.Empty(t, raw.Author)
	assert.Equal(t, models.AckSent, raw.Ack)
}

func TestRawMessage_VoiceNote(t *testing.T) {
	raw, ok := rawMessage(groupInfo(false), &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
		Mimetype:   proto.String("audio/ogg; codecs=opus"),
		PTT:        proto.Bool(true),
		Seconds:    proto.Uint32(7),
		FileLength: proto.Uint64(2048),
	}})
	require.True(t, ok)
	assert.Equal(t, platform.TypePTT, raw.Type)
	assert.True(t, raw.HasMedia)
	assert.Equal(t, 7, raw.Duration)
	assert.Equal(t, int64(2048), raw.FileSize)
	assert.NotNil(t, downloadable(raw.Native.(*waE2E.Message)))
}

func TestRawMessage_DocumentWithCaption(t *testing.T) {
	raw, ok := rawMessage(groupInfo(false), &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
		Mimetype: proto.String("application/pdf"),
		FileName: proto.String("invoice.pdf"),
		Caption:  proto.String("March"),
	}})
	require.True(t, ok)
	assert.Equal(t, platform.TypeDocument, raw.Type)
	assert.Equal(t, "invoice.pdf", raw.Filename)
	assert.Equal(t, "March", raw.Body)
}

func TestRawMessage_SkipsContentless(t *testing.T) {
	_, ok := rawMessage(groupInfo(false), &waE2E.Message{
		ReactionMessage: &waE2E.ReactionMessage{Text: proto.String("👍")},
	})
	assert.False(t, ok)
	assert.Nil(t, downloadable(&waE2E.Message{Conversation: proto.String("x")}))
}

func TestMediaMessage(t *testing.T) {
	up := whatsmeow.UploadResponse{URL: "https://mmg.example/x", DirectPath: "/x", FileLength: 10}

	voice := mediaMessage(up, platform.OutgoingMedia{MimeType: "audio/ogg; codecs=opus", VoiceNote: true})
	require.NotNil(t, voice.GetAudioMessage())
	assert.True(t, voice.GetAudioMessage().GetPTT())

	img := mediaMessage(up, platform.OutgoingMedia{MimeType: "image/png"})
	require.NotNil(t, img.GetImageMessage())
	assert.Equal(t, uint64(10), img.GetImageMessage().GetFileLength())

	doc := mediaMessage(up, platform.OutgoingMedia{MimeType: "application/zip"})
	require.NotNil(t, doc.GetDocumentMessage())
	assert.Equal(t, "file", doc.GetDocumentMessage().GetFileName())

	assert.Equal(t, whatsmeow.MediaAudio, mediaType("audio"))
	assert.Equal(t, whatsmeow.MediaDocument, mediaType("document"))
}

func TestReceiptAndStatusAcks(t *testing.T) {
	ack, ok := receiptAck(types.ReceiptTypeDelivered)
	assert.True(t, ok)
	assert.Equal(t, models.AckDelivered, ack)

	ack, ok = receiptAck(types.ReceiptTypePlayed)
	assert.True(t, ok)
	assert.Equal(t, models.AckPlayed, ack)

	_, ok = receiptAck(types.ReceiptTypeRetry)
	assert.False(t, ok)

	assert.Equal(t, models.AckRead, statusAck(waWeb.WebMessageInfo_READ))
	assert.Equal(t, models.AckQueued, statusAck(waWeb.WebMessageInfo_PENDING))
}

func TestRawContact(t *testing.T) {
	c := rawContact(types.NewJID("5511988887777", types.DefaultUserServer), types.ContactInfo{
		Found:     true,
		FirstName: "Ana",
		PushName:  "ana.s",
	}, true)
	assert.Equal(t, "5511988887777", c.Number)
	assert.Equal(t, "Ana", c.Name)
	assert.True(t, c.IsMyContact)
	assert.True(t, c.IsBlocked)

	lid := rawContact(types.NewJID("123456789", types.HiddenUserServer), types.ContactInfo{PushName: "x"}, false)
	assert.Empty(t, lid.Number)
	assert.False(t, lid.IsMyContact)
}
