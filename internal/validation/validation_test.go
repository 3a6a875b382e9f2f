package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nahidhasan98/whatsapp-bridge/internal/errors"
	"github.com/nahidhasan98/whatsapp-bridge/internal/media"
	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
)

func TestNormalizeJID(t *testing.T) {
	v := New(1024)

	tests := []struct {
		in   string
		want string
	}{
		{"8801711000000@s.whatsapp.net", "8801711000000@s.whatsapp.net"},
		{"8801711000000@c.us", "8801711000000@s.whatsapp.net"},
		{"+880 1711-000000", "8801711000000@s.whatsapp.net"},
		{" (555) 123-4567 ", "5551234567@s.whatsapp.net"},
		{"120363025246125486@g.us", "120363025246125486@g.us"},
		{"8801711000000-1614245896@g.us", "8801711000000-1614245896@g.us"},
		{"203866912473214@lid", "203866912473214@lid"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := v.NormalizeJID(tt.in)
			require.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeJID_Rejects(t *testing.T) {
	v := New(1024)

	for _, in := range []string{"", "12345", "alice@example.com", "1234567@broadcast", "call me maybe"} {
		_, err := v.NormalizeJID(in)
		require.NotNil(t, err, in)
	}

	_, err := v.NormalizeJID("not-a-jid")
	assert.Equal(t, errors.ErrCodeInvalidJID, err.Code)
}

func TestValidateChatID(t *testing.T) {
	v := New(1024)

	tests := []struct {
		in   string
		want string
	}{
		{"5511999990000@c.us", "5511999990000@s.whatsapp.net"},
		{"120363025246125486@g.us", "120363025246125486@g.us"},
		{"120363144038483540@newsletter", "120363144038483540@newsletter"},
		{" status@broadcast ", "status@broadcast"},
		{"1614245896@broadcast", "1614245896@broadcast"},
		{"867051314767696@bot", "867051314767696@bot"},
	}
	for _, tt := range tests {
		got, err := v.ValidateChatID(tt.in)
		require.Nil(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, in := range []string{"", "alice@example.com", "status@broadcast.evil"} {
		_, err := v.ValidateChatID(in)
		assert.NotNil(t, err, in)
	}
}

func TestValidateText(t *testing.T) {
	v := New(1024)

	got, err := v.ValidateText("  hi\x00\n\n\n\nthere ")
	require.Nil(t, err)
	assert.Equal(t, "hi\n\nthere", got)

	_, err = v.ValidateText(" \n ")
	assert.NotNil(t, err)

	_, err = v.ValidateText(strings.Repeat("é", MaxMessageLength))
	assert.Nil(t, err, "limit counts characters, not bytes")

	_, err = v.ValidateText(strings.Repeat("a", MaxMessageLength+1))
	assert.NotNil(t, err)
}

func TestValidateMedia(t *testing.T) {
	v := New(8)

	out, err := v.ValidateMedia(&models.MediaPayload{Data: "data:audio/webm;base64,aGVsbG8=", Mimetype: "audio/webm", Filename: " rec.webm "})
	require.Nil(t, err)
	assert.Equal(t, media.VoiceNoteMime, out.MimeType)
	assert.True(t, out.VoiceNote)
	assert.Equal(t, []byte("hello"), out.Data)
	assert.Equal(t, "rec.webm", out.Filename)

	_, err = v.ValidateMedia(nil)
	assert.Equal(t, errors.ErrCodeInvalidMedia, err.Code)

	_, err = v.ValidateMedia(&models.MediaPayload{Data: "aGVsbG8=", Mimetype: ""})
	assert.NotNil(t, err)

	_, err = v.ValidateMedia(&models.MediaPayload{Data: "!!!", Mimetype: "image/png"})
	assert.NotNil(t, err)

	_, err = v.ValidateMedia(&models.MediaPayload{Data: "aGVsbG8gd29ybGQ=", Mimetype: "image/png"})
	require.NotNil(t, err)
	assert.Equal(t, "Media too large", err.Message)
}
