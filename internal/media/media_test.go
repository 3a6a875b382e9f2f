package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in        string
		want      string
		voiceNote bool
	}{
		{"audio/webm", VoiceNoteMime, true},
		{"audio/webm;codecs=opus", VoiceNoteMime, true},
		{"audio/ogg; codecs=opus", VoiceNoteMime, true},
		{"audio/x-m4a", "audio/mp4", false},
		{"audio/x-wav", "audio/wav", false},
		{"audio/mpeg", "audio/mpeg", false},
		{"image/png", "image/png", false},
		{"application/pdf", "application/pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, voice := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.voiceNote, voice)
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "image", Kind("image/jpeg"))
	assert.Equal(t, "video", Kind("Video/MP4"))
	assert.Equal(t, "audio", Kind(VoiceNoteMime))
	assert.Equal(t, "document", Kind("application/pdf"))
	assert.Equal(t, "document", Kind(""))
}

func TestDecode(t *testing.T) {
	plain, err := Decode("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), plain)

	uri, err := Decode("data:audio/webm;codecs=opus;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), uri)

	unpadded, err := Decode("aGVsbG8")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), unpadded)

	_, err = Decode("data:image/png;base64")
	assert.Error(t, err)

	_, err = Decode("not base64 at all!")
	assert.Error(t, err)
}

func TestDataURIRoundTrip(t *testing.T) {
	uri := DataURI("image/png", []byte{0x89, 'P', 'N', 'G'})
	assert.Equal(t, "data:image/png;base64,iVBORw==", uri)

	data, err := Decode(uri)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

	assert.Contains(t, DataURI("", nil), "application/octet-stream")
}
