// Package media holds the mime policy and data URI encoding for media
// crossing the gateway.
package media

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// VoiceNoteMime is the only audio format WhatsApp plays as a voice note
const VoiceNoteMime = "audio/ogg; codecs=opus"

// substitutions maps containers WhatsApp rejects to accepted equivalents
var substitutions = map[string]string{
	"audio/x-m4a": "audio/mp4",
	"audio/x-wav": "audio/wav",
}

// Normalize maps a client mime type to one WhatsApp accepts. Browser
// recordings (audio/webm) become opus voice notes.
func Normalize(mime string) (normalized string, voiceNote bool) {
	mime = strings.TrimSpace(mime)
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))

	if base == "audio/webm" {
		return VoiceNoteMime, true
	}
	if sub, ok := substitutions[base]; ok {
		return sub, false
	}
	if base == "audio/ogg" && strings.Contains(strings.ToLower(mime), "opus") {
		return VoiceNoteMime, true
	}
	return mime, false
}

// Base returns the mime type without parameters
func Base(mime string) string {
	return strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
}

// Kind is the top-level type of a mime type: "image", "video", "audio" or "document"
func Kind(mime string) string {
	base := Base(mime)
	switch {
	case strings.HasPrefix(base, "image/"):
		return "image"
	case strings.HasPrefix(base, "video/"):
		return "video"
	case strings.HasPrefix(base, "audio/"):
		return "audio"
	default:
		return "document"
	}
}

// Decode decodes base64 media, with or without a data URI prefix
func Decode(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		comma := strings.IndexByte(data, ',')
		if comma < 0 {
			return nil, fmt.Errorf("malformed data URI")
		}
		data = data[comma+1:]
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		// Some encoders drop the padding
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("invalid base64 media: %w", err)
	}
	return decoded, nil
}

// DataURI encodes media as a self-contained data URI
func DataURI(mime string, data []byte) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
