package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nahidhasan98/whatsapp-bridge/internal/errors"
	"github.com/nahidhasan98/whatsapp-bridge/internal/media"
	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
	"github.com/nahidhasan98/whatsapp-bridge/internal/platform"
)

// MaxMessageLength is the longest text body accepted, in characters
const MaxMessageLength = 4096

// WhatsApp JID patterns
var (
	// Individual JID pattern: number@s.whatsapp.net
	individualJIDPattern = regexp.MustCompile(`^\d{7,15}@s\.whatsapp\.net$`)

	// Group JID pattern: groupid@g.us, or the legacy creator-timestamp form
	groupJIDPattern = regexp.MustCompile(`^\d+(-\d+)?@g\.us$`)

	// Hidden-number JID pattern: lid@lid
	lidJIDPattern = regexp.MustCompile(`^\d+@lid$`)

	// Other chats history sync can list, such as channels, status, broadcast lists and bots
	readOnlyChatPattern = regexp.MustCompile(`^[\w.\-]+@(newsletter|broadcast|bot)$`)

	// Characters a typed phone number may contain
	phoneInputPattern = regexp.MustCompile(`^\+?[\d\s\-().]+$`)

	nonDigitPattern = regexp.MustCompile(`\D`)
	newlinePattern  = regexp.MustCompile(`\n{3,}`)
)

// Validator provides validation methods
type Validator struct {
	maxMediaBytes int64
}

// New creates a new validator instance
func New(maxMediaBytes int64) *Validator {
	return &Validator{maxMediaBytes: maxMediaBytes}
}

// IsValidJID checks if a JID is in a WhatsApp format we can send to
func (v *Validator) IsValidJID(jid string) bool {
	jid = strings.TrimSpace(jid)
	return individualJIDPattern.MatchString(jid) ||
		groupJIDPattern.MatchString(jid) ||
		lidJIDPattern.MatchString(jid)
}

// NormalizeJID normalizes a recipient to proper WhatsApp format. Legacy
// @c.us ids and bare phone numbers become @s.whatsapp.net ids.
func (v *Validator) NormalizeJID(jid string) (string, *errors.AppError) {
	jid = strings.TrimSpace(jid)
	if jid == "" {
		return "", errors.ValidationError("'to' field is required")
	}

	if user, ok := strings.CutSuffix(jid, "@c.us"); ok {
		jid = user + "@s.whatsapp.net"
	}

	// If already in proper format, return as is
	if v.IsValidJID(jid) {
		return jid, nil
	}

	// Try to normalize phone number to individual JID
	if phoneNumber := v.extractPhoneNumber(jid); phoneNumber != "" {
		normalizedJID := phoneNumber + "@s.whatsapp.net"
		if v.IsValidJID(normalizedJID) {
			return normalizedJID, nil
		}
	}

	return "", errors.InvalidJID(jid)
}

// extractPhoneNumber extracts a phone number from a typed number such as "+880 1711-000000"
func (v *Validator) extractPhoneNumber(input string) string {
	if !phoneInputPattern.MatchString(input) {
		return ""
	}

	phone := nonDigitPattern.ReplaceAllString(input, "")

	// Check if it's a valid phone number length (7-15 digits)
	if len(phone) >= 7 && len(phone) <= 15 {
		return phone
	}

	return ""
}

// ValidateChatID checks the chatId of a get_messages command
func (v *Validator) ValidateChatID(chatID string) (string, *errors.AppError) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return "", errors.ValidationError("'chatId' field is required")
	}
	if readOnlyChatPattern.MatchString(chatID) {
		return chatID, nil
	}
	return v.NormalizeJID(chatID)
}

// ValidateText sanitizes and checks a text body
func (v *Validator) ValidateText(message string) (string, *errors.AppError) {
	message = v.SanitizeMessage(message)
	if message == "" {
		return "", errors.ValidationError("'message' field is required")
	}

	if utf8.RuneCountInString(message) > MaxMessageLength {
		return "", errors.ValidationError("Message too long (maximum 4096 characters)")
	}

	return message, nil
}

// ValidateMedia decodes a media payload and applies the mime policy
func (v *Validator) ValidateMedia(payload *models.MediaPayload) (platform.OutgoingMedia, *errors.AppError) {
	if payload == nil {
		return platform.OutgoingMedia{}, errors.InvalidMedia("'media' field is required")
	}
	if strings.TrimSpace(payload.Data) == "" {
		return platform.OutgoingMedia{}, errors.InvalidMedia("Media data is empty")
	}
	if strings.TrimSpace(payload.Mimetype) == "" {
		return platform.OutgoingMedia{}, errors.InvalidMedia("Media mimetype is required")
	}

	data, err := media.Decode(payload.Data)
	if err != nil {
		return platform.OutgoingMedia{}, errors.InvalidMedia(err.Error())
	}
	if len(data) == 0 {
		return platform.OutgoingMedia{}, errors.InvalidMedia("Media data is empty")
	}
	if v.maxMediaBytes > 0 && int64(len(data)) > v.maxMediaBytes {
		return platform.OutgoingMedia{}, errors.InvalidMedia("Media too large")
	}

	mime, voiceNote := media.Normalize(payload.Mimetype)
	return platform.OutgoingMedia{
		MimeType:  mime,
		Data:      data,
		Filename:  strings.TrimSpace(payload.Filename),
		VoiceNote: voiceNote,
	}, nil
}

// SanitizeMessage sanitizes a message by removing potential harmful content
func (v *Validator) SanitizeMessage(message string) string {
	// Trim whitespace
	message = strings.TrimSpace(message)

	// Remove null bytes
	message = strings.ReplaceAll(message, "\x00", "")

	// Limit consecutive newlines
	message = newlinePattern.ReplaceAllString(message, "\n\n")

	return message
}
