package models

// Direction tells whether a message was received or sent by this account
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageType is the wire-level message kind
type MessageType string

const (
	MessageTypeText      MessageType = "text"
	MessageTypeImage     MessageType = "image"
	MessageTypeVideo     MessageType = "video"
	MessageTypeAudio     MessageType = "audio"
	MessageTypeVoiceNote MessageType = "voice_note"
	MessageTypeDocument  MessageType = "document"
)

// Ack levels of an outbound message. They only ever move forward.
const (
	AckQueued    = 0
	AckSent      = 1
	AckDelivered = 2
	AckRead      = 3
	AckPlayed    = 4
)

// Contact represents a canonical WhatsApp identity
type Contact struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	NormalizedNumber string `json:"normalizedNumber"`
	IsKnownContact   bool   `json:"isKnownContact"`
	IsGroup          bool   `json:"isGroup"`
	IsBlocked        bool   `json:"isBlocked"`
	AvatarURL        string `json:"avatarUrl,omitempty"`
	VerifiedName     string `json:"verifiedName,omitempty"`
	PushName         string `json:"pushName,omitempty"`
}

// LastMessage is the summary of the newest message in a chat
type LastMessage struct {
	ID        string      `json:"id"`
	Body      string      `json:"body"`
	Type      MessageType `json:"type"`
	Direction Direction   `json:"direction"`
	SentAt    int64       `json:"sentAt"`
	Ack       int         `json:"ack"`
}

// Chat represents a conversation thread
type Chat struct {
	ID             string       `json:"id"`
	DisplayName    string       `json:"displayName"`
	IsGroup        bool         `json:"isGroup"`
	UnreadCount    int          `json:"unreadCount"`
	LastActivityAt int64        `json:"lastActivityAt"`
	LastMessage    *LastMessage `json:"lastMessage,omitempty"`
}

// Message represents a single chat message.
// MediaURL is a self-contained data URI when the media could be downloaded.
type Message struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chatId"`
	Body      string      `json:"body"`
	Direction Direction   `json:"direction"`
	SentAt    int64       `json:"sentAt"`
	Type      MessageType `json:"type"`
	Ack       int         `json:"ack"`
	Author    string      `json:"author,omitempty"`
	MediaURL  string      `json:"mediaUrl,omitempty"`
	Mimetype  string      `json:"mimetype,omitempty"`
	Filename  string      `json:"filename,omitempty"`
	Filesize  int64       `json:"filesize,omitempty"`
	Duration  int         `json:"duration,omitempty"`
}

// HasMedia reports whether media was materialized into the message
func (m *Message) HasMedia() bool {
	return m.MediaURL != ""
}
