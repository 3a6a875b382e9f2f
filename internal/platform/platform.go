// Package platform defines the boundary between the gateway and the
// WhatsApp session engine: the operations the gateway needs, the raw
// shapes the engine returns, and the lifecycle and traffic events it emits.
package platform

import "context"

// Native message types reported by the engine
const (
	TypeChat     = "chat"
	TypeImage    = "image"
	TypeVideo    = "video"
	TypeAudio    = "audio"
	TypePTT      = "ptt"
	TypeDocument = "document"
	TypeSticker  = "sticker"
)

// Client is one live session handle. A handle is used for a single
// Start and discarded after Destroy.
type Client interface {
	// Start begins connecting. Progress is reported through events.
	Start(ctx context.Context) error

	Contacts(ctx context.Context) ([]RawContact, error)
	Chats(ctx context.Context) ([]RawChat, error)
	Messages(ctx context.Context, chatID string, limit int) ([]RawMessage, error)
	DownloadMedia(ctx context.Context, msg RawMessage) (*Media, error)
	MarkRead(ctx context.Context, chatID string) error

	// SendText and SendMedia return the id of the sent message
	SendText(ctx context.Context, to, body string) (string, error)
	SendMedia(ctx context.Context, to string, media OutgoingMedia) (string, error)

	// Logout unlinks the device. Destroy releases the handle.
	Logout(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// EventHandler receives events from a handle. It must not block for long.
type EventHandler func(Event)

// Factory creates a fresh handle that reports to handler
type Factory func(handler EventHandler) (Client, error)

// RawContact is a contact as the engine knows it
type RawContact struct {
	ID           string
	Number       string
	Name         string // name saved in the address book
	PushName     string // name the contact chose for itself
	VerifiedName string // verified business name
	IsMyContact  bool
	IsGroup      bool
	IsBlocked    bool
	AvatarURL    string
}

// RawChat is a chat as the engine knows it
type RawChat struct {
	ID          string
	Name        string
	IsGroup     bool
	UnreadCount int
	Timestamp   int64
	LastMessage *RawMessage
}

// RawMessage is a message as the engine knows it
type RawMessage struct {
	ID        string
	ChatID    string
	Body      string
	FromMe    bool
	Timestamp int64
	Type      string
	Ack       int
	HasMedia  bool
	Author    string
	Filename  string
	Duration  int
	MimeType  string
	FileSize  int64

	// Native is the engine's own message, needed to download media
	Native any `json:"-"`
}

// Media is downloaded message media
type Media struct {
	MimeType string
	Data     []byte
	Filename string
}

// OutgoingMedia is media to be sent
type OutgoingMedia struct {
	MimeType  string
	Data      []byte
	Filename  string
	VoiceNote bool
}
