package models

import "encoding/json"

// EventType is the "type" discriminator of every server to client frame
type EventType string

const (
	EventQR            EventType = "qr"
	EventAuthenticated EventType = "authenticated"
	EventAuthFailure   EventType = "auth_failure"
	EventReady         EventType = "ready"
	EventDisconnected  EventType = "disconnected"
	EventConnecting    EventType = "connecting"
	EventMessage       EventType = "message"
	EventMessageAck    EventType = "message_ack"
	EventChatRead      EventType = "chat_read"
	EventError         EventType = "error"

	// Command results
	EventMessageSent  EventType = "message_sent"
	EventContacts     EventType = "contacts"
	EventChats        EventType = "chats"
	EventChatMessages EventType = "chat_messages"
)

// Frame carries the discriminator shared by all outgoing frames
type Frame struct {
	Type EventType `json:"type"`
}

// EventType returns the discriminator; it is promoted to every frame type
func (f Frame) EventType() EventType {
	return f.Type
}

// Typed is implemented by every outgoing frame
type Typed interface {
	EventType() EventType
}

// QREvent carries a pairing code
type QREvent struct {
	Frame
	QR string `json:"qr"`
}

// NewQREvent creates a qr frame
func NewQREvent(code string) *QREvent {
	return &QREvent{Frame: Frame{Type: EventQR}, QR: code}
}

// NewAuthenticatedEvent creates an authenticated frame
func NewAuthenticatedEvent() *Frame {
	return &Frame{Type: EventAuthenticated}
}

// NewConnectingEvent creates a connecting frame
func NewConnectingEvent() *Frame {
	return &Frame{Type: EventConnecting}
}

// AuthFailureEvent reports a rejected pairing or session restore
type AuthFailureEvent struct {
	Frame
	Message string `json:"message"`
}

// NewAuthFailureEvent creates an auth_failure frame
func NewAuthFailureEvent(message string) *AuthFailureEvent {
	return &AuthFailureEvent{Frame: Frame{Type: EventAuthFailure}, Message: message}
}

// ReadyEvent is the snapshot broadcast once the session settles
type ReadyEvent struct {
	Frame
	Contacts []Contact `json:"contacts"`
	Chats    []Chat    `json:"chats"`
}

// NewReadyEvent creates a ready frame. Nil slices are sent as empty arrays.
func NewReadyEvent(contacts []Contact, chats []Chat) *ReadyEvent {
	if contacts == nil {
		contacts = []Contact{}
	}
	if chats == nil {
		chats = []Chat{}
	}
	return &ReadyEvent{Frame: Frame{Type: EventReady}, Contacts: contacts, Chats: chats}
}

// DisconnectedEvent reports that the session went away
type DisconnectedEvent struct {
	Frame
	Reason string `json:"reason"`
}

// NewDisconnectedEvent creates a disconnected frame
func NewDisconnectedEvent(reason string) *DisconnectedEvent {
	return &DisconnectedEvent{Frame: Frame{Type: EventDisconnected}, Reason: reason}
}

// MessageEvent carries a new message with optional chat and sender context
type MessageEvent struct {
	Frame
	Message *Message `json:"message"`
	Chat    *Chat    `json:"chat,omitempty"`
	Contact *Contact `json:"contact,omitempty"`
}

// NewMessageEvent creates a message frame
func NewMessageEvent(msg *Message, chat *Chat, contact *Contact) *MessageEvent {
	return &MessageEvent{Frame: Frame{Type: EventMessage}, Message: msg, Chat: chat, Contact: contact}
}

// MessageAckEvent carries the effective ack level of a message
type MessageAckEvent struct {
	Frame
	ID     string `json:"id"`
	ChatID string `json:"chatId,omitempty"`
	Ack    int    `json:"ack"`
}

// NewMessageAckEvent creates a message_ack frame
func NewMessageAckEvent(id, chatID string, ack int) *MessageAckEvent {
	return &MessageAckEvent{Frame: Frame{Type: EventMessageAck}, ID: id, ChatID: chatID, Ack: ack}
}

// ChatReadEvent tells clients a chat was marked read
type ChatReadEvent struct {
	Frame
	ChatID string `json:"chatId"`
}

// NewChatReadEvent creates a chat_read frame
func NewChatReadEvent(chatID string) *ChatReadEvent {
	return &ChatReadEvent{Frame: Frame{Type: EventChatRead}, ChatID: chatID}
}

// ErrorEvent reports a connection-scoped failure
type ErrorEvent struct {
	Frame
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewErrorEvent creates an error frame
func NewErrorEvent(message, code string) *ErrorEvent {
	return &ErrorEvent{Frame: Frame{Type: EventError}, Message: message, Code: code}
}

// MessageSentEvent acknowledges a send_message or send_media command.
// CaptionMessageID is null when no caption was sent or the caption send failed.
type MessageSentEvent struct {
	Frame
	MessageID        string          `json:"messageId"`
	CaptionMessageID *string         `json:"captionMessageId"`
	TempID           json.RawMessage `json:"tempId,omitempty"`
	ChatID           string          `json:"chatId"`
}

// NewMessageSentEvent creates a message_sent frame
func NewMessageSentEvent(messageID string, captionMessageID *string, tempID json.RawMessage, chatID string) *MessageSentEvent {
	return &MessageSentEvent{
		Frame:            Frame{Type: EventMessageSent},
		MessageID:        messageID,
		CaptionMessageID: captionMessageID,
		TempID:           tempID,
		ChatID:           chatID,
	}
}

// ContactsEvent answers get_contacts
type ContactsEvent struct {
	Frame
	Contacts []Contact `json:"contacts"`
}

// NewContactsEvent creates a contacts frame
func NewContactsEvent(contacts []Contact) *ContactsEvent {
	if contacts == nil {
		contacts = []Contact{}
	}
	return &ContactsEvent{Frame: Frame{Type: EventContacts}, Contacts: contacts}
}

// ChatsEvent answers get_chats
type ChatsEvent struct {
	Frame
	Chats []Chat `json:"chats"`
}

// NewChatsEvent creates a chats frame
func NewChatsEvent(chats []Chat) *ChatsEvent {
	if chats == nil {
		chats = []Chat{}
	}
	return &ChatsEvent{Frame: Frame{Type: EventChats}, Chats: chats}
}

// ChatMessagesEvent answers get_messages
type ChatMessagesEvent struct {
	Frame
	ChatID   string    `json:"chatId"`
	Messages []Message `json:"messages"`
}

// NewChatMessagesEvent creates a chat_messages frame
func NewChatMessagesEvent(chatID string, messages []Message) *ChatMessagesEvent {
	if messages == nil {
		messages = []Message{}
	}
	return &ChatMessagesEvent{Frame: Frame{Type: EventChatMessages}, ChatID: chatID, Messages: messages}
}
