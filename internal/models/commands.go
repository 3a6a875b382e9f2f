package models

import "encoding/json"

// CommandType is the "type" discriminator of every client to server frame
type CommandType string

const (
	CommandGetStatus   CommandType = "get_status"
	CommandConnect     CommandType = "connect"
	CommandDisconnect  CommandType = "disconnect"
	CommandSendMessage CommandType = "send_message"
	CommandSendMedia   CommandType = "send_media"
	CommandGetContacts CommandType = "get_contacts"
	CommandGetChats    CommandType = "get_chats"
	CommandGetMessages CommandType = "get_messages"
)

// RequiresReady reports whether the command can only run on a ready session
func (c CommandType) RequiresReady() bool {
	switch c {
	case CommandSendMessage, CommandSendMedia, CommandGetContacts, CommandGetChats, CommandGetMessages:
		return true
	default:
		return false
	}
}

// Command is a decoded client frame. Fields not used by a command type are empty.
type Command struct {
	Type    CommandType     `json:"type"`
	To      string          `json:"to,omitempty"`
	Message string          `json:"message,omitempty"`
	Media   *MediaPayload   `json:"media,omitempty"`
	TempID  json.RawMessage `json:"tempId,omitempty"`
	ChatID  string          `json:"chatId,omitempty"`
}

// MediaPayload is the media part of a send_media command.
// Data is base64, optionally wrapped in a data URI.
type MediaPayload struct {
	Data     string `json:"data"`
	Mimetype string `json:"mimetype"`
	Filename string `json:"filename,omitempty"`
	Filesize int64  `json:"filesize,omitempty"`
	Caption  string `json:"caption,omitempty"`
}
