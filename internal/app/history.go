package app

import (
	"slices"
	"sort"
	"sync"

	"github.com/nahidhasan98/whatsapp-bridge/internal/platform"
)

// History is a bounded in-memory index of chats and their most recent
// messages, fed by history sync and live traffic
type History struct {
	mu    sync.RWMutex
	size  int
	chats map[string]*chatLog
}

type chatLog struct {
	meta platform.RawChat
	msgs []platform.RawMessage // oldest first
}

// UnreadRef identifies an unread inbound message for a read receipt
type UnreadRef struct {
	ID     string
	Sender string
}

// NewHistory keeps at most size messages per chat
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{size: size, chats: make(map[string]*chatLog)}
}

func (h *History) chat(id string) *chatLog {
	c, ok := h.chats[id]
	if !ok {
		c = &chatLog{meta: platform.RawChat{ID: id}}
		h.chats[id] = c
	}
	return c
}

// SetChatInfo records chat metadata; empty names and negative counts are ignored
func (h *History) SetChatInfo(id, name string, isGroup bool, unread int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := h.chat(id)
	c.meta.IsGroup = isGroup
	if name != "" {
		c.meta.Name = name
	}
	if unread >= 0 {
		c.meta.UnreadCount = unread
	}
}

// Add records a message. Live inbound messages bump the unread count.
// It reports false when the message was already known.
func (h *History) Add(msg platform.RawMessage, live bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := h.chat(msg.ChatID)

	if i := slices.IndexFunc(c.msgs, func(m platform.RawMessage) bool { return m.ID == msg.ID }); i >= 0 {
		msg.Ack = max(msg.Ack, c.msgs[i].Ack)
		c.msgs[i] = msg
		return false
	}

	i := sort.Search(len(c.msgs), func(i int) bool { return c.msgs[i].Timestamp > msg.Timestamp })
	c.msgs = slices.Insert(c.msgs, i, msg)
	if len(c.msgs) > h.size {
		c.msgs = slices.Delete(c.msgs, 0, len(c.msgs)-h.size)
	}

	if msg.Timestamp > c.meta.Timestamp {
		c.meta.Timestamp = msg.Timestamp
	}
	if live && !msg.FromMe {
		c.meta.UnreadCount++
	}
	return true
}

// SetAck raises the ack of a known message
func (h *History) SetAck(chatID, msgID string, ack int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.chats[chatID]
	if !ok {
		return
	}
	for i := range c.msgs {
		if c.msgs[i].ID == msgID {
			c.msgs[i].Ack = max(c.msgs[i].Ack, ack)
			return
		}
	}
}

// Chat returns one chat with its last message
func (h *History) Chat(id string) (platform.RawChat, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.chats[id]
	if !ok {
		return platform.RawChat{}, false
	}
	return c.snapshot(), true
}

// Chats returns every known chat
func (h *History) Chats() []platform.RawChat {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]platform.RawChat, 0, len(h.chats))
	for _, c := range h.chats {
		out = append(out, c.snapshot())
	}
	return out
}

// Messages returns up to limit of the newest messages of a chat, oldest first
func (h *History) Messages(chatID string, limit int) []platform.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.chats[chatID]
	if !ok {
		return []platform.RawMessage{}
	}
	start := 0
	if limit > 0 && len(c.msgs) > limit {
		start = len(c.msgs) - limit
	}
	return slices.Clone(c.msgs[start:])
}

// Unread returns the newest inbound messages covered by the unread count
func (h *History) Unread(chatID string) []UnreadRef {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.chats[chatID]
	if !ok || c.meta.UnreadCount == 0 {
		return nil
	}

	var refs []UnreadRef
	for i := len(c.msgs) - 1; i >= 0 && len(refs) < c.meta.UnreadCount; i-- {
		m := c.msgs[i]
		if m.FromMe {
			continue
		}
		sender := m.Author
		if sender == "" {
			sender = chatID
		}
		refs = append(refs, UnreadRef{ID: m.ID, Sender: sender})
	}
	return refs
}

// ClearUnread resets the unread count of a chat
func (h *History) ClearUnread(chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.chats[chatID]; ok {
		c.meta.UnreadCount = 0
	}
}

// Reset forgets every chat, for when the device is unlinked or re-paired
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chats = make(map[string]*chatLog)
}

func (c *chatLog) snapshot() platform.RawChat {
	meta := c.meta
	if n := len(c.msgs); n > 0 {
		last := c.msgs[n-1]
		meta.LastMessage = &last
	}
	return meta
}
