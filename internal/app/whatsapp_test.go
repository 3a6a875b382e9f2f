package app

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/nahidhasan98/whatsapp-bridge/internal/config"
	"github.com/nahidhasan98/whatsapp-bridge/internal/logger"
	"github.com/nahidhasan98/whatsapp-bridge/internal/platform"
)

type eventLog struct {
	mu     sync.Mutex
	events []platform.Event
}

func (l *eventLog) handle(ev platform.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []platform.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]platform.Event(nil), l.events...)
}

func newTestFactory(t *testing.T) *Factory {
	t.Helper()

	db := config.DatabaseConfig{
		Driver: "sqlite3",
		DSN:    "file:" + filepath.Join(t.TempDir(), "session.db") + "?_foreign_keys=on",
	}
	wa := config.WhatsAppConfig{LogLevel: "error", DeviceName: "Bridge", HistorySize: 20}

	f, err := NewFactory(t.Context(), db, wa, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func newFactoryClient(t *testing.T, f *Factory) (*Client, *eventLog) {
	t.Helper()

	log := &eventLog{}
	pc, err := f.New(log.handle)
	require.NoError(t, err)

	c := pc.(*Client)
	t.Cleanup(func() { _ = c.Destroy(t.Context()) })
	return c, log
}

func newTestClient(t *testing.T) (*Client, *eventLog) {
	t.Helper()
	return newFactoryClient(t, newTestFactory(t))
}

func inbound(chat types.JID, id string) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat, Sender: chat},
			ID:            id,
			PushName:      "Ana",
			Timestamp:     time.Unix(1700000000, 0),
		},
		Message: &waE2E.Message{Conversation: proto.String("hi")},
	}
}

func TestClient_LifecycleEvents(t *testing.T) {
	c, log := newTestClient(t)

	c.onEvent(&events.Connected{})
	c.onEvent(&events.LoggedOut{OnConnect: true})
	c.onEvent(&events.StreamReplaced{})
	c.onEvent(&events.ClientOutdated{})
	c.onEvent(&events.Disconnected{})

	got := log.all()
	require.Len(t, got, 5)
	assert.Equal(t, platform.Authenticated{}, got[0])
	assert.Equal(t, platform.Ready{}, got[1])
	assert.IsType(t, platform.AuthFailure{}, got[2])
	assert.Equal(t, platform.Disconnected{Reason: "conflict"}, got[3])
	assert.IsType(t, platform.Fatal{}, got[4])
}

func TestClient_MessagesFeedHistoryAndEvents(t *testing.T) {
	c, log := newTestClient(t)
	chat := types.NewJID("5511988887777", types.DefaultUserServer)

	incoming := inbound(chat, "IN1")
	c.onEvent(incoming)
	c.onEvent(incoming) // redelivery

	got := log.all()
	require.Len(t, got, 1)
	received, ok := got[0].(platform.MessageReceived)
	require.True(t, ok)
	assert.Equal(t, "hi", received.Message.Body)
	require.NotNil(t, received.Chat)
	assert.Equal(t, 1, received.Chat.UnreadCount)
	require.NotNil(t, received.Contact)
	assert.Equal(t, "Ana", received.Contact.PushName)
	assert.Equal(t, "5511988887777", received.Contact.Number)

	msgs, err := c.Messages(t.Context(), chat.String(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "IN1", msgs[0].ID)

	c.onEvent(&events.Receipt{
		MessageSource: types.MessageSource{Chat: chat, Sender: chat},
		MessageIDs:    []types.MessageID{"IN1"},
		Type:          types.ReceiptTypeRead,
	})
	assert.Equal(t, platform.AckChanged{MessageID: "IN1", ChatID: chat.String(), Ack: 3}, log.all()[1])

	c.onEvent(&events.Receipt{
		MessageSource: types.MessageSource{Chat: chat, Sender: chat, IsFromMe: true},
		MessageIDs:    []types.MessageID{"IN1"},
		Type:          types.ReceiptTypeReadSelf,
	})
	chatInfo, _ := c.history.Chat(chat.String())
	assert.Equal(t, 0, chatInfo.UnreadCount)
}

func TestFactory_HistoryOutlivesHandles(t *testing.T) {
	f := newTestFactory(t)
	chat := types.NewJID("5511988887777", types.DefaultUserServer)

	first, _ := newFactoryClient(t, f)
	first.onEvent(inbound(chat, "IN1"))
	require.NoError(t, first.Destroy(t.Context()))

	second, _ := newFactoryClient(t, f)
	chats, err := second.Chats(t.Context())
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, chat.String(), chats[0].ID)

	msgs, err := second.Messages(t.Context(), chat.String(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// A new pairing may be a different account
	second.onEvent(&events.PairSuccess{ID: types.NewADJID("5511900000000", 0, 1)})
	chats, err = second.Chats(t.Context())
	require.NoError(t, err)
	assert.Empty(t, chats)

	second.onEvent(inbound(chat, "IN2"))
	second.onEvent(&events.LoggedOut{})
	msgs, err = second.Messages(t.Context(), chat.String(), 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestClient_MarkReadOfflineKeepsUnread(t *testing.T) {
	c, _ := newTestClient(t)
	chat := types.NewJID("5511988887777", types.DefaultUserServer)
	c.onEvent(inbound(chat, "IN1"))

	err := c.MarkRead(t.Context(), chat.String())
	require.ErrorIs(t, err, whatsmeow.ErrNotConnected)

	info, ok := c.history.Chat(chat.String())
	require.True(t, ok)
	assert.Equal(t, 1, info.UnreadCount)
}

func TestClient_DestroySilencesEvents(t *testing.T) {
	c, log := newTestClient(t)
	require.NoError(t, c.Destroy(t.Context()))

	c.onEvent(&events.Connected{})
	assert.Empty(t, log.all())
}

func TestClient_OfflineOperations(t *testing.T) {
	c, _ := newTestClient(t)

	// Not paired yet, so there is nothing to unlink
	assert.NoError(t, c.Logout(t.Context()))

	// Nothing unread means no receipts to send
	assert.NoError(t, c.MarkRead(t.Context(), "5511988887777@s.whatsapp.net"))

	_, err := c.DownloadMedia(t.Context(), platform.RawMessage{ID: "x"})
	assert.Error(t, err)

	// An unpaired device has no address book
	contacts, err := c.Contacts(t.Context())
	require.NoError(t, err)
	assert.Empty(t, contacts)
}
