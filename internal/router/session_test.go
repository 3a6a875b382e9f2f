package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nahidhasan98/whatsapp-bridge/internal/broadcast"
	"github.com/nahidhasan98/whatsapp-bridge/internal/logger"
	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
	"github.com/nahidhasan98/whatsapp-bridge/internal/platform"
	"github.com/nahidhasan98/whatsapp-bridge/internal/platform/platformtest"
	"github.com/nahidhasan98/whatsapp-bridge/internal/session"
	"github.com/nahidhasan98/whatsapp-bridge/internal/validation"
)

type captureConn struct {
	id     string
	frames chan []byte
}

func (c *captureConn) ID() string { return c.id }

func (c *captureConn) Send(ctx context.Context, data []byte) error {
	c.frames <- data
	return nil
}

func (c *captureConn) next(t *testing.T) string {
	t.Helper()
	select {
	case data := <-c.frames:
		return string(data)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return ""
	}
}

// readyStack wires a real manager, broadcaster and router over a fake engine
func readyStack(t *testing.T) (*Router, *platformtest.Client, *captureConn) {
	t.Helper()

	hub := broadcast.New(logger.Nop(), time.Second)
	factory := platformtest.NewFactory()
	mgr := session.NewManager(factory.New, hub, logger.Nop(), session.Options{
		SettleDelay:  time.Millisecond,
		MessageLimit: 50,
		MediaWorkers: 2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = mgr.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn := &captureConn{id: "A", frames: make(chan []byte, 64)}
	hub.Register(conn)

	r := New(mgr, hub, validation.New(1<<20), logger.Nop())
	r.Handle(t.Context(), "A", []byte(`{"type":"connect"}`))
	assert.JSONEq(t, `{"type":"connecting"}`, conn.next(t))

	client := factory.Last()
	client.Emit(platform.Ready{})
	assert.JSONEq(t, `{"type":"ready","contacts":[],"chats":[]}`, conn.next(t))

	return r, client, conn
}

func TestRouter_GetMessagesDropsUnformattableMessage(t *testing.T) {
	r, client, conn := readyStack(t)
	client.SetMessages("5511999990000@s.whatsapp.net",
		platform.RawMessage{ID: "m1", ChatID: "5511999990000@s.whatsapp.net", Body: "one", Type: platform.TypeChat, Timestamp: 1},
		platform.RawMessage{ID: "m2", ChatID: "5511999990000@s.whatsapp.net", Body: "two", Type: platform.TypeChat, Timestamp: 0},
		platform.RawMessage{ID: "m3", ChatID: "5511999990000@s.whatsapp.net", Body: "three", Type: platform.TypeChat, Timestamp: 3},
	)

	r.Handle(t.Context(), "A", []byte(`{"type":"get_messages","chatId":"5511999990000@c.us"}`))

	reply := conn.next(t)
	assert.Contains(t, reply, `"type":"chat_messages"`)
	assert.Contains(t, reply, `"id":"m1"`)
	assert.NotContains(t, reply, `"id":"m2"`)
	assert.Contains(t, reply, `"id":"m3"`)

	assert.JSONEq(t, `{"type":"chat_read","chatId":"5511999990000@s.whatsapp.net"}`, conn.next(t))
	assert.Equal(t, []string{"5511999990000@s.whatsapp.net"}, client.ReadChats())
}

func TestRouter_SendMediaThroughSession(t *testing.T) {
	r, client, conn := readyStack(t)

	r.Handle(t.Context(), "A", []byte(`{"type":"send_media","to":"X","media":{"data":"aGk=","mimetype":"audio/webm"}}`))
	assert.Contains(t, conn.next(t), `"code":"INVALID_JID"`)

	r.Handle(t.Context(), "A", []byte(`{"type":"send_media","to":"5511999990000","tempId":"tmp","media":{"data":"aGk=","mimetype":"audio/webm"}}`))

	var sent models.MessageSentEvent
	require.NoError(t, json.Unmarshal([]byte(conn.next(t)), &sent))
	assert.Nil(t, sent.CaptionMessageID)
	assert.Len(t, client.Sent(), 1)

	r.Handle(t.Context(), "A", []byte(`{"type":"send_media","to":"5511999990000","media":{"data":"aGk=","mimetype":"image/png","caption":"Hello"}}`))
	require.NoError(t, json.Unmarshal([]byte(conn.next(t)), &sent))
	require.NotNil(t, sent.CaptionMessageID)

	sends := client.Sent()
	require.Len(t, sends, 3)
	assert.NotNil(t, sends[1].Media)
	assert.Equal(t, "Hello", sends[2].Body)
	assert.Equal(t, sends[2].ID, *sent.CaptionMessageID)
}
