// Package app implements the session engine on top of whatsmeow.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/nahidhasan98/whatsapp-bridge/internal/config"
	"github.com/nahidhasan98/whatsapp-bridge/internal/logger"
	"github.com/nahidhasan98/whatsapp-bridge/internal/media"
	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
	"github.com/nahidhasan98/whatsapp-bridge/internal/platform"
)

var errQRExhausted = errors.New("pairing codes expired without being scanned")

// Factory creates whatsmeow session handles sharing one device store.
// The history index belongs to the stored device, so it outlives handles:
// whatsmeow only delivers history sync right after pairing.
type Factory struct {
	container *sqlstore.Container
	history   *History
	cfg       config.WhatsAppConfig
	log       *logger.Logger
	qrOut     io.Writer
}

// NewFactory opens the device store
func NewFactory(ctx context.Context, db config.DatabaseConfig, cfg config.WhatsAppConfig, log *logger.Logger) (*Factory, error) {
	container, err := sqlstore.New(ctx, db.Driver, db.DSN, waLog.Zerolog(engineLog(log, "Database", cfg.LogLevel)))
	if err != nil {
		return nil, fmt.Errorf("failed to create database container: %w", err)
	}

	// Customize the OS name shown in WhatsApp's linked devices
	if cfg.DeviceName == "" {
		cfg.DeviceName = "macOS"
	}
	store.SetOSInfo(cfg.DeviceName, [3]uint32{0, 1, 0})

	return &Factory{
		container: container,
		history:   NewHistory(cfg.HistorySize),
		cfg:       cfg,
		log:       log,
		qrOut:     os.Stdout,
	}, nil
}

// Close closes the device store
func (f *Factory) Close() error {
	return f.container.Close()
}

// New creates a handle for the stored device, or a fresh one to pair
func (f *Factory) New(handler platform.EventHandler) (platform.Client, error) {
	deviceStore, err := f.container.GetFirstDevice(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get device store: %w", err)
	}
	deviceStore.Platform = f.cfg.DeviceName

	c := &Client{
		wa:      whatsmeow.NewClient(deviceStore, waLog.Zerolog(engineLog(f.log, "Client", f.cfg.LogLevel))),
		history: f.history,
		emit:    handler,
		log:     f.log,
	}
	if f.cfg.PrintQR {
		c.qrOut = f.qrOut
	}
	c.wa.AddEventHandler(c.onEvent)

	return c, nil
}

// engineLog scopes whatsmeow's own logging, at most as verbose as level
func engineLog(log *logger.Logger, module, level string) zerolog.Logger {
	zl := log.Zerolog(module)
	if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
		zl = zl.Level(lvl)
	}
	return zl
}

// Client is one whatsmeow session handle
type Client struct {
	wa      *whatsmeow.Client
	history *History
	emit    platform.EventHandler
	log     *logger.Logger
	qrOut   io.Writer

	closed   atomic.Bool
	cancelQR context.CancelFunc
}

// Start connects, pairing through QR codes when no device is stored
func (c *Client) Start(ctx context.Context) error {
	if c.wa.Store.ID == nil {
		c.log.Info("No existing session found, starting QR authentication...")

		// The pairing flow outlives the call that started it
		qrCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		qrChan, err := c.wa.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to get QR channel: %w", err)
		}
		c.cancelQR = cancel
		go c.watchQR(qrChan)
	} else {
		c.log.Infof("Existing session found for %s. Connecting...", c.wa.Store.ID.String())
	}

	if err := c.wa.Connect(); err != nil {
		return fmt.Errorf("failed to connect client: %w", err)
	}
	return nil
}

func (c *Client) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			c.printQR(evt.Code)
			c.dispatch(platform.QRIssued{Code: evt.Code})
		case "success":
			c.log.Info("QR code scanned successfully! Completing authentication...")
		case "timeout":
			c.log.Warn("QR code timed out without being scanned")
			c.dispatch(platform.Fatal{Err: errQRExhausted})
		case "error":
			msg := "pairing failed"
			if evt.Error != nil {
				msg = evt.Error.Error()
			}
			c.dispatch(platform.AuthFailure{Message: msg})
		default:
			c.dispatch(platform.Fatal{Err: fmt.Errorf("pairing failed: %s", evt.Event)})
		}
	}
}

func (c *Client) printQR(code string) {
	if c.qrOut == nil {
		return
	}

	line := strings.Repeat("=", 64)
	fmt.Fprintln(c.qrOut, "\n"+line)
	fmt.Fprintln(c.qrOut, "SCAN QR CODE WITH WHATSAPP MOBILE APP")
	fmt.Fprintln(c.qrOut, line)

	qrterminal.GenerateWithConfig(code, qrterminal.Config{
		Level:      qrterminal.M,
		Writer:     c.qrOut,
		HalfBlocks: true,
		QuietZone:  1,
	})

	fmt.Fprintln(c.qrOut, line)
	fmt.Fprintln(c.qrOut, "Open WhatsApp > Settings > Linked Devices > Link a Device")
	fmt.Fprintln(c.qrOut, line+"\n")
}

// dispatch forwards an event unless the handle was destroyed
func (c *Client) dispatch(ev platform.Event) {
	if c.closed.Load() {
		return
	}
	c.emit(ev)
}

func (c *Client) onEvent(evt any) {
	if c.closed.Load() {
		return
	}

	switch v := evt.(type) {
	case *events.PairSuccess:
		c.log.Infof("Paired as %s", v.ID.String())
		c.history.Reset()
		c.dispatch(platform.Authenticated{})

	case *events.Connected:
		c.log.Info("WhatsApp client connected")
		c.dispatch(platform.Authenticated{})
		c.dispatch(platform.Ready{})

	case *events.Disconnected:
		// whatsmeow reconnects on its own
		c.log.Warn("WhatsApp client disconnected")

	case *events.LoggedOut:
		if v.OnConnect {
			c.dispatch(platform.AuthFailure{Message: fmt.Sprintf("stored session rejected: %v", v.Reason)})
			return
		}
		c.history.Reset()
		c.dispatch(platform.Disconnected{Reason: "logged_out"})

	case *events.StreamReplaced:
		c.dispatch(platform.Disconnected{Reason: "conflict"})

	case *events.StreamError:
		c.dispatch(platform.Fatal{Err: fmt.Errorf("stream error: %s", v.Code)})

	case *events.ConnectFailure:
		c.dispatch(platform.Fatal{Err: fmt.Errorf("connect failure: %v %s", v.Reason, v.Message)})

	case *events.ClientOutdated:
		c.dispatch(platform.Fatal{Err: errors.New("client version is outdated")})

	case *events.TemporaryBan:
		c.dispatch(platform.Fatal{Err: fmt.Errorf("temporary ban: %v for %s", v.Code, v.Expire)})

	case *events.Message:
		c.onMessage(v)

	case *events.Receipt:
		c.onReceipt(v)

	case *events.HistorySync:
		c.onHistorySync(v)
	}
}

func (c *Client) onMessage(evt *events.Message) {
	raw, ok := rawMessage(evt.Info, evt.Message)
	if !ok {
		return
	}
	c.history.SetChatInfo(raw.ChatID, "", evt.Info.IsGroup, -1)
	if !c.history.Add(raw, true) {
		return
	}

	chat, _ := c.history.Chat(raw.ChatID)
	var contact *platform.RawContact
	if !evt.Info.IsFromMe {
		sender := evt.Info.Sender.ToNonAD()
		var info types.ContactInfo
		if c.paired() {
			var err error
			if info, err = c.wa.Store.Contacts.GetContact(context.Background(), sender); err != nil {
				c.log.Debugf("Contact lookup for %s failed: %v", sender, err)
			}
		}
		if info.PushName == "" {
			info.PushName = evt.Info.PushName
		}
		rc := rawContact(sender, info, false)
		contact = &rc
	}

	c.dispatch(platform.MessageReceived{Message: raw, Chat: &chat, Contact: contact})
}

func (c *Client) onReceipt(evt *events.Receipt) {
	chatID := evt.Chat.ToNonAD().String()
	if evt.Type == types.ReceiptTypeReadSelf {
		c.history.ClearUnread(chatID)
		return
	}

	ack, ok := receiptAck(evt.Type)
	if !ok {
		return
	}
	for _, id := range evt.MessageIDs {
		c.history.SetAck(chatID, id, ack)
		c.dispatch(platform.AckChanged{MessageID: id, ChatID: chatID, Ack: ack})
	}
}

func (c *Client) onHistorySync(evt *events.HistorySync) {
	var added int
	for _, conv := range evt.Data.GetConversations() {
		chatJID, err := types.ParseJID(conv.GetID())
		if err != nil {
			continue
		}
		chatID := chatJID.ToNonAD().String()
		c.history.SetChatInfo(chatID, conv.GetName(), chatJID.Server == types.GroupServer, int(conv.GetUnreadCount()))

		for _, hm := range conv.GetMessages() {
			web := hm.GetMessage()
			if web == nil {
				continue
			}
			parsed, err := c.wa.ParseWebMessage(chatJID, web)
			if err != nil {
				c.log.Debugf("Skipping unparseable history message: %v", err)
				continue
			}
			raw, ok := rawMessage(parsed.Info, parsed.Message)
			if !ok {
				continue
			}
			if raw.FromMe {
				raw.Ack = statusAck(web.GetStatus())
			}
			if c.history.Add(raw, false) {
				added++
			}
		}
	}
	c.log.Debugf("History sync added %d messages", added)
}

// Contacts lists the device's contacts and joined groups
func (c *Client) Contacts(ctx context.Context) ([]platform.RawContact, error) {
	if !c.paired() {
		return []platform.RawContact{}, nil
	}

	all, err := c.wa.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get contacts: %w", err)
	}

	blocked := make(map[types.JID]bool)
	if list, err := c.wa.GetBlocklist(); err != nil {
		c.log.WarnErr("Failed to get blocklist", err)
	} else {
		for _, jid := range list.JIDs {
			blocked[jid.ToNonAD()] = true
		}
	}

	out := make([]platform.RawContact, 0, len(all))
	for jid, info := range all {
		out = append(out, rawContact(jid, info, blocked[jid.ToNonAD()]))
	}

	for _, g := range c.joinedGroups(ctx) {
		out = append(out, platform.RawContact{ID: g.JID.String(), Name: g.Name, IsGroup: true})
	}
	return out, nil
}

// Chats lists the chats seen in history plus every joined group
func (c *Client) Chats(ctx context.Context) ([]platform.RawChat, error) {
	chats := c.history.Chats()

	if !c.paired() {
		return chats, nil
	}

	names := make(map[string]string)
	if all, err := c.wa.Store.Contacts.GetAllContacts(ctx); err != nil {
		c.log.WarnErr("Failed to get contacts for chat names", err)
	} else {
		for jid, info := range all {
			names[jid.ToNonAD().String()] = firstNonEmpty(info.FullName, info.FirstName, info.PushName, info.BusinessName)
		}
	}
	groups := c.joinedGroups(ctx)
	for _, g := range groups {
		names[g.JID.String()] = g.Name
	}

	seen := make(map[string]bool, len(chats))
	for i := range chats {
		seen[chats[i].ID] = true
		if chats[i].Name == "" {
			chats[i].Name = names[chats[i].ID]
		}
	}
	for _, g := range groups {
		if !seen[g.JID.String()] {
			chats = append(chats, platform.RawChat{ID: g.JID.String(), Name: g.Name, IsGroup: true})
		}
	}
	return chats, nil
}

func (c *Client) joinedGroups(ctx context.Context) []*types.GroupInfo {
	groups, err := c.wa.GetJoinedGroups(ctx)
	if err != nil {
		c.log.WarnErr("Failed to get joined groups", err)
		return nil
	}
	return groups
}

// Messages returns the newest messages of a chat from the history index
func (c *Client) Messages(ctx context.Context, chatID string, limit int) ([]platform.RawMessage, error) {
	return c.history.Messages(chatID, limit), nil
}

// DownloadMedia downloads and decrypts the media of a message
func (c *Client) DownloadMedia(ctx context.Context, msg platform.RawMessage) (*platform.Media, error) {
	native, _ := msg.Native.(*waE2E.Message)
	dm := downloadable(native)
	if dm == nil {
		return nil, fmt.Errorf("message %s has no downloadable media", msg.ID)
	}

	data, err := c.wa.Download(ctx, dm)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	return &platform.Media{MimeType: msg.MimeType, Data: data, Filename: msg.Filename}, nil
}

// MarkRead sends read receipts for the unread messages of a chat
func (c *Client) MarkRead(ctx context.Context, chatID string) error {
	chat, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid JID %s: %w", chatID, err)
	}

	bySender := make(map[string][]types.MessageID)
	for _, ref := range c.history.Unread(chatID) {
		bySender[ref.Sender] = append(bySender[ref.Sender], ref.ID)
	}

	for sender, ids := range bySender {
		senderJID, err := types.ParseJID(sender)
		if err != nil {
			continue
		}
		if err := c.wa.MarkRead(ids, time.Now(), chat, senderJID); err != nil {
			return fmt.Errorf("failed to mark chat read: %w", err)
		}
	}

	c.history.ClearUnread(chatID)
	return nil
}

// SendText sends a text message and returns its id
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	msg := &waE2E.Message{Conversation: proto.String(body)}
	raw := platform.RawMessage{Type: platform.TypeChat, Body: body}
	return c.send(ctx, to, msg, raw)
}

// SendMedia uploads media and sends it
func (c *Client) SendMedia(ctx context.Context, to string, m platform.OutgoingMedia) (string, error) {
	raw := platform.RawMessage{
		HasMedia: true,
		MimeType: m.MimeType,
		FileSize: int64(len(m.Data)),
		Filename: m.Filename,
	}

	up, err := c.wa.Upload(ctx, m.Data, mediaType(media.Kind(m.MimeType)))
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}

	msg := mediaMessage(up, m)
	raw.Type = typeOf(msg)
	return c.send(ctx, to, msg, raw)
}

// send delivers msg and echoes it as an outbound message event
func (c *Client) send(ctx context.Context, to string, msg *waE2E.Message, raw platform.RawMessage) (string, error) {
	jid, err := types.ParseJID(to)
	if err != nil {
		return "", fmt.Errorf("invalid JID %s: %w", to, err)
	}

	resp, err := c.wa.SendMessage(ctx, jid, msg)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	c.log.Infof("Message sent to %s", to)

	raw.ID = resp.ID
	raw.ChatID = jid.ToNonAD().String()
	raw.FromMe = true
	raw.Timestamp = resp.Timestamp.Unix()
	raw.Ack = models.AckSent
	raw.Native = msg

	c.history.SetChatInfo(raw.ChatID, "", jid.Server == types.GroupServer, -1)
	c.history.Add(raw, false)
	chat, _ := c.history.Chat(raw.ChatID)
	c.dispatch(platform.MessageReceived{Message: raw, Chat: &chat})

	return resp.ID, nil
}

// paired reports whether the device store holds a linked device
func (c *Client) paired() bool {
	return c.wa.Store.ID != nil
}

// Logout unlinks the device
func (c *Client) Logout(ctx context.Context) error {
	if !c.paired() {
		return nil
	}
	if err := c.wa.Logout(ctx); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	c.history.Reset()
	return nil
}

// Destroy disconnects and silences the handle. Event handlers are not
// removed because whatsmeow may be dispatching to them right now.
func (c *Client) Destroy(ctx context.Context) error {
	c.closed.Store(true)
	if c.cancelQR != nil {
		c.cancelQR()
	}
	c.wa.Disconnect()
	c.log.Info("Disconnected from WhatsApp")
	return nil
}

func typeOf(msg *waE2E.Message) string {
	switch {
	case msg.GetImageMessage() != nil:
		return platform.TypeImage
	case msg.GetVideoMessage() != nil:
		return platform.TypeVideo
	case msg.GetAudioMessage().GetPTT():
		return platform.TypePTT
	case msg.GetAudioMessage() != nil:
		return platform.TypeAudio
	default:
		return platform.TypeDocument
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
