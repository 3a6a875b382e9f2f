// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nahidhasan98/whatsapp-bridge/internal/platform"
)

// Sent records one outbound send
type Sent struct {
	ID    string
	To    string
	Body  string
	Media *platform.OutgoingMedia
}

// Factory creates fake clients and records their lifecycle in order
type Factory struct {
	mu      sync.Mutex
	clients []*Client
	log     []string

	// Configure runs on each new client before it is returned
	Configure func(*Client)
	// Err makes New fail
	Err error
}

// NewFactory creates an empty factory
func NewFactory() *Factory {
	return &Factory{}
}

// New implements platform.Factory
func (f *Factory) New(handler platform.EventHandler) (platform.Client, error) {
	f.mu.Lock()
	if f.Err != nil {
		f.mu.Unlock()
		return nil, f.Err
	}
	c := &Client{
		factory:  f,
		handler:  handler,
		Index:    len(f.clients) + 1,
		messages: make(map[string][]platform.RawMessage),
		media:    make(map[string]*platform.Media),
		mediaErr: make(map[string]error),
	}
	f.clients = append(f.clients, c)
	f.log = append(f.log, fmt.Sprintf("create#%d", c.Index))
	configure := f.Configure
	f.mu.Unlock()

	if configure != nil {
		configure(c)
	}
	return c, nil
}

// Clients returns every client created so far
func (f *Factory) Clients() []*Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Client(nil), f.clients...)
}

// Last returns the newest client or nil
func (f *Factory) Last() *Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}

// Live counts clients that were created and not destroyed
func (f *Factory) Live() int {
	f.mu.Lock()
	clients := append([]*Client(nil), f.clients...)
	f.mu.Unlock()

	n := 0
	for _, c := range clients {
		if !c.Destroyed() {
			n++
		}
	}
	return n
}

// Log returns lifecycle entries such as "create#1" and "destroy#1" in order
func (f *Factory) Log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

func (f *Factory) record(entry string) {
	f.mu.Lock()
	f.log = append(f.log, entry)
	f.mu.Unlock()
}

// Client is a scriptable platform.Client
type Client struct {
	factory *Factory
	handler platform.EventHandler

	// Index is the 1-based creation order within the factory
	Index int

	mu          sync.Mutex
	contacts    []platform.RawContact
	chats       []platform.RawChat
	messages    map[string][]platform.RawMessage
	media       map[string]*platform.Media
	mediaErr    map[string]error
	sent        []Sent
	read        []string
	started     bool
	loggedOut   bool
	destroyed   bool
	startErr    error
	markReadErr error
	sendTextErr func(to, body string) error
	sendGate    chan struct{}
	loadGate    chan struct{}
}

// Emit delivers an event as if the engine produced it
func (c *Client) Emit(ev platform.Event) {
	c.handler(ev)
}

// SetContacts sets what Contacts returns
func (c *Client) SetContacts(contacts ...platform.RawContact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contacts = contacts
}

// SetChats sets what Chats returns
func (c *Client) SetChats(chats ...platform.RawChat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats = chats
}

// SetMessages sets what Messages returns for a chat
func (c *Client) SetMessages(chatID string, msgs ...platform.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[chatID] = msgs
}

// SetMedia sets the download result for a message id
func (c *Client) SetMedia(messageID string, media *platform.Media, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.media[messageID] = media
	c.mediaErr[messageID] = err
}

// FailStart makes Start return err
func (c *Client) FailStart(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startErr = err
}

// FailMarkRead makes MarkRead return err
func (c *Client) FailMarkRead(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markReadErr = err
}

// FailSendText makes SendText consult fn before sending
func (c *Client) FailSendText(fn func(to, body string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendTextErr = fn
}

// HoldSends makes sends block until the returned func is called
func (c *Client) HoldSends() (release func()) {
	gate := make(chan struct{})
	c.mu.Lock()
	c.sendGate = gate
	c.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// HoldDownloads makes DownloadMedia block until the returned func is called
// or the download's context ends
func (c *Client) HoldDownloads() (release func()) {
	gate := make(chan struct{})
	c.mu.Lock()
	c.loadGate = gate
	c.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Sent returns the outbound sends in order
func (c *Client) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.sent...)
}

// ReadChats returns the chats MarkRead succeeded for
func (c *Client) ReadChats() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.read...)
}

// Started reports whether Start was called
func (c *Client) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// LoggedOut reports whether Logout was called
func (c *Client) LoggedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOut
}

// Destroyed reports whether Destroy was called
func (c *Client) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return c.startErr
}

func (c *Client) Contacts(ctx context.Context) ([]platform.RawContact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]platform.RawContact(nil), c.contacts...), nil
}

func (c *Client) Chats(ctx context.Context) ([]platform.RawChat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]platform.RawChat(nil), c.chats...), nil
}

func (c *Client) Messages(ctx context.Context, chatID string, limit int) ([]platform.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.messages[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]platform.RawMessage(nil), msgs...), nil
}

func (c *Client) DownloadMedia(ctx context.Context, msg platform.RawMessage) (*platform.Media, error) {
	c.mu.Lock()
	gate := c.loadGate
	c.mu.Unlock()
	if err := wait(ctx, gate); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mediaErr[msg.ID]; err != nil {
		return nil, err
	}
	media, ok := c.media[msg.ID]
	if !ok {
		return nil, fmt.Errorf("no media for %s", msg.ID)
	}
	return media, nil
}

func (c *Client) MarkRead(ctx context.Context, chatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.markReadErr != nil {
		return c.markReadErr
	}
	c.read = append(c.read, chatID)
	return nil
}

func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	c.mu.Lock()
	gate := c.sendGate
	c.mu.Unlock()
	if err := wait(ctx, gate); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendTextErr != nil {
		if err := c.sendTextErr(to, body); err != nil {
			return "", err
		}
	}
	return c.recordSend(Sent{To: to, Body: body}), nil
}

func (c *Client) SendMedia(ctx context.Context, to string, media platform.OutgoingMedia) (string, error) {
	c.mu.Lock()
	gate := c.sendGate
	c.mu.Unlock()
	if err := wait(ctx, gate); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordSend(Sent{To: to, Media: &media}), nil
}

func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedOut = true
	return nil
}

func (c *Client) Destroy(ctx context.Context) error {
	c.mu.Lock()
	already := c.destroyed
	c.destroyed = true
	c.mu.Unlock()

	if !already {
		c.factory.record(fmt.Sprintf("destroy#%d", c.Index))
	}
	return nil
}

func (c *Client) recordSend(s Sent) string {
	s.ID = fmt.Sprintf("c%d-sent-%d", c.Index, len(c.sent)+1)
	c.sent = append(c.sent, s)
	return s.ID
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ platform.Client = (*Client)(nil)
var _ platform.Factory = (*Factory)(nil).New
