// Package session owns the single WhatsApp session: its lifecycle state
// machine, the live platform handle, and the event stream fanned out to
// connected clients.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nahidhasan98/whatsapp-bridge/internal/contacts"
	"github.com/nahidhasan98/whatsapp-bridge/internal/format"
	"github.com/nahidhasan98/whatsapp-bridge/internal/logger"
	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
	"github.com/nahidhasan98/whatsapp-bridge/internal/platform"
)

const (
	mailboxSize      = 128
	trafficQueueSize = 256
	ackCacheSize     = 10000

	ReasonUserLogout  = "user_logout"
	ReasonAuthFailure = "auth_failure"
	ReasonStopped     = "stopped"
)

// Publisher fans a frame out to every connected client
type Publisher interface {
	Broadcast(ctx context.Context, frame any)
}

// Options tunes timing and limits of the manager
type Options struct {
	SettleDelay    time.Duration // wait between Ready and the bulk fetch
	RestartBackoff time.Duration // wait between a fault and the next connect
	MaxRestarts    int           // consecutive restarts allowed; 0 means unbounded
	DrainTimeout   time.Duration // how long teardown waits for in-flight calls
	MessageLimit   int           // messages returned per chat
	MediaWorkers   int           // concurrent media downloads
	MediaTimeout   time.Duration // limit for one incoming media download
}

// Manager is the only writer of session state. Lifecycle operations and
// platform lifecycle events run one at a time on the Run goroutine.
// Data-plane calls run on the caller's goroutine under a lease of the
// current handle.
type Manager struct {
	factory platform.Factory
	pub     Publisher
	log     *logger.Logger
	format  *format.Formatter
	opts    Options
	acks    *AckTracker

	ops     chan func(ctx context.Context)
	traffic chan trafficItem
	done    chan struct{}
	runOnce sync.Once

	// Incoming media messages still downloading, keyed by message id.
	// Acks for them wait here until the message frame went out.
	pendingMu sync.Mutex
	pending   map[string][]platform.AckChanged
	mediaSem  chan struct{}

	// Owned by the Run goroutine
	handle       *handle
	restarts     int
	settleTimer  *time.Timer
	restartTimer *time.Timer

	// Written by the Run goroutine, read anywhere
	mu         sync.RWMutex
	state      State
	readyAt    time.Time
	lastErr    string
	gen        uint64
	current    *handle
	readyEvent *models.ReadyEvent
	lastQR     string
}

type trafficItem struct {
	gen uint64
	ev  platform.Event
}

// NewManager creates a manager in the Uninitialized state. Nothing happens
// until Run is started and Connect is called.
func NewManager(factory platform.Factory, pub Publisher, log *logger.Logger, opts Options) *Manager {
	if opts.MessageLimit < 1 {
		opts.MessageLimit = 50
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 5 * time.Second
	}
	if opts.MediaWorkers < 1 {
		opts.MediaWorkers = 4
	}
	if opts.MediaTimeout <= 0 {
		opts.MediaTimeout = 30 * time.Second
	}

	return &Manager{
		factory:  factory,
		pub:      pub,
		log:      log,
		format:   format.New(log, opts.MediaWorkers),
		opts:     opts,
		acks:     NewAckTracker(ackCacheSize),
		ops:      make(chan func(ctx context.Context), mailboxSize),
		traffic:  make(chan trafficItem, trafficQueueSize),
		done:     make(chan struct{}),
		pending:  make(map[string][]platform.AckChanged),
		mediaSem: make(chan struct{}, opts.MediaWorkers),
	}
}

// Run processes lifecycle operations and traffic until ctx is cancelled,
// then tears the session down. It must be called exactly once.
func (m *Manager) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Go(func() { m.runTraffic(ctx) })

	defer func() {
		m.stopTimers()
		m.teardown(context.WithoutCancel(ctx), false)
		m.runOnce.Do(func() { close(m.done) })
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Session manager shutting down")
			return nil
		case op := <-m.ops:
			op(ctx)
		}
	}
}

// Connect replaces any existing handle with a fresh one and starts it.
// It returns once the new handle was started, not once it is ready.
func (m *Manager) Connect(ctx context.Context) error {
	return m.do(ctx, func(ctx context.Context) {
		m.restarts = 0
		m.connect(ctx)
	})
}

// Disconnect logs the device out and tears the handle down
func (m *Manager) Disconnect(ctx context.Context, reason string) error {
	return m.do(ctx, func(ctx context.Context) {
		m.disconnect(ctx, reason, true)
	})
}

// Stop tears the handle down and returns to Uninitialized
func (m *Manager) Stop(ctx context.Context) error {
	return m.do(ctx, func(ctx context.Context) {
		prev := m.currentState()
		m.stopTimers()
		m.teardown(ctx, false)
		m.restarts = 0
		m.setState(Uninitialized, "")
		if prev != Uninitialized {
			m.broadcast(ctx, models.NewDisconnectedEvent(ReasonStopped))
		}
	})
}

// Snapshot returns a copy of the current session state
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		State:      m.state,
		ReadyAt:    m.readyAt,
		LastError:  m.lastErr,
		Generation: m.gen,
	}
}

// ReadyEvent returns the cached ready snapshot, or nil unless the session
// is Ready and its bulk fetch has completed
func (m *Manager) ReadyEvent() *models.ReadyEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != Ready {
		return nil
	}
	return m.readyEvent
}

// Join runs register on the Run goroutine and returns the ready snapshot
// the new client still needs. The snapshot broadcast runs there too, so a
// joining client receives it exactly once.
func (m *Manager) Join(ctx context.Context, register func()) (*models.ReadyEvent, error) {
	var ev *models.ReadyEvent
	err := m.do(ctx, func(ctx context.Context) {
		register()
		ev = m.ReadyEvent()
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// LastQR returns the pairing code currently on offer, if any
func (m *Manager) LastQR() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != AwaitingPairing {
		return ""
	}
	return m.lastQR
}

// Contacts fetches the deduplicated contact list
func (m *Manager) Contacts(ctx context.Context) ([]models.Contact, error) {
	h, err := m.lease(true)
	if err != nil {
		return nil, err
	}
	defer h.release()

	raw, err := h.client.Contacts(ctx)
	if err != nil {
		return nil, err
	}
	return contacts.Deduplicate(m.format.Contacts(raw)), nil
}

// Chats fetches all chats, most recently active first
func (m *Manager) Chats(ctx context.Context) ([]models.Chat, error) {
	h, err := m.lease(true)
	if err != nil {
		return nil, err
	}
	defer h.release()

	raw, err := h.client.Chats(ctx)
	if err != nil {
		return nil, err
	}
	return m.format.Chats(raw), nil
}

// Messages fetches the latest messages of a chat with media embedded
func (m *Manager) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	h, err := m.lease(true)
	if err != nil {
		return nil, err
	}
	defer h.release()

	raw, err := h.client.Messages(ctx, chatID, m.opts.MessageLimit)
	if err != nil {
		return nil, err
	}

	msgs := m.format.Messages(ctx, raw, h.client)
	for i := range msgs {
		msgs[i].Ack = m.acks.Observe(msgs[i].ID, msgs[i].Ack)
	}
	return msgs, nil
}

// MarkRead marks every message in a chat as read
func (m *Manager) MarkRead(ctx context.Context, chatID string) error {
	h, err := m.lease(true)
	if err != nil {
		return err
	}
	defer h.release()

	return h.client.MarkRead(ctx, chatID)
}

// SendText sends a text message and returns its id
func (m *Manager) SendText(ctx context.Context, to, body string) (string, error) {
	h, err := m.lease(true)
	if err != nil {
		return "", err
	}
	defer h.release()

	return h.client.SendText(ctx, to, body)
}

// SendMedia sends a media message and returns its id
func (m *Manager) SendMedia(ctx context.Context, to string, media platform.OutgoingMedia) (string, error) {
	h, err := m.lease(true)
	if err != nil {
		return "", err
	}
	defer h.release()

	return h.client.SendMedia(ctx, to, media)
}

// lease pins the current handle for one data-plane call
func (m *Manager) lease(requireReady bool) (*handle, error) {
	m.mu.RLock()
	h, state := m.current, m.state
	m.mu.RUnlock()

	if h == nil || (requireReady && state != Ready) {
		return nil, ErrNotReady
	}
	if !h.acquire() {
		return nil, ErrNotReady
	}
	return h, nil
}

// leaseGen pins the handle only if it is still generation gen
func (m *Manager) leaseGen(gen uint64) (*handle, bool) {
	m.mu.RLock()
	h := m.current
	m.mu.RUnlock()

	if h == nil || h.gen != gen || !h.acquire() {
		return nil, false
	}
	return h, true
}

// do runs op on the Run goroutine and waits for it to finish
func (m *Manager) do(ctx context.Context, op func(ctx context.Context)) error {
	finished := make(chan struct{})
	wrapped := func(ctx context.Context) {
		defer close(finished)
		op(ctx)
	}

	select {
	case m.ops <- wrapped:
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues op on the Run goroutine without waiting
func (m *Manager) post(op func(ctx context.Context)) {
	select {
	case m.ops <- op:
	case <-m.done:
	}
}

// handlerFor tags every event of a handle with its generation
func (m *Manager) handlerFor(gen uint64) platform.EventHandler {
	return func(ev platform.Event) {
		switch ev.(type) {
		case platform.MessageReceived, platform.AckChanged:
			select {
			case m.traffic <- trafficItem{gen: gen, ev: ev}:
			case <-m.done:
			}
		default:
			m.post(func(ctx context.Context) { m.onLifecycle(ctx, gen, ev) })
		}
	}
}

func (m *Manager) onLifecycle(ctx context.Context, gen uint64, ev platform.Event) {
	h := m.handle
	if h == nil || h.gen != gen {
		m.log.Debugf("Dropping %T from replaced session handle", ev)
		return
	}

	switch e := ev.(type) {
	case platform.QRIssued:
		m.mu.Lock()
		m.lastQR = e.Code
		m.mu.Unlock()
		m.setState(AwaitingPairing, "")
		m.broadcast(ctx, models.NewQREvent(e.Code))

	case platform.Authenticated:
		h.loggedIn = true
		if m.currentState() == Ready {
			return
		}
		m.setState(Authenticated, "")
		m.broadcast(ctx, models.NewAuthenticatedEvent())

	case platform.Ready:
		h.loggedIn = true
		if m.currentState() == Ready {
			return
		}
		m.restarts = 0
		m.setState(Ready, "")
		m.scheduleSnapshot(ctx, gen)

	case platform.AuthFailure:
		m.log.Warnf("WhatsApp authentication failed: %s", e.Message)
		m.broadcast(ctx, models.NewAuthFailureEvent(e.Message))
		m.disconnect(ctx, ReasonAuthFailure, false)

	case platform.Disconnected:
		m.disconnect(ctx, e.Reason, false)

	case platform.Fatal:
		m.fault(ctx, e.Err)
	}
}

func (m *Manager) connect(ctx context.Context) {
	m.stopTimers()
	m.teardown(ctx, false)

	gen := m.nextGen()
	m.setState(Initializing, "")
	m.broadcast(ctx, models.NewConnectingEvent())

	client, err := m.factory(m.handlerFor(gen))
	if err != nil {
		m.fault(ctx, fmt.Errorf("create session: %w", err))
		return
	}

	h := newHandle(ctx, gen, client)
	m.handle = h
	m.mu.Lock()
	m.current = h
	m.mu.Unlock()

	m.log.Infof("Starting WhatsApp session (generation %d)", gen)
	if err := client.Start(ctx); err != nil {
		m.fault(ctx, fmt.Errorf("start session: %w", err))
	}
}

func (m *Manager) disconnect(ctx context.Context, reason string, logout bool) {
	m.stopTimers()
	m.teardown(ctx, logout)
	m.restarts = 0
	m.setState(Disconnected, "")
	m.broadcast(ctx, models.NewDisconnectedEvent(reason))
}

func (m *Manager) fault(ctx context.Context, err error) {
	m.log.Error("WhatsApp session failed", err)

	m.stopTimers()
	m.teardown(ctx, false)
	m.setState(Faulted, err.Error())
	m.broadcast(ctx, models.NewDisconnectedEvent(err.Error()))

	m.restarts++
	if m.opts.MaxRestarts > 0 && m.restarts > m.opts.MaxRestarts {
		m.log.Errorf("Giving up after %d restarts; send connect to try again", m.opts.MaxRestarts)
		return
	}

	gen := m.currentGen()
	m.log.Infof("Restarting WhatsApp session in %s (attempt %d)", m.opts.RestartBackoff, m.restarts)
	m.restartTimer = time.AfterFunc(m.opts.RestartBackoff, func() {
		m.post(func(ctx context.Context) {
			if m.currentGen() != gen || m.currentState() != Faulted {
				return
			}
			m.connect(ctx)
		})
	})
}

// teardown closes and destroys the current handle, if any
func (m *Manager) teardown(ctx context.Context, logout bool) {
	h := m.handle
	if h == nil {
		return
	}
	m.handle = nil

	m.mu.Lock()
	m.gen++
	m.current = nil
	m.readyEvent = nil
	m.lastQR = ""
	m.mu.Unlock()

	h.close()
	if !h.drain(m.opts.DrainTimeout) {
		m.log.Warnf("In-flight calls still running after %s, destroying session anyway", m.opts.DrainTimeout)
	}

	if logout && h.loggedIn {
		if err := h.client.Logout(ctx); err != nil {
			m.log.WarnErr("Failed to log out WhatsApp device", err)
		}
	}
	if err := h.client.Destroy(ctx); err != nil {
		m.log.WarnErr("Failed to destroy WhatsApp session", err)
	}
	m.log.Debugf("Session handle %d torn down", h.gen)
}

// scheduleSnapshot fetches contacts and chats once the session settled and
// publishes them as the ready event
func (m *Manager) scheduleSnapshot(ctx context.Context, gen uint64) {
	m.settleTimer = time.AfterFunc(m.opts.SettleDelay, func() {
		h, ok := m.leaseGen(gen)
		if !ok {
			return
		}
		ev := m.fetchReady(h.ctx, h)
		h.release()

		m.post(func(ctx context.Context) {
			if m.handle == nil || m.handle.gen != gen || m.currentState() != Ready {
				return
			}
			m.mu.Lock()
			if m.readyEvent != nil {
				m.mu.Unlock()
				return
			}
			m.readyEvent = ev
			m.mu.Unlock()

			m.log.Infof("WhatsApp session ready with %d contacts and %d chats", len(ev.Contacts), len(ev.Chats))
			m.broadcast(ctx, ev)
		})
	})
}

// fetchReady builds the ready snapshot; a failed half is sent empty
func (m *Manager) fetchReady(ctx context.Context, h *handle) *models.ReadyEvent {
	var list []models.Contact
	if raw, err := h.client.Contacts(ctx); err != nil {
		m.log.Error("Failed to fetch contacts for ready snapshot", err)
	} else {
		list = contacts.Deduplicate(m.format.Contacts(raw))
	}

	var chats []models.Chat
	if raw, err := h.client.Chats(ctx); err != nil {
		m.log.Error("Failed to fetch chats for ready snapshot", err)
	} else {
		chats = m.format.Chats(raw)
	}

	return models.NewReadyEvent(list, chats)
}

// runTraffic handles messages and acks in arrival order. Media downloads
// run beside it so a slow download only delays its own message and the acks
// for that message.
func (m *Manager) runTraffic(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-m.traffic:
			m.onTraffic(item)
		}
	}
}

func (m *Manager) onTraffic(item trafficItem) {
	h, ok := m.leaseGen(item.gen)
	if !ok {
		return
	}

	switch e := item.ev.(type) {
	case platform.MessageReceived:
		if !e.Message.HasMedia {
			defer h.release()
			if frame := m.messageFrame(h.ctx, h, e); frame != nil {
				m.broadcast(context.WithoutCancel(h.ctx), frame)
			}
			return
		}
		if !m.holdAcks(e.Message.ID) {
			h.release()
			return
		}
		go func() {
			defer h.release()
			m.deliverMedia(h, e)
		}()

	case platform.AckChanged:
		h.release()
		if m.deferAck(e) {
			return
		}
		level := m.acks.Observe(e.MessageID, e.Ack)
		m.broadcast(context.WithoutCancel(h.ctx), models.NewMessageAckEvent(e.MessageID, e.ChatID, level))

	default:
		h.release()
	}
}

// deliverMedia downloads and broadcasts one media message, then flushes the
// acks that arrived for it meanwhile
func (m *Manager) deliverMedia(h *handle, e platform.MessageReceived) {
	id := e.Message.ID

	var frame *models.MessageEvent
	select {
	case m.mediaSem <- struct{}{}:
		ctx, cancel := context.WithTimeout(h.ctx, m.opts.MediaTimeout)
		frame = m.messageFrame(ctx, h, e)
		cancel()
		<-m.mediaSem
	case <-h.ctx.Done():
	}

	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	held := m.pending[id]
	delete(m.pending, id)

	if h.ctx.Err() != nil {
		m.log.Debugf("Dropping message %s from closed session handle", id)
		return
	}

	out := context.WithoutCancel(h.ctx)
	if frame != nil {
		m.broadcast(out, frame)
	}
	for _, ack := range held {
		level := m.acks.Observe(ack.MessageID, ack.Ack)
		m.broadcast(out, models.NewMessageAckEvent(ack.MessageID, ack.ChatID, level))
	}
}

// holdAcks marks a message as downloading; false means it already is
func (m *Manager) holdAcks(id string) bool {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	if _, ok := m.pending[id]; ok {
		return false
	}
	m.pending[id] = nil
	return true
}

// deferAck queues ack behind its still-downloading message
func (m *Manager) deferAck(ack platform.AckChanged) bool {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	held, ok := m.pending[ack.MessageID]
	if !ok {
		return false
	}
	m.pending[ack.MessageID] = append(held, ack)
	return true
}

// messageFrame formats an incoming message; nil means it was malformed
func (m *Manager) messageFrame(ctx context.Context, h *handle, e platform.MessageReceived) *models.MessageEvent {
	msg, err := m.format.Message(ctx, e.Message, h.client)
	if err != nil {
		m.log.WarnErr("Dropping malformed incoming message", err)
		return nil
	}
	msg.Ack = m.acks.Observe(msg.ID, msg.Ack)

	var chat *models.Chat
	if e.Chat != nil {
		c := m.format.Chat(*e.Chat)
		chat = &c
	}
	var contact *models.Contact
	if e.Contact != nil {
		c := m.format.Contact(*e.Contact)
		contact = &c
	}
	return models.NewMessageEvent(msg, chat, contact)
}

func (m *Manager) broadcast(ctx context.Context, frame any) {
	m.pub.Broadcast(ctx, frame)
}

func (m *Manager) stopTimers() {
	if m.settleTimer != nil {
		m.settleTimer.Stop()
		m.settleTimer = nil
	}
	if m.restartTimer != nil {
		m.restartTimer.Stop()
		m.restartTimer = nil
	}
}

func (m *Manager) setState(s State, lastErr string) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	if s == Ready {
		m.readyAt = time.Now()
	} else {
		m.readyAt = time.Time{}
	}
	if lastErr != "" || s == Ready {
		m.lastErr = lastErr
	}
	m.mu.Unlock()

	if prev != s {
		m.log.Infof("Session state %s -> %s", prev, s)
	}
}

func (m *Manager) nextGen() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	return m.gen
}

func (m *Manager) currentGen() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

func (m *Manager) currentState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
