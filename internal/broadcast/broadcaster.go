// Package broadcast keeps the registry of connected clients and fans
// frames out to them.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nahidhasan98/whatsapp-bridge/internal/logger"
)

// Conn is one connected client
type Conn interface {
	ID() string
	Send(ctx context.Context, data []byte) error
}

// Broadcaster is the process-wide client registry. Membership changes and
// sends are independent per connection.
type Broadcaster struct {
	mu           sync.RWMutex
	conns        map[string]Conn
	log          *logger.Logger
	writeTimeout time.Duration
}

// New creates an empty broadcaster. A positive writeTimeout bounds every
// write to a single client.
func New(log *logger.Logger, writeTimeout time.Duration) *Broadcaster {
	return &Broadcaster{
		conns:        make(map[string]Conn),
		log:          log,
		writeTimeout: writeTimeout,
	}
}

// Register adds a client
func (b *Broadcaster) Register(c Conn) {
	b.mu.Lock()
	b.conns[c.ID()] = c
	count := len(b.conns)
	b.mu.Unlock()

	b.log.With("conn_id", c.ID()).Infof("Client connected (%d connected)", count)
}

// Unregister removes a client. Removing an unknown client is a no-op.
func (b *Broadcaster) Unregister(id string) {
	b.mu.Lock()
	_, ok := b.conns[id]
	delete(b.conns, id)
	count := len(b.conns)
	b.mu.Unlock()

	if ok {
		b.log.With("conn_id", id).Infof("Client disconnected (%d connected)", count)
	}
}

// Count returns the number of registered clients
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Broadcast sends frame to every registered client in parallel and waits
// for all writes. Clients whose write fails are dropped.
func (b *Broadcaster) Broadcast(ctx context.Context, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		b.log.Error("Failed to encode broadcast frame", err)
		return
	}

	b.mu.RLock()
	targets := make([]Conn, 0, len(b.conns))
	for _, c := range b.conns {
		targets = append(targets, c)
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Go(func() {
			if err := b.send(ctx, c, data); err != nil {
				b.log.With("conn_id", c.ID()).WarnErr("Dropping client after failed write", err)
				b.Unregister(c.ID())
			}
		})
	}
	wg.Wait()
}

// SendTo sends frame to one client
func (b *Broadcaster) SendTo(ctx context.Context, id string, frame any) error {
	b.mu.RLock()
	c, ok := b.conns[id]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("client %s is not connected", id)
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	if err := b.send(ctx, c, data); err != nil {
		b.Unregister(id)
		return fmt.Errorf("write to client %s: %w", id, err)
	}
	return nil
}

func (b *Broadcaster) send(ctx context.Context, c Conn, data []byte) error {
	if b.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.writeTimeout)
		defer cancel()
	}
	return c.Send(ctx, data)
}
