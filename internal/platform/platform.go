// Package platform delivers bot messages to chat platforms.
//
// Each connector implements Sender for one platform. A Registry routes a
// message to the connector of its platform; platforms without a connector
// report ErrNotConfigured.
package platform

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// Supported lists the platforms a bot can be bound to.
var Supported = []string{"messenger", "slack", "telegram"}

// IsSupported reports whether name is a supported platform.
func IsSupported(name string) bool {
	return slices.Contains(Supported, name)
}

// ErrNotConfigured is returned when no connector serves a platform.
var ErrNotConfigured = errors.New("platform not configured")

// Message is a bot message addressed to a platform.
type Message struct {
	BotID    string    `json:"bot_id"`
	Platform string    `json:"platform"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Registry routes messages to per-platform senders.
type Registry struct {
	mu      sync.RWMutex
	senders map[string]Sender
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

// Register sets the sender for a platform, replacing any previous one.
func (r *Registry) Register(platform string, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[platform] = s
}

// Get returns the sender for a platform.
func (r *Registry) Get(platform string) (Sender, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.senders[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, platform)
	}
	return s, nil
}

// Platforms returns the names of the registered platforms, sorted.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.senders))
	for name := range r.senders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Send delivers msg through the sender of msg.Platform.
func (r *Registry) Send(ctx context.Context, msg Message) error {
	s, err := r.Get(msg.Platform)
	if err != nil {
		return err
	}
	return s.Send(ctx, msg)
}
