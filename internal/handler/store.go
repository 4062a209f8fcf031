package handler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/menezmethod/botgate/internal/apierror"
	"github.com/menezmethod/botgate/internal/platform"
)

// Bot is a registered bot.
type Bot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Platform  string    `json:"platform,omitempty"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// BotStore is an in-memory, concurrency-safe bot registry.
type BotStore struct {
	mu     sync.RWMutex
	bots   map[string]*Bot
	sender platform.Sender
	now    func() time.Time
}

// NewBotStore returns an empty store delivering messages through sender.
// A nil sender keeps messages in a fresh platform.Outbox.
func NewBotStore(sender platform.Sender) *BotStore {
	if sender == nil {
		sender = &platform.Outbox{}
	}
	return &BotStore{
		bots:   make(map[string]*Bot),
		sender: sender,
		now:    time.Now,
	}
}

// Create registers a bot. The ID is required and must be unused.
func (s *BotStore) Create(id, name string) (Bot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Bot{}, apierror.BotTrainingError("A bot needs a non-empty id.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bots[id]; ok {
		return Bot{}, apierror.BotAlreadyExists(fmt.Sprintf("Bot %q already exists.", id))
	}
	b := &Bot{ID: id, Name: name, CreatedAt: s.now().UTC()}
	s.bots[id] = b
	return *b, nil
}

// Get returns the bot with the given ID.
func (s *BotStore) Get(id string) (Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bots[id]
	if !ok {
		return Bot{}, botNotFound(id)
	}
	return *b, nil
}

// List returns every bot ordered by ID.
func (s *BotStore) List() []Bot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Bot, 0, len(s.bots))
	for _, b := range s.bots {
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b Bot) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Delete removes a bot.
func (s *BotStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bots[id]; !ok {
		return botNotFound(id)
	}
	delete(s.bots, id)
	return nil
}

// SetPlatform binds a bot to a supported platform. A bot is bound once;
// binding it again, even to the same platform, is a conflict.
func (s *BotStore) SetPlatform(id, name string) (Bot, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !platform.IsSupported(name) {
		return Bot{}, apierror.PlatformNotSupported(name,
			fmt.Sprintf("Platform must be one of %s.", strings.Join(platform.Supported, ", ")))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bots[id]
	if !ok {
		return Bot{}, botNotFound(id)
	}
	if b.Platform != "" {
		return Bot{}, apierror.PlatformAlreadySet(b.Platform,
			fmt.Sprintf("Bot %q is already bound to %s.", id, b.Platform))
	}
	b.Platform = name
	return *b, nil
}

// Send delivers text through the bot's platform.
func (s *BotStore) Send(ctx context.Context, id, text string) (platform.Message, error) {
	s.mu.Lock()
	b, ok := s.bots[id]
	if !ok {
		s.mu.Unlock()
		return platform.Message{}, botNotFound(id)
	}
	if b.Platform == "" {
		s.mu.Unlock()
		return platform.Message{}, apierror.PlatformNotAvailable("",
			fmt.Sprintf("Bot %q is not bound to a platform.", id))
	}
	msg := platform.Message{BotID: id, Platform: b.Platform, Text: text, SentAt: s.now().UTC()}
	s.mu.Unlock()

	if err := s.sender.Send(ctx, msg); err != nil {
		if errors.Is(err, platform.ErrNotConfigured) {
			return platform.Message{}, apierror.PlatformNotAvailable(msg.Platform,
				fmt.Sprintf("No connector is configured for %s.", msg.Platform), apierror.WithCause(err))
		}
		return platform.Message{}, apierror.CanNotSendMessage(
			fmt.Sprintf("Could not deliver the message through %s.", msg.Platform), apierror.WithCause(err))
	}

	s.mu.Lock()
	if b, ok := s.bots[id]; ok {
		b.Messages++
	}
	s.mu.Unlock()
	return msg, nil
}

func botNotFound(id string) *apierror.Error {
	return apierror.BotDoesNotExist(fmt.Sprintf("Bot %q does not exist.", id))
}
