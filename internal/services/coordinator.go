package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ad/go-telegram-autoreply/internal/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrInvalidArgument = errors.New("invalid argument")

const DefaultStateCacheSize = 10000

type Outcome string

const (
	OutcomeIgnored     Outcome = "ignored"
	OutcomeOwnerActive Outcome = "owner_active"
	OutcomeCooldown    Outcome = "cooldown"
	OutcomeReplied     Outcome = "replied"
	OutcomeSendFailed  Outcome = "send_failed"
)

type Transport interface {
	OwnIdentity(ctx context.Context) (int64, error)
	SendReply(ctx context.Context, peer models.Peer, replyTo int, text string) (int, error)
	DeleteMessage(ctx context.Context, peer models.Peer, messageID int) error
}

// SettingsStore returns nil from Load when nothing is stored yet.
type SettingsStore interface {
	Load() (*models.PartialSettings, error)
	Save(settings models.Settings) error
}

type ReplyStateStore interface {
	LoadAll(limit int) ([]models.ReplyState, error)
	Save(state models.ReplyState) error
}

type CommandResult struct {
	Settings  models.Settings
	Persisted bool
}

type CoordinatorOptions struct {
	ReplyStore     ReplyStateStore
	Metrics        *Metrics
	StateCacheSize int
	Now            func() time.Time
}

// Coordinator decides when a peer gets an auto-reply. mu covers settings,
// conversation states and the set of peers with a reply in flight. A peer is
// claimed under mu before the Bot API is called and released after the new
// state is recorded, so two messages from one peer can never both pass the
// cooldown check while a slow chat does not hold up the others.
type Coordinator struct {
	transport  Transport
	store      SettingsStore
	replyStore ReplyStateStore
	metrics    *Metrics
	presence   *Presence
	now        func() time.Time

	ownerID        int64
	stateCacheSize int

	mu       sync.Mutex
	settings models.Settings
	states   *lru.Cache[int64, *models.ReplyState]
	inFlight map[int64]struct{}
}

func NewCoordinator(transport Transport, store SettingsStore, opts CoordinatorOptions) (*Coordinator, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StateCacheSize <= 0 {
		opts.StateCacheSize = DefaultStateCacheSize
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	states, err := lru.New[int64, *models.ReplyState](opts.StateCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create state cache: %w", err)
	}

	c := &Coordinator{
		transport:  transport,
		store:      store,
		replyStore: opts.ReplyStore,
		metrics:    opts.Metrics,
		presence:   NewPresence(PresenceGrace, opts.Now),
		now:        opts.Now,
		settings:   models.DefaultSettings(),
		states:     states,
		inFlight:   make(map[int64]struct{}),

		stateCacheSize: opts.StateCacheSize,
	}
	c.presence.OnChange(c.metrics.setOwnerActive)
	return c, nil
}

// Start resolves the owner, loads settings and restores remembered replies.
// Only a failure to resolve the owner is fatal.
func (c *Coordinator) Start(ctx context.Context) error {
	ownerID, err := c.transport.OwnIdentity(ctx)
	if err != nil {
		return fmt.Errorf("resolve owner identity: %w", err)
	}
	c.ownerID = ownerID

	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings = c.loadSettings()
	c.restoreStates()

	log.Printf("[AUTOREPLY] Started for owner %d, cooldown %ds", c.ownerID, c.settings.CooldownSeconds)
	return nil
}

func (c *Coordinator) Stop() {
	c.presence.Stop()
}

func (c *Coordinator) OwnerID() int64 {
	return c.ownerID
}

func (c *Coordinator) loadSettings() models.Settings {
	partial, err := c.store.Load()
	if err != nil {
		if errors.Is(err, models.ErrMalformedSettings) {
			log.Printf("[SETTINGS] Stored settings are malformed, using defaults: %v", err)
		} else {
			log.Printf("[SETTINGS] Failed to load settings, using defaults: %v", err)
		}
		partial = nil
	}

	if partial == nil {
		settings := models.DefaultSettings()
		c.persistLocked(settings)
		return settings
	}

	settings, filled := partial.Complete()
	if filled {
		log.Printf("[SETTINGS] Missing settings fields filled with defaults")
		c.persistLocked(settings)
	}
	return settings
}

func (c *Coordinator) restoreStates() {
	if c.replyStore == nil {
		return
	}
	states, err := c.replyStore.LoadAll(c.stateCacheSize)
	if err != nil {
		log.Printf("[AUTOREPLY] Failed to restore reply state: %v", err)
		return
	}
	// Oldest first so the newest end up most recently used.
	for i := len(states) - 1; i >= 0; i-- {
		s := states[i]
		c.states.Add(s.Peer.ChatID, &s)
	}
	c.metrics.trackedPeers.Set(float64(c.states.Len()))
	if len(states) > 0 {
		log.Printf("[AUTOREPLY] Restored reply state for %d conversations", len(states))
	}
}

// HandleIncoming answers a peer's message unless the owner is around or the
// peer was answered within the cooldown window.
func (c *Coordinator) HandleIncoming(ctx context.Context, msg models.IncomingMessage) (Outcome, error) {
	outcome, err := c.handleIncoming(ctx, msg)
	c.metrics.observeOutcome(outcome)
	return outcome, err
}

func (c *Coordinator) handleIncoming(ctx context.Context, msg models.IncomingMessage) (Outcome, error) {
	if !msg.Private || msg.SenderID == c.ownerID || msg.Peer.ChatID == c.ownerID {
		return OutcomeIgnored, nil
	}
	if c.presence.Active() {
		return OutcomeOwnerActive, nil
	}

	peerID := msg.Peer.ChatID
	prev, text, now, claimed := c.claim(peerID)
	if !claimed {
		return OutcomeCooldown, nil
	}
	defer c.release(peerID)

	if prev.HasReply() {
		if err := c.transport.DeleteMessage(ctx, prev.Peer, prev.MessageID); err != nil {
			c.metrics.deleteFailures.Inc()
			log.Printf("[AUTOREPLY] Failed to delete previous reply %d in chat %d: %v", prev.MessageID, peerID, err)
		}
	}

	messageID, err := c.transport.SendReply(ctx, msg.Peer, msg.MessageID, text)
	if err != nil {
		log.Printf("[AUTOREPLY] Failed to send auto-reply to chat %d: %v", peerID, err)
		return OutcomeSendFailed, fmt.Errorf("send auto-reply to %d: %w", peerID, err)
	}

	state := models.ReplyState{Peer: msg.Peer, MessageID: messageID, SentAt: now}
	c.mu.Lock()
	c.states.Add(peerID, &state)
	c.metrics.trackedPeers.Set(float64(c.states.Len()))
	c.mu.Unlock()

	if c.replyStore != nil {
		if err := c.replyStore.Save(state); err != nil {
			c.metrics.saveFailures.WithLabelValues("reply_state").Inc()
			log.Printf("[AUTOREPLY] Failed to persist reply state for chat %d: %v", peerID, err)
		}
	}

	return OutcomeReplied, nil
}

// claim reserves the peer for one reply when it is outside its cooldown and
// no other reply to it is in flight. It returns a copy of the previous state
// and the reply text current at claim time.
func (c *Coordinator) claim(peerID int64) (prev *models.ReplyState, text string, now time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inFlight[peerID]; busy {
		return nil, "", time.Time{}, false
	}
	now = c.now()
	if s, found := c.states.Get(peerID); found {
		cooldown := time.Duration(c.settings.CooldownSeconds) * time.Second
		if !s.SentAt.IsZero() && now.Sub(s.SentAt) < cooldown {
			return nil, "", time.Time{}, false
		}
		cp := *s
		prev = &cp
	}
	c.inFlight[peerID] = struct{}{}
	return prev, c.settings.ReplyText, now, true
}

func (c *Coordinator) release(peerID int64) {
	c.mu.Lock()
	delete(c.inFlight, peerID)
	c.mu.Unlock()
}

// HandleOutgoing marks the owner present when they are the sender.
func (c *Coordinator) HandleOutgoing(senderID int64) bool {
	if senderID != c.ownerID {
		return false
	}
	c.presence.MarkActive()
	return true
}

func (c *Coordinator) OwnerActive() bool {
	return c.presence.Active()
}

func (c *Coordinator) Settings() models.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// ReplyState returns a copy of the remembered reply for a peer.
func (c *Coordinator) ReplyState(peerID int64) (models.ReplyState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states.Peek(peerID)
	if !ok {
		return models.ReplyState{}, false
	}
	return *s, true
}

func (c *Coordinator) ApplyCommand(_ context.Context, kind models.CommandKind, argument string) (CommandResult, error) {
	argument = strings.TrimSpace(argument)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case models.CommandShowSettings:
		return CommandResult{Settings: c.settings, Persisted: true}, nil

	case models.CommandSetCooldown:
		cooldown, err := ParseCooldown(argument)
		if err != nil {
			return CommandResult{Settings: c.settings}, err
		}
		c.settings.CooldownSeconds = cooldown
		persisted := c.persistLocked(c.settings)
		log.Printf("[SETTINGS] Cooldown set to %ds", cooldown)
		return CommandResult{Settings: c.settings, Persisted: persisted}, nil

	case models.CommandSetMessage:
		if argument == "" {
			return CommandResult{Settings: c.settings}, fmt.Errorf("%w: reply text is empty", ErrInvalidArgument)
		}
		c.settings.ReplyText = argument
		persisted := c.persistLocked(c.settings)
		log.Printf("[SETTINGS] Auto-reply text updated")
		return CommandResult{Settings: c.settings, Persisted: persisted}, nil

	default:
		return CommandResult{Settings: c.settings}, fmt.Errorf("%w: unknown command %q", ErrInvalidArgument, kind)
	}
}

func (c *Coordinator) persistLocked(settings models.Settings) bool {
	if err := c.store.Save(settings); err != nil {
		c.metrics.saveFailures.WithLabelValues("settings").Inc()
		log.Printf("[SETTINGS] Failed to save settings, keeping them in memory: %v", err)
		return false
	}
	return true
}

// ParseCooldown accepts a plain unsigned decimal number of seconds.
func ParseCooldown(argument string) (uint32, error) {
	argument = strings.TrimSpace(argument)
	if argument == "" {
		return 0, fmt.Errorf("%w: cooldown is empty", ErrInvalidArgument)
	}
	for _, r := range argument {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: cooldown %q is not a number", ErrInvalidArgument, argument)
		}
	}
	v, err := strconv.ParseUint(argument, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: cooldown %q is out of range", ErrInvalidArgument, argument)
	}
	return uint32(v), nil
}
