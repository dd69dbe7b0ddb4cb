package subscriptions

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/systemshift/weave/internal/core"
	"github.com/systemshift/weave/internal/graph"
)

// Manager holds subscriptions and fans mutation events out to the ones
// whose patterns match. Events arrive through a buffered channel so the
// emitting mutation never blocks on delivery.
type Manager struct {
	log      *zap.Logger
	notifier *Notifier

	mu   sync.RWMutex
	subs map[string]*Subscription

	events chan graph.Event
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewManager creates a subscription manager.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		log:      log,
		notifier: NewNotifier(),
		subs:     make(map[string]*Subscription),
		events:   make(chan graph.Event, 1000),
		done:     make(chan struct{}),
	}
}

// Start begins processing events.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.processEvents()
}

// Stop shuts the manager down. Queued events that have not been
// dispatched yet are discarded.
func (m *Manager) Stop() {
	close(m.done)
	m.wg.Wait()
}

// HandleEvent enqueues an event for delivery. It never blocks: when the
// queue is full the event is dropped with a log line.
func (m *Manager) HandleEvent(event graph.Event) {
	select {
	case m.events <- event:
	default:
		m.log.Warn("event queue full, dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type))
	}
}

// Register adds a new subscription and returns it.
func (m *Manager) Register(name, description, webhook string, pattern Pattern) (*Subscription, error) {
	if name == "" {
		return nil, &core.ValidationError{Field: "name", Reason: "required"}
	}
	if webhook == "" {
		return nil, &core.ValidationError{Field: "webhook", Reason: "required"}
	}

	now := time.Now()
	sub := &Subscription{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Pattern:     pattern,
		Webhook:     webhook,
		Enabled:     true,
		Created:     now,
		Modified:    now,
	}

	m.mu.Lock()
	m.subs[sub.ID] = sub
	m.mu.Unlock()

	m.log.Info("subscription registered",
		zap.String("id", sub.ID),
		zap.String("name", sub.Name))
	return sub, nil
}

// Get returns a subscription by id.
func (m *Manager) Get(id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, &core.NotFoundError{Kind: "subscription", ID: id}
	}
	copied := *sub
	return &copied, nil
}

// List returns all subscriptions.
func (m *Manager) List() []*Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		copied := *sub
		out = append(out, &copied)
	}
	return out
}

// Delete removes a subscription, reporting whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return false
	}
	delete(m.subs, id)
	return true
}

func (m *Manager) processEvents() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case event := <-m.events:
			m.dispatch(event)
		}
	}
}

func (m *Manager) dispatch(event graph.Event) {
	m.mu.Lock()
	var fired []*Subscription
	for _, sub := range m.subs {
		if !sub.Enabled || !sub.Pattern.Matches(event) {
			continue
		}
		now := time.Now()
		sub.LastFired = &now
		sub.FireCount++
		copied := *sub
		fired = append(fired, &copied)
	}
	m.mu.Unlock()

	for _, sub := range fired {
		notification := Notification{
			SubscriptionID:   sub.ID,
			SubscriptionName: sub.Name,
			Event:            event,
			MatchedAt:        time.Now(),
		}
		if err := m.notifier.SendWebhook(sub.Webhook, notification); err != nil {
			m.log.Warn("webhook delivery failed",
				zap.String("subscription_id", sub.ID),
				zap.Error(err))
		}
	}
}
