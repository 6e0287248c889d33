// Package realtime applies push signals from the backend (incoming
// messages and typing indicators) to the messaging store.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/plated/internal/bus"
	"github.com/matheus3301/plated/internal/logging"
	"github.com/matheus3301/plated/internal/messaging"
	"github.com/matheus3301/plated/internal/model"
	"go.uber.org/zap"
)

// Engine handles idempotent ingestion of pushed messages into the store.
// It subscribes to "remote." events on the bus and processes them in order.
type Engine struct {
	store  *messaging.Store
	bus    *bus.Bus
	logger *zap.Logger
	selfID string
	cancel context.CancelFunc

	// typingTimeout arms an expiry signal for each typing indicator; 0 disables it.
	typingTimeout time.Duration
	mu            sync.Mutex
	timers        map[typingKey]*time.Timer
}

type typingKey struct{ conv, user string }

// NewEngine creates a new realtime engine. selfID is the local user, whose
// echoed messages are ingested as read.
func NewEngine(store *messaging.Store, b *bus.Bus, selfID string, typingTimeout time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		store:         store,
		bus:           b,
		logger:        logging.OrNop(logger),
		selfID:        selfID,
		typingTimeout: typingTimeout,
		timers:        make(map[typingKey]*time.Timer),
	}
}

// Start subscribes to remote push events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("remote.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and any pending typing timers.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, t := range e.timers {
		t.Stop()
		delete(e.timers, k)
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindRemoteMessage:
		msg, ok := evt.Payload.(model.Message)
		if !ok {
			e.logger.Warn("unexpected message payload", zap.Any("payload", evt.Payload))
			return
		}
		e.IngestMessage(msg)
	case bus.KindRemoteBatch:
		msgs, ok := evt.Payload.([]model.Message)
		if !ok {
			return
		}
		n := e.IngestBatch(msgs)
		e.logger.Info("message batch ingested", zap.Int("messages", len(msgs)), zap.Int("new", n))
	case bus.KindRemoteTyping:
		ind, ok := evt.Payload.(model.TypingIndicator)
		if !ok {
			return
		}
		e.ApplyTyping(ind)
	case bus.KindRemoteTypingExpire:
		ind, ok := evt.Payload.(model.TypingIndicator)
		if !ok {
			return
		}
		e.store.RemoveTypingIndicator(ind.ConversationID, ind.UserID)
	}
}

// IngestMessage adds a pushed message to its conversation. Duplicates are
// ignored. An unknown conversation is created at the head of the inbox.
// It reports whether the message was new.
func (e *Engine) IngestMessage(msg model.Message) bool {
	if msg.ID == "" || msg.ConversationID == "" {
		e.logger.Warn("dropping pushed message without ids")
		return false
	}
	if msg.SenderID == e.selfID {
		msg.IsRead = true
	}
	if _, ok := e.store.Conversation(msg.ConversationID); !ok {
		e.store.AddConversation(model.Conversation{
			ID:             msg.ConversationID,
			ParticipantIDs: []string{msg.SenderID},
			Participants:   []model.UserSummary{msg.Sender},
			UpdatedAt:      msg.CreatedAt,
		})
	}
	added := e.store.AddMessage(msg.ConversationID, msg)
	if added {
		// A message ends the sender's typing indicator.
		e.store.RemoveTypingIndicator(msg.ConversationID, msg.SenderID)
		e.disarm(typingKey{msg.ConversationID, msg.SenderID})
	}
	return added
}

// IngestBatch ingests messages oldest first and returns how many were new.
func (e *Engine) IngestBatch(msgs []model.Message) int {
	n := 0
	for _, m := range msgs {
		if e.IngestMessage(m) {
			n++
		}
	}
	return n
}

// ApplyTyping sets or clears a typing indicator. With a typing timeout
// configured, each "is typing" signal arms an expiry that publishes
// remote.typing_expired unless a newer signal arrives first.
func (e *Engine) ApplyTyping(ind model.TypingIndicator) {
	if ind.UserID == e.selfID {
		return
	}
	e.store.SetTypingIndicator(ind)
	key := typingKey{ind.ConversationID, ind.UserID}
	if !ind.IsTyping || e.typingTimeout <= 0 {
		e.disarm(key)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[key]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(e.typingTimeout, func() {
		e.mu.Lock()
		current := e.timers[key] == timer
		if current {
			delete(e.timers, key)
		}
		e.mu.Unlock()
		if current {
			e.bus.Publish(bus.NewEvent(bus.KindRemoteTypingExpire, model.TypingIndicator{
				ConversationID: key.conv,
				UserID:         key.user,
			}))
		}
	})
	e.timers[key] = timer
}

func (e *Engine) disarm(key typingKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[key]; ok {
		t.Stop()
		delete(e.timers, key)
	}
}
