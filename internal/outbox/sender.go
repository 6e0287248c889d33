package outbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/matheus3301/plated/internal/bus"
	"github.com/matheus3301/plated/internal/logging"
	"github.com/matheus3301/plated/internal/messaging"
	"github.com/matheus3301/plated/internal/model"
	"go.uber.org/zap"
)

// TempIDPrefix marks ids of messages not yet acknowledged by the backend.
const TempIDPrefix = "tmp-"

// MessageSender is the backend call that delivers a message.
type MessageSender interface {
	SendMessage(ctx context.Context, in model.SendMessageRequest) (*model.Message, error)
}

// Sender delivers outgoing messages optimistically: the message appears in
// the thread as "sending" right away, is promoted to the server's copy on
// acknowledgment, and is removed again if the backend refuses it.
type Sender struct {
	store    *messaging.Store
	sender   MessageSender
	bus      *bus.Bus
	logger   *zap.Logger
	self     model.UserSummary
	validate *validator.Validate
	now      func() time.Time
}

// NewSender creates a new outgoing message sender. self is the local user.
func NewSender(store *messaging.Store, sender MessageSender, b *bus.Bus, self model.UserSummary, logger *zap.Logger) *Sender {
	return &Sender{
		store:    store,
		sender:   sender,
		bus:      b,
		logger:   logging.OrNop(logger),
		self:     self,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// Send posts content to a conversation. It returns the acknowledged message,
// or the backend error after the optimistic copy has been removed.
func (s *Sender) Send(ctx context.Context, convID, content string) (*model.Message, error) {
	req := model.SendMessageRequest{ConversationID: convID, Content: strings.TrimSpace(content)}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("send to %s: invalid message: %w", convID, err)
	}

	// Optimistic insert: show the message in the thread immediately.
	tempID := TempIDPrefix + uuid.NewString()
	now := s.now()
	s.store.AddMessage(convID, model.Message{
		ID:             tempID,
		ConversationID: convID,
		SenderID:       s.self.ID,
		Sender:         s.self,
		Content:        req.Content,
		CreatedAt:      now,
		IsRead:         true,
		Status:         model.StatusSending,
	})

	ack, err := s.sender.SendMessage(ctx, req)
	if err != nil {
		s.logger.Error("failed to send message", zap.Error(err), zap.String("temp_id", tempID))
		s.store.RemoveMessage(convID, tempID)
		s.bus.Publish(bus.NewEvent(bus.KindMessageSendFailed, map[string]string{
			"conversation_id": convID,
			"temp_id":         tempID,
			"error":           err.Error(),
		}))
		return nil, fmt.Errorf("send to %s: %w", convID, err)
	}

	// Our own message never counts as unread for us.
	msg := *ack
	msg.IsRead = true
	if msg.Status == "" || msg.Status == model.StatusSending {
		msg.Status = model.StatusSent
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if msg.SenderID == "" {
		msg.SenderID, msg.Sender = s.self.ID, s.self
	}
	if !s.store.ReplaceMessage(convID, tempID, msg) {
		// The thread was reloaded while the send was in flight.
		s.store.AddMessage(convID, msg)
	}

	s.logger.Info("message sent", zap.String("temp_id", tempID), zap.String("message_id", msg.ID))
	s.bus.Publish(bus.NewEvent(bus.KindMessageSendAck, map[string]string{
		"conversation_id": convID,
		"temp_id":         tempID,
		"message_id":      msg.ID,
	}))
	return &msg, nil
}
