package messaging

import (
	"context"
	"fmt"

	"github.com/matheus3301/plated/internal/logging"
	"github.com/matheus3301/plated/internal/model"
	"github.com/matheus3301/plated/internal/sample"
	"go.uber.org/zap"
)

// Remote is the backend surface the messaging service needs.
type Remote interface {
	Conversations(ctx context.Context, fallback []model.Conversation) ([]model.Conversation, error)
	Messages(ctx context.Context, convID string, fallback []model.Message) ([]model.Message, error)
	MarkConversationRead(ctx context.Context, convID string) error
	UnreadCount(ctx context.Context, fallback *model.UnreadCount) (*model.UnreadCount, error)
}

// Sender delivers an outgoing message.
type Sender interface {
	Send(ctx context.Context, convID, content string) (*model.Message, error)
}

// Service drives the messaging store from user actions.
type Service struct {
	store  *Store
	remote Remote
	sender Sender
	logger *zap.Logger
}

// NewService creates a messaging service.
func NewService(store *Store, remote Remote, sender Sender, logger *zap.Logger) *Service {
	return &Service{store: store, remote: remote, sender: sender, logger: logging.OrNop(logger)}
}

// Store returns the underlying store.
func (s *Service) Store() *Store { return s.store }

// LoadConversations refreshes the inbox.
func (s *Service) LoadConversations(ctx context.Context) error {
	convs, err := s.remote.Conversations(ctx, sample.Conversations())
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	s.store.SetConversations(convs)
	return nil
}

// OpenConversation loads a thread, marks it read locally, then tells the
// backend. A failed remote mark-read is returned; the local read state is kept.
func (s *Service) OpenConversation(ctx context.Context, convID string) error {
	s.store.SetCurrentConversation(convID)
	msgs, err := s.remote.Messages(ctx, convID, sample.Messages(convID))
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", convID, err)
	}
	s.store.SetMessages(convID, msgs)

	if n := s.store.MarkAsRead(convID); n == 0 {
		return nil
	}
	if err := s.remote.MarkConversationRead(ctx, convID); err != nil {
		s.logger.Warn("mark read failed", zap.String("conversation_id", convID), zap.Error(err))
		return fmt.Errorf("mark conversation %s read: %w", convID, err)
	}
	return nil
}

// CloseConversation clears the open conversation.
func (s *Service) CloseConversation() {
	s.store.SetCurrentConversation("")
}

// RefreshUnread reloads the global unread counter.
func (s *Service) RefreshUnread(ctx context.Context) error {
	n, err := s.remote.UnreadCount(ctx, sample.UnreadCount())
	if err != nil {
		return fmt.Errorf("refresh unread count: %w", err)
	}
	s.store.SetUnreadCount(n.Count)
	return nil
}

// Send posts a message through the outgoing sender.
func (s *Service) Send(ctx context.Context, convID, content string) (*model.Message, error) {
	if s.sender == nil {
		return nil, fmt.Errorf("send to %s: no sender configured", convID)
	}
	return s.sender.Send(ctx, convID, content)
}
