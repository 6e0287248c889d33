package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/matheus3301/plated/internal/model"
)

// Conversations lists the user's conversations.
func (c *Client) Conversations(ctx context.Context, fallback []model.Conversation) ([]model.Conversation, error) {
	return Read(ctx, c, "conversations", Request{Method: http.MethodGet, Path: "/messages/conversations"}, fallback)
}

// Messages lists the messages of a conversation.
func (c *Client) Messages(ctx context.Context, convID string, fallback []model.Message) ([]model.Message, error) {
	req := Request{Method: http.MethodGet, Path: "/messages/conversations/" + url.PathEscape(convID)}
	return Read(ctx, c, "messages", req, fallback)
}

// SendMessage posts a message and returns the server's copy.
func (c *Client) SendMessage(ctx context.Context, in model.SendMessageRequest) (*model.Message, error) {
	var out model.Message
	if err := c.Call(ctx, Request{Method: http.MethodPost, Path: "/messages/send", Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkConversationRead marks every message of a conversation read.
func (c *Client) MarkConversationRead(ctx context.Context, convID string) error {
	req := Request{Method: http.MethodPatch, Path: "/messages/conversations/" + url.PathEscape(convID) + "/read"}
	return c.Call(ctx, req, nil)
}

// UnreadCount returns the global unread message count.
func (c *Client) UnreadCount(ctx context.Context, fallback *model.UnreadCount) (*model.UnreadCount, error) {
	return Read(ctx, c, "unread", Request{Method: http.MethodGet, Path: "/messages/unread"}, fallback)
}
