package model

import "time"

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Message is a direct message inside a conversation.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	Sender         UserSummary   `json:"sender"`
	Content        string        `json:"content"`
	CreatedAt      time.Time     `json:"created_at"`
	IsRead         bool          `json:"is_read"`
	Status         MessageStatus `json:"status"`
}

// Conversation is a message thread. LastMessage and UnreadCount are
// maintained by the messaging store's message mutation path.
type Conversation struct {
	ID             string        `json:"id"`
	ParticipantIDs []string      `json:"participant_ids"`
	Participants   []UserSummary `json:"participants"`
	LastMessage    *Message      `json:"last_message,omitempty"`
	UnreadCount    int           `json:"unread_count"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// TypingIndicator reports that a user is typing in a conversation.
type TypingIndicator struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

// SendMessageRequest is the payload of POST /messages/send.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	Content        string `json:"content" validate:"required,max=2000"`
}

// UnreadCount is the payload of GET /messages/unread.
type UnreadCount struct {
	Count int `json:"count"`
}
