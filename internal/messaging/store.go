// Package messaging holds the conversation/message store and its service.
package messaging

import (
	"slices"
	"sync"

	"github.com/matheus3301/plated/internal/bus"
	"github.com/matheus3301/plated/internal/model"
)

// State is an immutable snapshot of the messaging store.
type State struct {
	Conversations []model.Conversation
	// Messages maps conversation id to its thread, oldest first.
	Messages map[string][]model.Message
	// Typing maps conversation id to the users currently typing in it.
	Typing              map[string][]model.TypingIndicator
	UnreadCount         int
	CurrentConversation string
}

// ConversationPatch is a partial conversation update. last_message,
// unread_count and updated_at are owned by the message operations and
// cannot be patched.
type ConversationPatch struct {
	ParticipantIDs []string
	Participants   []model.UserSummary
}

// MessagePatch is a partial message update. is_read only changes through
// MarkAsRead.
type MessagePatch struct {
	Content *string
	Status  *model.MessageStatus
}

// Store owns conversations, messages, typing indicators and the global
// unread counter. A message mutation and the matching conversation update
// are applied and published as one step.
type Store struct {
	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
	bus     *bus.Bus
}

// NewStore creates a store seeded with initial. b may be nil.
func NewStore(initial State, b *bus.Bus) *Store {
	s := &Store{state: cloneState(initial), subs: make(map[int]func(State)), bus: b}
	if s.state.Messages == nil {
		s.state.Messages = make(map[string][]model.Message)
	}
	if s.state.Typing == nil {
		s.state.Typing = make(map[string][]model.TypingIndicator)
	}
	s.state.UnreadCount = max(s.state.UnreadCount, 0)
	return s
}

// Subscribe registers fn to receive a snapshot after every mutation and
// returns the function that removes it. fn must not call into the store.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneState(s.state)
}

// Conversation returns a copy of one conversation.
func (s *Store) Conversation(id string) (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.convIndex(id); i >= 0 {
		return cloneConversation(s.state.Conversations[i]), true
	}
	return model.Conversation{}, false
}

// SetConversations replaces the conversation list.
func (s *Store) SetConversations(convs []model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Conversations = cloneConversations(convs)
	for i := range s.state.Conversations {
		s.state.Conversations[i].UnreadCount = max(s.state.Conversations[i].UnreadCount, 0)
	}
	s.commit()
}

// AddConversation inserts c at the head of the list, replacing any
// existing conversation with the same id.
func (s *Store) AddConversation(c model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.convIndex(c.ID); i >= 0 {
		s.state.Conversations = slices.Delete(s.state.Conversations, i, i+1)
	}
	c = cloneConversation(c)
	c.UnreadCount = max(c.UnreadCount, 0)
	s.state.Conversations = slices.Insert(s.state.Conversations, 0, c)
	s.commit()
}

// UpdateConversation applies patch to a conversation.
func (s *Store) UpdateConversation(id string, patch ConversationPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.convIndex(id)
	if i < 0 {
		return false
	}
	c := &s.state.Conversations[i]
	if patch.ParticipantIDs != nil {
		c.ParticipantIDs = slices.Clone(patch.ParticipantIDs)
	}
	if patch.Participants != nil {
		c.Participants = slices.Clone(patch.Participants)
	}
	s.commit()
	return true
}

// SetMessages replaces a conversation's thread, points its last_message at
// the newest entry and reconciles unread_count with the thread. The global
// counter moves by the same difference.
func (s *Store) SetMessages(convID string, msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := slices.Clone(msgs)
	unread := 0
	for i := range list {
		list[i].ConversationID = convID
		if !list[i].IsRead {
			unread++
		}
	}
	s.state.Messages[convID] = list
	if i := s.convIndex(convID); i >= 0 {
		c := &s.state.Conversations[i]
		s.state.UnreadCount = max(s.state.UnreadCount+unread-c.UnreadCount, 0)
		c.UnreadCount = unread
		if len(list) > 0 {
			s.syncLast(convID)
		}
	}
	s.commit()
}

// AddMessage appends m to its conversation and, in the same step, sets the
// conversation's last_message and updated_at to m. An unread message
// increments the conversation's and the global unread counters. A message
// whose id is already present is ignored.
func (s *Store) AddMessage(convID string, m model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ConversationID = convID
	if s.msgIndex(convID, m.ID) >= 0 {
		return false
	}
	s.state.Messages[convID] = append(s.state.Messages[convID], m)

	if i := s.convIndex(convID); i >= 0 {
		c := &s.state.Conversations[i]
		last := m
		c.LastMessage = &last
		c.UpdatedAt = m.CreatedAt
		if !m.IsRead {
			c.UnreadCount++
		}
		// Most recently active first.
		if i > 0 {
			moved := s.state.Conversations[i]
			s.state.Conversations = slices.Delete(s.state.Conversations, i, i+1)
			s.state.Conversations = slices.Insert(s.state.Conversations, 0, moved)
		}
	}
	if !m.IsRead {
		s.state.UnreadCount++
	}
	s.commit()
	return true
}

// UpdateMessage applies patch to one message.
func (s *Store) UpdateMessage(convID, msgID string, patch MessagePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.msgIndex(convID, msgID)
	if j < 0 {
		return false
	}
	m := &s.state.Messages[convID][j]
	if patch.Content != nil {
		m.Content = *patch.Content
	}
	if patch.Status != nil {
		m.Status = *patch.Status
	}
	s.refreshLast(convID, msgID)
	s.commit()
	return true
}

// RemoveMessage deletes a message, undoing its effect on the unread
// counters and on last_message.
func (s *Store) RemoveMessage(convID, msgID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.msgIndex(convID, msgID)
	if j < 0 {
		return false
	}
	removed := s.state.Messages[convID][j]
	s.state.Messages[convID] = slices.Delete(s.state.Messages[convID], j, j+1)

	if i := s.convIndex(convID); i >= 0 {
		c := &s.state.Conversations[i]
		if !removed.IsRead {
			c.UnreadCount = max(c.UnreadCount-1, 0)
		}
		if c.LastMessage != nil && c.LastMessage.ID == msgID {
			s.syncLast(convID)
		}
	}
	if !removed.IsRead {
		s.state.UnreadCount = max(s.state.UnreadCount-1, 0)
	}
	s.commit()
	return true
}

// ReplaceMessage swaps the message tempID for m, as when an optimistic send
// is acknowledged. If m.ID is already in the thread the temporary copy is
// dropped and the existing entry updated instead.
func (s *Store) ReplaceMessage(convID, tempID string, m model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.msgIndex(convID, tempID)
	if j < 0 {
		return false
	}
	m.ConversationID = convID
	old := s.state.Messages[convID][j]

	if k := s.msgIndex(convID, m.ID); k >= 0 && k != j {
		existing := s.state.Messages[convID][k]
		m.IsRead = existing.IsRead
		s.state.Messages[convID][k] = m
		s.state.Messages[convID] = slices.Delete(s.state.Messages[convID], j, j+1)
		s.adjustUnread(convID, !old.IsRead, false)
	} else {
		s.state.Messages[convID][j] = m
		s.adjustUnread(convID, !old.IsRead, !m.IsRead)
	}

	if i := s.convIndex(convID); i >= 0 {
		if lm := s.state.Conversations[i].LastMessage; lm != nil && (lm.ID == tempID || lm.ID == m.ID) {
			s.syncLast(convID)
		}
	}
	s.commit()
	return true
}

// MarkAsRead flips is_read on every message of the conversation, zeroes
// its unread_count and lowers the global counter by the number of messages
// that were unread before the call. It returns that number. When the
// loaded thread disagrees with the conversation's unread_count (a thread
// never opened has no messages loaded), the larger of the two is used;
// the global counter never drops below zero.
func (s *Store) MarkAsRead(convID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	unread := 0
	msgs := s.state.Messages[convID]
	for j := range msgs {
		if !msgs[j].IsRead {
			msgs[j].IsRead = true
			unread++
		}
	}
	if i := s.convIndex(convID); i >= 0 {
		c := &s.state.Conversations[i]
		unread = max(unread, c.UnreadCount)
		c.UnreadCount = 0
		if c.LastMessage != nil {
			c.LastMessage.IsRead = true
		}
	}
	s.state.UnreadCount = max(s.state.UnreadCount-unread, 0)
	s.commit()
	return unread
}

// SetTypingIndicator removes any entry for the indicator's conversation
// and user, then re-adds it only if the user is typing.
func (s *Store) SetTypingIndicator(ind model.TypingIndicator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeTyping(ind.ConversationID, ind.UserID)
	if ind.IsTyping {
		s.state.Typing[ind.ConversationID] = append(s.state.Typing[ind.ConversationID], ind)
	}
	s.commit()
}

// RemoveTypingIndicator removes the user's indicator unconditionally.
func (s *Store) RemoveTypingIndicator(convID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeTyping(convID, userID)
	s.commit()
}

// TypingUsers returns the ids of users typing in a conversation.
func (s *Store) TypingUsers(convID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, ind := range s.state.Typing[convID] {
		ids = append(ids, ind.UserID)
	}
	return ids
}

func (s *Store) removeTyping(convID, userID string) {
	list := slices.DeleteFunc(s.state.Typing[convID], func(ind model.TypingIndicator) bool {
		return ind.UserID == userID
	})
	if len(list) == 0 {
		delete(s.state.Typing, convID)
		return
	}
	s.state.Typing[convID] = list
}

// SetUnreadCount sets the global unread counter, clamped at 0.
func (s *Store) SetUnreadCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.UnreadCount = max(n, 0)
	s.commit()
}

// IncrementUnreadCount adds one to the global unread counter.
func (s *Store) IncrementUnreadCount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.UnreadCount++
	s.commit()
}

// DecrementUnreadCount subtracts n from the global unread counter, clamped at 0.
func (s *Store) DecrementUnreadCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.UnreadCount = max(s.state.UnreadCount-max(n, 0), 0)
	s.commit()
}

// SetCurrentConversation records the open conversation ("" for none).
func (s *Store) SetCurrentConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentConversation = id
	s.commit()
}

// Reset clears all messaging state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{
		Messages: make(map[string][]model.Message),
		Typing:   make(map[string][]model.TypingIndicator),
	}
	s.commit()
}

// syncLast points last_message and updated_at at the newest message of
// the thread, or clears last_message for an empty thread.
func (s *Store) syncLast(convID string) {
	i := s.convIndex(convID)
	if i < 0 {
		return
	}
	c := &s.state.Conversations[i]
	msgs := s.state.Messages[convID]
	if len(msgs) == 0 {
		c.LastMessage = nil
		return
	}
	last := msgs[len(msgs)-1]
	c.LastMessage = &last
	c.UpdatedAt = last.CreatedAt
}

// refreshLast re-copies last_message if it is msgID.
func (s *Store) refreshLast(convID, msgID string) {
	i := s.convIndex(convID)
	if i < 0 {
		return
	}
	if lm := s.state.Conversations[i].LastMessage; lm != nil && lm.ID == msgID {
		s.syncLast(convID)
	}
}

func (s *Store) adjustUnread(convID string, wasUnread, isUnread bool) {
	delta := 0
	if wasUnread {
		delta--
	}
	if isUnread {
		delta++
	}
	if delta == 0 {
		return
	}
	if i := s.convIndex(convID); i >= 0 {
		c := &s.state.Conversations[i]
		c.UnreadCount = max(c.UnreadCount+delta, 0)
	}
	s.state.UnreadCount = max(s.state.UnreadCount+delta, 0)
}

func (s *Store) convIndex(id string) int {
	return slices.IndexFunc(s.state.Conversations, func(c model.Conversation) bool { return c.ID == id })
}

func (s *Store) msgIndex(convID, msgID string) int {
	return slices.IndexFunc(s.state.Messages[convID], func(m model.Message) bool { return m.ID == msgID })
}

// commit notifies subscribers. Callers hold s.mu.
func (s *Store) commit() {
	snap := cloneState(s.state)
	for _, fn := range s.subs {
		fn(snap)
	}
	s.bus.Publish(bus.NewEvent(bus.KindMessagingChanged, snap.UnreadCount))
}

func cloneState(st State) State {
	out := st
	out.Conversations = cloneConversations(st.Conversations)
	if st.Messages != nil {
		out.Messages = make(map[string][]model.Message, len(st.Messages))
		for k, v := range st.Messages {
			out.Messages[k] = slices.Clone(v)
		}
	}
	if st.Typing != nil {
		out.Typing = make(map[string][]model.TypingIndicator, len(st.Typing))
		for k, v := range st.Typing {
			out.Typing[k] = slices.Clone(v)
		}
	}
	return out
}

func cloneConversations(convs []model.Conversation) []model.Conversation {
	if convs == nil {
		return nil
	}
	out := make([]model.Conversation, len(convs))
	for i, c := range convs {
		out[i] = cloneConversation(c)
	}
	return out
}

func cloneConversation(c model.Conversation) model.Conversation {
	if c.LastMessage != nil {
		last := *c.LastMessage
		c.LastMessage = &last
	}
	c.ParticipantIDs = slices.Clone(c.ParticipantIDs)
	c.Participants = slices.Clone(c.Participants)
	return c
}
