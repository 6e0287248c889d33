package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds. Subscribers filter by prefix, e.g. "feed." or "remote.".
const (
	KindFeedChanged        = "feed.changed"
	KindMessagingChanged   = "messaging.changed"
	KindMessageSendAck     = "message.send_ack"
	KindMessageSendFailed  = "message.send_failed"
	KindRemoteMessage      = "remote.message"
	KindRemoteTyping       = "remote.typing"
	KindRemoteTypingExpire = "remote.typing_expired"
	KindRemoteBatch        = "remote.message_batch"
	KindFallbackUsed       = "sync.fallback_used"
	KindAuthFailure        = "sync.auth_failure"
	KindRewardLevelUp      = "reward.level_up"
	KindRewardBonus        = "reward.bonus_applied"
	KindCookStatusChanged  = "cook.status_changed"
	KindGamificationChange = "gamification.changed"
)

// NewEvent returns an event of the given kind stamped with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
