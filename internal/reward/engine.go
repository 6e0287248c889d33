package reward

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/plated/internal/bus"
	"github.com/matheus3301/plated/internal/logging"
	"github.com/matheus3301/plated/internal/model"
	"github.com/matheus3301/plated/internal/store"
	"go.uber.org/zap"
)

// Ledger persists applied bonuses and the summary snapshot.
type Ledger interface {
	RecordGrant(e store.LedgerEntry) (bool, error)
	SaveRewardSummary(body []byte) error
}

// Bonus is a one-off grant identified by EventID. Applying the same event
// twice has no further effect.
type Bonus struct {
	EventID   string
	Kind      string
	SessionID string
	XP        int
	Coins     int
}

// ErrInvalidBonus is returned for a bonus without an event id or with a
// negative amount.
var ErrInvalidBonus = errors.New("reward: invalid bonus")

// Engine is the only writer of a RewardSummary. Level and NextLevelXP are
// recomputed every time xp changes. Refused operations (overdraft, no
// freeze token) leave the summary unchanged and report false.
type Engine struct {
	mu      sync.Mutex
	summary model.RewardSummary
	applied map[string]bool
	ledger  Ledger
	bus     *bus.Bus
	logger  *zap.Logger
	now     func() time.Time
}

// NewEngine creates an engine from initial, normalizing counters and the
// derived level fields. ledger and b may be nil.
func NewEngine(initial model.RewardSummary, ledger Ledger, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{
		summary: normalize(initial),
		applied: make(map[string]bool),
		ledger:  ledger,
		bus:     b,
		logger:  logging.OrNop(logger),
		now:     time.Now,
	}
}

// Summary returns a copy of the current progression.
func (e *Engine) Summary() model.RewardSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSummary(e.summary)
}

// Replace swaps in a summary fetched from the backend. Derived fields are
// recomputed from its xp.
func (e *Engine) Replace(s model.RewardSummary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summary = normalize(s)
	e.persist()
}

// AddXP adds amount to xp and reports whether the level went up.
// Non-positive amounts are ignored.
func (e *Engine) AddXP(amount int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	up := e.addXP(amount)
	e.persist()
	return up
}

func (e *Engine) addXP(amount int) bool {
	if amount <= 0 {
		return false
	}
	before := e.summary.Level
	e.summary.XP += amount
	e.summary.Level = Level(e.summary.XP)
	e.summary.NextLevelXP = NextLevelXP(e.summary.Level)
	if e.summary.Level <= before {
		return false
	}
	e.logger.Info("level up", zap.Int("level", e.summary.Level), zap.Int("xp", e.summary.XP))
	e.bus.Publish(bus.NewEvent(bus.KindRewardLevelUp, map[string]int{
		"level": e.summary.Level,
		"xp":    e.summary.XP,
	}))
	return true
}

// AddCoins adds amount to the balance. Non-positive amounts are ignored.
func (e *Engine) AddCoins(amount int) {
	if amount <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summary.Coins += amount
	e.persist()
}

// SpendCoins deducts amount if the balance covers it.
func (e *Engine) SpendCoins(amount int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if amount < 0 || amount > e.summary.Coins {
		return false
	}
	e.summary.Coins -= amount
	e.persist()
	return true
}

// IncrementStreak extends the streak by one day completed at now.
func (e *Engine) IncrementStreak(now time.Time) model.StreakInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.extendStreak(now)
	e.persist()
	return e.summary.Streak
}

func (e *Engine) extendStreak(now time.Time) {
	st := &e.summary.Streak
	st.CurrentDays++
	st.LongestStreak = max(st.LongestStreak, st.CurrentDays)
	at := now
	st.LastCompletedAt = &at
}

// UseStreakFreeze spends one freeze token if any remain.
func (e *Engine) UseStreakFreeze() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.summary.Streak.FreezeTokens <= 0 {
		return false
	}
	e.summary.Streak.FreezeTokens--
	e.persist()
	return true
}

// RecordActivity updates the streak for a completion at now, by calendar
// day in now's location: the same day changes nothing, the next day extends
// the streak, a single missed day is bridged by a freeze token when one
// remains, and any longer gap restarts the streak at 1. It reports whether
// the streak changed.
func (e *Engine) RecordActivity(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := &e.summary.Streak
	if st.LastCompletedAt == nil {
		e.extendStreak(now)
		e.persist()
		return true
	}

	switch gap := daysBetween(*st.LastCompletedAt, now); {
	case gap <= 0:
		return false
	case gap == 1:
		e.extendStreak(now)
	case gap == 2 && st.FreezeTokens > 0:
		st.FreezeTokens--
		e.extendStreak(now)
	default:
		st.CurrentDays = 0
		e.extendStreak(now)
	}
	e.persist()
	return true
}

// EarnBadge unlocks badge at now, adding it if unknown. It reports false if
// the badge was already earned.
func (e *Engine) EarnBadge(badge model.Badge, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	at := now
	i := e.badgeIndex(badge.ID)
	if i < 0 {
		if badge.Total > 0 {
			badge.Progress = badge.Total
		}
		badge.EarnedAt = &at
		e.summary.Badges = append(e.summary.Badges, badge)
		e.persist()
		return true
	}
	b := &e.summary.Badges[i]
	if b.Earned() {
		return false
	}
	if b.Total > 0 {
		b.Progress = b.Total
	}
	b.EarnedAt = &at
	e.persist()
	return true
}

// TrackBadge adds a locked progress badge if it is not already present.
func (e *Engine) TrackBadge(badge model.Badge) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.badgeIndex(badge.ID) >= 0 {
		return
	}
	badge.EarnedAt = nil
	badge.Progress = min(max(badge.Progress, 0), max(badge.Total, 0))
	e.summary.Badges = append(e.summary.Badges, badge)
	e.persist()
}

// AdvanceBadge moves a progress badge by delta, clamped to [0, total]. The
// badge is earned the moment progress reaches total. It reports whether
// this call earned it.
func (e *Engine) AdvanceBadge(id string, delta int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.badgeIndex(id)
	if i < 0 {
		return false
	}
	b := &e.summary.Badges[i]
	if b.Total <= 0 || b.Earned() {
		return false
	}
	b.Progress = min(max(b.Progress+delta, 0), b.Total)
	earned := false
	if b.Progress == b.Total {
		at := e.now()
		b.EarnedAt = &at
		earned = true
	}
	e.persist()
	return earned
}

// ApplyBonus grants b once per event id. It reports false when the event
// was already applied.
func (e *Engine) ApplyBonus(b Bonus) (bool, error) {
	if b.EventID == "" || b.XP < 0 || b.Coins < 0 {
		return false, fmt.Errorf("%w: %+v", ErrInvalidBonus, b)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.applied[b.EventID] {
		return false, nil
	}
	if e.ledger != nil {
		inserted, err := e.ledger.RecordGrant(store.LedgerEntry{
			EventID:   b.EventID,
			Kind:      b.Kind,
			SessionID: b.SessionID,
			XP:        b.XP,
			Coins:     b.Coins,
			AppliedAt: e.now(),
		})
		if err != nil {
			return false, fmt.Errorf("apply bonus %s: %w", b.EventID, err)
		}
		if !inserted {
			e.applied[b.EventID] = true
			return false, nil
		}
	}
	e.applied[b.EventID] = true
	e.summary.Coins += b.Coins
	e.addXP(b.XP)
	e.persist()

	e.logger.Info("bonus applied", zap.String("event_id", b.EventID), zap.String("kind", b.Kind),
		zap.Int("xp", b.XP), zap.Int("coins", b.Coins))
	e.bus.Publish(bus.NewEvent(bus.KindRewardBonus, b))
	return true, nil
}

func (e *Engine) badgeIndex(id string) int {
	return slices.IndexFunc(e.summary.Badges, func(b model.Badge) bool { return b.ID == id })
}

// persist writes the summary snapshot. Callers hold e.mu.
func (e *Engine) persist() {
	if e.ledger == nil {
		return
	}
	body, err := json.Marshal(e.summary)
	if err != nil {
		e.logger.Error("failed to encode reward summary", zap.Error(err))
		return
	}
	if err := e.ledger.SaveRewardSummary(body); err != nil {
		e.logger.Warn("failed to persist reward summary", zap.Error(err))
	}
}

func daysBetween(from, to time.Time) int {
	y1, m1, d1 := from.In(to.Location()).Date()
	y2, m2, d2 := to.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func normalize(in model.RewardSummary) model.RewardSummary {
	s := cloneSummary(in)
	s.XP = max(s.XP, 0)
	s.Coins = max(s.Coins, 0)
	s.Streak.CurrentDays = max(s.Streak.CurrentDays, 0)
	s.Streak.LongestStreak = max(s.Streak.LongestStreak, s.Streak.CurrentDays)
	s.Streak.FreezeTokens = max(s.Streak.FreezeTokens, 0)
	if s.Badges == nil {
		s.Badges = []model.Badge{}
	}
	s.Level = Level(s.XP)
	s.NextLevelXP = NextLevelXP(s.Level)
	return s
}

func cloneSummary(s model.RewardSummary) model.RewardSummary {
	s.Badges = slices.Clone(s.Badges)
	if s.Streak.LastCompletedAt != nil {
		at := *s.Streak.LastCompletedAt
		s.Streak.LastCompletedAt = &at
	}
	return s
}
