// Package gamification holds challenges, cook sessions, progression, squads
// and coupons, and the service that keeps them in sync with the backend.
package gamification

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/plated/internal/bus"
	"github.com/matheus3301/plated/internal/cooksession"
	"github.com/matheus3301/plated/internal/model"
	"github.com/matheus3301/plated/internal/optimistic"
	"github.com/matheus3301/plated/internal/reward"
)

var (
	ErrNoSession      = errors.New("gamification: no cook session")
	ErrUnknownSession = errors.New("gamification: unknown cook session")
)

// State is an immutable snapshot of the gamification store.
type State struct {
	Challenges       []model.Challenge
	ActiveChallenges []model.Challenge
	CurrentSession   *model.CookSession
	// Sessions holds finished sessions by id, kept for late proofs.
	Sessions        map[string]model.CookSession
	Rewards         model.RewardSummary
	Squad           *model.Squad
	SquadMembers    []model.SquadMember
	Leaderboard     []model.Squad
	Coupons         []model.Coupon
	DailyIngredient *model.DailyIngredient
	SkillTracks     []model.SkillTrack
	// BadgeCatalog is every badge that can be earned.
	BadgeCatalog []model.Badge
}

// ChallengePatch is a partial challenge update. Nil fields are left unchanged.
type ChallengePatch struct {
	Status    *model.ChallengeStatus
	StartedAt *time.Time
}

// Store owns gamification state. Progression lives in the reward engine;
// every reward operation goes through the store so subscribers see it.
// Subscribers must not call back into the store.
type Store struct {
	mu       sync.Mutex
	state    State
	current  *cooksession.Machine
	finished map[string]*cooksession.Machine
	engine   *reward.Engine
	revs     optimistic.Revisions
	subs     map[int]func(State)
	nextSub  int
	bus      *bus.Bus
}

// NewStore creates a store over engine. b may be nil.
func NewStore(engine *reward.Engine, b *bus.Bus) *Store {
	return &Store{
		engine:   engine,
		finished: make(map[string]*cooksession.Machine),
		revs:     optimistic.Revisions{},
		subs:     make(map[int]func(State)),
		bus:      b,
	}
}

// Engine returns the reward engine backing the store.
func (s *Store) Engine() *reward.Engine { return s.engine }

// Subscribe registers fn to receive a snapshot after every mutation and
// returns the function that removes it.
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
	return s.snapshot()
}

// Challenge returns a copy of the challenge with the given id.
func (s *Store) Challenge(id string) (model.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.challengeIndex(id); i >= 0 {
		return s.state.Challenges[i], true
	}
	return model.Challenge{}, false
}

// SetChallenges replaces the challenge list.
func (s *Store) SetChallenges(list []model.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Challenges = slices.Clone(list)
	for _, c := range list {
		s.revs.Bump(c.ID)
	}
	s.commit()
}

// SetActiveChallenges replaces the list of challenges in progress.
func (s *Store) SetActiveChallenges(list []model.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ActiveChallenges = slices.Clone(list)
	s.commit()
}

// PutChallenge replaces the challenge with the same id, or appends it.
func (s *Store) PutChallenge(c model.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.challengeIndex(c.ID); i >= 0 {
		s.state.Challenges[i] = c
	} else {
		s.state.Challenges = append(s.state.Challenges, c)
	}
	s.syncActive(c)
	s.revs.Bump(c.ID)
	s.commit()
}

// UpdateChallenge applies patch to the challenge. The active list follows
// the status.
func (s *Store) UpdateChallenge(id string, patch ChallengePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.challengeIndex(id)
	if i < 0 {
		return false
	}
	c := &s.state.Challenges[i]
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.StartedAt != nil {
		at := *patch.StartedAt
		c.StartedAt = &at
	}
	s.syncActive(*c)
	s.revs.Bump(id)
	s.commit()
	return true
}

// StartChallenge marks an available challenge in progress at now. It
// reports false for unknown challenges and ones that are not available.
func (s *Store) StartChallenge(id string, now time.Time) (optimistic.Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.challengeIndex(id)
	if i < 0 || s.state.Challenges[i].Status != model.ChallengeAvailable {
		return nil, false
	}
	prev := s.state.Challenges[i]
	c := &s.state.Challenges[i]
	c.Status = model.ChallengeInProgress
	at := now
	c.StartedAt = &at
	s.syncActive(*c)
	rev := s.revs.Bump(id)
	s.commit()

	return optimistic.RevertFunc(func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		i := s.challengeIndex(id)
		if i < 0 || !s.revs.Current(id, rev) {
			return false
		}
		c := &s.state.Challenges[i]
		c.Status, c.StartedAt = prev.Status, prev.StartedAt
		s.syncActive(*c)
		s.revs.Bump(id)
		s.commit()
		return true
	}), true
}

// syncActive keeps ActiveChallenges equal to the in-progress challenges.
func (s *Store) syncActive(c model.Challenge) {
	i := slices.IndexFunc(s.state.ActiveChallenges, func(a model.Challenge) bool { return a.ID == c.ID })
	switch {
	case c.Status == model.ChallengeInProgress && i >= 0:
		s.state.ActiveChallenges[i] = c
	case c.Status == model.ChallengeInProgress:
		s.state.ActiveChallenges = append(s.state.ActiveChallenges, c)
	case i >= 0:
		s.state.ActiveChallenges = slices.Delete(s.state.ActiveChallenges, i, i+1)
	}
}

// SetCurrentSession makes m the session being cooked. A nil m clears it.
func (s *Store) SetCurrentSession(m *cooksession.Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = m
	s.commit()
}

// CurrentSession returns the session being cooked.
func (s *Store) CurrentSession() (*cooksession.Machine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != nil
}

// Session looks up the current or a finished session by id.
func (s *Store) Session(id string) (*cooksession.Machine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionLocked(id)
}

func (s *Store) sessionLocked(id string) (*cooksession.Machine, bool) {
	if s.current != nil && s.current.Session().ID == id {
		return s.current, true
	}
	m, ok := s.finished[id]
	return m, ok
}

// UpdateSessionStep completes step idx of the current session at now and
// reports whether it was the final step.
func (s *Store) UpdateSessionStep(idx int, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false, ErrNoSession
	}
	done, err := s.current.CompleteStep(idx, now)
	if err != nil {
		return false, err
	}
	s.commit()
	return done, nil
}

// CompleteSession retires the submitted current session, marking its
// challenge completed. The session stays reachable by id for a later proof.
func (s *Store) CompleteSession() (model.CookSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.CookSession{}, ErrNoSession
	}
	if st := s.current.Current(); st == cooksession.NotStarted || st == cooksession.InProgress {
		return model.CookSession{}, fmt.Errorf("complete session: session is %s", st)
	}
	sess := s.current.Session()
	s.finished[sess.ID] = s.current
	s.current = nil
	if i := s.challengeIndex(sess.ChallengeID); i >= 0 {
		c := &s.state.Challenges[i]
		c.Status = model.ChallengeCompleted
		s.syncActive(*c)
		s.revs.Bump(c.ID)
	}
	s.commit()
	return sess, nil
}

// AttachProof attaches a proof to a submitted session.
func (s *Store) AttachProof(sessionID string, p model.Proof) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessionLocked(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if err := m.AttachProof(p); err != nil {
		return err
	}
	s.commit()
	return nil
}

// ResolveProof records the verification outcome of a session's proof.
func (s *Store) ResolveProof(sessionID string, outcome model.VerificationStatus, score *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessionLocked(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if err := m.ResolveVerification(outcome, score); err != nil {
		return err
	}
	s.commit()
	return nil
}

// SetRewards replaces the progression with one fetched from the backend.
func (s *Store) SetRewards(r model.RewardSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Replace(r)
	s.commit()
}

// AddXP adds xp and reports whether the level went up.
func (s *Store) AddXP(amount int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	up := s.engine.AddXP(amount)
	s.commit()
	return up
}

// AddCoins adds coins.
func (s *Store) AddCoins(amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.AddCoins(amount)
	s.commit()
}

// SpendCoins deducts coins if the balance covers them.
func (s *Store) SpendCoins(amount int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.engine.SpendCoins(amount) {
		return false
	}
	s.commit()
	return true
}

// IncrementStreak extends the streak by one day.
func (s *Store) IncrementStreak(now time.Time) model.StreakInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.engine.IncrementStreak(now)
	s.commit()
	return st
}

// UseStreakFreeze spends a freeze token if one remains.
func (s *Store) UseStreakFreeze() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.engine.UseStreakFreeze() {
		return false
	}
	s.commit()
	return true
}

// RecordActivity updates the streak for a completion at now.
func (s *Store) RecordActivity(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.engine.RecordActivity(now)
	if changed {
		s.commit()
	}
	return changed
}

// EarnBadge unlocks a badge.
func (s *Store) EarnBadge(badge model.Badge, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	earned := s.engine.EarnBadge(badge, now)
	if earned {
		s.commit()
	}
	return earned
}

// AdvanceBadge moves a progress badge and reports whether it was earned.
func (s *Store) AdvanceBadge(id string, delta int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	earned := s.engine.AdvanceBadge(id, delta)
	s.commit()
	return earned
}

// ApplyBonus grants a bonus once per event id.
func (s *Store) ApplyBonus(b reward.Bonus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied, err := s.engine.ApplyBonus(b)
	if applied {
		s.commit()
	}
	return applied, err
}

// AdvanceTrack counts the session's recipe toward a skill track and keeps
// the listed track's progress in step with it.
func (s *Store) AdvanceTrack(trackID, name, sessionID string, now time.Time) (reward.TrackResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.engine.AdvanceTrack(trackID, name, sessionID)
	if err != nil {
		return res, err
	}
	if i := s.trackIndex(trackID); i >= 0 {
		t := &s.state.SkillTracks[i]
		t.CompletedRecipes = max(t.CompletedRecipes, res.Progress)
		if res.Completed && t.CompletedAt == nil {
			at := now
			t.CompletedAt = &at
		}
	}
	s.commit()
	return res, nil
}

// SetSkillTracks replaces the skill track list.
func (s *Store) SetSkillTracks(list []model.SkillTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SkillTracks = slices.Clone(list)
	s.commit()
}

// SetBadgeCatalog replaces the badge catalog.
func (s *Store) SetBadgeCatalog(list []model.Badge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.BadgeCatalog = slices.Clone(list)
	s.commit()
}

// SetSquad sets the user's squad and its members. A nil squad means none.
func (s *Store) SetSquad(squad *model.Squad, members []model.SquadMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if squad == nil {
		s.state.Squad = nil
		s.state.SquadMembers = nil
	} else {
		sq := *squad
		s.state.Squad = &sq
		s.state.SquadMembers = slices.Clone(members)
	}
	s.commit()
}

// SetLeaderboard replaces the squads leaderboard.
func (s *Store) SetLeaderboard(squads []model.Squad) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Leaderboard = slices.Clone(squads)
	s.commit()
}

// SetCoupons replaces the coupon market.
func (s *Store) SetCoupons(coupons []model.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Coupons = slices.Clone(coupons)
	s.commit()
}

// ClaimCoupon buys an available coupon with coins. It reports false and
// changes nothing when the coupon is not available or unaffordable.
func (s *Store) ClaimCoupon(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.couponIndex(id)
	if i < 0 || s.state.Coupons[i].Status != model.CouponAvailable {
		return false
	}
	if !s.engine.SpendCoins(s.state.Coupons[i].Cost) {
		return false
	}
	s.state.Coupons[i].Status = model.CouponClaimed
	s.commit()
	return true
}

// RedeemCoupon uses a claimed coupon.
func (s *Store) RedeemCoupon(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.couponIndex(id)
	if i < 0 || s.state.Coupons[i].Status != model.CouponClaimed {
		return false
	}
	s.state.Coupons[i].Status = model.CouponRedeemed
	s.commit()
	return true
}

// SetDailyIngredient sets the day's chaos ingredient.
func (s *Store) SetDailyIngredient(d *model.DailyIngredient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == nil {
		s.state.DailyIngredient = nil
	} else {
		di := *d
		s.state.DailyIngredient = &di
	}
	s.commit()
}

// Reset clears everything, including progression.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
	s.current = nil
	s.finished = make(map[string]*cooksession.Machine)
	s.revs = optimistic.Revisions{}
	s.engine.Replace(model.RewardSummary{})
	s.commit()
}

func (s *Store) challengeIndex(id string) int {
	return slices.IndexFunc(s.state.Challenges, func(c model.Challenge) bool { return c.ID == id })
}

func (s *Store) trackIndex(id string) int {
	return slices.IndexFunc(s.state.SkillTracks, func(t model.SkillTrack) bool { return t.ID == id })
}

func (s *Store) couponIndex(id string) int {
	return slices.IndexFunc(s.state.Coupons, func(c model.Coupon) bool { return c.ID == id })
}

func (s *Store) snapshot() State {
	st := s.state
	st.Challenges = slices.Clone(s.state.Challenges)
	st.ActiveChallenges = slices.Clone(s.state.ActiveChallenges)
	st.SquadMembers = slices.Clone(s.state.SquadMembers)
	st.Leaderboard = slices.Clone(s.state.Leaderboard)
	st.Coupons = slices.Clone(s.state.Coupons)
	st.SkillTracks = slices.Clone(s.state.SkillTracks)
	st.BadgeCatalog = slices.Clone(s.state.BadgeCatalog)
	if s.state.Squad != nil {
		sq := *s.state.Squad
		st.Squad = &sq
	}
	if s.state.DailyIngredient != nil {
		d := *s.state.DailyIngredient
		st.DailyIngredient = &d
	}
	if s.current != nil {
		sess := s.current.Session()
		st.CurrentSession = &sess
	}
	st.Sessions = make(map[string]model.CookSession, len(s.finished))
	for id, m := range s.finished {
		st.Sessions[id] = m.Session()
	}
	st.Rewards = s.engine.Summary()
	return st
}

// commit notifies subscribers. Callers hold s.mu.
func (s *Store) commit() {
	snap := s.snapshot()
	for _, fn := range s.subs {
		fn(snap)
	}
	s.bus.Publish(bus.NewEvent(bus.KindGamificationChange, snap.Rewards.XP))
}
