package gamification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/plated/internal/cooksession"
	"github.com/matheus3301/plated/internal/logging"
	"github.com/matheus3301/plated/internal/model"
	"github.com/matheus3301/plated/internal/optimistic"
	"github.com/matheus3301/plated/internal/remote"
	"github.com/matheus3301/plated/internal/reward"
	"github.com/matheus3301/plated/internal/sample"
	"go.uber.org/zap"
)

// Bonus kinds recorded in the reward ledger.
const (
	BonusCompletion = "completion"
	BonusChallenge  = "challenge"
	BonusProof      = "proof"
	BonusVerified   = "proof_verified"
)

var (
	ErrUnknownChallenge = errors.New("gamification: unknown challenge")
	ErrNoRecipe         = errors.New("gamification: challenge has no recipe")
	ErrNotStarted       = errors.New("gamification: challenge not started")
)

// Remote is the backend surface the gamification service needs.
type Remote interface {
	Challenges(ctx context.Context, fallback []model.Challenge) ([]model.Challenge, error)
	Challenge(ctx context.Context, id string, fallback *model.Challenge) (*model.Challenge, error)
	StartChallenge(ctx context.Context, id string) (*model.Challenge, error)
	CompleteRecipe(ctx context.Context, recipeID string) (*model.CompletionResult, error)
	SubmitProof(ctx context.Context, recipeID string, in remote.ProofUpload) (*model.ProofSubmitResult, error)
	ProofStats(ctx context.Context, recipeID string, fallback *model.ProofStats) (*model.ProofStats, error)
	Squads(ctx context.Context, fallback *model.SquadList) (*model.SquadList, error)
	MySquad(ctx context.Context, fallback *model.MySquad) (*model.MySquad, error)
	CreateSquad(ctx context.Context, in model.CreateSquadRequest) (*model.CreateSquadResponse, error)
	JoinSquad(ctx context.Context, in model.JoinSquadRequest) (*model.JoinSquadResponse, error)
	LeaveSquad(ctx context.Context) error
	DailyIngredient(ctx context.Context, fallback *model.DailyIngredient) (*model.DailyIngredient, error)
	RewardSummary(ctx context.Context, fallback *model.RewardSummary) (*model.RewardSummary, error)
	SkillTracks(ctx context.Context, fallback []model.SkillTrack) ([]model.SkillTrack, error)
	BadgeCatalog(ctx context.Context, fallback *model.BadgeList) (*model.BadgeList, error)
	UserBadges(ctx context.Context, userID string, fallback *model.BadgeList) (*model.BadgeList, error)
	RecipeCompletions(ctx context.Context, recipeID string, fallback *model.RecipeCompletions) (*model.RecipeCompletions, error)
}

// Service drives the gamification store from user actions.
type Service struct {
	store    *Store
	remote   Remote
	verifier reward.Verifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a gamification service. verifier judges proofs the
// backend left pending.
func NewService(store *Store, remote Remote, verifier reward.Verifier, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		remote:   remote,
		verifier: verifier,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// Store returns the underlying store.
func (s *Service) Store() *Store { return s.store }

// LoadChallenges fetches the challenge list and derives the active ones.
func (s *Service) LoadChallenges(ctx context.Context) error {
	list, err := s.remote.Challenges(ctx, sample.Challenges())
	if err != nil {
		return fmt.Errorf("load challenges: %w", err)
	}
	var active []model.Challenge
	for _, c := range list {
		if c.Status == model.ChallengeInProgress {
			active = append(active, c)
		}
	}
	s.store.SetChallenges(list)
	s.store.SetActiveChallenges(active)
	return nil
}

// LoadChallenge refreshes a single challenge. The known copy, or the sample
// one, answers when the backend is unreachable.
func (s *Service) LoadChallenge(ctx context.Context, id string) (model.Challenge, error) {
	fallback := sample.Challenge(id)
	if c, ok := s.store.Challenge(id); ok {
		fallback = &c
	} else if fallback == nil {
		fallback = &model.Challenge{}
	}
	c, err := s.remote.Challenge(ctx, id, fallback)
	if err != nil {
		return model.Challenge{}, fmt.Errorf("load challenge %s: %w", id, err)
	}
	if c == nil || c.ID == "" {
		return model.Challenge{}, fmt.Errorf("%w: %s", ErrUnknownChallenge, id)
	}
	s.store.PutChallenge(*c)
	return *c, nil
}

// StartChallenge marks a challenge in progress before the backend confirms
// it, and reverts if the backend refuses.
func (s *Service) StartChallenge(ctx context.Context, id string) error {
	var started *model.Challenge
	apply := func() (optimistic.Change, bool) {
		return s.store.StartChallenge(id, s.now())
	}
	call := func(ctx context.Context) error {
		c, err := s.remote.StartChallenge(ctx, id)
		started = c
		return err
	}
	skipped, err := optimistic.DoReport(ctx, apply, call)
	if errors.Is(err, optimistic.ErrNotApplied) {
		return fmt.Errorf("start challenge %s: not available", id)
	}
	if err != nil {
		s.logger.Warn("start challenge failed", zap.String("challenge_id", id), zap.Bool("revert_skipped", skipped), zap.Error(err))
		return fmt.Errorf("start challenge %s: %w", id, err)
	}
	if started != nil && started.Status != "" {
		s.store.UpdateChallenge(id, ChallengePatch{Status: &started.Status, StartedAt: started.StartedAt})
	}
	return nil
}

// BeginCook opens a cook session on a started challenge.
func (s *Service) BeginCook(challengeID string) (model.CookSession, error) {
	c, ok := s.store.Challenge(challengeID)
	if !ok {
		return model.CookSession{}, fmt.Errorf("%w: %s", ErrUnknownChallenge, challengeID)
	}
	if c.Status != model.ChallengeInProgress {
		return model.CookSession{}, fmt.Errorf("%w: %s is %s", ErrNotStarted, challengeID, c.Status)
	}
	if c.Recipe == nil {
		return model.CookSession{}, fmt.Errorf("%w: %s", ErrNoRecipe, challengeID)
	}
	m, err := cooksession.NewMachine(uuid.NewString(), c.ID, c.Recipe.ID, len(c.Recipe.Steps), s.store.bus)
	if err != nil {
		return model.CookSession{}, err
	}
	if err := m.Start(s.now()); err != nil {
		return model.CookSession{}, err
	}
	s.store.SetCurrentSession(m)
	s.logger.Info("cook started", zap.String("session_id", m.Session().ID), zap.String("challenge_id", c.ID))
	return m.Session(), nil
}

// CompleteStep completes step idx of the current session and reports
// whether it was the last one.
func (s *Service) CompleteStep(idx int) (bool, error) {
	done, err := s.store.UpdateSessionStep(idx, s.now())
	if err != nil {
		return false, fmt.Errorf("complete step %d: %w", idx, err)
	}
	return done, nil
}

// FinishCook reports the current session to the backend once every step
// is done, then pays the completion reward and the challenge schedule and
// records the day's activity for the streak. A proof settled in between
// does not block the payout.
func (s *Service) FinishCook(ctx context.Context) (*model.CompletionResult, error) {
	m, ok := s.store.CurrentSession()
	if !ok {
		return nil, ErrNoSession
	}
	if st := m.Current(); st == cooksession.NotStarted || st == cooksession.InProgress {
		return nil, fmt.Errorf("finish cook: session is %s", st)
	}
	sess := m.Session()
	c, ok := s.store.Challenge(sess.ChallengeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChallenge, sess.ChallengeID)
	}

	server, err := s.remote.CompleteRecipe(ctx, sess.RecipeID)
	if err != nil {
		return nil, fmt.Errorf("finish cook %s: %w", sess.ID, err)
	}

	before := s.store.Engine().Summary().Level
	var ingredients []string
	if c.Recipe != nil {
		ingredients = c.Recipe.Ingredients
	}
	payout := reward.CompletionReward(ingredients, s.store.Snapshot().DailyIngredient)
	if _, err := s.store.ApplyBonus(reward.Bonus{
		EventID:   sess.ID + ":" + BonusCompletion,
		Kind:      BonusCompletion,
		SessionID: sess.ID,
		XP:        payout.XP,
		Coins:     payout.Coins,
	}); err != nil {
		return nil, err
	}
	if c.Rewards.XP > 0 || c.Rewards.Coins > 0 {
		if _, err := s.store.ApplyBonus(reward.Bonus{
			EventID:   sess.ID + ":" + BonusChallenge,
			Kind:      BonusChallenge,
			SessionID: sess.ID,
			XP:        max(c.Rewards.XP, 0),
			Coins:     max(c.Rewards.Coins, 0),
		}); err != nil {
			return nil, err
		}
	}
	now := s.now()
	for _, id := range c.Rewards.Badges {
		s.store.EarnBadge(model.Badge{ID: id, Name: id, Category: "challenge"}, now)
	}
	if c.Recipe != nil {
		for _, trackID := range c.Recipe.TrackIDs {
			res, err := s.store.AdvanceTrack(trackID, s.trackName(trackID), sess.ID, now)
			if err != nil {
				return nil, err
			}
			s.logger.Debug("skill track advanced", zap.String("track_id", trackID), zap.Int("progress", res.Progress), zap.Bool("completed", res.Completed))
		}
	}
	s.store.RecordActivity(now)
	if _, err := s.store.CompleteSession(); err != nil {
		return nil, err
	}

	result := &model.CompletionResult{
		Reward:       payout.Coins,
		ChaosBonus:   payout.ChaosBonus,
		CreatorBonus: server.CreatorBonus,
		XPGained:     payout.XP,
		LevelUp:      s.store.Engine().Summary().Level > before,
	}
	s.logger.Info("cook finished", zap.String("session_id", sess.ID), zap.Int("coins", result.Reward),
		zap.Int("xp", result.XPGained), zap.Bool("chaos", payout.Chaos), zap.Bool("level_up", result.LevelUp))
	return result, nil
}

// SubmitProof uploads a proof of cook for a submitted session and pays
// the proof bonus. A proof the backend already verified also pays the
// verified bonus.
func (s *Service) SubmitProof(ctx context.Context, sessionID string, image io.Reader, fileName, note string) (*model.ProofSubmitResult, error) {
	m, ok := s.store.Session(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if m.Current() != cooksession.Submitted {
		return nil, fmt.Errorf("submit proof: session is %s", m.Current())
	}
	sess := m.Session()
	if sess.Proof != nil {
		return nil, cooksession.ErrProofAttached
	}

	res, err := s.remote.SubmitProof(ctx, sess.RecipeID, remote.ProofUpload{Image: image, FileName: fileName, Note: note})
	if err != nil {
		return nil, fmt.Errorf("submit proof for %s: %w", sessionID, err)
	}
	status := res.VerificationStatus
	if status == "" {
		status = model.VerificationPending
	}
	proof := model.Proof{
		ProofID:            res.ProofID,
		Note:               note,
		VerificationStatus: status,
		VerificationScore:  res.VerificationScore,
		SubmittedAt:        s.now(),
	}
	if err := s.store.AttachProof(sessionID, proof); err != nil {
		return nil, err
	}
	if err := s.grant(m, BonusProof, reward.ProofBonusCoins); err != nil {
		return nil, err
	}
	if status == model.VerificationVerified {
		if err := s.grant(m, BonusVerified, reward.VerifiedBonusCoins); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ResolveProof asks the verifier about a session's pending proof and
// records the outcome. A verified proof pays the verified bonus once, on
// top of whatever the session already earned.
func (s *Service) ResolveProof(sessionID string) (model.VerificationStatus, error) {
	m, ok := s.store.Session(sessionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	sess := m.Session()
	if sess.Proof == nil {
		return "", cooksession.ErrNoProof
	}
	if !m.PendingVerification() {
		return sess.Proof.VerificationStatus, nil
	}
	v := s.verifier.Verify(*sess.Proof)
	if v.Status == model.VerificationPending {
		return v.Status, nil
	}
	score := v.Score
	if err := s.store.ResolveProof(sessionID, v.Status, &score); err != nil {
		return "", err
	}
	s.logger.Info("proof resolved", zap.String("session_id", sessionID), zap.String("status", string(v.Status)), zap.Float64("score", score))
	if v.Status == model.VerificationVerified {
		if err := s.grant(m, BonusVerified, reward.VerifiedBonusCoins); err != nil {
			return v.Status, err
		}
	}
	return v.Status, nil
}

// ExpireProof rejects a proof whose verification never arrived.
func (s *Service) ExpireProof(sessionID string) error {
	return s.store.ResolveProof(sessionID, model.VerificationRejected, nil)
}

func (s *Service) grant(m *cooksession.Machine, kind string, coins int) error {
	id := m.Session().ID
	applied, err := s.store.ApplyBonus(reward.Bonus{EventID: id + ":" + kind, Kind: kind, SessionID: id, Coins: coins})
	if err != nil {
		return err
	}
	if applied {
		m.RecordProofCoins(coins)
	}
	return nil
}

// LoadProofStats fetches the cook and proof counts of a recipe.
func (s *Service) LoadProofStats(ctx context.Context, recipeID string) (*model.ProofStats, error) {
	st, err := s.remote.ProofStats(ctx, recipeID, sample.ProofStats(recipeID))
	if err != nil {
		return nil, fmt.Errorf("load proof stats for %s: %w", recipeID, err)
	}
	return st, nil
}

// LoadSquads fetches the squads leaderboard.
func (s *Service) LoadSquads(ctx context.Context) error {
	list, err := s.remote.Squads(ctx, sample.Squads())
	if err != nil {
		return fmt.Errorf("load squads: %w", err)
	}
	s.store.SetLeaderboard(list.Squads)
	return nil
}

// LoadMySquad fetches the user's squad.
func (s *Service) LoadMySquad(ctx context.Context) error {
	my, err := s.remote.MySquad(ctx, sample.MySquad())
	if err != nil {
		return fmt.Errorf("load my squad: %w", err)
	}
	members := my.Members
	if my.Squad != nil && len(members) == 0 {
		members = my.Squad.Members
	}
	s.store.SetSquad(my.Squad, members)
	return nil
}

// CreateSquad creates a squad with the user as its owner.
func (s *Service) CreateSquad(ctx context.Context, name, description string) (*model.CreateSquadResponse, error) {
	resp, err := s.remote.CreateSquad(ctx, model.CreateSquadRequest{Name: name, Description: description})
	if err != nil {
		return nil, fmt.Errorf("create squad: %w", err)
	}
	s.store.SetSquad(&resp.Squad, resp.Squad.Members)
	return resp, nil
}

// JoinSquad joins a squad by invite code.
func (s *Service) JoinSquad(ctx context.Context, code string) (*model.JoinSquadResponse, error) {
	resp, err := s.remote.JoinSquad(ctx, model.JoinSquadRequest{Code: code})
	if err != nil {
		return nil, fmt.Errorf("join squad: %w", err)
	}
	s.store.SetSquad(&resp.Squad, resp.Squad.Members)
	return resp, nil
}

// LeaveSquad leaves the user's squad.
func (s *Service) LeaveSquad(ctx context.Context) error {
	if err := s.remote.LeaveSquad(ctx); err != nil {
		return fmt.Errorf("leave squad: %w", err)
	}
	s.store.SetSquad(nil, nil)
	return nil
}

// LoadDailyIngredient fetches the day's chaos ingredient.
func (s *Service) LoadDailyIngredient(ctx context.Context) error {
	d, err := s.remote.DailyIngredient(ctx, sample.DailyIngredient(s.now()))
	if err != nil {
		return fmt.Errorf("load daily ingredient: %w", err)
	}
	s.store.SetDailyIngredient(d)
	return nil
}

// LoadRewards fetches the user's progression. When the backend is
// unavailable the local progression is kept.
func (s *Service) LoadRewards(ctx context.Context) error {
	local := s.store.Engine().Summary()
	r, err := s.remote.RewardSummary(ctx, &local)
	if err != nil {
		return fmt.Errorf("load rewards: %w", err)
	}
	if r == &local {
		return nil
	}
	s.store.SetRewards(*r)
	return nil
}

func (s *Service) trackName(id string) string {
	for _, t := range s.store.Snapshot().SkillTracks {
		if t.ID == id && t.Name != "" {
			return t.Name
		}
	}
	for _, t := range sample.SkillTracks() {
		if t.ID == id {
			return t.Name
		}
	}
	return id
}

// LoadSkillTracks fetches the skill tracks. Offline, the sample tracks carry
// the progress recorded locally.
func (s *Service) LoadSkillTracks(ctx context.Context) error {
	fallback := sample.SkillTracks()
	badges := s.store.Engine().Summary().Badges
	for i := range fallback {
		j := slices.IndexFunc(badges, func(b model.Badge) bool { return b.ID == reward.TrackBadgeID(fallback[i].ID) })
		if j < 0 {
			continue
		}
		fallback[i].CompletedRecipes = badges[j].Progress
		fallback[i].CompletedAt = badges[j].EarnedAt
	}
	list, err := s.remote.SkillTracks(ctx, fallback)
	if err != nil {
		return fmt.Errorf("load skill tracks: %w", err)
	}
	s.store.SetSkillTracks(list)
	return nil
}

// LoadBadges fetches the badge catalog and the badges userID has earned.
// Badges earned on the server are recorded locally as earned now.
func (s *Service) LoadBadges(ctx context.Context, userID string) error {
	catalog, err := s.remote.BadgeCatalog(ctx, sample.BadgeCatalog())
	if err != nil {
		return fmt.Errorf("load badge catalog: %w", err)
	}
	s.store.SetBadgeCatalog(catalog.Badges)

	mine, err := s.remote.UserBadges(ctx, userID, sample.UserBadges())
	if err != nil {
		return fmt.Errorf("load badges of %s: %w", userID, err)
	}
	now := s.now()
	for _, b := range mine.Badges {
		s.store.EarnBadge(b, now)
	}
	return nil
}

// LoadRecipeCompletions fetches who has cooked a recipe.
func (s *Service) LoadRecipeCompletions(ctx context.Context, recipeID string) (*model.RecipeCompletions, error) {
	rc, err := s.remote.RecipeCompletions(ctx, recipeID, sample.RecipeCompletions(recipeID))
	if err != nil {
		return nil, fmt.Errorf("load completions of %s: %w", recipeID, err)
	}
	return rc, nil
}
