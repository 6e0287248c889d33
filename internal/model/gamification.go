package model

import "time"

// ChallengeStatus is the lifecycle state of a challenge for the current user.
type ChallengeStatus string

const (
	ChallengeLocked     ChallengeStatus = "locked"
	ChallengeAvailable  ChallengeStatus = "available"
	ChallengeInProgress ChallengeStatus = "in_progress"
	ChallengeCompleted  ChallengeStatus = "completed"
	ChallengeExpired    ChallengeStatus = "expired"
)

// RecipeStep is one instruction of a challenge recipe.
type RecipeStep struct {
	Text         string   `json:"text"`
	TimerSeconds int      `json:"timer_seconds,omitempty"`
	SafetyNote   string   `json:"safety_note,omitempty"`
	Techniques   []string `json:"techniques,omitempty"`
}

// ChallengeRecipe is the recipe embedded in a challenge. TrackIDs are the
// skill tracks a completion counts toward.
type ChallengeRecipe struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Ingredients []string     `json:"ingredients"`
	Steps       []RecipeStep `json:"steps"`
	TrackIDs    []string     `json:"track_ids,omitempty"`
}

// RewardSchedule is what a challenge pays out on completion.
type RewardSchedule struct {
	XP     int      `json:"xp"`
	Coins  int      `json:"coins"`
	Badges []string `json:"badges,omitempty"`
}

// Challenge is a cooking challenge.
type Challenge struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Difficulty  string           `json:"difficulty"`
	Type        string           `json:"type"`
	Status      ChallengeStatus  `json:"status"`
	Rewards     RewardSchedule   `json:"rewards"`
	Recipe      *ChallengeRecipe `json:"recipe,omitempty"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
}

// SessionStatus is the persisted status of a cook session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionSubmitted  SessionStatus = "submitted"
)

// StepEvent records the completion of one recipe step.
type StepEvent struct {
	Idx         int       `json:"idx"`
	CompletedAt time.Time `json:"completed_at"`
}

// VerificationStatus is the outcome of a proof-of-cook verification.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// Proof is a proof-of-cook submission attached to a session.
type Proof struct {
	ProofID            string             `json:"proof_id"`
	Note               string             `json:"note,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	VerificationScore  *float64           `json:"verification_score,omitempty"`
	CoinsAwarded       int                `json:"coins_awarded"`
	SubmittedAt        time.Time          `json:"submitted_at"`
}

// CookSession is one run through a challenge recipe.
type CookSession struct {
	ID          string        `json:"id"`
	ChallengeID string        `json:"challenge_id"`
	RecipeID    string        `json:"recipe_id"`
	TotalSteps  int           `json:"total_steps"`
	CurrentStep int           `json:"current_step"`
	StepEvents  []StepEvent   `json:"step_events"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Proof       *Proof        `json:"proof,omitempty"`
}

// Badge is unlocked exactly when EarnedAt is set. Total == 0 means the badge
// has no partial progress.
type Badge struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	Progress    int        `json:"progress,omitempty"`
	Total       int        `json:"total,omitempty"`
	EarnedAt    *time.Time `json:"earnedAt,omitempty"`
}

// BadgeList is the body of the badge catalog and of a user's badges.
type BadgeList struct {
	Badges []Badge `json:"badges"`
}

// SkillTrack is a themed series of recipes with the user's progress on it.
type SkillTrack struct {
	ID               string     `json:"id"`
	Slug             string     `json:"slug"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	Icon             string     `json:"icon,omitempty"`
	TotalRecipes     int        `json:"totalRecipes"`
	CompletedRecipes int        `json:"completedRecipes"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// RecipeCompleter is one link of a recipe's cooked-it chain.
type RecipeCompleter struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecipeCompletions lists who cooked a recipe, oldest first.
type RecipeCompletions struct {
	RecipeID string            `json:"recipeId"`
	Count    int               `json:"count"`
	Users    []RecipeCompleter `json:"users"`
}

// Earned reports whether the badge is unlocked.
func (b Badge) Earned() bool { return b.EarnedAt != nil }

// StreakInfo tracks consecutive-day completions.
type StreakInfo struct {
	CurrentDays     int        `json:"currentDays"`
	LongestStreak   int        `json:"longestStreak"`
	FreezeTokens    int        `json:"freezeTokens"`
	LastCompletedAt *time.Time `json:"lastCompletedAt,omitempty"`
}

// RewardSummary is a user's progression. Level and NextLevelXP are derived
// from XP and are only written by the reward engine.
type RewardSummary struct {
	XP          int        `json:"xp"`
	Level       int        `json:"level"`
	NextLevelXP int        `json:"nextLevelXp"`
	Coins       int        `json:"coins"`
	Badges      []Badge    `json:"badges"`
	Streak      StreakInfo `json:"streak"`
}

// SquadMember is a member of a squad.
type SquadMember struct {
	UserID             string    `json:"user_id"`
	Username           string    `json:"username"`
	DisplayName        string    `json:"display_name"`
	ProfilePic         string    `json:"profile_pic,omitempty"`
	Role               string    `json:"role"`
	WeeklyContribution int       `json:"weekly_contribution"`
	JoinedAt           time.Time `json:"joined_at"`
}

// Squad is a group of users whose points aggregate.
type Squad struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Code         string        `json:"code,omitempty"`
	Description  string        `json:"description,omitempty"`
	WeeklyPoints int           `json:"weekly_points"`
	TotalPoints  int           `json:"total_points"`
	MemberCount  int           `json:"member_count"`
	Rank         int           `json:"rank,omitempty"`
	Members      []SquadMember `json:"members,omitempty"`
	CreatedAt    *time.Time    `json:"created_at,omitempty"`
}

// MySquad is the payload of GET /squads/my.
type MySquad struct {
	Squad   *Squad        `json:"squad"`
	Members []SquadMember `json:"members"`
}

// SquadList is the payload of GET /squads.
type SquadList struct {
	Squads []Squad `json:"squads"`
}

// CreateSquadRequest is the payload of POST /squads.
type CreateSquadRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=40"`
	Description string `json:"description,omitempty" validate:"max=200"`
}

// CreateSquadResponse is returned by POST /squads.
type CreateSquadResponse struct {
	Squad      Squad  `json:"squad"`
	InviteCode string `json:"invite_code"`
}

// JoinSquadRequest is the payload of POST /squads/join.
type JoinSquadRequest struct {
	Code string `json:"code" validate:"required,alphanum,len=6"`
}

// JoinSquadResponse is returned by POST /squads/join.
type JoinSquadResponse struct {
	Squad   Squad  `json:"squad"`
	Message string `json:"message"`
}

// LeaderboardEntry is one row of a user leaderboard.
type LeaderboardEntry struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Points   int    `json:"points"`
	Rank     int    `json:"rank"`
}

// CouponStatus is the lifecycle of a market coupon.
type CouponStatus string

const (
	CouponAvailable CouponStatus = "available"
	CouponClaimed   CouponStatus = "claimed"
	CouponRedeemed  CouponStatus = "redeemed"
)

// Coupon is a market item bought with coins.
type Coupon struct {
	ID     string       `json:"id"`
	Title  string       `json:"title"`
	Cost   int          `json:"cost"`
	Status CouponStatus `json:"status"`
}

// DailyIngredient is the day's chaos ingredient.
type DailyIngredient struct {
	Date       string  `json:"date"`
	Ingredient string  `json:"ingredient"`
	Multiplier float64 `json:"multiplier"`
	Active     bool    `json:"active"`
}

// CompletionResult is the reward breakdown of a recipe completion.
type CompletionResult struct {
	Reward       int  `json:"reward"`
	ChaosBonus   int  `json:"chaos_bonus"`
	CreatorBonus int  `json:"creator_bonus"`
	XPGained     int  `json:"xp_gained"`
	LevelUp      bool `json:"level_up"`
}

// ProofSubmitResult is returned by POST /recipes/{id}/proof.
type ProofSubmitResult struct {
	ProofID            string             `json:"proof_id"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	VerificationScore  *float64           `json:"verification_score,omitempty"`
	CoinsAwarded       int                `json:"coins_awarded"`
	Message            string             `json:"message"`
}

// RecentProof is a proof thumbnail in proof stats.
type RecentProof struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ImageURL  string    `json:"image_url"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ProofStats aggregates cooks and proofs for a recipe.
type ProofStats struct {
	RecipeID       string        `json:"recipe_id"`
	TotalCooks     int           `json:"total_cooks"`
	WithProof      int           `json:"with_proof"`
	VerifiedProofs int           `json:"verified_proofs"`
	RecentProofs   []RecentProof `json:"recent_proofs"`
}
