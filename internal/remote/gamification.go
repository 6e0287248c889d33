package remote

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/matheus3301/plated/internal/model"
)

// Challenges lists the available challenges.
func (c *Client) Challenges(ctx context.Context, fallback []model.Challenge) ([]model.Challenge, error) {
	return Read(ctx, c, "challenges", Request{Method: http.MethodGet, Path: "/challenges"}, fallback)
}

// Challenge fetches one challenge.
func (c *Client) Challenge(ctx context.Context, id string, fallback *model.Challenge) (*model.Challenge, error) {
	return Read(ctx, c, "challenge", Request{Method: http.MethodGet, Path: "/challenges/" + url.PathEscape(id)}, fallback)
}

// StartChallenge starts a challenge and returns its updated state.
func (c *Client) StartChallenge(ctx context.Context, id string) (*model.Challenge, error) {
	var out model.Challenge
	if err := c.Call(ctx, Request{Method: http.MethodPost, Path: "/challenges/" + url.PathEscape(id) + "/start"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteRecipe reports a finished cook and returns the server's reward breakdown.
func (c *Client) CompleteRecipe(ctx context.Context, recipeID string) (*model.CompletionResult, error) {
	var out model.CompletionResult
	if err := c.Call(ctx, Request{Method: http.MethodPost, Path: "/recipes/" + url.PathEscape(recipeID) + "/complete"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProofUpload is a proof-of-cook photo with an optional note.
type ProofUpload struct {
	Image    io.Reader
	FileName string
	Note     string
}

// SubmitProof uploads a proof-of-cook photo as multipart form data.
func (c *Client) SubmitProof(ctx context.Context, recipeID string, in ProofUpload) (*model.ProofSubmitResult, error) {
	path := "/recipes/" + url.PathEscape(recipeID) + "/proof"
	if in.Image == nil {
		return nil, &Error{Kind: Rejected, Method: http.MethodPost, Path: path, Err: errMissingImage}
	}
	name := in.FileName
	if name == "" {
		name = "proof.jpg"
	}
	req := Request{
		Method: http.MethodPost,
		Path:   path,
		Files:  []File{{Field: "image", Name: name, Content: in.Image}},
	}
	if in.Note != "" {
		req.Fields = map[string]string{"note": in.Note}
	}
	var out model.ProofSubmitResult
	if err := c.Call(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProofStats returns aggregate cook and proof counts for a recipe.
func (c *Client) ProofStats(ctx context.Context, recipeID string, fallback *model.ProofStats) (*model.ProofStats, error) {
	req := Request{Method: http.MethodGet, Path: "/recipes/" + url.PathEscape(recipeID) + "/proof/stats"}
	return Read(ctx, c, "proof_stats", req, fallback)
}

// Squads returns the squads leaderboard.
func (c *Client) Squads(ctx context.Context, fallback *model.SquadList) (*model.SquadList, error) {
	return Read(ctx, c, "squads", Request{Method: http.MethodGet, Path: "/squads"}, fallback)
}

// MySquad returns the user's squad and its members.
func (c *Client) MySquad(ctx context.Context, fallback *model.MySquad) (*model.MySquad, error) {
	return Read(ctx, c, "my_squad", Request{Method: http.MethodGet, Path: "/squads/my"}, fallback)
}

// CreateSquad creates a squad led by the user.
func (c *Client) CreateSquad(ctx context.Context, in model.CreateSquadRequest) (*model.CreateSquadResponse, error) {
	var out model.CreateSquadResponse
	if err := c.Call(ctx, Request{Method: http.MethodPost, Path: "/squads", Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JoinSquad joins a squad by invite code.
func (c *Client) JoinSquad(ctx context.Context, in model.JoinSquadRequest) (*model.JoinSquadResponse, error) {
	var out model.JoinSquadResponse
	if err := c.Call(ctx, Request{Method: http.MethodPost, Path: "/squads/join", Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LeaveSquad leaves the user's current squad.
func (c *Client) LeaveSquad(ctx context.Context) error {
	return c.Call(ctx, Request{Method: http.MethodPost, Path: "/squads/leave"}, nil)
}

// DailyIngredient returns today's chaos ingredient.
func (c *Client) DailyIngredient(ctx context.Context, fallback *model.DailyIngredient) (*model.DailyIngredient, error) {
	return Read(ctx, c, "daily_ingredient", Request{Method: http.MethodGet, Path: "/daily-ingredient"}, fallback)
}

// RewardSummary returns the user's progression as stored by the server.
// It never answers from the response cache: an old server snapshot would
// hide progress earned locally since, so only fallback stands in.
func (c *Client) RewardSummary(ctx context.Context, fallback *model.RewardSummary) (*model.RewardSummary, error) {
	req := Request{Method: http.MethodGet, Path: "/rewards/summary", NoCache: true}
	return WithFallback(ctx, c, "reward_summary", func(ctx context.Context) (*model.RewardSummary, error) {
		var out model.RewardSummary
		if err := c.Call(ctx, req, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}, fallback)
}

// SkillTracks returns every skill track with the user's progress on it.
func (c *Client) SkillTracks(ctx context.Context, fallback []model.SkillTrack) ([]model.SkillTrack, error) {
	return Read(ctx, c, "skill_tracks", Request{Method: http.MethodGet, Path: "/gamification/skill-tracks"}, fallback)
}

// BadgeCatalog returns every badge that can be earned.
func (c *Client) BadgeCatalog(ctx context.Context, fallback *model.BadgeList) (*model.BadgeList, error) {
	return Read(ctx, c, "badge_catalog", Request{Method: http.MethodGet, Path: "/badges"}, fallback)
}

// UserBadges returns the badges userID has earned.
func (c *Client) UserBadges(ctx context.Context, userID string, fallback *model.BadgeList) (*model.BadgeList, error) {
	req := Request{Method: http.MethodGet, Path: "/gamification/" + url.PathEscape(userID) + "/badges"}
	return Read(ctx, c, "user_badges", req, fallback)
}

// RecipeCompletions returns the users who cooked a recipe, oldest first.
func (c *Client) RecipeCompletions(ctx context.Context, recipeID string, fallback *model.RecipeCompletions) (*model.RecipeCompletions, error) {
	req := Request{Method: http.MethodGet, Path: "/gamification/recipes/" + url.PathEscape(recipeID) + "/completions"}
	return Read(ctx, c, "recipe_completions", req, fallback)
}
