// Package sample provides the synthetic dataset served when the backend is
// unreachable and no cached response exists. Every call returns fresh values
// so callers may mutate what they receive.
package sample

import (
	"fmt"
	"time"

	"github.com/matheus3301/plated/internal/model"
)

// CurrentUserID is the viewer in sample data.
const CurrentUserID = "user-me"

// base is the fixed reference time for sample timestamps.
var base = time.Date(2025, time.January, 20, 12, 0, 0, 0, time.UTC)

var authors = []model.UserSummary{
	{ID: "user-1", Username: "chef_maria", DisplayName: "Maria Santos"},
	{ID: "user-2", Username: "baker_ken", DisplayName: "Ken Watanabe"},
	{ID: "user-3", Username: "spice_route", DisplayName: "Aisha Khan"},
}

var dishes = []struct {
	title, cuisine, difficulty string
	prep, cook                 int
	ingredients                []string
}{
	{"Crispy Garlic Noodles", "asian", "easy", 10, 15, []string{"egg noodles", "garlic", "butter", "parmesan"}},
	{"Sourdough Boule", "european", "hard", 30, 45, []string{"bread flour", "water", "salt", "starter"}},
	{"Chana Masala", "indian", "medium", 15, 30, []string{"chickpeas", "tomato", "onion", "garam masala"}},
	{"Shakshuka", "middle-eastern", "easy", 10, 20, []string{"eggs", "tomato", "red pepper", "cumin"}},
	{"Miso Glazed Salmon", "asian", "medium", 10, 12, []string{"salmon", "white miso", "mirin", "honey"}},
}

// FeedSize is the number of posts in the sample feed.
const FeedSize = 20

// FeedPage returns the given page of the sample feed, pageSize posts per page.
func FeedPage(page, pageSize int) *model.FeedPage {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, FeedSize)
	posts := make([]model.Post, 0, pageSize)
	for i := start; i < end; i++ {
		posts = append(posts, post(i))
	}
	return &model.FeedPage{Posts: posts, HasMore: end < FeedSize}
}

func post(i int) model.Post {
	d := dishes[i%len(dishes)]
	a := authors[i%len(authors)]
	return model.Post{
		ID:          fmt.Sprintf("post-%d", i+1),
		UserID:      a.ID,
		User:        a,
		Title:       d.title,
		Description: "A " + d.difficulty + " " + d.cuisine + " favourite.",
		MediaType:   "image",
		Recipe: &model.RecipeData{
			PrepTime:    d.prep,
			CookTime:    d.cook,
			Difficulty:  d.difficulty,
			Servings:    2 + i%3,
			Ingredients: append([]string(nil), d.ingredients...),
		},
		LikesCount:    10 + (i*7)%90,
		CommentsCount: i % 6,
		ViewsCount:    100 + i*13,
		CreatedAt:     base.Add(-time.Duration(i) * time.Hour),
	}
}

// Comments returns sample comments for a post.
func Comments(postID string) []model.Comment {
	return []model.Comment{
		{ID: postID + "-c1", PostID: postID, UserID: authors[1].ID, User: authors[1], Content: "Made this last night, so good.", CreatedAt: base.Add(-2 * time.Hour)},
		{ID: postID + "-c2", PostID: postID, UserID: authors[2].ID, User: authors[2], Content: "Saving for the weekend!", CreatedAt: base.Add(-time.Hour)},
	}
}

var me = model.UserSummary{ID: CurrentUserID, Username: "you", DisplayName: "You"}

// Messages returns the sample thread of a conversation. Only "conv-1" has
// an unread message.
func Messages(convID string) []model.Message {
	switch convID {
	case "conv-1":
		return []model.Message{
			{ID: "msg-1", ConversationID: convID, SenderID: CurrentUserID, Sender: me, Content: "Did you try the noodles?", CreatedAt: base.Add(-30 * time.Minute), IsRead: true, Status: model.StatusRead},
			{ID: "msg-2", ConversationID: convID, SenderID: authors[0].ID, Sender: authors[0], Content: "Yes! Added chili crisp.", CreatedAt: base.Add(-10 * time.Minute), Status: model.StatusDelivered},
		}
	case "conv-2":
		return []model.Message{
			{ID: "msg-3", ConversationID: convID, SenderID: authors[1].ID, Sender: authors[1], Content: "Starter is bubbling.", CreatedAt: base.Add(-3 * time.Hour), IsRead: true, Status: model.StatusRead},
		}
	default:
		return []model.Message{}
	}
}

// Conversations returns the sample inbox, most recent first. Unread counts
// match Messages.
func Conversations() []model.Conversation {
	convs := []model.Conversation{
		{ID: "conv-1", ParticipantIDs: []string{CurrentUserID, authors[0].ID}, Participants: []model.UserSummary{me, authors[0]}},
		{ID: "conv-2", ParticipantIDs: []string{CurrentUserID, authors[1].ID}, Participants: []model.UserSummary{me, authors[1]}},
	}
	for i := range convs {
		msgs := Messages(convs[i].ID)
		last := msgs[len(msgs)-1]
		convs[i].LastMessage = &last
		convs[i].UpdatedAt = last.CreatedAt
		for _, m := range msgs {
			if !m.IsRead && m.SenderID != CurrentUserID {
				convs[i].UnreadCount++
			}
		}
	}
	return convs
}

// UnreadCount returns the global unread count across Conversations.
func UnreadCount() *model.UnreadCount {
	n := 0
	for _, c := range Conversations() {
		n += c.UnreadCount
	}
	return &model.UnreadCount{Count: n}
}

// Challenges returns the sample challenge list.
func Challenges() []model.Challenge {
	return []model.Challenge{
		{
			ID: "challenge-1", Title: "Weeknight Noodles", Difficulty: "easy", Type: "daily",
			Status:  model.ChallengeAvailable,
			Rewards: model.RewardSchedule{XP: 15, Coins: 10},
			Recipe: &model.ChallengeRecipe{
				ID: "recipe-1", Title: "Crispy Garlic Noodles",
				Ingredients: []string{"egg noodles", "4 cloves garlic", "2 tbsp butter", "parmesan"},
				Steps: []model.RecipeStep{
					{Text: "Boil the noodles until just tender.", TimerSeconds: 240},
					{Text: "Fry the garlic in butter until golden.", SafetyNote: "Hot fat spatters.", Techniques: []string{"saute"}},
					{Text: "Toss noodles with garlic butter and parmesan."},
				},
				TrackIDs: []string{"late-night-noodles"},
			},
		},
		{
			ID: "challenge-2", Title: "Bake a Boule", Difficulty: "hard", Type: "weekly",
			Status:  model.ChallengeAvailable,
			Rewards: model.RewardSchedule{XP: 60, Coins: 40, Badges: []string{"baker"}},
			Recipe: &model.ChallengeRecipe{
				ID: "recipe-2", Title: "Sourdough Boule",
				Ingredients: []string{"500g bread flour", "350g water", "10g salt", "100g starter"},
				Steps: []model.RecipeStep{
					{Text: "Mix and autolyse.", TimerSeconds: 1800},
					{Text: "Stretch and fold four times.", Techniques: []string{"stretch-and-fold"}},
					{Text: "Shape and proof overnight."},
					{Text: "Bake in a preheated dutch oven.", TimerSeconds: 2700, SafetyNote: "Use oven mitts."},
				},
				TrackIDs: []string{"bread-basics"},
			},
		},
		{
			ID: "challenge-3", Title: "Spice Master", Difficulty: "medium", Type: "skill",
			Status:  model.ChallengeLocked,
			Rewards: model.RewardSchedule{XP: 30, Coins: 20},
		},
	}
}

// Challenge returns one sample challenge, or nil if the id is unknown.
func Challenge(id string) *model.Challenge {
	for _, c := range Challenges() {
		if c.ID == id {
			return &c
		}
	}
	return nil
}

// ProofStats returns empty stats for a recipe.
func ProofStats(recipeID string) *model.ProofStats {
	return &model.ProofStats{RecipeID: recipeID, RecentProofs: []model.RecentProof{}}
}

// Squads returns the sample squads leaderboard.
func Squads() *model.SquadList {
	return &model.SquadList{Squads: []model.Squad{
		{ID: "squad-1", Name: "Knife Club", WeeklyPoints: 420, TotalPoints: 3100, MemberCount: 5, Rank: 1},
		{ID: "squad-2", Name: "Dough Bros", WeeklyPoints: 310, TotalPoints: 2800, MemberCount: 4, Rank: 2},
		{ID: "squad-3", Name: "Spice Girls", WeeklyPoints: 150, TotalPoints: 900, MemberCount: 3, Rank: 3},
	}}
}

// MySquad returns a user without a squad.
func MySquad() *model.MySquad {
	return &model.MySquad{Members: []model.SquadMember{}}
}

// DailyIngredient returns an inactive chaos ingredient for the day of now.
func DailyIngredient(now time.Time) *model.DailyIngredient {
	return &model.DailyIngredient{
		Date:       now.Format(time.DateOnly),
		Ingredient: "garlic",
		Multiplier: 1.5,
		Active:     false,
	}
}

// RewardSummary returns a fresh level-1 progression.
func RewardSummary() *model.RewardSummary {
	return &model.RewardSummary{
		Level:       1,
		NextLevelXP: 100,
		Badges:      []model.Badge{},
		Streak:      model.StreakInfo{FreezeTokens: 1},
	}
}

// SkillTracks returns the sample skill tracks with no progress.
func SkillTracks() []model.SkillTrack {
	return []model.SkillTrack{
		{ID: "late-night-noodles", Slug: "late-night-noodles", Name: "Late-Night Noodles", Description: "Noodle glow-ups for late study sessions.", Icon: "🍜", TotalRecipes: 9},
		{ID: "bread-basics", Slug: "bread-basics", Name: "Bread Basics", Description: "From first loaf to open crumb.", Icon: "🍞", TotalRecipes: 6},
		{ID: "five-ingredient-hero", Slug: "five-ingredient-hero", Name: "5-Ingredient Hero", Description: "Cook well from an almost empty pantry.", Icon: "🧠", TotalRecipes: 8},
	}
}

// BadgeCatalog returns the sample badge catalog.
func BadgeCatalog() *model.BadgeList {
	return &model.BadgeList{Badges: []model.Badge{
		{ID: "first-cook", Name: "First Cook", Description: "Finish your first recipe.", Category: "milestone"},
		{ID: "baker", Name: "Baker", Description: "Complete the boule challenge.", Category: "challenge"},
		{ID: "first-proof", Name: "Camera Ready", Description: "Submit a proof of cook.", Category: "proof"},
		{ID: "week-streak", Name: "Week Streak", Description: "Cook seven days in a row.", Category: "streak", Total: 7},
	}}
}

// UserBadges returns no earned badges.
func UserBadges() *model.BadgeList {
	return &model.BadgeList{Badges: []model.Badge{}}
}

// RecipeCompletions returns an empty cooked-it chain for a recipe.
func RecipeCompletions(recipeID string) *model.RecipeCompletions {
	return &model.RecipeCompletions{RecipeID: recipeID, Users: []model.RecipeCompleter{}}
}
