package model

import "time"

// UserSummary is the denormalized author/participant info embedded in posts,
// comments, messages and conversations.
type UserSummary struct {
	ID          string `json:"id,omitempty"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	ProfilePic  string `json:"profile_pic,omitempty"`
}

// RecipeData is the optional recipe payload of a post.
type RecipeData struct {
	PrepTime     int      `json:"prep_time,omitempty"`
	CookTime     int      `json:"cook_time,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	Servings     int      `json:"servings,omitempty"`
	Ingredients  []string `json:"ingredients,omitempty"`
	Instructions []string `json:"instructions,omitempty"`
}

// Post is a feed entry. Liked and Saved are relative to the viewing user.
type Post struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	User          UserSummary `json:"user"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	MediaURL      string      `json:"media_url,omitempty"`
	MediaType     string      `json:"media_type,omitempty"`
	Recipe        *RecipeData `json:"recipe_data,omitempty"`
	LikesCount    int         `json:"likes_count"`
	CommentsCount int         `json:"comments_count"`
	ViewsCount    int         `json:"views_count"`
	Liked         bool        `json:"is_liked"`
	Saved         bool        `json:"is_saved"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Comment is a comment on a post.
type Comment struct {
	ID        string      `json:"id"`
	PostID    string      `json:"post_id"`
	UserID    string      `json:"user_id"`
	User      UserSummary `json:"user"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// Feed types.
const (
	FeedForYou    = "for-you"
	FeedFollowing = "following"
	FeedTrending  = "trending"
)

// FeedFilter narrows the feed query. Zero values are omitted from the request.
type FeedFilter struct {
	Type       string `json:"type,omitempty" validate:"omitempty,oneof=for-you following trending"`
	Cuisine    string `json:"cuisine,omitempty"`
	Difficulty string `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	MaxTime    int    `json:"max_time,omitempty" validate:"gte=0"`
	SortBy     string `json:"sort_by,omitempty" validate:"omitempty,oneof=recent popular trending"`
}

// FeedPage is one page of the feed.
type FeedPage struct {
	Posts   []Post `json:"posts"`
	HasMore bool   `json:"has_more"`
}
