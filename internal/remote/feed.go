package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/matheus3301/plated/internal/model"
)

// DefaultPageSize is the number of posts requested per feed page.
const DefaultPageSize = 10

// Feed fetches one page of the feed, degrading to cached or fallback data.
func (c *Client) Feed(ctx context.Context, page int, filter model.FeedFilter, fallback *model.FeedPage) (*model.FeedPage, error) {
	if err := c.validate.Struct(filter); err != nil {
		return nil, &Error{Kind: Rejected, Method: http.MethodGet, Path: "/feed", Err: err}
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(DefaultPageSize))
	setIf(q, "type", filter.Type)
	setIf(q, "cuisine", filter.Cuisine)
	setIf(q, "difficulty", filter.Difficulty)
	setIf(q, "sort_by", filter.SortBy)
	if filter.MaxTime > 0 {
		q.Set("max_time", strconv.Itoa(filter.MaxTime))
	}
	return Read(ctx, c, "feed", Request{Method: http.MethodGet, Path: "/feed", Query: q}, fallback)
}

// LikePost records a like.
func (c *Client) LikePost(ctx context.Context, postID string) error {
	return c.Call(ctx, Request{Method: http.MethodPost, Path: "/posts/" + url.PathEscape(postID) + "/like"}, nil)
}

// UnlikePost removes a like.
func (c *Client) UnlikePost(ctx context.Context, postID string) error {
	return c.Call(ctx, Request{Method: http.MethodPost, Path: "/posts/" + url.PathEscape(postID) + "/unlike"}, nil)
}

// SavePost bookmarks a post.
func (c *Client) SavePost(ctx context.Context, postID string) error {
	return c.Call(ctx, Request{Method: http.MethodPost, Path: "/posts/" + url.PathEscape(postID) + "/save"}, nil)
}

// UnsavePost removes a bookmark.
func (c *Client) UnsavePost(ctx context.Context, postID string) error {
	return c.Call(ctx, Request{Method: http.MethodPost, Path: "/posts/" + url.PathEscape(postID) + "/unsave"}, nil)
}

// Comments lists the comments of a post.
func (c *Client) Comments(ctx context.Context, postID string, fallback []model.Comment) ([]model.Comment, error) {
	return Read(ctx, c, "comments", Request{Method: http.MethodGet, Path: "/posts/" + url.PathEscape(postID) + "/comments"}, fallback)
}

type addCommentRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// AddComment posts a comment and returns the stored comment.
func (c *Client) AddComment(ctx context.Context, postID, content string) (*model.Comment, error) {
	var out model.Comment
	req := Request{
		Method: http.MethodPost,
		Path:   "/posts/" + url.PathEscape(postID) + "/comments",
		Body:   addCommentRequest{Content: content},
	}
	if err := c.Call(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
