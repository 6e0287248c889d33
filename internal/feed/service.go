package feed

import (
	"context"
	"fmt"

	"github.com/matheus3301/plated/internal/logging"
	"github.com/matheus3301/plated/internal/model"
	"github.com/matheus3301/plated/internal/optimistic"
	"github.com/matheus3301/plated/internal/sample"
	"go.uber.org/zap"
)

// PageSize is the number of posts per feed page.
const PageSize = 10

// Remote is the backend surface the feed service needs.
type Remote interface {
	Feed(ctx context.Context, page int, filter model.FeedFilter, fallback *model.FeedPage) (*model.FeedPage, error)
	LikePost(ctx context.Context, postID string) error
	UnlikePost(ctx context.Context, postID string) error
	SavePost(ctx context.Context, postID string) error
	UnsavePost(ctx context.Context, postID string) error
	Comments(ctx context.Context, postID string, fallback []model.Comment) ([]model.Comment, error)
	AddComment(ctx context.Context, postID, content string) (*model.Comment, error)
}

// Service drives the feed store from user actions.
type Service struct {
	store  *Store
	remote Remote
	logger *zap.Logger
}

// NewService creates a feed service.
func NewService(store *Store, remote Remote, logger *zap.Logger) *Service {
	return &Service{store: store, remote: remote, logger: logging.OrNop(logger)}
}

// Store returns the underlying store.
func (s *Service) Store() *Store { return s.store }

// LoadPage fetches a page under the current filter. A page that arrives
// after the filter changed is dropped.
func (s *Service) LoadPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	gen, filter, _ := s.store.Query()
	s.store.SetLoading(true)

	result, err := s.remote.Feed(ctx, page, filter, sample.FeedPage(page, PageSize))
	if err != nil {
		s.store.SetLoading(false)
		return fmt.Errorf("load feed page %d: %w", page, err)
	}
	if !s.store.ApplyPage(gen, page, result) {
		s.logger.Debug("discarded stale feed page", zap.Int("page", page))
	}
	return nil
}

// LoadMore fetches the next page if there is one.
func (s *Service) LoadMore(ctx context.Context) error {
	st := s.store.Snapshot()
	if !st.HasMore || st.Loading {
		return nil
	}
	return s.LoadPage(ctx, st.Page+1)
}

// SetFilter switches the filter, clearing the posts, and loads page 1.
func (s *Service) SetFilter(ctx context.Context, f model.FeedFilter) error {
	s.store.SetFilter(f)
	return s.LoadPage(ctx, 1)
}

// Like toggles the viewer's like, reverting it if the backend refuses.
func (s *Service) Like(ctx context.Context, postID string) error {
	var liked bool
	apply := func() (optimistic.Change, bool) {
		ch, now, ok := s.store.ToggleLike(postID)
		liked = now
		return ch, ok
	}
	call := func(ctx context.Context) error {
		if liked {
			return s.remote.LikePost(ctx, postID)
		}
		return s.remote.UnlikePost(ctx, postID)
	}
	skipped, err := optimistic.DoReport(ctx, apply, call)
	if err != nil {
		s.logger.Warn("like failed", zap.String("post_id", postID), zap.Bool("revert_skipped", skipped), zap.Error(err))
		return fmt.Errorf("like post %s: %w", postID, err)
	}
	return nil
}

// Save toggles the viewer's bookmark, reverting it if the backend refuses.
func (s *Service) Save(ctx context.Context, postID string) error {
	var saved bool
	apply := func() (optimistic.Change, bool) {
		ch, now, ok := s.store.ToggleSave(postID)
		saved = now
		return ch, ok
	}
	call := func(ctx context.Context) error {
		if saved {
			return s.remote.SavePost(ctx, postID)
		}
		return s.remote.UnsavePost(ctx, postID)
	}
	skipped, err := optimistic.DoReport(ctx, apply, call)
	if err != nil {
		s.logger.Warn("save failed", zap.String("post_id", postID), zap.Bool("revert_skipped", skipped), zap.Error(err))
		return fmt.Errorf("save post %s: %w", postID, err)
	}
	return nil
}

// LoadComments returns a post's comments.
func (s *Service) LoadComments(ctx context.Context, postID string) ([]model.Comment, error) {
	comments, err := s.remote.Comments(ctx, postID, sample.Comments(postID))
	if err != nil {
		return nil, fmt.Errorf("load comments for %s: %w", postID, err)
	}
	return comments, nil
}

// AddComment posts a comment. The comment count moves only after the
// backend accepts it.
func (s *Service) AddComment(ctx context.Context, postID, content string) (*model.Comment, error) {
	c, err := s.remote.AddComment(ctx, postID, content)
	if err != nil {
		return nil, fmt.Errorf("comment on %s: %w", postID, err)
	}
	s.store.IncrementCommentCount(postID)
	return c, nil
}
