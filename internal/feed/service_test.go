package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/plated/internal/model"
)

// mockRemote records calls and returns configurable results.
type mockRemote struct {
	pages      map[int]*model.FeedPage
	feedErr    error
	likeErr    error
	saveErr    error
	commentErr error
	onFeed     func()
	onLike     func()

	likes, unlikes, saves, unsaves []string
	feedCalls                      []model.FeedFilter
}

func (m *mockRemote) Feed(_ context.Context, page int, filter model.FeedFilter, fallback *model.FeedPage) (*model.FeedPage, error) {
	m.feedCalls = append(m.feedCalls, filter)
	if m.onFeed != nil {
		m.onFeed()
	}
	if m.feedErr != nil {
		return nil, m.feedErr
	}
	if p, ok := m.pages[page]; ok {
		return p, nil
	}
	return fallback, nil
}

func (m *mockRemote) LikePost(_ context.Context, id string) error {
	m.likes = append(m.likes, id)
	if m.onLike != nil {
		m.onLike()
	}
	return m.likeErr
}

func (m *mockRemote) UnlikePost(_ context.Context, id string) error {
	m.unlikes = append(m.unlikes, id)
	return m.likeErr
}

func (m *mockRemote) SavePost(_ context.Context, id string) error {
	m.saves = append(m.saves, id)
	return m.saveErr
}

func (m *mockRemote) UnsavePost(_ context.Context, id string) error {
	m.unsaves = append(m.unsaves, id)
	return m.saveErr
}

func (m *mockRemote) Comments(_ context.Context, postID string, fallback []model.Comment) ([]model.Comment, error) {
	return fallback, nil
}

func (m *mockRemote) AddComment(_ context.Context, postID, content string) (*model.Comment, error) {
	if m.commentErr != nil {
		return nil, m.commentErr
	}
	return &model.Comment{ID: "c1", PostID: postID, Content: content}, nil
}

func newTestService(remote *mockRemote, posts ...model.Post) *Service {
	return NewService(NewStore(State{Posts: posts}, nil), remote, nil)
}

func TestLikeSuccess(t *testing.T) {
	remote := &mockRemote{}
	svc := newTestService(remote, model.Post{ID: "p1", LikesCount: 42})

	if err := svc.Like(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Like(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}
	if len(remote.likes) != 1 || len(remote.unlikes) != 1 {
		t.Errorf("likes=%v unlikes=%v, want one of each", remote.likes, remote.unlikes)
	}
	p, _ := svc.Store().Post("p1")
	if p.LikesCount != 42 || p.Liked {
		t.Errorf("post = {%d, %v}, want {42, false}", p.LikesCount, p.Liked)
	}
}

func TestLikeFailureReverts(t *testing.T) {
	remote := &mockRemote{likeErr: errors.New("503")}
	svc := newTestService(remote, model.Post{ID: "p1", LikesCount: 42})

	var during model.Post
	remote.onLike = func() { during, _ = svc.Store().Post("p1") }

	if err := svc.Like(context.Background(), "p1"); err == nil {
		t.Fatal("expected error")
	}
	if !during.Liked || during.LikesCount != 43 {
		t.Errorf("optimistic state during call = {%d, %v}, want {43, true}", during.LikesCount, during.Liked)
	}
	p, _ := svc.Store().Post("p1")
	if p.Liked || p.LikesCount != 42 {
		t.Errorf("after failure = {%d, %v}, want {42, false}", p.LikesCount, p.Liked)
	}
}

func TestLikeFailureSkipsSupersededRevert(t *testing.T) {
	remote := &mockRemote{likeErr: errors.New("timeout")}
	svc := newTestService(remote, model.Post{ID: "p1", LikesCount: 42})

	// A fresh server page lands while the like is in flight.
	remote.onLike = func() {
		gen, _, _ := svc.Store().Query()
		svc.Store().ApplyPage(gen, 1, &model.FeedPage{Posts: []model.Post{{ID: "p1", LikesCount: 50, Liked: true}}})
	}

	if err := svc.Like(context.Background(), "p1"); err == nil {
		t.Fatal("expected error")
	}
	p, _ := svc.Store().Post("p1")
	if p.LikesCount != 50 || !p.Liked {
		t.Errorf("post = {%d, %v}, want the newer server state kept", p.LikesCount, p.Liked)
	}
}

func TestLikeUnknownPost(t *testing.T) {
	remote := &mockRemote{}
	svc := newTestService(remote)
	if err := svc.Like(context.Background(), "ghost"); err == nil {
		t.Error("expected error for unknown post")
	}
	if len(remote.likes) != 0 {
		t.Error("remote must not be called for unknown post")
	}
}

func TestSaveFailureReverts(t *testing.T) {
	remote := &mockRemote{saveErr: errors.New("400")}
	svc := newTestService(remote, model.Post{ID: "p1"})
	if err := svc.Save(context.Background(), "p1"); err == nil {
		t.Fatal("expected error")
	}
	if p, _ := svc.Store().Post("p1"); p.Saved {
		t.Error("save should be reverted")
	}
	if len(remote.saves) != 1 {
		t.Errorf("saves = %v", remote.saves)
	}
}

func TestLoadPageAndMore(t *testing.T) {
	remote := &mockRemote{pages: map[int]*model.FeedPage{
		1: {Posts: []model.Post{{ID: "a"}, {ID: "b"}}, HasMore: true},
		2: {Posts: []model.Post{{ID: "c"}}, HasMore: false},
	}}
	svc := newTestService(remote)
	ctx := context.Background()

	if err := svc.LoadPage(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := svc.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}
	// No more pages: LoadMore is a no-op.
	if err := svc.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}

	st := svc.Store().Snapshot()
	if len(st.Posts) != 3 || st.Page != 2 || st.HasMore || st.Loading {
		t.Errorf("state = %d posts, page %d, has_more %v, loading %v", len(st.Posts), st.Page, st.HasMore, st.Loading)
	}
	if len(remote.feedCalls) != 2 {
		t.Errorf("feed calls = %d, want 2", len(remote.feedCalls))
	}
}

func TestLoadPageUsesSampleFallback(t *testing.T) {
	svc := newTestService(&mockRemote{})
	if err := svc.LoadPage(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	st := svc.Store().Snapshot()
	if len(st.Posts) != PageSize || !st.HasMore {
		t.Errorf("fallback page = %d posts, has_more %v", len(st.Posts), st.HasMore)
	}
}

func TestLoadPageError(t *testing.T) {
	svc := newTestService(&mockRemote{feedErr: errors.New("400 bad filter")})
	if err := svc.LoadPage(context.Background(), 1); err == nil {
		t.Fatal("expected error")
	}
	if svc.Store().Snapshot().Loading {
		t.Error("loading flag should be cleared on error")
	}
}

func TestSetFilterDropsInFlightPage(t *testing.T) {
	remote := &mockRemote{pages: map[int]*model.FeedPage{
		1: {Posts: []model.Post{{ID: "x"}}},
	}}
	svc := newTestService(remote, model.Post{ID: "old"})

	// The filter changes while the first request is pending.
	remote.onFeed = func() {
		remote.onFeed = nil
		svc.Store().SetFilter(model.FeedFilter{Difficulty: "hard"})
	}
	if err := svc.LoadPage(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if got := len(svc.Store().Snapshot().Posts); got != 0 {
		t.Errorf("posts = %d, want stale page dropped", got)
	}

	if err := svc.SetFilter(context.Background(), model.FeedFilter{Cuisine: "thai"}); err != nil {
		t.Fatal(err)
	}
	last := remote.feedCalls[len(remote.feedCalls)-1]
	if last.Cuisine != "thai" {
		t.Errorf("last request filter = %+v", last)
	}
	if got := svc.Store().Snapshot().Posts; len(got) != 1 || got[0].ID != "x" {
		t.Errorf("posts = %+v, want the new filter's page only", got)
	}
}

func TestAddComment(t *testing.T) {
	remote := &mockRemote{}
	svc := newTestService(remote, model.Post{ID: "p1", CommentsCount: 2})

	c, err := svc.AddComment(context.Background(), "p1", "yum")
	if err != nil {
		t.Fatal(err)
	}
	if c.Content != "yum" {
		t.Errorf("comment = %+v", c)
	}
	if p, _ := svc.Store().Post("p1"); p.CommentsCount != 3 {
		t.Errorf("comments_count = %d, want 3", p.CommentsCount)
	}

	remote.commentErr = errors.New("rejected")
	if _, err := svc.AddComment(context.Background(), "p1", "again"); err == nil {
		t.Fatal("expected error")
	}
	if p, _ := svc.Store().Post("p1"); p.CommentsCount != 3 {
		t.Errorf("comments_count = %d, failed comment must not count", p.CommentsCount)
	}
}

func TestLoadComments(t *testing.T) {
	svc := newTestService(&mockRemote{})
	comments, err := svc.LoadComments(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) == 0 || comments[0].PostID != "p1" {
		t.Errorf("comments = %+v", comments)
	}
}
