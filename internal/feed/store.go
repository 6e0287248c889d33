// Package feed holds the feed store and the service that keeps it in sync
// with the backend.
package feed

import (
	"sync"

	"github.com/matheus3301/plated/internal/bus"
	"github.com/matheus3301/plated/internal/model"
	"github.com/matheus3301/plated/internal/optimistic"
)

// State is an immutable snapshot of the feed.
type State struct {
	Posts   []model.Post
	Filter  model.FeedFilter
	Page    int
	HasMore bool
	Loading bool
}

// PostPatch is a partial post update. Nil fields are left unchanged.
type PostPatch struct {
	Title         *string
	Description   *string
	LikesCount    *int
	CommentsCount *int
	ViewsCount    *int
	Liked         *bool
	Saved         *bool
}

// Store owns the feed posts. Every mutation and its subscriber notification
// happen under one lock, so subscribers never see a partial update.
// Subscribers must not call back into the store.
type Store struct {
	mu      sync.Mutex
	state   State
	gen     uint64
	revs    optimistic.Revisions
	subs    map[int]func(State)
	nextSub int
	bus     *bus.Bus
}

// NewStore creates a store seeded with initial. b may be nil.
func NewStore(initial State, b *bus.Bus) *Store {
	if initial.Page == 0 {
		initial.Page = 1
	}
	initial.Posts = clonePosts(initial.Posts)
	return &Store{
		state: initial,
		revs:  optimistic.Revisions{},
		subs:  make(map[int]func(State)),
		bus:   b,
	}
}

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

// Post returns a copy of the post with the given id.
func (s *Store) Post(id string) (model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.state.Posts[i], true
	}
	return model.Post{}, false
}

// SetPosts replaces the post list.
func (s *Store) SetPosts(posts []model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Posts = clonePosts(posts)
	for _, p := range posts {
		s.revs.Bump(p.ID)
	}
	s.commit()
}

// AppendPosts adds a page of posts, skipping ids already present.
func (s *Store) AppendPosts(posts []model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(posts)
	s.commit()
}

func (s *Store) appendLocked(posts []model.Post) {
	for _, p := range posts {
		if s.index(p.ID) >= 0 {
			continue
		}
		s.state.Posts = append(s.state.Posts, p)
		s.revs.Bump(p.ID)
	}
}

// UpdatePost applies patch to the post. Negative counters are clamped to 0.
func (s *Store) UpdatePost(id string, patch PostPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return false
	}
	p := &s.state.Posts[i]
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.LikesCount != nil {
		p.LikesCount = max(*patch.LikesCount, 0)
	}
	if patch.CommentsCount != nil {
		p.CommentsCount = max(*patch.CommentsCount, 0)
	}
	if patch.ViewsCount != nil {
		p.ViewsCount = max(*patch.ViewsCount, 0)
	}
	if patch.Liked != nil {
		p.Liked = *patch.Liked
	}
	if patch.Saved != nil {
		p.Saved = *patch.Saved
	}
	s.revs.Bump(id)
	s.commit()
	return true
}

// ToggleLike flips the liked flag and moves likes_count by one in the same
// step. It returns the change, the new liked value, and false if the post
// is unknown. Applying ToggleLike twice restores the original post.
func (s *Store) ToggleLike(id string) (optimistic.Change, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return nil, false, false
	}
	p := &s.state.Posts[i]
	prevLiked, prevCount := p.Liked, p.LikesCount
	p.Liked = !p.Liked
	if p.Liked {
		p.LikesCount++
	} else {
		p.LikesCount = max(p.LikesCount-1, 0)
	}
	liked := p.Liked
	rev := s.revs.Bump(id)
	s.commit()

	return s.revertTo(id, rev, func(p *model.Post) {
		p.Liked, p.LikesCount = prevLiked, prevCount
	}), liked, true
}

// ToggleSave flips the saved flag. It returns the change, the new saved
// value, and false if the post is unknown.
func (s *Store) ToggleSave(id string) (optimistic.Change, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return nil, false, false
	}
	p := &s.state.Posts[i]
	prev := p.Saved
	p.Saved = !p.Saved
	saved := p.Saved
	rev := s.revs.Bump(id)
	s.commit()

	return s.revertTo(id, rev, func(p *model.Post) { p.Saved = prev }), saved, true
}

// revertTo returns a change that runs undo on the post only while rev is
// still its latest revision.
func (s *Store) revertTo(id string, rev uint64, undo func(*model.Post)) optimistic.Change {
	return optimistic.RevertFunc(func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		i := s.index(id)
		if i < 0 || !s.revs.Current(id, rev) {
			return false
		}
		undo(&s.state.Posts[i])
		s.revs.Bump(id)
		s.commit()
		return true
	})
}

// IncrementCommentCount adds one to the post's comment count.
func (s *Store) IncrementCommentCount(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.state.Posts[i].CommentsCount++
	s.revs.Bump(id)
	s.commit()
	return true
}

// SetFilter resets pagination to page 1 and clears the posts. Pages
// requested under the previous filter are discarded when they arrive.
// It returns the new filter generation.
func (s *Store) SetFilter(f model.FeedFilter) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state.Filter = f
	s.state.Page = 1
	s.state.Posts = nil
	s.state.HasMore = false
	s.state.Loading = false
	s.commit()
	return s.gen
}

// Query returns the current filter generation, filter and page.
func (s *Store) Query() (uint64, model.FeedFilter, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen, s.state.Filter, s.state.Page
}

// SetLoading marks a fetch as in flight.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Loading == loading {
		return
	}
	s.state.Loading = loading
	s.commit()
}

// ApplyPage stores a fetched page: page 1 replaces the posts, later pages
// append. It reports false and changes nothing when gen is stale.
func (s *Store) ApplyPage(gen uint64, page int, p *model.FeedPage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	if page <= 1 {
		s.state.Posts = clonePosts(p.Posts)
		for _, post := range p.Posts {
			s.revs.Bump(post.ID)
		}
		page = 1
	} else {
		s.appendLocked(p.Posts)
	}
	s.state.Page = page
	s.state.HasMore = p.HasMore
	s.state.Loading = false
	s.commit()
	return true
}

// Reset clears the store back to an empty first page.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state = State{Page: 1}
	s.revs = optimistic.Revisions{}
	s.commit()
}

func (s *Store) index(id string) int {
	for i := range s.state.Posts {
		if s.state.Posts[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshot() State {
	st := s.state
	st.Posts = clonePosts(s.state.Posts)
	return st
}

// commit notifies subscribers. Callers hold s.mu.
func (s *Store) commit() {
	snap := s.snapshot()
	for _, fn := range s.subs {
		fn(snap)
	}
	s.bus.Publish(bus.NewEvent(bus.KindFeedChanged, len(snap.Posts)))
}

func clonePosts(posts []model.Post) []model.Post {
	if posts == nil {
		return nil
	}
	return append([]model.Post(nil), posts...)
}
