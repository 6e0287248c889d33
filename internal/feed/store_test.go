package feed

import (
	"testing"

	"github.com/matheus3301/plated/internal/model"
)

func seeded(posts ...model.Post) *Store {
	return NewStore(State{Posts: posts}, nil)
}

func TestToggleLikeScenario(t *testing.T) {
	s := seeded(model.Post{ID: "p1", LikesCount: 42})

	if _, liked, ok := s.ToggleLike("p1"); !ok || !liked {
		t.Fatalf("ToggleLike = liked %v, ok %v", liked, ok)
	}
	p, _ := s.Post("p1")
	if p.LikesCount != 43 || !p.Liked {
		t.Errorf("after first toggle = {%d, %v}, want {43, true}", p.LikesCount, p.Liked)
	}

	s.ToggleLike("p1")
	p, _ = s.Post("p1")
	if p.LikesCount != 42 || p.Liked {
		t.Errorf("after second toggle = {%d, %v}, want {42, false}", p.LikesCount, p.Liked)
	}
}

func TestToggleLikeInvolution(t *testing.T) {
	for _, start := range []model.Post{
		{ID: "a", LikesCount: 0},
		{ID: "a", LikesCount: 1, Liked: true},
		{ID: "a", LikesCount: 1000},
	} {
		s := seeded(start)
		s.ToggleLike("a")
		s.ToggleLike("a")
		got, _ := s.Post("a")
		if got.LikesCount != start.LikesCount || got.Liked != start.Liked {
			t.Errorf("double toggle of %+v = {%d, %v}", start, got.LikesCount, got.Liked)
		}
	}
}

func TestToggleLikeNeverNegative(t *testing.T) {
	// Inconsistent server data: liked with zero likes.
	s := seeded(model.Post{ID: "p1", LikesCount: 0, Liked: true})
	change, _, _ := s.ToggleLike("p1")
	p, _ := s.Post("p1")
	if p.LikesCount != 0 {
		t.Errorf("likes_count = %d, want clamp at 0", p.LikesCount)
	}
	if !change.Revert() {
		t.Fatal("revert should apply")
	}
	p, _ = s.Post("p1")
	if p.LikesCount != 0 || !p.Liked {
		t.Errorf("revert = {%d, %v}, want exact original {0, true}", p.LikesCount, p.Liked)
	}
}

func TestToggleUnknownPost(t *testing.T) {
	s := seeded()
	if _, _, ok := s.ToggleLike("nope"); ok {
		t.Error("ToggleLike on unknown post should report false")
	}
	if _, _, ok := s.ToggleSave("nope"); ok {
		t.Error("ToggleSave on unknown post should report false")
	}
}

func TestRevertSkippedWhenSuperseded(t *testing.T) {
	s := seeded(model.Post{ID: "p1", LikesCount: 10})
	first, _, _ := s.ToggleLike("p1")
	count := 20
	s.UpdatePost("p1", PostPatch{LikesCount: &count})

	if first.Revert() {
		t.Error("revert of a superseded change should be skipped")
	}
	p, _ := s.Post("p1")
	if p.LikesCount != 20 || !p.Liked {
		t.Errorf("post = {%d, %v}, want later update kept", p.LikesCount, p.Liked)
	}
}

func TestToggleSave(t *testing.T) {
	s := seeded(model.Post{ID: "p1", LikesCount: 5})
	change, saved, ok := s.ToggleSave("p1")
	if !ok || !saved {
		t.Fatalf("ToggleSave = %v, %v", saved, ok)
	}
	p, _ := s.Post("p1")
	if !p.Saved || p.LikesCount != 5 {
		t.Errorf("post = %+v, want saved with counters untouched", p)
	}
	change.Revert()
	p, _ = s.Post("p1")
	if p.Saved {
		t.Error("revert should unsave")
	}
}

func TestUpdatePostClampsCounters(t *testing.T) {
	s := seeded(model.Post{ID: "p1", CommentsCount: 2})
	neg := -3
	title := "New"
	if !s.UpdatePost("p1", PostPatch{CommentsCount: &neg, Title: &title}) {
		t.Fatal("UpdatePost returned false")
	}
	p, _ := s.Post("p1")
	if p.CommentsCount != 0 || p.Title != "New" {
		t.Errorf("post = %+v", p)
	}
	if s.UpdatePost("missing", PostPatch{Title: &title}) {
		t.Error("UpdatePost on unknown id should return false")
	}
}

func TestAppendPostsSkipsDuplicates(t *testing.T) {
	s := seeded(model.Post{ID: "p1"})
	s.AppendPosts([]model.Post{{ID: "p1"}, {ID: "p2"}})
	if got := len(s.Snapshot().Posts); got != 2 {
		t.Errorf("len = %d, want 2", got)
	}
}

func TestSetFilterClearsPosts(t *testing.T) {
	s := seeded(model.Post{ID: "p1"}, model.Post{ID: "p2"})
	s.ApplyPage(0, 3, &model.FeedPage{HasMore: true})

	gen := s.SetFilter(model.FeedFilter{Cuisine: "thai"})
	st := s.Snapshot()
	if len(st.Posts) != 0 || st.Page != 1 || st.HasMore {
		t.Errorf("after SetFilter = %+v, want empty page 1", st)
	}
	if st.Filter.Cuisine != "thai" {
		t.Errorf("filter = %+v", st.Filter)
	}
	if gen == 0 {
		t.Error("generation should advance")
	}
}

func TestApplyPageDiscardsStaleGeneration(t *testing.T) {
	s := seeded()
	oldGen, _, _ := s.Query()
	s.SetFilter(model.FeedFilter{Type: model.FeedTrending})

	if s.ApplyPage(oldGen, 1, &model.FeedPage{Posts: []model.Post{{ID: "stale"}}}) {
		t.Error("stale page should be rejected")
	}
	if got := len(s.Snapshot().Posts); got != 0 {
		t.Errorf("stale posts visible: %d", got)
	}
}

func TestApplyPageReplacesThenAppends(t *testing.T) {
	s := seeded(model.Post{ID: "old"})
	gen, _, _ := s.Query()

	s.ApplyPage(gen, 1, &model.FeedPage{Posts: []model.Post{{ID: "a"}, {ID: "b"}}, HasMore: true})
	s.ApplyPage(gen, 2, &model.FeedPage{Posts: []model.Post{{ID: "c"}}, HasMore: false})

	st := s.Snapshot()
	var ids []string
	for _, p := range st.Posts {
		ids = append(ids, p.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Errorf("ids = %v, want [a b c]", ids)
	}
	if st.Page != 2 || st.HasMore {
		t.Errorf("page=%d has_more=%v, want 2 false", st.Page, st.HasMore)
	}
}

func TestSubscribersSeeEveryMutation(t *testing.T) {
	s := seeded(model.Post{ID: "p1", LikesCount: 1})
	var seen []State
	unsub := s.Subscribe(func(st State) { seen = append(seen, st) })

	s.ToggleLike("p1")
	s.IncrementCommentCount("p1")
	unsub()
	s.ToggleLike("p1")

	if len(seen) != 2 {
		t.Fatalf("got %d notifications, want 2", len(seen))
	}
	first := seen[0].Posts[0]
	if !first.Liked || first.LikesCount != 2 {
		t.Errorf("first snapshot = %+v, want flag and counter together", first)
	}
	if seen[1].Posts[0].CommentsCount != 1 {
		t.Errorf("second snapshot comments = %d", seen[1].Posts[0].CommentsCount)
	}
}

func TestSnapshotIsolated(t *testing.T) {
	s := seeded(model.Post{ID: "p1", LikesCount: 1})
	snap := s.Snapshot()
	snap.Posts[0].LikesCount = 99
	if p, _ := s.Post("p1"); p.LikesCount != 1 {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestReset(t *testing.T) {
	s := seeded(model.Post{ID: "p1"})
	gen, _, _ := s.Query()
	s.Reset()
	if st := s.Snapshot(); len(st.Posts) != 0 || st.Page != 1 {
		t.Errorf("after Reset = %+v", st)
	}
	if s.ApplyPage(gen, 1, &model.FeedPage{Posts: []model.Post{{ID: "late"}}}) {
		t.Error("page from before Reset should be discarded")
	}
}
