package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/matheus3301/plated/internal/bus"
	"github.com/matheus3301/plated/internal/config"
	"github.com/matheus3301/plated/internal/credential"
	"github.com/matheus3301/plated/internal/model"
	"github.com/matheus3301/plated/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache { return &memCache{entries: map[string][]byte{}} }

func (m *memCache) PutCache(key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append([]byte(nil), body...)
	return nil
}

func (m *memCache) GetCache(key string) (*store.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return &store.CacheEntry{Key: key, Body: body, FetchedAt: time.Now()}, nil
}

func (m *memCache) ClearCache() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	return nil
}

func (m *memCache) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func subjectToken(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte("test"))
	require.NoError(t, err)
	return tok
}

func newTestClient(t *testing.T, baseURL string, mode config.AuthMode, creds credential.Source) (*Client, *int32) {
	t.Helper()
	var redirects int32
	c, err := New(Options{
		BaseURL:     baseURL,
		AuthMode:    mode,
		Timeout:     2 * time.Second,
		Credentials: creds,
		Navigator:   NavigatorFunc(func() { atomic.AddInt32(&redirects, 1) }),
		Cache:       newMemCache(),
		Bus:         bus.New(),
	})
	require.NoError(t, err)
	return c, &redirects
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// deadURL returns the address of a server that has already shut down.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestCallAttachesBearer(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, config.AuthOnline, credential.NewMemory("tok-123"))
	require.NoError(t, c.Call(context.Background(), Request{Path: "/ping"}, nil))
	assert.Equal(t, "Bearer tok-123", got)
}

func TestCallWithoutCredential(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, config.AuthOnline, nil)
	require.NoError(t, c.Call(context.Background(), Request{Path: "/ping"}, nil), "absent credential is not an error")
	assert.Empty(t, got)
}

func TestCallDecodesJSONAndText(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/json", jsonHandler(200, `{"count":7}`))
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "ok")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, config.AuthOnline, nil)

	var count model.UnreadCount
	require.NoError(t, c.Call(context.Background(), Request{Path: "/json"}, &count))
	assert.Equal(t, 7, count.Count)

	var text string
	require.NoError(t, c.Call(context.Background(), Request{Path: "/text"}, &text))
	assert.Equal(t, "ok", text)

	// Text bodies are ignored for non-string targets.
	require.NoError(t, c.Call(context.Background(), Request{Path: "/text"}, &count))
}

func TestAuthFailureOnline(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusUnauthorized, `{"error":"expired"}`))
	defer srv.Close()

	creds := credential.NewMemory("tok")
	c, redirects := newTestClient(t, srv.URL, config.AuthOnline, creds)
	events, unsub := c.bus.Subscribe("sync.", 4)
	defer unsub()

	err := c.Call(context.Background(), Request{Path: "/feed"}, nil)
	require.Error(t, err)
	assert.Equal(t, AuthFailure, Classify(err))
	assert.Equal(t, 1, creds.Cleared, "credential should be cleared")
	assert.EqualValues(t, 1, atomic.LoadInt32(redirects), "should redirect to sign-in")

	_, ok := creds.Token()
	assert.False(t, ok)

	select {
	case evt := <-events:
		assert.Equal(t, bus.KindAuthFailure, evt.Kind)
	case <-time.After(time.Second):
		t.Fatal("no auth failure event")
	}
}

func TestAuthFailureOfflineKeepsCredential(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusForbidden, ``))
	defer srv.Close()

	creds := credential.NewMemory("tok")
	c, redirects := newTestClient(t, srv.URL, config.AuthOffline, creds)

	err := c.Call(context.Background(), Request{Path: "/feed"}, nil)
	assert.Equal(t, AuthFailure, Classify(err))
	assert.Zero(t, creds.Cleared)
	assert.Zero(t, atomic.LoadInt32(redirects))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"401", &Error{Kind: kindForStatus(401)}, AuthFailure},
		{"403", &Error{Kind: kindForStatus(403)}, AuthFailure},
		{"404", &Error{Kind: kindForStatus(404)}, Unavailable},
		{"500", &Error{Kind: kindForStatus(500)}, Unavailable},
		{"503", &Error{Kind: kindForStatus(503)}, Unavailable},
		{"400", &Error{Kind: kindForStatus(400)}, Rejected},
		{"422", &Error{Kind: kindForStatus(422)}, Rejected},
		{"wrapped", fmt.Errorf("load feed: %w", &Error{Kind: Unavailable}), Unavailable},
		{"deadline", context.DeadlineExceeded, Unavailable},
		{"canceled", context.Canceled, Rejected},
		{"plain", errors.New("boom"), Rejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestNoResponseIsUnavailable(t *testing.T) {
	c, _ := newTestClient(t, deadURL(t), config.AuthOnline, nil)
	err := c.Call(context.Background(), Request{Path: "/feed"}, nil)
	require.Error(t, err)
	assert.Equal(t, Unavailable, Classify(err))

	var re *Error
	require.True(t, errors.As(err, &re))
	assert.Zero(t, re.Status)
}

func TestWithFallbackNoResponseReturnsFallback(t *testing.T) {
	c, _ := newTestClient(t, deadURL(t), config.AuthOnline, nil)

	call := func(ctx context.Context) ([]model.Post, error) {
		var out []model.Post
		err := c.Call(ctx, Request{Path: "/feed"}, &out)
		return out, err
	}
	got, err := WithFallback(context.Background(), c, "feed", call, []model.Post{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestWithFallbackStatuses(t *testing.T) {
	tests := []struct {
		status       int
		mode         config.AuthMode
		wantFallback bool
	}{
		{404, config.AuthOnline, true},
		{500, config.AuthOnline, true},
		{502, config.AuthOnline, true},
		{400, config.AuthOnline, false},
		{409, config.AuthOnline, false},
		{401, config.AuthOnline, false},
		{401, config.AuthOffline, true},
		{403, config.AuthOffline, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", tt.status, tt.mode), func(t *testing.T) {
			srv := httptest.NewServer(jsonHandler(tt.status, `{"error":"x"}`))
			defer srv.Close()
			c, _ := newTestClient(t, srv.URL, tt.mode, nil)

			fallback := &model.UnreadCount{Count: 3}
			call := func(ctx context.Context) (*model.UnreadCount, error) {
				var out model.UnreadCount
				if err := c.Call(ctx, Request{Path: "/messages/unread"}, &out); err != nil {
					return nil, err
				}
				return &out, nil
			}
			got, err := WithFallback(context.Background(), c, "unread", call, fallback)
			if tt.wantFallback {
				require.NoError(t, err)
				assert.Same(t, fallback, got)
				return
			}
			require.Error(t, err)
			var re *Error
			require.True(t, errors.As(err, &re), "error must be returned unchanged")
			assert.Equal(t, tt.status, re.Status)
		})
	}
}

func TestWithFallbackRealData(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `{"count":9}`))
	defer srv.Close()
	c, _ := newTestClient(t, srv.URL, config.AuthOnline, nil)

	got, err := c.UnreadCount(context.Background(), &model.UnreadCount{Count: 1})
	require.NoError(t, err)
	assert.Equal(t, 9, got.Count)
}

func TestWithFallbackNilResult(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, `null`))
	defer srv.Close()
	c, _ := newTestClient(t, srv.URL, config.AuthOnline, nil)

	fallback := []model.Conversation{{ID: "c1"}}
	got, err := c.Conversations(context.Background(), fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, got)
}

func TestReadFallsBackToCache(t *testing.T) {
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		jsonHandler(200, `[{"id":"c-live","unread_count":2}]`)(w, r)
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv.URL, config.AuthOnline, nil)

	sample := []model.Conversation{{ID: "c-sample"}}
	got, err := c.Conversations(context.Background(), sample)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c-live", got[0].ID)

	failing.Store(true)
	got, err = c.Conversations(context.Background(), sample)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c-live", got[0].ID, "cached response should win over sample data")
	assert.Equal(t, 2, got[0].UnreadCount)
}

func TestFallbackPublishesEvent(t *testing.T) {
	c, _ := newTestClient(t, deadURL(t), config.AuthOnline, nil)
	events, unsub := c.bus.Subscribe("sync.", 4)
	defer unsub()

	_, err := c.Challenges(context.Background(), []model.Challenge{})
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, bus.KindFallbackUsed, evt.Kind)
		assert.Equal(t, map[string]string{"call": "challenges"}, evt.Payload)
	case <-time.After(time.Second):
		t.Fatal("no fallback event")
	}
}

func TestInvalidPayloadNeverSent(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv.URL, config.AuthOnline, nil)

	_, err := c.SendMessage(context.Background(), model.SendMessageRequest{ConversationID: "c1"})
	assert.Equal(t, Rejected, Classify(err))

	_, err = c.JoinSquad(context.Background(), model.JoinSquadRequest{Code: "AB"})
	assert.Equal(t, Rejected, Classify(err))

	_, err = c.Feed(context.Background(), 1, model.FeedFilter{Difficulty: "impossible"}, nil)
	assert.Equal(t, Rejected, Classify(err))

	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestFeedQuery(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		jsonHandler(200, `{"posts":[{"id":"p1","likes_count":42}],"has_more":true}`)(w, r)
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv.URL, config.AuthOnline, nil)

	page, err := c.Feed(context.Background(), 2, model.FeedFilter{Type: model.FeedTrending, Cuisine: "thai", MaxTime: 30}, nil)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, 42, page.Posts[0].LikesCount)
	assert.Equal(t, "cuisine=thai&limit=10&max_time=30&page=2&type=trending", query)
}

func TestSubmitProofMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/recipes/r1/proof" {
			http.Error(w, "bad route", http.StatusBadRequest)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = f.Close() }()
		data, _ := io.ReadAll(f)
		if string(data) != "jpeg-bytes" || hdr.Filename != "dish.jpg" || r.FormValue("note") != "crispy" {
			http.Error(w, "unexpected form", http.StatusBadRequest)
			return
		}
		jsonHandler(200, `{"proof_id":"pf1","verification_status":"pending","coins_awarded":5,"message":"ok"}`)(w, r)
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv.URL, config.AuthOnline, nil)

	res, err := c.SubmitProof(context.Background(), "r1", ProofUpload{
		Image:    strings.NewReader("jpeg-bytes"),
		FileName: "dish.jpg",
		Note:     "crispy",
	})
	require.NoError(t, err)
	assert.Equal(t, "pf1", res.ProofID)
	assert.Equal(t, model.VerificationPending, res.VerificationStatus)
	assert.Equal(t, 5, res.CoinsAwarded)
}

func TestSubmitProofRequiresImage(t *testing.T) {
	c, _ := newTestClient(t, deadURL(t), config.AuthOnline, nil)
	_, err := c.SubmitProof(context.Background(), "r1", ProofUpload{})
	assert.Equal(t, Rejected, Classify(err))
}

func TestWritesNeverFallBack(t *testing.T) {
	c, _ := newTestClient(t, deadURL(t), config.AuthOnline, nil)

	_, err := c.StartChallenge(context.Background(), "ch1")
	assert.Equal(t, Unavailable, Classify(err), "writes surface the failure")

	assert.Error(t, c.LikePost(context.Background(), "p1"))
	assert.Error(t, c.MarkConversationRead(context.Background(), "c1"))
}

func TestRequestKey(t *testing.T) {
	a := Request{Method: "GET", Path: "/feed", Query: map[string][]string{"page": {"1"}, "cuisine": {"thai"}}}
	b := Request{Method: "GET", Path: "/feed", Query: map[string][]string{"cuisine": {"thai"}, "page": {"1"}}}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "GET /feed?cuisine=thai&page=1", a.Key())
	assert.Equal(t, "GET /squads", Request{Method: "GET", Path: "/squads"}.Key())
}

func TestSignOutClearsCache(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `[{"id":"c-alice"}]`))
	defer srv.Close()

	creds := credential.NewMemory(subjectToken(t, "alice"))
	c, _ := newTestClient(t, srv.URL, config.AuthOnline, creds)
	cache := c.cache.(*memCache)

	_, err := c.Conversations(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, cache.len())

	require.NoError(t, c.SignOut())
	assert.Zero(t, cache.len(), "cached responses must not outlive the credential")
	_, ok := creds.Token()
	assert.False(t, ok)
}

func TestSignInClearsCacheForNewSubject(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `[{"id":"c-alice"}]`))
	defer srv.Close()

	alice := subjectToken(t, "alice")
	creds := credential.NewMemory(alice)
	c, _ := newTestClient(t, srv.URL, config.AuthOnline, creds)
	cache := c.cache.(*memCache)
	_, err := c.Conversations(context.Background(), nil)
	require.NoError(t, err)

	// Refreshing the same user's token keeps the cache.
	require.NoError(t, c.SignIn(alice))
	assert.Equal(t, 1, cache.len())

	require.NoError(t, c.SignIn(subjectToken(t, "bob")))
	assert.Zero(t, cache.len())
	tok, _ := creds.Token()
	assert.Equal(t, subjectToken(t, "bob"), tok)

	assert.Error(t, c.SignIn("  "))
}

func TestAuthFailureClearsCache(t *testing.T) {
	var denied atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if denied.Load() {
			jsonHandler(http.StatusUnauthorized, `{"error":"expired"}`)(w, r)
			return
		}
		jsonHandler(http.StatusOK, `[{"id":"c-alice"}]`)(w, r)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, config.AuthOnline, credential.NewMemory("tok"))
	_, err := c.Conversations(context.Background(), nil)
	require.NoError(t, err)

	denied.Store(true)
	_, err = c.Conversations(context.Background(), nil)
	assert.Equal(t, AuthFailure, Classify(err))
	assert.Zero(t, c.cache.(*memCache).len())
}

func TestProgressionRoutes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gamification/skill-tracks", jsonHandler(200, `[{"id":"knife","slug":"knife-skills","name":"Knife Skills","totalRecipes":5,"completedRecipes":2}]`))
	mux.HandleFunc("GET /badges", jsonHandler(200, `{"badges":[{"id":"baker","name":"Baker","category":"challenge"}]}`))
	mux.HandleFunc("GET /gamification/u1/badges", jsonHandler(200, `{"badges":[{"id":"baker","name":"Baker","category":"challenge"}]}`))
	mux.HandleFunc("GET /gamification/recipes/r1/completions", jsonHandler(200, `{"recipeId":"r1","count":1,"users":[{"userId":"u1","username":"ana","createdAt":"2025-03-01T18:00:00Z"}]}`))
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c, _ := newTestClient(t, srv.URL, config.AuthOnline, nil)
	ctx := context.Background()

	tracks, err := c.SkillTracks(ctx, nil)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, 2, tracks[0].CompletedRecipes)

	catalog, err := c.BadgeCatalog(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "baker", catalog.Badges[0].ID)

	mine, err := c.UserBadges(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Len(t, mine.Badges, 1)

	chain, err := c.RecipeCompletions(ctx, "r1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, chain.Count)
	assert.Equal(t, "ana", chain.Users[0].Username)
}
