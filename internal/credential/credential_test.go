package credential

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestFileStoreRoundTrip(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "p", "credential"))

	if _, ok := s.Token(); ok {
		t.Fatal("Token() on empty store reported a credential")
	}
	if err := s.Save("opaque-token"); err != nil {
		t.Fatal(err)
	}
	got, ok := s.Token()
	if !ok || got != "opaque-token" {
		t.Errorf("Token() = %q, %v; want opaque-token, true", got, ok)
	}

	info, err := os.Stat(s.path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("credential permission = %o, want 0600", perm)
	}

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Token(); ok {
		t.Error("Token() after Clear reported a credential")
	}
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestFileStoreExpiredJWT(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "credential"))
	now := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	expired := signed(t, jwt.MapClaims{"email": "a@b.c", "exp": now.Add(-time.Minute).Unix()})
	if err := s.Save(expired); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Token(); ok {
		t.Error("expired JWT should be treated as absent")
	}

	valid := signed(t, jwt.MapClaims{"email": "a@b.c", "exp": now.Add(time.Hour).Unix()})
	if err := s.Save(valid); err != nil {
		t.Fatal(err)
	}
	if got, ok := s.Token(); !ok || got != valid {
		t.Error("unexpired JWT should be returned")
	}
}

func TestExpiry(t *testing.T) {
	exp := time.Unix(1737374400, 0)
	tests := []struct {
		name   string
		token  string
		wantOK bool
	}{
		{"opaque", "not-a-jwt", false},
		{"jwt without exp", signed(t, jwt.MapClaims{"email": "x"}), false},
		{"jwt with exp", signed(t, jwt.MapClaims{"exp": exp.Unix()}), true},
		{"garbage with dots", "a.b.c", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Expiry(tt.token)
			if ok != tt.wantOK {
				t.Fatalf("Expiry() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(exp) {
				t.Errorf("Expiry() = %v, want %v", got, exp)
			}
		})
	}
}

func TestSubject(t *testing.T) {
	if sub, ok := Subject(signed(t, jwt.MapClaims{"sub": "user-42"})); !ok || sub != "user-42" {
		t.Errorf("Subject() = %q, %v", sub, ok)
	}
	if _, ok := Subject(signed(t, jwt.MapClaims{"email": "x"})); ok {
		t.Error("jwt without sub reported a subject")
	}
	if _, ok := Subject("opaque"); ok {
		t.Error("opaque token reported a subject")
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory("tok")
	if got, ok := m.Token(); !ok || got != "tok" {
		t.Errorf("Token() = %q, %v", got, ok)
	}
	_ = m.Clear()
	if _, ok := m.Token(); ok {
		t.Error("Token() after Clear reported a credential")
	}
	if m.Cleared != 1 {
		t.Errorf("Cleared = %d, want 1", m.Cleared)
	}
}
