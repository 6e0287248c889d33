// Package credential persists the opaque bearer credential the remote client
// attaches to requests. The client never issues or verifies credentials; it
// only reads the expiry claim when the token happens to be a JWT.
package credential

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Source is what the remote client needs from a credential holder.
type Source interface {
	Token() (string, bool)
	Save(token string) error
	Clear() error
}

// FileStore keeps the credential in a single 0600 file.
type FileStore struct {
	mu   sync.RWMutex
	path string
	now  func() time.Time
}

// NewFileStore returns a store backed by path. The file is created on Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Token returns the stored credential. A missing file, an empty file, or a
// JWT whose exp claim has passed all report false.
func (s *FileStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", false
	}
	if exp, ok := Expiry(token); ok && !exp.After(s.now()) {
		return "", false
	}
	return token, true
}

// Save replaces the stored credential.
func (s *FileStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(strings.TrimSpace(token)+"\n"), 0600)
}

// Clear removes the stored credential. Clearing an absent credential is not an error.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Expiry extracts the exp claim from a JWT without verifying its signature.
// Opaque tokens and JWTs without exp report false.
func Expiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Subject extracts the sub claim from a JWT without verifying its signature.
func Subject(token string) (string, bool) {
	if strings.Count(token, ".") != 2 {
		return "", false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", false
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

// Memory is an in-memory Source for tests and demo runs.
type Memory struct {
	mu      sync.Mutex
	token   string
	Cleared int
}

// NewMemory returns a Memory holding token ("" means no credential).
func NewMemory(token string) *Memory {
	return &Memory{token: token}
}

func (m *Memory) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token != ""
}

func (m *Memory) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = strings.TrimSpace(token)
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.Cleared++
	return nil
}
