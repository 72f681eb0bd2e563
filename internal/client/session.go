package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"github.com/hiroki-koketsu/go-task-tracker/internal/service"
)

const (
	tokenKey = "token"
	userKey  = "user"
)

// KVStore is durable key-value storage for session state.
type KVStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// Session holds the signed-in user and token. Init hydrates it from the
// store on launch; Save and Clear keep the store in step.
type Session struct {
	store KVStore

	mu    sync.RWMutex
	token string
	user  *model.AccountSummary
}

// NewSession creates an empty session backed by store.
func NewSession(store KVStore) *Session {
	return &Session{store: store}
}

// Init loads any previously saved token and user. A corrupt user entry is
// treated as signed out.
func (s *Session) Init() error {
	token, _, err := s.store.Get(tokenKey)
	if err != nil {
		return fmt.Errorf("read session token: %w", err)
	}
	raw, ok, err := s.store.Get(userKey)
	if err != nil {
		return fmt.Errorf("read session user: %w", err)
	}

	var user *model.AccountSummary
	if ok && raw != "" {
		var u model.AccountSummary
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			user = &u
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" || user == nil {
		s.token, s.user = "", nil
		return nil
	}
	s.token, s.user = token, user
	return nil
}

// Save records a successful login or registration.
func (s *Session) Save(res *service.AuthResult) error {
	raw, err := json.Marshal(res.User)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}
	if err := s.store.Set(userKey, string(raw)); err != nil {
		return fmt.Errorf("write session user: %w", err)
	}
	if err := s.store.Set(tokenKey, res.Token); err != nil {
		return fmt.Errorf("write session token: %w", err)
	}

	user := res.User
	s.mu.Lock()
	s.token, s.user = res.Token, &user
	s.mu.Unlock()
	return nil
}

// Clear signs out, removing the saved state.
func (s *Session) Clear() error {
	if err := s.store.Delete(tokenKey, userKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.mu.Lock()
	s.token, s.user = "", nil
	s.mu.Unlock()
	return nil
}

// Token returns the current session token, or "" when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the signed-in user, or nil.
func (s *Session) User() *model.AccountSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// LoggedIn reports whether a token is held.
func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

// FileStore is a KVStore kept as one JSON object in a file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore at path; the file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultSessionPath returns ~/.config/tasktracker/session.json.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tasktracker", "session.json"), nil
}

func (f *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return values, nil
}

func (f *FileStore) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Get returns the value stored under key.
func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set stores value under key.
func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value
	return f.write(values)
}

// Delete removes keys; missing keys are ignored.
func (f *FileStore) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(values, k)
	}
	return f.write(values)
}
