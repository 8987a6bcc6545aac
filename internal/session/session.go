// Package session manages upload sessions for stamping.
//
// Types:
//   - Session: Tracks the uploaded template, image assets, output file and status.
//   - SessionManager: Manages all active sessions.
//
// Expected outputs:
// - Session IDs are unique (UUID)
// - A session holds at most one template; uploading again replaces it
// - Cleanup removes all files for a session
//
// Used by API handlers to manage user state.
package session

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"go-pdfstamper/internal/job"
	"go-pdfstamper/internal/utils"
)

// Stamp statuses.
const (
	StatusIdle       = "idle"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

type Session struct {
	ID          string
	Template    string
	Assets      map[string]string
	OutputFile  string
	CreatedAt   time.Time
	StampStatus string
	Mutex       sync.Mutex
}

type SessionManager struct {
	Sessions map[string]*Session
	Mutex    sync.RWMutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		Sessions: make(map[string]*Session),
	}
}

func (sm *SessionManager) CreateSession() *Session {
	sm.Mutex.Lock()
	defer sm.Mutex.Unlock()

	session := &Session{
		ID:          utils.GenerateUUID(),
		Assets:      make(map[string]string),
		CreatedAt:   time.Now(),
		StampStatus: StatusIdle,
	}
	sm.Sessions[session.ID] = session
	return session
}

func (sm *SessionManager) GetSession(id string) (*Session, bool) {
	sm.Mutex.RLock()
	defer sm.Mutex.RUnlock()
	session, exists := sm.Sessions[id]
	return session, exists
}

func (sm *SessionManager) DeleteSession(id string) {
	sm.Mutex.Lock()
	defer sm.Mutex.Unlock()
	delete(sm.Sessions, id)
}

// CleanupExpired removes sessions older than ttl together with their files
// and returns how many were removed.
func (sm *SessionManager) CleanupExpired(ttl time.Duration) int {
	sm.Mutex.Lock()
	defer sm.Mutex.Unlock()
	removed := 0
	for id, session := range sm.Sessions {
		if time.Since(session.CreatedAt) > ttl {
			session.Cleanup()
			delete(sm.Sessions, id)
			removed++
		}
	}
	return removed
}

// SetTemplate records the uploaded template, removing a previous one.
func (s *Session) SetTemplate(path string) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if s.Template != "" && s.Template != path {
		os.Remove(s.Template)
	}
	s.Template = path
}

func (s *Session) GetTemplate() string {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	return s.Template
}

// AddAsset records an uploaded image under name, replacing an earlier
// asset of the same name.
func (s *Session) AddAsset(name, path string) {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if old, ok := s.Assets[name]; ok && old != path {
		os.Remove(old)
	}
	s.Assets[name] = path
}

// AssetNames returns the asset names in sorted order.
func (s *Session) AssetNames() []string {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	names := make([]string, 0, len(s.Assets))
	for name := range s.Assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the asset stored under name.
func (s *Session) Open(name string) (io.ReadCloser, error) {
	s.Mutex.Lock()
	path, ok := s.Assets[name]
	s.Mutex.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", job.ErrAssetNotFound, name)
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", job.ErrAssetNotFound, name)
	}
	return f, err
}

func (s *Session) Cleanup() {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if s.Template != "" {
		os.Remove(s.Template)
	}
	for _, file := range s.Assets {
		os.Remove(file)
	}
	if s.OutputFile != "" {
		os.Remove(s.OutputFile)
	}
}
