package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"
)

// FileStore keeps the registry as one JSON document keyed by token. The
// notifier that issues tokens may write the same file, so every call reads
// the document fresh from disk. Comments and trailing commas written by
// hand are tolerated.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) CreateSession(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, exists := doc[session.Token]; exists {
		return ErrSessionExists
	}
	doc[session.Token] = session
	return s.save(doc)
}

func (s *FileStore) GetSession(_ context.Context, token string) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return Session{}, false, err
	}
	session, ok := doc[token]
	return session, ok, nil
}

func (s *FileStore) UpdateSession(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, exists := doc[session.Token]; !exists {
		return ErrSessionNotFound
	}
	doc[session.Token] = session
	return s.save(doc)
}

func (s *FileStore) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, exists := doc[token]; !exists {
		return nil
	}
	delete(doc, token)
	return s.save(doc)
}

func (s *FileStore) ListSessions(_ context.Context) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	result := make([]Session, 0, len(doc))
	for _, session := range doc {
		result = append(result, session)
	}
	sortSessions(result)
	return result, nil
}

func (s *FileStore) load() (map[string]Session, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]Session), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session registry: %w", err)
	}

	doc := make(map[string]Session)
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(jsonc.ToJSON(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode session registry %s: %w", s.path, err)
	}

	// Documents written by other tools may omit the token inside the record.
	normalized := make(map[string]Session, len(doc))
	for key, session := range doc {
		token := NormalizeToken(key)
		session.Token = token
		if session.Kind == "" {
			session.Kind = KindInteractiveTerminal
		}
		normalized[token] = session
	}
	return normalized, nil
}

func (s *FileStore) save(doc map[string]Session) error {
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create session registry dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create session registry temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(append(encoded, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync session registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session registry temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace session registry: %w", err)
	}
	return nil
}
