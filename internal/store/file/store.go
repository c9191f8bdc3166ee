// Package file stores tokens, suppression lists and the deferred SMS queue as
// JSON documents. Each document is read fully on access and rewritten fully
// (temp file + rename) on mutation.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"jobnotify/internal/domain"
)

const (
	tokensFile         = "tokens.json"
	emailSuppression   = "suppressionList.json"
	smsSuppression     = "smsSuppressionList.json"
	smsQueueFile       = "smsQueue.json"
	defaultPermissions = 0o600
)

type Store struct {
	dir string

	// one lock for all documents; writes are rare and small
	mu sync.Mutex
}

func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("file store: empty data dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *Store) LoadToken(ctx context.Context) (domain.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pair domain.TokenPair
	if err := s.read(tokensFile, &pair); err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

func (s *Store) SaveToken(ctx context.Context, pair domain.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(tokensFile, pair)
}

func (s *Store) IsSuppressed(ctx context.Context, ch domain.Channel, identity string) (bool, error) {
	name, err := suppressionFile(ch)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []string
	if err := s.read(name, &list); err != nil {
		return false, err
	}
	return slices.Contains(list, identity), nil
}

func (s *Store) AddSuppression(ctx context.Context, ch domain.Channel, identity string) error {
	name, err := suppressionFile(ch)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []string
	if err := s.read(name, &list); err != nil {
		return err
	}
	if slices.Contains(list, identity) {
		return nil
	}
	return s.write(name, append(list, identity))
}

func (s *Store) RemoveSuppression(ctx context.Context, ch domain.Channel, identity string) error {
	name, err := suppressionFile(ch)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []string
	if err := s.read(name, &list); err != nil {
		return err
	}
	if !slices.Contains(list, identity) {
		return nil
	}
	kept := slices.DeleteFunc(list, func(v string) bool { return v == identity })
	return s.write(name, kept)
}

func (s *Store) AppendSMS(ctx context.Context, item domain.QueuedSMS) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queue []domain.QueuedSMS
	if err := s.read(smsQueueFile, &queue); err != nil {
		return err
	}
	return s.write(smsQueueFile, append(queue, item))
}

func (s *Store) TakeAllSMS(ctx context.Context) ([]domain.QueuedSMS, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queue []domain.QueuedSMS
	if err := s.read(smsQueueFile, &queue); err != nil {
		return nil, err
	}
	if len(queue) == 0 {
		return nil, nil
	}
	if err := s.write(smsQueueFile, []domain.QueuedSMS{}); err != nil {
		return nil, err
	}
	return queue, nil
}

func (s *Store) CountSMS(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queue []domain.QueuedSMS
	if err := s.read(smsQueueFile, &queue); err != nil {
		return 0, err
	}
	return len(queue), nil
}

func suppressionFile(ch domain.Channel) (string, error) {
	switch ch {
	case domain.ChannelEmail:
		return emailSuppression, nil
	case domain.ChannelSMS:
		return smsSuppression, nil
	default:
		return "", fmt.Errorf("file store: unknown channel %q", ch)
	}
}

// read decodes the named document into v. A missing document leaves v untouched.
func (s *Store) read(name string, v any) error {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("file store: read %s: %w", name, err)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("file store: decode %s: %w", name, err)
	}
	return nil
}

func (s *Store) write(name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("file store: encode %s: %w", name, err)
	}

	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("file store: temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store: sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file store: close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, defaultPermissions); err != nil {
		return fmt.Errorf("file store: chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("file store: replace %s: %w", name, err)
	}
	return nil
}
