// Package sessions persists conversation history as one append-only JSONL
// file per session key, matching the durable session log the agent loop
// replays on every query.
package sessions

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Store is the interface for session persistence: metadata plus an
// append-only message log per session key.
type Store interface {
	// GetOrCreate returns the session for key, creating it (with
	// CreatedAt/UpdatedAt set to now) if it doesn't exist yet.
	GetOrCreate(ctx context.Context, key string) (*models.SessionMeta, error)

	// Get returns the session for key, or an error if it doesn't exist.
	Get(ctx context.Context, key string) (*models.SessionMeta, error)

	// List returns every known session, most recently updated first.
	List(ctx context.Context) ([]*models.SessionMeta, error)

	// AppendMessage appends msg to the session's log and bumps UpdatedAt.
	AppendMessage(ctx context.Context, key string, msg models.Message) error

	// History returns up to limit most recent messages for the session, in
	// chronological order. limit <= 0 returns the full log.
	History(ctx context.Context, key string, limit int) ([]models.Message, error)

	// Rename updates a session's DisplayName.
	Rename(ctx context.Context, key, displayName string) error

	// Delete removes a session's log and metadata. Callers that also keep
	// tool-context pointers or memory entries scoped to a session key are
	// responsible for deleting those alongside this call; Store only owns
	// the message log and metadata file.
	Delete(ctx context.Context, key string) error
}

// FileStore is a JSONL-file-backed Store: one "<key>.jsonl" message log and
// one "<key>.meta.json" metadata file per session under Root. Writes are
// serialized per session key via a SessionLocker so concurrent queries
// against the same session never interleave appends.
type FileStore struct {
	root   string
	locker *SessionLocker
}

// NewFileStore creates a FileStore rooted at dir, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session store root: %w", err)
	}
	return &FileStore{root: dir, locker: NewSessionLocker(DefaultLockTimeout)}, nil
}

func (s *FileStore) metaPath(key string) string {
	return filepath.Join(s.root, sanitizeKey(key)+".meta.json")
}

func (s *FileStore) logPath(key string) string {
	return filepath.Join(s.root, sanitizeKey(key)+".jsonl")
}

// maxSanitizedKeyLength bounds the filename derived from a session key so an
// arbitrarily long key can't produce an unusable path.
const maxSanitizedKeyLength = 200

// sanitizeKey keeps session keys from escaping the store root via path
// separators, strips non-printing characters, and bounds the result's
// length, while staying legible in the resulting filename.
func sanitizeKey(key string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	key = replacer.Replace(key)
	key = strings.Map(func(r rune) rune {
		if !unicode.IsPrint(r) {
			return '_'
		}
		return r
	}, key)
	if runes := []rune(key); len(runes) > maxSanitizedKeyLength {
		key = string(runes[:maxSanitizedKeyLength])
	}
	return key
}

func (s *FileStore) readMeta(key string) (*models.SessionMeta, error) {
	data, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		return nil, err
	}
	var meta models.SessionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode session meta for %q: %w", key, err)
	}
	return &meta, nil
}

func (s *FileStore) writeMeta(meta *models.SessionMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	tmp := s.metaPath(meta.Key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.metaPath(meta.Key))
}

// GetOrCreate implements Store.
func (s *FileStore) GetOrCreate(ctx context.Context, key string) (*models.SessionMeta, error) {
	if err := s.locker.LockWithContext(ctx, key); err != nil {
		return nil, err
	}
	defer s.locker.Unlock(key)

	if meta, err := s.readMeta(key); err == nil {
		return meta, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	now := time.Now()
	meta := &models.SessionMeta{Key: key, CreatedAt: now, UpdatedAt: now}
	if err := s.writeMeta(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// Get implements Store.
func (s *FileStore) Get(ctx context.Context, key string) (*models.SessionMeta, error) {
	meta, err := s.readMeta(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %q: %w", key, errSessionNotFound)
		}
		return nil, err
	}
	return meta, nil
}

// List implements Store.
func (s *FileStore) List(ctx context.Context) ([]*models.SessionMeta, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var metas []*models.SessionMeta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, entry.Name()))
		if err != nil {
			continue
		}
		var meta models.SessionMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		metas = append(metas, &meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].UpdatedAt.After(metas[j].UpdatedAt) })
	return metas, nil
}

// AppendMessage implements Store.
func (s *FileStore) AppendMessage(ctx context.Context, key string, msg models.Message) error {
	if err := s.locker.LockWithContext(ctx, key); err != nil {
		return err
	}
	defer s.locker.Unlock(key)

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	f, err := os.OpenFile(s.logPath(key), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open session log %q: %w", key, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append to session log %q: %w", key, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("fsync session log %q: %w", key, err)
	}

	meta, err := s.readMeta(key)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		meta = &models.SessionMeta{Key: key, CreatedAt: msg.Timestamp}
	}
	meta.UpdatedAt = msg.Timestamp
	return s.writeMeta(meta)
}

// History implements Store. Reading is tolerant of a truncated final line
// (e.g. a crash mid-write): it is skipped rather than failing the whole
// read.
func (s *FileStore) History(ctx context.Context, key string, limit int) ([]models.Message, error) {
	f, err := os.Open(s.logPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var messages []models.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			// Tolerate a malformed trailing line; keep whatever parsed so far.
			continue
		}
		messages = append(messages, msg)
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// Rename implements Store.
func (s *FileStore) Rename(ctx context.Context, key, displayName string) error {
	if err := s.locker.LockWithContext(ctx, key); err != nil {
		return err
	}
	defer s.locker.Unlock(key)

	meta, err := s.readMeta(key)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("session %q: %w", key, errSessionNotFound)
		}
		return err
	}
	meta.DisplayName = displayName
	meta.UpdatedAt = time.Now()
	return s.writeMeta(meta)
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := s.locker.LockWithContext(ctx, key); err != nil {
		return err
	}
	defer s.locker.Unlock(key)

	if err := os.Remove(s.logPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(s.metaPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session %q: %w", key, errSessionNotFound)
	}
	return nil
}

var errSessionNotFound = fmt.Errorf("session not found")

// ListOptions is retained for callers that want to page through List
// results; FileStore.List itself returns everything and leaves paging to
// the caller.
type ListOptions struct {
	Limit  int
	Offset int
}
