package sequence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps counts in a map. Counts do not survive restarts.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int)}
}

func (s *MemoryStore) Increment(_ context.Context, day string, atLeast int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[day] = max(s.counts[day]+1, atLeast)
	return s.counts[day], nil
}

// FileStore persists counts as a JSON object {"YYYYMMDD": count}. It is
// only safe when a single process owns the file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Increment(_ context.Context, day string, atLeast int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, err := s.read()
	if err != nil {
		return 0, err
	}
	counts[day] = max(counts[day]+1, atLeast)
	if err := s.write(counts); err != nil {
		return 0, err
	}
	return counts[day], nil
}

// Counts returns the persisted mapping.
func (s *FileStore) Counts() (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) read() (map[string]int, error) {
	counts := make(map[string]int)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return counts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return counts, nil
	}
	if err := json.Unmarshal(data, &counts); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return counts, nil
}

// write replaces the file atomically through a temp file in the same dir.
func (s *FileStore) write(counts map[string]int) error {
	data, err := json.MarshalIndent(counts, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".ticket-seq-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// RedisStore keeps one INCR counter per day.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store whose keys expire ttl after the latest
// increment of the day. A zero ttl keeps keys forever.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "ticket_seq:", ttl: ttl}
}

// incrementAtLeast raises KEYS[1] to max(value+1, ARGV[1]) and refreshes
// its expiry when ARGV[2] is positive.
var incrementAtLeast = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
local floor = tonumber(ARGV[1])
if n < floor then
  redis.call("SET", KEYS[1], floor)
  n = floor
end
local ttl = tonumber(ARGV[2])
if ttl > 0 then
  redis.call("EXPIRE", KEYS[1], ttl)
end
return n
`)

func (s *RedisStore) Increment(ctx context.Context, day string, atLeast int) (int, error) {
	key := s.prefix + day
	n, err := incrementAtLeast.Run(ctx, s.client, []string{key}, atLeast, int64(s.ttl/time.Second)).Int()
	if err != nil {
		return 0, fmt.Errorf("incrementing %s: %w", key, err)
	}
	return n, nil
}
