package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/taleem/internal/platform/cache/cachetest"
	"github.com/p-n-ai/taleem/internal/session"
)

// mapCache is an in-process JSONCache.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *mapCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *mapCache) SetJSON(_ context.Context, key string, v any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = b
	c.ttls[key] = ttl
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func exerciseStore(t *testing.T, store session.Store) {
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	s := wizardToLearning(t)
	if err := s.StartQuiz(questions); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Step != session.StepQuiz || got.Lesson.Topic != "Motion" || len(got.Quiz.Questions) != 2 {
		t.Errorf("Get() = %+v", got)
	}
	if got.Quiz.Questions[1].CorrectAnswer != "Joule" {
		t.Errorf("question lost in round trip: %+v", got.Quiz.Questions[1])
	}

	// Mutating the loaded copy must not leak into the store.
	got.Finish()
	again, _ := store.Get(ctx, s.ID)
	if again.Step != session.StepQuiz {
		t.Errorf("stored step changed to %s without Save", again.Step)
	}

	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Get() after Delete error = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, session.NewMemoryStore())
}

func TestCacheStore(t *testing.T) {
	exerciseStore(t, session.NewCacheStore(newMapCache(), time.Hour))
}

func TestCacheStore_SaveSetsTTL(t *testing.T) {
	c := newMapCache()
	store := session.NewCacheStore(c, 90*time.Minute)
	s := session.New("ayesha", "Ayesha")
	if err := store.Save(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if got := c.ttls["session:"+s.ID]; got != 90*time.Minute {
		t.Errorf("ttl = %v, want 90m", got)
	}
}

func TestCacheStore_Unavailable(t *testing.T) {
	c := newMapCache()
	c.err = errors.New("connection refused")
	store := session.NewCacheStore(c, time.Hour)

	_, err := store.Get(context.Background(), "abc")
	if err == nil || errors.Is(err, session.ErrNotFound) {
		t.Errorf("Get() error = %v, want a cache error", err)
	}
	if err := store.Save(context.Background(), session.New("a", "A")); err == nil {
		t.Error("Save() should fail when the cache is down")
	}
}

func TestCacheStore_Redis(t *testing.T) {
	exerciseStore(t, session.NewCacheStore(cachetest.Redis(t), time.Hour))
}
