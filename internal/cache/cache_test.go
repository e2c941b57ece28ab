package cache

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/johnrirwin/feedformatter/internal/logging"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func TestAlignedExpiry(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		now    time.Time
		maxAge time.Duration
		want   time.Time
	}{
		{
			name:   "mid window rounds to next boundary",
			now:    base.Add(7 * time.Minute),
			maxAge: 30 * time.Minute,
			want:   base.Add(30 * time.Minute),
		},
		{
			name:   "just before boundary",
			now:    base.Add(29*time.Minute + 59*time.Second),
			maxAge: 30 * time.Minute,
			want:   base.Add(30 * time.Minute),
		},
		{
			name:   "exactly on boundary gets a full window",
			now:    base,
			maxAge: 30 * time.Minute,
			want:   base.Add(30 * time.Minute),
		},
		{
			name:   "odd max-age aligned to unix epoch",
			now:    time.Unix(1000, 0),
			maxAge: 7 * time.Minute,
			want:   time.Unix(1260, 0),
		},
		{
			name:   "zero max-age",
			now:    base,
			maxAge: 0,
			want:   base,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AlignedExpiry(tt.now, tt.maxAge)
			if !got.Equal(tt.want) {
				t.Errorf("AlignedExpiry(%v, %v) = %v, want %v", tt.now, tt.maxAge, got, tt.want)
			}
		})
	}
}

func TestAlignedExpiry_AlwaysAfterNow(t *testing.T) {
	maxAge := 5 * time.Minute
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 600; i++ {
		now := start.Add(time.Duration(i) * time.Second)
		got := AlignedExpiry(now, maxAge)
		if !got.After(now) {
			t.Fatalf("AlignedExpiry(%v) = %v, should be after now", now, got)
		}
		if got.Sub(now) > maxAge {
			t.Fatalf("AlignedExpiry(%v) = %v, more than one max-age away", now, got)
		}
		if got.UnixNano()%int64(maxAge) != 0 {
			t.Fatalf("AlignedExpiry(%v) = %v, not on a boundary", now, got)
		}
	}
}

func TestNewMemory(t *testing.T) {
	c := NewMemory[string](time.Minute)

	if c == nil {
		t.Fatal("NewMemory() returned nil")
	}
	if c.items == nil {
		t.Fatal("NewMemory() returned cache with nil items map")
	}
	if c.maxAge != time.Minute {
		t.Errorf("NewMemory() maxAge = %v, want %v", c.maxAge, time.Minute)
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := NewMemory[string](time.Minute)

	c.Set("key1", "value1")

	got, ok := c.Get("key1")
	if !ok {
		t.Error("Get() returned false for existing key")
	}
	if got != "value1" {
		t.Errorf("Get() = %v, want %v", got, "value1")
	}
}

func TestMemoryCache_Get_NotFound(t *testing.T) {
	c := NewMemory[[]byte](time.Minute)

	got, ok := c.Get("nonexistent")
	if ok {
		t.Error("Get() should return false for non-existent key")
	}
	if got != nil {
		t.Errorf("Get() should return nil for non-existent key, got %v", got)
	}
}

func TestMemoryCache_BoundaryExpiry(t *testing.T) {
	maxAge := 30 * time.Minute
	boundary := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	clock := &fakeClock{t: boundary.Add(-20 * time.Minute)}
	c := NewMemory[string](maxAge).WithClock(clock.Now)

	c.Set("feed", "payload")

	for _, at := range []time.Time{
		boundary.Add(-20 * time.Minute),
		boundary.Add(-time.Minute),
		boundary.Add(-time.Nanosecond),
	} {
		clock.Set(at)
		if _, ok := c.Get("feed"); !ok {
			t.Errorf("Get() at %v should hit before boundary %v", at, boundary)
		}
	}

	for _, at := range []time.Time{boundary, boundary.Add(time.Second)} {
		clock.Set(at)
		if _, ok := c.Get("feed"); ok {
			t.Errorf("Get() at %v should miss at or after boundary %v", at, boundary)
		}
	}

	if exp, ok := c.ExpiresAt("feed"); !ok || !exp.Equal(boundary) {
		t.Errorf("ExpiresAt() = %v, %v, want %v", exp, ok, boundary)
	}
}

func TestMemoryCache_SameWindowExpiresTogether(t *testing.T) {
	maxAge := 10 * time.Minute
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 1, 0, 0, time.UTC)}
	c := NewMemory[int](maxAge).WithClock(clock.Now)

	c.Set("a", 1)
	clock.Set(clock.Now().Add(8 * time.Minute))
	c.Set("b", 2)

	expA, _ := c.ExpiresAt("a")
	expB, _ := c.ExpiresAt("b")
	if !expA.Equal(expB) {
		t.Errorf("entries written in one window expire at %v and %v, want equal", expA, expB)
	}
}

func TestMemoryCache_ExpiredEntryIsRefreshedBySet(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	c := NewMemory[string](time.Minute).WithClock(clock.Now)

	c.Set("key", "old")
	clock.Set(clock.Now().Add(2 * time.Minute))
	if _, ok := c.Get("key"); ok {
		t.Fatal("Get() should miss expired entry")
	}

	c.Set("key", "new")
	got, ok := c.Get("key")
	if !ok || got != "new" {
		t.Errorf("Get() = %q, %v, want %q, true", got, ok, "new")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemory[int](time.Minute)

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("shared-key", idx*100+j)
			}
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Get("shared-key")
			}
		}()
	}

	wg.Wait()

	if _, ok := c.Get("shared-key"); !ok {
		t.Error("Get() should find shared-key after concurrent writes")
	}
}

func TestMemoryCache_OverwriteValue(t *testing.T) {
	c := NewMemory[string](time.Minute)

	c.Set("key", "value1")
	c.Set("key", "value2")

	got, ok := c.Get("key")
	if !ok {
		t.Error("Get() returned false")
	}
	if got != "value2" {
		t.Errorf("Get() = %v, want %v", got, "value2")
	}
}

func TestRedisCache_SetAndGet(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	type payload struct {
		Body []byte
	}

	c, err := NewRedis[payload](RedisConfig{Addr: addr, Prefix: "feedformatter-test:"}, time.Minute)
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	defer c.Close()

	c.Set("feed", payload{Body: []byte("<rss/>")})

	got, ok := c.Get("feed")
	if !ok {
		t.Fatal("Get() returned false for stored key")
	}
	if string(got.Body) != "<rss/>" {
		t.Errorf("Get() = %q, want %q", got.Body, "<rss/>")
	}

	ttl := c.client.PTTL(t.Context(), c.key("feed")).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("PTTL = %v, want within (0, 1m]", ttl)
	}
}

func TestRedisCache_KeyPrefix(t *testing.T) {
	c := newRedisWithClient[string](nil, "", time.Minute)
	if got := c.key("GET /feeds/news"); got != "feedformatter:GET /feeds/news" {
		t.Errorf("key() = %q", got)
	}
}

func TestRedisCache_FailuresAreLogged(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	var buf bytes.Buffer
	c := newRedisWithClient[string](client, "", time.Minute).WithLogger(logging.NewWithWriter(logging.LevelDebug, &buf))
	c.timeout = 500 * time.Millisecond

	c.Set("GET /feeds/news", "<rss/>")
	if !strings.Contains(buf.String(), "Redis cache write failed") {
		t.Errorf("log = %q, want the failed write reported", buf.String())
	}

	buf.Reset()
	if _, ok := c.Get("GET /feeds/news"); ok {
		t.Fatal("Get() = true, want a miss when Redis is unreachable")
	}
	if !strings.Contains(buf.String(), "Redis cache read failed") {
		t.Errorf("log = %q, want the failed read reported", buf.String())
	}
	if !strings.Contains(buf.String(), "feedformatter:GET /feeds/news") {
		t.Errorf("log = %q, want the key included", buf.String())
	}
}
