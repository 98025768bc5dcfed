package cache

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

type countingObserver struct{ hits, misses int }

func (o *countingObserver) CacheHit()  { o.hits++ }
func (o *countingObserver) CacheMiss() { o.misses++ }

func newTestCache(t *testing.T, opts ...Option) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.json")
	return Open(path, opts...), path
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := Fingerprint(Params{"a": 1, "b": 2})
	b := Fingerprint(Params{"b": 2, "a": 1})
	if a != b {
		t.Fatalf("fingerprints differ: %s vs %s", a, b)
	}
	if a == Fingerprint(Params{"a": 1, "b": 3}) {
		t.Fatalf("different values must not collide")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}

	// property: shuffled insertion order never changes the key
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		keys := []string{"type", "destination", "day", "variant", "model"}
		p1 := Params{}
		for _, k := range keys {
			p1[k] = r.Intn(100)
		}
		r.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
		p2 := Params{}
		for _, k := range keys {
			p2[k] = p1[k]
		}
		if Fingerprint(p1) != Fingerprint(p2) {
			t.Fatalf("order dependence for %v", p1)
		}
	}
}

func TestSetGet_RoundTripAndTTL(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c, _ := newTestCache(t, WithClock(clk.Now))

	for i := 0; i < 20; i++ {
		p := Params{"type": "day", "destination": fmt.Sprintf("d%d", i), "day": i}
		want := fmt.Sprintf("content %d", i)
		if err := c.Set(p, want, time.Hour); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, ok := c.Get(p)
		if !ok || got != want {
			t.Fatalf("round trip: got %q ok=%v", got, ok)
		}
	}

	p := Params{"type": "day", "destination": "d0", "day": 0}
	clk.Advance(59 * time.Minute)
	if _, ok := c.Get(p); !ok {
		t.Fatalf("entry should still be live before expiry")
	}
	clk.Advance(time.Minute)
	if _, ok := c.Get(p); ok {
		t.Fatalf("entry must not be returned at/after expiry")
	}
	if c.Len() != 19 {
		t.Fatalf("expired entry should be evicted on read, len=%d", c.Len())
	}
}

func TestSet_ZeroTTLNeverExpires(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c, _ := newTestCache(t, WithClock(clk.Now))
	p := Params{"k": "v"}
	if err := c.Set(p, "forever", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clk.Advance(10 * 365 * 24 * time.Hour)
	if got, ok := c.Get(p); !ok || got != "forever" {
		t.Fatalf("zero ttl entry expired: %q %v", got, ok)
	}
}

func TestSet_OverwritesAndRejectsEmpty(t *testing.T) {
	c, _ := newTestCache(t)
	p := Params{"k": "v"}
	_ = c.Set(p, "one", 0)
	_ = c.Set(p, "two", 0)
	if got, _ := c.Get(p); got != "two" {
		t.Fatalf("expected overwrite, got %q", got)
	}
	if err := c.Set(Params{}, "x", 0); err != ErrEmptyParams {
		t.Fatalf("want ErrEmptyParams, got %v", err)
	}
}

func TestPersistence_ReloadAndCorruptFile(t *testing.T) {
	c, path := newTestCache(t)
	p := Params{"destination": "lisbon", "day": 2}
	if err := c.Set(p, "persisted", time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened := Open(path)
	if got, ok := reopened.Get(p); !ok || got != "persisted" {
		t.Fatalf("reload lost entry: %q %v", got, ok)
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	empty := Open(path)
	if empty.Len() != 0 {
		t.Fatalf("corrupt file should start empty, len=%d", empty.Len())
	}
	if err := empty.Set(p, "fresh", 0); err != nil {
		t.Fatalf("Set after corrupt load: %v", err)
	}
}

func TestSet_WriteFailureIsAMiss(t *testing.T) {
	dir := t.TempDir()
	// a regular file where the cache expects a directory
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := Open(filepath.Join(blocker, "cache.json"))

	p := Params{"k": "v"}
	if err := c.Set(p, "lost", 0); err == nil {
		t.Fatalf("expected persist error")
	}
	if _, ok := c.Get(p); ok {
		t.Fatalf("failed write must read back as a miss")
	}
}

func TestInvalidateClearAndClearWhere(t *testing.T) {
	obs := &countingObserver{}
	c, _ := newTestCache(t, WithObserver(obs))

	_ = c.Set(Params{"destination": "a", "day": 1}, "a1", 0)
	_ = c.Set(Params{"destination": "a", "day": 2}, "a2", 0)
	_ = c.Set(Params{"destination": "b", "day": 1}, "b1", 0)

	if err := c.Invalidate(Params{"destination": "a", "day": 1}); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok := c.Get(Params{"destination": "a", "day": 1}); ok {
		t.Fatalf("invalidated entry still present")
	}
	if err := c.Invalidate(Params{"destination": "zzz"}); err != nil {
		t.Fatalf("Invalidate missing: %v", err)
	}

	n, err := c.ClearWhere("destination", "a")
	if err != nil || n != 1 {
		t.Fatalf("ClearWhere: %d %v", n, err)
	}
	if _, ok := c.Get(Params{"destination": "b", "day": 1}); !ok {
		t.Fatalf("other destination should survive scoped clear")
	}

	if err := c.Clear(); err != nil || c.Len() != 0 {
		t.Fatalf("Clear: len=%d err=%v", c.Len(), err)
	}
	if obs.hits != 1 || obs.misses != 1 {
		t.Fatalf("observer counts hits=%d misses=%d", obs.hits, obs.misses)
	}
}
