package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestTokenCache_SetGet(t *testing.T) {
	c := NewTokenCache(TokenCacheConfig{})

	c.Set("fp", "4-123")
	got, ok := c.Get("fp")
	if !ok || got != "4-123" {
		t.Errorf("Get() = (%v, %v), want (4-123, true)", got, ok)
	}

	if _, ok := c.Get("other"); ok {
		t.Error("Get() hit for unknown fingerprint")
	}
}

func TestTokenCache_IgnoresEmptyToken(t *testing.T) {
	c := NewTokenCache(TokenCacheConfig{})
	c.Set("fp", "")

	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestTokenCache_DefaultSize(t *testing.T) {
	c := NewTokenCache(TokenCacheConfig{})
	for i := 0; i < DefaultTokenCacheSize+10; i++ {
		c.Set(fmt.Sprintf("fp-%d", i), "tok")
	}

	if got := c.Size(); got != DefaultTokenCacheSize {
		t.Errorf("Size() = %d, want %d", got, DefaultTokenCacheSize)
	}
}

func TestTokenCache_EvictsOldestInserted(t *testing.T) {
	c := NewTokenCache(TokenCacheConfig{MaxEntries: 3})

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")

	// Reads do not refresh position.
	c.Get("a")

	c.Set("d", "4")

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry a still present after eviction")
	}
	for _, fp := range []string{"b", "c", "d"} {
		if _, ok := c.Get(fp); !ok {
			t.Errorf("entry %s missing", fp)
		}
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestTokenCache_OverwriteKeepsPosition(t *testing.T) {
	c := NewTokenCache(TokenCacheConfig{MaxEntries: 2})

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("a", "1b")

	if got, _ := c.Get("a"); got != "1b" {
		t.Errorf("Get(a) = %v, want 1b", got)
	}

	c.Set("c", "3")

	if _, ok := c.Get("a"); ok {
		t.Error("overwritten entry a should still be evicted first")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("entry b evicted, want kept")
	}
}

func TestTokenCache_MaxAge(t *testing.T) {
	clock := newFakeClock()
	c := NewTokenCache(TokenCacheConfig{MaxEntries: 10, MaxAge: 10 * time.Minute})
	c.SetClock(clock.Now)

	c.Set("fp", "tok")

	clock.Advance(9 * time.Minute)
	if _, ok := c.Get("fp"); !ok {
		t.Error("Get() miss before MaxAge")
	}

	clock.Advance(time.Minute)
	if _, ok := c.Get("fp"); ok {
		t.Error("Get() hit at MaxAge")
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0 after age expiry", c.Size())
	}
}

func TestTokenCache_DeleteClear(t *testing.T) {
	c := NewTokenCache(TokenCacheConfig{MaxEntries: 5})
	c.Set("a", "1")
	c.Set("b", "2")

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Get() hit after Delete")
	}

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", c.Size())
	}

	// Usable after Clear
	c.Set("c", "3")
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestTokenCache_Entries(t *testing.T) {
	clock := newFakeClock()
	c := NewTokenCache(TokenCacheConfig{MaxEntries: 5})
	c.SetClock(clock.Now)

	c.Set("a", "1")
	clock.Advance(time.Second)
	c.Set("b", "2")

	entries := c.Entries()
	if len(entries) != 2 {
		t.Fatalf("len(Entries()) = %d, want 2", len(entries))
	}
	if entries[0].Fingerprint != "a" || entries[1].Fingerprint != "b" {
		t.Errorf("Entries() order = [%s %s], want [a b]", entries[0].Fingerprint, entries[1].Fingerprint)
	}
	if !entries[1].CreatedAt.After(entries[0].CreatedAt) {
		t.Errorf("CreatedAt not increasing: %v, %v", entries[0].CreatedAt, entries[1].CreatedAt)
	}
}
