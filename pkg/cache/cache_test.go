package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// TestGetFresh tests basic set/get within the TTL window.
func TestGetFresh(t *testing.T) {
	c := New[string](time.Second)
	c.Set("abc123", "value")

	got, ok := c.Get("abc123")
	if !ok {
		t.Fatal("Expected fresh entry to be present")
	}
	if got != "value" {
		t.Errorf("Expected value, got %q", got)
	}
}

// TestGetMissing tests lookup of an absent key.
func TestGetMissing(t *testing.T) {
	c := New[string](time.Second)
	if _, ok := c.Get("nope"); ok {
		t.Error("Expected absent key to report ok=false")
	}
}

// TestExpiredEvictedWithoutStale verifies an expired entry is evicted and
// reported absent when stale reads are not allowed.
func TestExpiredEvictedWithoutStale(t *testing.T) {
	c := New[string](10 * time.Millisecond)
	c.Set("abc123", "value")
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("abc123"); ok {
		t.Fatal("Expected expired entry to be absent")
	}

	// Entry was evicted, so even a stale read now misses.
	if _, _, ok := c.Lookup("abc123", true); ok {
		t.Error("Expected entry to be evicted after non-stale read")
	}
}

// TestExpiredStaleRead verifies an expired entry is returned with
// stale=true when allowed, and retained.
func TestExpiredStaleRead(t *testing.T) {
	c := New[string](10 * time.Millisecond)
	c.Set("abc123", "value")
	time.Sleep(20 * time.Millisecond)

	got, stale, ok := c.Lookup("abc123", true)
	if !ok {
		t.Fatal("Expected stale entry to be readable")
	}
	if !stale {
		t.Error("Expected entry to be reported stale")
	}
	if got != "value" {
		t.Errorf("Expected value, got %q", got)
	}

	// Stale reads keep the entry alive.
	if _, _, ok := c.Lookup("abc123", true); !ok {
		t.Error("Expected stale entry to be retained after stale read")
	}
}

// TestSetResetsExpiry verifies overwriting a key resets its TTL.
func TestSetResetsExpiry(t *testing.T) {
	c := New[string](20 * time.Millisecond)
	c.Set("abc123", "old")
	time.Sleep(15 * time.Millisecond)
	c.Set("abc123", "new")
	time.Sleep(10 * time.Millisecond)

	got, ok := c.Get("abc123")
	if !ok {
		t.Fatal("Expected entry to be fresh after overwrite")
	}
	if got != "new" {
		t.Errorf("Expected new value, got %q", got)
	}
}

// TestPurgeExpired tests bulk eviction.
func TestPurgeExpired(t *testing.T) {
	c := New[int](time.Second)
	c.SetTTL("old1", 1, 5*time.Millisecond)
	c.SetTTL("old2", 2, 5*time.Millisecond)
	c.Set("live", 3)
	time.Sleep(10 * time.Millisecond)

	c.PurgeExpired()

	if _, _, ok := c.Lookup("old1", true); ok {
		t.Error("Expected old1 to be purged")
	}
	if _, _, ok := c.Lookup("old2", true); ok {
		t.Error("Expected old2 to be purged")
	}
	if _, ok := c.Get("live"); !ok {
		t.Error("Expected live entry to survive purge")
	}
}

// TestSize verifies Size counts only live entries.
func TestSize(t *testing.T) {
	c := New[int](time.Second)
	c.SetTTL("short", 1, 5*time.Millisecond)
	c.Set("long", 2)

	if got := c.Size(); got != 2 {
		t.Errorf("Expected size 2, got %d", got)
	}

	time.Sleep(10 * time.Millisecond)
	if got := c.Size(); got != 1 {
		t.Errorf("Expected size 1 after expiry, got %d", got)
	}
}

// TestConcurrentAccess exercises concurrent readers and writers.
func TestConcurrentAccess(t *testing.T) {
	c := New[int](time.Second)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d", j%10)
				c.Set(key, n)
				c.Get(key)
				c.Lookup(key, true)
			}
		}(i)
	}
	wg.Wait()

	if got := c.Size(); got != 10 {
		t.Errorf("Expected 10 live entries, got %d", got)
	}
}
