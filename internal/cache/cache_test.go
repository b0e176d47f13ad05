package cache

import (
	"testing"
	"time"
)

func TestKey_DeterministicAndDistinct(t *testing.T) {
	a := Key("average auto repair cost bumper")
	b := Key("average auto repair cost bumper")
	c := Key("average auto repair cost hood")

	if a != b {
		t.Error("same input must produce the same key")
	}
	if a == c {
		t.Error("different inputs must produce different keys")
	}
	if len(a) == 0 {
		t.Error("empty key")
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	if err := c.Set("k", []byte("2750.00"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := c.Get("k")
	if !ok || string(got) != "2750.00" {
		t.Errorf("expected hit with 2750.00, got %q (ok=%v)", got, ok)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	if err := c.Set("k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to expire")
	}
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("a", []byte("1"), time.Minute)
	_ = c.Set("b", []byte("2"), time.Minute)

	if err := c.Delete("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key still present")
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("cleared key still present")
	}
}
