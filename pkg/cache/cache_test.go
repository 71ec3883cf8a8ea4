package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}

	if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
		t.Fatalf("Get(missing) = hit %v, err %v; want miss", hit, err)
	}

	want := []byte("\x89PNG\r\n\x1a\nbinary payload")
	if err := c.Set(ctx, "render:1", want, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, hit, err := c.Get(ctx, "render:1")
	if err != nil || !hit {
		t.Fatalf("Get = hit %v, err %v; want hit", hit, err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Get = %q, want %q", got, want)
	}

	if err := c.Delete(ctx, "render:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "render:1"); hit {
		t.Error("entry still present after Delete")
	}
	if err := c.Delete(ctx, "render:1"); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry returned as hit")
	}

	if err := c.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("zero-ttl entry should not expire")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.path("k"), []byte{1, 2}, 0644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("Get(corrupt) = hit %v, err %v; want miss", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 3 {
		t.Errorf("Clear() = %d, want 3", n)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("entry survived Clear")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// SHA-256 produces 64 hex chars
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()
	base := RenderKeyOpts{Placeholder: "front", Fit: "stretch", Mode: "auto", Format: "png"}

	tests := []struct {
		name string
		tpl  string
		repl string
		opts RenderKeyOpts
	}{
		{"template", "t2", "r1", base},
		{"replacement", "t1", "r2", base},
		{"placeholder", "t1", "r1", RenderKeyOpts{Placeholder: "back", Fit: "stretch", Mode: "auto", Format: "png"}},
		{"format", "t1", "r1", RenderKeyOpts{Placeholder: "front", Fit: "stretch", Mode: "auto", Format: "jpeg"}},
		{"fit", "t1", "r1", RenderKeyOpts{Placeholder: "front", Fit: "cover", Mode: "auto", Format: "png"}},
	}
	ref := k.RenderKey("t1", "r1", base)
	if again := k.RenderKey("t1", "r1", base); again != ref {
		t.Errorf("RenderKey not deterministic: %s != %s", again, ref)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := k.RenderKey(tt.tpl, tt.repl, tt.opts); got == ref {
				t.Errorf("changing %s did not change the key", tt.name)
			}
		})
	}

	if k.DocumentKey("t1") == k.DocumentKey("t2") {
		t.Error("DocumentKey should depend on the template hash")
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "staging:")
	key := scoped.RenderKey("t", "r", RenderKeyOpts{})
	want := "staging:" + NewDefaultKeyer().RenderKey("t", "r", RenderKeyOpts{})
	if key != want {
		t.Errorf("RenderKey = %s, want %s", key, want)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "prefix:")
	key := scoped.DocumentKey("abc")
	if key != "prefix:"+NewDefaultKeyer().DocumentKey("abc") {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(ErrUnavailable)
	if err == nil {
		t.Fatal("Retryable should return wrapped error")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Error("wrapped error should unwrap to ErrUnavailable")
	}
	if IsRetryable(ErrUnavailable) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	defer func(d time.Duration) { retryDelay = d }(retryDelay)
	retryDelay = time.Millisecond
	ctx := context.Background()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("success: err %v, calls %d; want nil, 1", err, calls)
	}

	calls = 0
	errPlain := errors.New("plain")
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return errPlain
	})
	if err != errPlain || calls != 1 {
		t.Errorf("non-retryable: err %v, calls %d; want %v, 1", err, calls, errPlain)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(ErrUnavailable)
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("retry: err %v, calls %d; want nil, 2", err, calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(ErrUnavailable)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	defer func(d time.Duration) { retryDelay = d }(retryDelay)
	retryDelay = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := NewRedisCache(ctx, RedisOptions{Addr: "127.0.0.1:1"})
	if err == nil {
		t.Fatal("NewRedisCache to a closed port should fail")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}
