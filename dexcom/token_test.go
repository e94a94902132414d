package dexcom

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestToken_ExpiresWithin(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		expiresAt time.Time
		buffer    time.Duration
		want      bool
	}{
		{"fresh", now.Add(time.Hour), 30 * time.Second, false},
		{"expiring inside buffer", now.Add(5 * time.Second), 30 * time.Second, true},
		{"already expired", now.Add(-time.Minute), 30 * time.Second, true},
		{"zero buffer, fresh", now.Add(time.Minute), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &Token{AccessToken: "a", ExpiresAt: tt.expiresAt}
			if got := tok.ExpiresWithin(tt.buffer); got != tt.want {
				t.Errorf("ExpiresWithin(%v) = %v, want %v", tt.buffer, got, tt.want)
			}
		})
	}
}

func TestMemoryTokenStore_PutGet(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	tok := &Token{AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.Put(ctx, "u1", "dexcom", tok); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "u1", "dexcom")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.AccessToken != "at-1" || got.RefreshToken != "rt-1" {
		t.Errorf("Get() = %+v, want stored token", got)
	}

	// Returned token is a copy; mutating it must not affect the store.
	got.AccessToken = "mutated"
	again, _ := store.Get(ctx, "u1", "dexcom")
	if again.AccessToken != "at-1" {
		t.Error("Stored token mutated through returned pointer")
	}
}

func TestMemoryTokenStore_GetMissing(t *testing.T) {
	store := NewMemoryTokenStore()

	if _, err := store.Get(context.Background(), "nobody", "dexcom"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Get() error = %v, want ErrTokenNotFound", err)
	}
}

func TestMemoryTokenStore_Delete(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	_ = store.Put(ctx, "u1", "dexcom", &Token{AccessToken: "a"})
	if err := store.Delete(ctx, "u1", "dexcom"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "u1", "dexcom"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Get() after delete = %v, want ErrTokenNotFound", err)
	}

	// Deleting again is not an error.
	if err := store.Delete(ctx, "u1", "dexcom"); err != nil {
		t.Errorf("Second Delete() error = %v", err)
	}
}

func TestMemoryTokenStore_KeysAreScoped(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	_ = store.Put(ctx, "u1", "dexcom", &Token{AccessToken: "a"})
	if _, err := store.Get(ctx, "u1", "other"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Get() across providers = %v, want ErrTokenNotFound", err)
	}
}
