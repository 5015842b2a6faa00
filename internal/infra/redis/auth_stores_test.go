package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"skillscape/internal/domain"
)

func TestAnswerStoreUsesClientKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewAnswerStore(newClient(mr), 0)
	answers := domain.Answers{
		"user-type":        domain.TextAnswer("student"),
		"enjoyed-subjects": domain.ChoiceAnswer("math"),
	}
	if err := store.SaveAnswers(ctx, "c1", answers); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("onboardingAnswers:c1") {
		t.Fatalf("expected onboardingAnswers:c1 to be set")
	}

	got, ok, err := store.LoadAnswers(ctx, "c1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got["user-type"].Value != "student" || !got["enjoyed-subjects"].Contains("math") {
		t.Fatalf("unexpected answers %+v", got)
	}

	_ = store.ClearAnswers(ctx, "c1")
	if _, ok, _ := store.LoadAnswers(ctx, "c1"); ok {
		t.Fatalf("expected answers cleared")
	}
}

func TestAttemptLimiterCounterAlwaysExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	limiter := NewAttemptLimiter(newClient(mr), 5, time.Minute)

	if err := limiter.Failure(ctx, "a@example.com"); err != nil {
		t.Fatalf("failure: %v", err)
	}
	if ttl := mr.TTL("auth:attempts:a@example.com"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected counter to expire within the window, ttl %v", ttl)
	}

	// a counter left without expiry picks one up on the next failure
	if err := mr.Set("auth:attempts:b@example.com", "4"); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	if err := limiter.Failure(ctx, "b@example.com"); err != nil {
		t.Fatalf("failure: %v", err)
	}
	if got, _ := mr.Get("auth:attempts:b@example.com"); got != "5" {
		t.Fatalf("expected counter 5, got %q", got)
	}
	if ttl := mr.TTL("auth:attempts:b@example.com"); ttl <= 0 {
		t.Fatalf("expected counter to carry an expiry, ttl %v", ttl)
	}
}

func TestAttemptLimiterThrottlesWithinWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	limiter := NewAttemptLimiter(newClient(mr), 2, time.Minute)

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "a@example.com")
		if err != nil || !ok {
			t.Fatalf("attempt %d: ok=%v err=%v", i, ok, err)
		}
		if err := limiter.Failure(ctx, "a@example.com"); err != nil {
			t.Fatalf("failure: %v", err)
		}
	}
	if ok, _ := limiter.Allow(ctx, "a@example.com"); ok {
		t.Fatalf("expected throttle after two failures")
	}

	mr.FastForward(time.Minute + time.Second)
	if ok, _ := limiter.Allow(ctx, "a@example.com"); !ok {
		t.Fatalf("expected window to expire")
	}

	_ = limiter.Failure(ctx, "a@example.com")
	_ = limiter.Reset(ctx, "a@example.com")
	if mr.Exists("auth:attempts:a@example.com") {
		t.Fatalf("expected reset to clear counter")
	}
}

func TestRevocationStoreExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewRevocationStore(newClient(mr))
	if err := store.Revoke(ctx, "sid-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := store.Revoked(ctx, "sid-1"); !revoked {
		t.Fatalf("expected sid-1 revoked")
	}
	if revoked, _ := store.Revoked(ctx, "sid-2"); revoked {
		t.Fatalf("expected sid-2 not revoked")
	}

	mr.FastForward(2 * time.Minute)
	if revoked, _ := store.Revoked(ctx, "sid-1"); revoked {
		t.Fatalf("expected revocation to lapse with the token")
	}
}
