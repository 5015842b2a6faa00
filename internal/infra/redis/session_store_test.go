package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"skillscape/internal/domain"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute)

	session := domain.QuizSession{
		ID:       "s1",
		QuizID:   "quiz-1",
		ClientID: "c1",
		Index:    1,
		Answers: domain.Answers{
			"picks": domain.ChoiceAnswer("a", "b"),
			"story": domain.TextAnswer("because"),
		},
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("quiz:session:s1") {
		t.Fatalf("expected redis key to be set")
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Index != 1 || !got.Answers["picks"].Multi || len(got.Answers["picks"].Values) != 2 || got.Answers["story"].Value != "because" {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("quiz:session:s1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, domain.ErrQuizSessionNotFound) {
		t.Fatalf("expected ErrQuizSessionNotFound, got %v", err)
	}
}

func TestSessionStoreExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	_ = store.Save(context.Background(), domain.QuizSession{ID: "s1"})
	mr.FastForward(time.Minute + time.Second)
	if _, err := store.Get(context.Background(), "s1"); !errors.Is(err, domain.ErrQuizSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}
