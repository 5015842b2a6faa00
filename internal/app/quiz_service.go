package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"skillscape/internal/domain"
)

// QuizSessionRepository abstracts how quiz sessions are stored (in-memory, Redis, etc).
type QuizSessionRepository interface {
	Get(ctx context.Context, id string) (domain.QuizSession, error)
	Save(ctx context.Context, session domain.QuizSession) error
	Delete(ctx context.Context, id string) error
}

// QuizRepository loads quiz definitions (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizService hosts quiz flows as server-side sessions.
type QuizService struct {
	sessions      QuizSessionRepository
	quizzes       QuizRepository
	answers       AnswerStore
	defaultQuizID string
	now           func() time.Time
	newID         func() string

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewQuizService(sessions QuizSessionRepository, quizzes QuizRepository, answers AnswerStore, defaultQuizID string) *QuizService {
	if defaultQuizID == "" {
		defaultQuizID = domain.OnboardingQuizID
	}
	return &QuizService{
		sessions:      sessions,
		quizzes:       quizzes,
		answers:       answers,
		defaultQuizID: defaultQuizID,
		now:           time.Now,
		newID:         uuid.NewString,
		locks:         make(map[string]*sessionLock),
	}
}

// Start opens a new quiz session. Any answer set previously stored for the
// client is cleared. An empty clientID gets a generated one.
func (s *QuizService) Start(ctx context.Context, clientID, quizID string) (domain.QuizView, error) {
	if quizID == "" {
		quizID = s.defaultQuizID
	}
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizView{}, err
	}
	if clientID == "" {
		clientID = s.newID()
	}
	if err := s.answers.ClearAnswers(ctx, clientID); err != nil {
		return domain.QuizView{}, fmt.Errorf("clear %s: %w", domain.OnboardingAnswersKey, err)
	}

	now := s.now()
	session := domain.QuizSession{
		ID:        s.newID(),
		QuizID:    quiz.ID,
		ClientID:  clientID,
		Answers:   domain.Answers{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return domain.QuizView{}, fmt.Errorf("save quiz session: %w", err)
	}
	return newQuizFlowWithClock(quiz, session, s.answers, s.now).View(), nil
}

// View returns the current state of a session.
func (s *QuizService) View(ctx context.Context, sessionID string) (domain.QuizView, error) {
	view, _, err := s.withFlow(ctx, sessionID, func(*QuizFlow) (bool, error) {
		return false, nil
	})
	return view, err
}

// Answer records an answer and reports whether it was accepted.
func (s *QuizService) Answer(ctx context.Context, sessionID, stepID, value string) (domain.QuizView, bool, error) {
	return s.withFlow(ctx, sessionID, func(flow *QuizFlow) (bool, error) {
		if _, _, ok := flow.quiz.Step(stepID); !ok {
			return false, domain.ErrStepNotFound
		}
		return flow.Answer(stepID, value), nil
	})
}

// Advance moves the session forward; the view carries the target once terminal.
func (s *QuizService) Advance(ctx context.Context, sessionID string) (domain.QuizView, bool, error) {
	return s.withFlow(ctx, sessionID, func(flow *QuizFlow) (bool, error) {
		return flow.Advance(ctx)
	})
}

// Retreat moves the session back one step.
func (s *QuizService) Retreat(ctx context.Context, sessionID string) (domain.QuizView, bool, error) {
	return s.withFlow(ctx, sessionID, func(flow *QuizFlow) (bool, error) {
		return flow.Retreat(), nil
	})
}

// StoredAnswers returns the completed answer set persisted for a client.
func (s *QuizService) StoredAnswers(ctx context.Context, clientID string) (domain.Answers, bool, error) {
	if clientID == "" {
		return nil, false, nil
	}
	return s.answers.LoadAnswers(ctx, clientID)
}

// withFlow serializes operations on one session and saves it when fn reports a
// change. A session that reached its target is deleted instead.
func (s *QuizService) withFlow(ctx context.Context, sessionID string, fn func(*QuizFlow) (bool, error)) (domain.QuizView, bool, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.QuizView{}, false, err
	}
	quiz, err := s.loadQuiz(ctx, session.QuizID)
	if err != nil {
		return domain.QuizView{}, false, err
	}

	flow := newQuizFlowWithClock(quiz, session, s.answers, s.now)
	changed, err := fn(flow)
	if err != nil {
		return flow.View(), false, err
	}
	switch {
	case changed && flow.Done():
		// the answers live in the answer store from here on
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			return domain.QuizView{}, false, fmt.Errorf("delete quiz session: %w", err)
		}
	case changed:
		if err := s.sessions.Save(ctx, flow.Session()); err != nil {
			return domain.QuizView{}, false, fmt.Errorf("save quiz session: %w", err)
		}
	}
	return flow.View(), changed, nil
}

func (s *QuizService) loadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if len(quiz.Steps) == 0 {
		return domain.Quiz{}, fmt.Errorf("quiz %q has no steps: %w", quizID, domain.ErrQuizNotFound)
	}
	return quiz, nil
}

func (s *QuizService) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}
