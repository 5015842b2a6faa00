package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"skillscape/internal/domain"
)

// AnswerStore is the client's durable storage for completed answer sets,
// keyed by client id under domain.OnboardingAnswersKey.
type AnswerStore interface {
	SaveAnswers(ctx context.Context, clientID string, answers domain.Answers) error
	LoadAnswers(ctx context.Context, clientID string) (domain.Answers, bool, error)
	ClearAnswers(ctx context.Context, clientID string) error
}

// QuizFlow walks one quiz session through its steps.
//
// States are the step indices plus two terminal targets. Transitions are
// linear except that a non-student answer on the first step terminates
// immediately. A terminal flow accepts no further mutations.
type QuizFlow struct {
	quiz    domain.Quiz
	session domain.QuizSession
	store   AnswerStore
	now     func() time.Time
}

// NewQuizFlow resumes a flow from a stored session.
func NewQuizFlow(quiz domain.Quiz, session domain.QuizSession, store AnswerStore) *QuizFlow {
	return newQuizFlowWithClock(quiz, session, store, time.Now)
}

func newQuizFlowWithClock(quiz domain.Quiz, session domain.QuizSession, store AnswerStore, now func() time.Time) *QuizFlow {
	if session.Answers == nil {
		session.Answers = domain.Answers{}
	}
	if session.Index < 0 || session.Index >= len(quiz.Steps) {
		session.Index = 0
	}
	return &QuizFlow{quiz: quiz, session: session, store: store, now: now}
}

// Index is the current step index.
func (f *QuizFlow) Index() int {
	return f.session.Index
}

// Target is the terminal target, or "" while the flow is in progress.
func (f *QuizFlow) Target() domain.Target {
	return f.session.Target
}

// Done reports whether the flow reached a terminal state.
func (f *QuizFlow) Done() bool {
	return f.session.Done()
}

// CurrentStep returns the step definition at the current index.
func (f *QuizFlow) CurrentStep() domain.QuizStep {
	return f.quiz.Steps[f.session.Index]
}

// Answers returns a copy of the recorded answers.
func (f *QuizFlow) Answers() domain.Answers {
	return f.session.Answers.Clone()
}

// Session returns the persisted form of the flow.
func (f *QuizFlow) Session() domain.QuizSession {
	s := f.session
	s.Answers = f.session.Answers.Clone()
	return s
}

// Answer records or overwrites the answer for a step. For multi-choice steps
// value toggles membership; adding past the step's max is rejected. It reports
// whether the answer set changed.
func (f *QuizFlow) Answer(stepID, value string) bool {
	if f.Done() {
		return false
	}
	step, _, ok := f.quiz.Step(stepID)
	if !ok {
		return false
	}

	switch step.Kind {
	case domain.KindMultiChoice:
		current := f.session.Answers[stepID]
		if current.Contains(value) {
			kept := make([]string, 0, len(current.Values))
			for _, v := range current.Values {
				if v != value {
					kept = append(kept, v)
				}
			}
			f.session.Answers[stepID] = domain.ChoiceAnswer(kept...)
			return true
		}
		if len(current.Values) >= step.Max() || !hasOption(step, value) {
			return false
		}
		f.session.Answers[stepID] = domain.ChoiceAnswer(append(current.Values, value)...)
		return true
	case domain.KindSingleChoice:
		if !hasOption(step, value) {
			return false
		}
		f.session.Answers[stepID] = domain.TextAnswer(value)
		return true
	default:
		f.session.Answers[stepID] = domain.TextAnswer(value)
		return true
	}
}

func hasOption(step domain.QuizStep, value string) bool {
	if len(step.Options) == 0 {
		return value != ""
	}
	for _, opt := range step.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// CanAdvance reports whether the current step's answer is complete.
func (f *QuizFlow) CanAdvance() bool {
	if f.Done() {
		return false
	}
	step := f.CurrentStep()
	answer, ok := f.session.Answers[step.ID]
	if !ok {
		return false
	}
	switch step.Kind {
	case domain.KindMultiChoice:
		return len(answer.Values) > 0
	case domain.KindFreeText:
		return strings.TrimSpace(answer.Value) != ""
	default:
		return answer.Value != ""
	}
}

// Advance moves past the current step. It is a no-op when the step is
// incomplete. A non-student role on the first step terminates with the
// counselor sign-up target; completing the last step persists the answer set
// and terminates with the student sign-up target. State is unchanged when
// persisting fails.
func (f *QuizFlow) Advance(ctx context.Context) (bool, error) {
	if !f.CanAdvance() {
		return false, nil
	}

	if f.session.Index == 0 {
		first := f.quiz.Steps[0]
		if f.session.Answers[first.ID].Value != string(domain.RoleStudent) {
			f.terminate(domain.TargetCounselorSignup)
			return true, nil
		}
	}

	if f.session.Index == len(f.quiz.Steps)-1 {
		if err := f.store.SaveAnswers(ctx, f.session.ClientID, f.session.Answers.Clone()); err != nil {
			return false, fmt.Errorf("persist %s: %w", domain.OnboardingAnswersKey, err)
		}
		f.terminate(domain.TargetStudentSignup)
		return true, nil
	}

	f.session.Index++
	f.touch()
	return true, nil
}

// Retreat moves back one step without clearing any answers. It is a no-op on
// the first step and in terminal states.
func (f *QuizFlow) Retreat() bool {
	if f.Done() || f.session.Index == 0 {
		return false
	}
	f.session.Index--
	f.touch()
	return true
}

// CurrentPrompt is the current step's prompt with placeholders resolved.
func (f *QuizFlow) CurrentPrompt() string {
	return ResolvePrompt(f.CurrentStep().Prompt, f.quiz, f.session.Answers)
}

// View renders the flow for clients. Once a multi-choice step reaches its max,
// the unselected options stay listed but disabled.
func (f *QuizFlow) View() domain.QuizView {
	step := f.CurrentStep()
	count := len(f.quiz.Steps)

	sv := domain.StepView{
		ID:          step.ID,
		Title:       step.Title,
		Prompt:      f.CurrentPrompt(),
		Kind:        step.Kind,
		Placeholder: step.Placeholder,
	}
	answer, answered := f.session.Answers[step.ID]
	if answered {
		a := answer
		sv.Answer = &a
	}
	if step.Kind == domain.KindMultiChoice {
		sv.MaxSelections = step.Max()
	}
	maxReached := step.Kind == domain.KindMultiChoice && len(answer.Values) >= step.Max()
	for _, opt := range step.Options {
		selected := false
		if step.Kind == domain.KindMultiChoice {
			selected = answer.Contains(opt.Value)
		} else {
			selected = answered && answer.Value == opt.Value
		}
		sv.Options = append(sv.Options, domain.OptionView{
			Value:    opt.Value,
			Label:    opt.Label,
			Selected: selected,
			Disabled: !selected && maxReached,
		})
	}

	return domain.QuizView{
		SessionID:  f.session.ID,
		QuizID:     f.session.QuizID,
		ClientID:   f.session.ClientID,
		StepIndex:  f.session.Index,
		StepCount:  count,
		Progress:   float64(f.session.Index+1) / float64(count),
		Step:       sv,
		CanAdvance: f.CanAdvance(),
		CanRetreat: !f.Done() && f.session.Index > 0,
		IsLastStep: f.session.Index == count-1,
		Done:       f.Done(),
		Target:     f.session.Target,
		Route:      f.session.Target.Route(),
	}
}

func (f *QuizFlow) terminate(target domain.Target) {
	f.session.Target = target
	f.touch()
}

func (f *QuizFlow) touch() {
	f.session.UpdatedAt = f.now()
}
