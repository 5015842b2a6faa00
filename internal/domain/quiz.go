package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// StepKind is the input kind of a quiz step.
type StepKind string

const (
	KindSingleChoice StepKind = "single"
	KindMultiChoice  StepKind = "multi"
	KindFreeText     StepKind = "text"
)

// DefaultMaxSelections applies to multi-choice steps that do not set a max.
const DefaultMaxSelections = 3

// Option is a selectable value/label pair.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// QuizStep is an immutable question definition. Prompt may reference earlier
// answers with {{step-id}} or {{step-id.N}} placeholders.
type QuizStep struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Prompt        string   `json:"prompt"`
	Kind          StepKind `json:"kind"`
	Options       []Option `json:"options,omitempty"`
	MaxSelections int      `json:"maxSelections,omitempty"`
	Placeholder   string   `json:"placeholder,omitempty"`
}

// Max returns the effective max-selection count for multi-choice steps.
func (s QuizStep) Max() int {
	if s.MaxSelections > 0 {
		return s.MaxSelections
	}
	return DefaultMaxSelections
}

// Label returns the option label for value, or value itself when unknown.
func (s QuizStep) Label(value string) string {
	for _, opt := range s.Options {
		if opt.Value == value {
			return opt.Label
		}
	}
	return value
}

// Quiz is an ordered sequence of steps.
type Quiz struct {
	ID    string     `json:"id"`
	Steps []QuizStep `json:"steps"`
}

// Step returns the step with id and its index.
func (q Quiz) Step(id string) (QuizStep, int, bool) {
	for i, step := range q.Steps {
		if step.ID == id {
			return step, i, true
		}
	}
	return QuizStep{}, -1, false
}

// Answer is a recorded answer: a single string, or an ordered set for multi-choice.
// It encodes as a JSON string or a JSON array respectively.
type Answer struct {
	Value  string
	Values []string
	Multi  bool
}

// TextAnswer builds a single-choice or free-text answer.
func TextAnswer(value string) Answer {
	return Answer{Value: value}
}

// ChoiceAnswer builds a multi-choice answer.
func ChoiceAnswer(values ...string) Answer {
	return Answer{Values: append([]string{}, values...), Multi: true}
}

// Contains reports whether a multi-choice answer holds value.
func (a Answer) Contains(value string) bool {
	for _, v := range a.Values {
		if v == value {
			return true
		}
	}
	return false
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Multi {
		values := a.Values
		if values == nil {
			values = []string{}
		}
		return json.Marshal(values)
	}
	return json.Marshal(a.Value)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*a = Answer{Value: text}
		return nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("answer must be a string or a list of strings: %w", err)
	}
	*a = ChoiceAnswer(values...)
	return nil
}

// Answers maps step id to its recorded answer.
type Answers map[string]Answer

// Clone returns a deep copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for id, answer := range a {
		if answer.Multi {
			answer.Values = append([]string{}, answer.Values...)
		}
		out[id] = answer
	}
	return out
}

// OnboardingAnswersKey is the client storage key holding a completed answer set.
const OnboardingAnswersKey = "onboardingAnswers"

// QuizSession is the persisted state of one quiz walk-through.
type QuizSession struct {
	ID        string    `json:"id"`
	QuizID    string    `json:"quizId"`
	ClientID  string    `json:"clientId"`
	Index     int       `json:"index"`
	Answers   Answers   `json:"answers"`
	Target    Target    `json:"target,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Done reports whether the session reached a terminal state.
func (s QuizSession) Done() bool {
	return s.Target != ""
}

// OptionView is an option as rendered for the current step.
type OptionView struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
	Disabled bool   `json:"disabled"`
}

// StepView is the current step with its prompt resolved against prior answers.
type StepView struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Prompt        string       `json:"prompt"`
	Kind          StepKind     `json:"kind"`
	Options       []OptionView `json:"options,omitempty"`
	MaxSelections int          `json:"maxSelections,omitempty"`
	Placeholder   string       `json:"placeholder,omitempty"`
	Answer        *Answer      `json:"answer,omitempty"`
}

// QuizView is what a client needs to render the quiz at its current position.
type QuizView struct {
	SessionID  string   `json:"sessionId"`
	QuizID     string   `json:"quizId"`
	ClientID   string   `json:"clientId"`
	StepIndex  int      `json:"stepIndex"`
	StepCount  int      `json:"stepCount"`
	Progress   float64  `json:"progress"`
	Step       StepView `json:"step"`
	CanAdvance bool     `json:"canAdvance"`
	CanRetreat bool     `json:"canRetreat"`
	IsLastStep bool     `json:"isLastStep"`
	Done       bool     `json:"done"`
	Target     Target   `json:"target,omitempty"`
	Route      string   `json:"route,omitempty"`
}
