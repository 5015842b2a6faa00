package app

import (
	"regexp"
	"strconv"
	"strings"

	"skillscape/internal/domain"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_-]+)(?:\.(\d+))?\s*\}\}`)

// ResolvePrompt substitutes answer placeholders in a prompt template.
//
// {{step-id}} expands to the label of that step's answer (all labels joined
// with ", " for multi-choice). {{step-id.N}} expands to the label of the Nth
// (1-based) selected value. Unknown steps, missing answers and out-of-range
// indices expand to "".
func ResolvePrompt(template string, quiz domain.Quiz, answers domain.Answers) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		step, _, ok := quiz.Step(groups[1])
		if !ok {
			return ""
		}
		answer, ok := answers[step.ID]
		if !ok {
			return ""
		}

		if groups[2] == "" {
			if !answer.Multi {
				return step.Label(answer.Value)
			}
			labels := make([]string, 0, len(answer.Values))
			for _, v := range answer.Values {
				labels = append(labels, step.Label(v))
			}
			return strings.Join(labels, ", ")
		}

		n, err := strconv.Atoi(groups[2])
		if err != nil || n < 1 {
			return ""
		}
		if !answer.Multi {
			if n == 1 && answer.Value != "" {
				return step.Label(answer.Value)
			}
			return ""
		}
		if n > len(answer.Values) {
			return ""
		}
		return step.Label(answer.Values[n-1])
	})
}
