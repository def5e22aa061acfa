package quiz

import (
	"slices"
	"strings"

	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/errors"
)

// NormalizeQuestion validates an authored question and trims its fields.
// True/false questions always get the two canonical options.
func NormalizeQuestion(q domain.Question) (domain.Question, error) {
	q.Text = strings.TrimSpace(q.Text)
	q.Correct = strings.TrimSpace(q.Correct)

	if q.Text == "" {
		return q, errors.InvalidArgument("question text is required")
	}

	if q.Points < 1 {
		return q, errors.InvalidArgument("points must be a positive integer")
	}

	switch q.Type {
	case domain.QuestionMultipleChoice:
		opts := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			if o = strings.TrimSpace(o); o != "" {
				opts = append(opts, o)
			}
		}
		if len(opts) < 2 {
			return q, errors.InvalidArgument("multiple choice question needs at least two options")
		}
		if !slices.Contains(opts, q.Correct) {
			return q, errors.InvalidArgument("correct answer %q is not one of the options", q.Correct)
		}
		q.Options = opts

	case domain.QuestionTrueFalse:
		if q.Correct != domain.AnswerTrue && q.Correct != domain.AnswerFalse {
			return q, errors.InvalidArgument("true/false question needs %q or %q as correct answer", domain.AnswerTrue, domain.AnswerFalse)
		}
		q.Options = []string{domain.AnswerTrue, domain.AnswerFalse}

	case domain.QuestionEssay:
		q.Options = nil

	default:
		return q, errors.InvalidArgument("unknown question type %q", q.Type)
	}

	return q, nil
}
