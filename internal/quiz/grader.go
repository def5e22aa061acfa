package quiz

import (
	"slices"

	"github.com/victornm/kiosk/internal/domain"
)

// Grade scores answers against questions by exact string equality. Essays are
// never auto-scored and are reported as pending review; unanswered questions
// score zero. answers is parallel to questions; missing trailing slots count
// as unanswered.
func Grade(questions []domain.Question, answers []*string) domain.Result {
	res := domain.Result{
		Questions: make([]domain.QuestionResult, 0, len(questions)),
	}

	for i, q := range questions {
		qr := domain.QuestionResult{
			Index:   i,
			Text:    q.Text,
			Type:    q.Type,
			Options: slices.Clone(q.Options),
			Points:  q.Points,
		}

		var answer *string
		if i < len(answers) {
			answer = answers[i]
		}

		switch {
		case q.Type == domain.QuestionEssay:
			qr.Outcome = domain.OutcomePending
			res.Pending++
		case answer == nil:
			qr.Outcome = domain.OutcomeUnanswered
			res.Unanswered++
		case *answer == q.Correct:
			qr.Outcome = domain.OutcomeCorrect
			qr.Awarded = q.Points
		default:
			qr.Outcome = domain.OutcomeIncorrect
		}

		if q.Type != domain.QuestionEssay {
			res.MaxScore += q.Points
		}
		res.Score += qr.Awarded
		res.Questions = append(res.Questions, qr)
	}

	return res
}
