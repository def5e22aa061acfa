package session

import (
	"time"

	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/quiz"
)

// View is everything needed to render the next page.
type View struct {
	SessionID     string
	Page          domain.Page
	Authenticated bool
	Username      string

	Timer     quiz.TimerState
	Remaining time.Duration
	Deadline  time.Time
	QuizTime  int

	// Quiz page: questions without their correct answers, and the answers so far.
	Questions []QuestionView
	Answers   []*string
	Result    *domain.Result

	// SubmitReason is manual or expired once results are shown.
	SubmitReason string

	// Settings page: the full authored questions.
	Authoring []domain.Question
}

type QuestionView struct {
	Index   int
	Text    string
	Type    domain.QuestionType
	Options []string
	Points  int
}

func (s *Service) view(ss *domain.Session, snap quiz.Snapshot) *View {
	v := &View{
		SessionID:     ss.SessionID,
		Page:          ss.Page,
		Authenticated: ss.Authenticated,
		Username:      ss.Username,
		Timer:         s.timer.State(ss),
		Remaining:     s.timer.Remaining(ss),
		Deadline:      ss.Deadline,
		QuizTime:      snap.QuizTime,
	}

	switch ss.Page {
	case domain.PageQuiz:
		v.Answers = ss.Answers
		if ss.ResultsShown && ss.Result != nil {
			v.Result = ss.Result
			v.SubmitReason = ss.SubmitReason

			// The questions as graded; the set may have been edited since.
			v.Questions = make([]QuestionView, 0, len(ss.Result.Questions))
			for _, q := range ss.Result.Questions {
				v.Questions = append(v.Questions, QuestionView{
					Index:   q.Index,
					Text:    q.Text,
					Type:    q.Type,
					Options: q.Options,
					Points:  q.Points,
				})
			}
			break
		}

		v.Questions = make([]QuestionView, 0, len(snap.Questions))
		for i, q := range snap.Questions {
			v.Questions = append(v.Questions, QuestionView{
				Index:   i,
				Text:    q.Text,
				Type:    q.Type,
				Options: q.Options,
				Points:  q.Points,
			})
		}

	case domain.PageSettings:
		v.Authoring = snap.Questions
	}

	return v
}
