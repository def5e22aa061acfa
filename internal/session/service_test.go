package session_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/kiosk/internal/auth"
	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/errors"
	"github.com/victornm/kiosk/internal/event"
	"github.com/victornm/kiosk/internal/quiz"
	"github.com/victornm/kiosk/internal/session"
)

func TestService_QuizExpiresAtDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 600)

	v, err := f.s.Create(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.PageMain, v.Page)
	require.Equal(t, quiz.TimerNotStarted, v.Timer)

	v, err = f.s.Navigate(ctx, v.SessionID, domain.PageQuiz)
	require.NoError(t, err)
	require.Equal(t, quiz.TimerRunning, v.Timer)
	require.Equal(t, 600*time.Second, v.Remaining)
	require.Len(t, v.Questions, 3)
	require.Len(t, v.Answers, 3)

	v, err = f.s.Answer(ctx, v.SessionID, session.AnswerRequest{Index: 0, Answer: ptr("Cairo")})
	require.NoError(t, err)

	f.advance(599 * time.Second)

	v, err = f.s.Get(ctx, v.SessionID)
	require.NoError(t, err)
	require.Equal(t, quiz.TimerRunning, v.Timer)
	require.Equal(t, time.Second, v.Remaining)
	require.Nil(t, v.Result)

	f.advance(time.Second)

	v, err = f.s.Get(ctx, v.SessionID)
	require.NoError(t, err)
	require.Equal(t, quiz.TimerResultsShown, v.Timer)
	require.Equal(t, time.Duration(0), v.Remaining)
	require.Equal(t, domain.SubmitReasonExpired, v.SubmitReason)
	require.NotNil(t, v.Result)
	assert.Equal(t, 5, v.Result.Score)
	assert.Equal(t, 10, v.Result.MaxScore)
	assert.Equal(t, 1, v.Result.Unanswered)
	assert.Equal(t, 1, v.Result.Pending)

	_, err = f.s.Answer(ctx, v.SessionID, session.AnswerRequest{Index: 1, Answer: ptr("True")})
	require.True(t, errors.Is(err, errors.CodeFailedPrecondition), "got %v", err)

	f.eb.Stop()
	require.Len(t, f.submitted(), 1)
	require.Equal(t, domain.SubmitReasonExpired, f.submitted()[0].Reason)
}

func TestService_ExpiredSubmitShowsResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 60)

	v := f.startQuiz(t)
	f.advance(10 * time.Minute)

	v, err := f.s.Submit(ctx, v.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.SubmitReasonExpired, v.SubmitReason)
	require.Equal(t, 0, v.Result.Score)
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 600)

	v := f.startQuiz(t)

	for i, a := range []string{"Cairo", "True", "A dam on the Nile."} {
		var err error
		v, err = f.s.Answer(ctx, v.SessionID, session.AnswerRequest{Index: i, Answer: ptr(a)})
		require.NoError(t, err)
	}

	first, err := f.s.Submit(ctx, v.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.SubmitReasonManual, first.SubmitReason)
	require.Equal(t, 10, first.Result.Score)
	require.Equal(t, 10, first.Result.MaxScore)
	require.Equal(t, domain.OutcomePending, first.Result.Questions[2].Outcome)

	f.advance(time.Minute)

	second, err := f.s.Submit(ctx, v.SessionID)
	require.NoError(t, err)
	require.Equal(t, first.Result, second.Result)

	f.eb.Stop()
	require.Len(t, f.submitted(), 1, "submitting twice grades once")
}

func TestService_ResultsSurviveQuestionEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 600)

	v := f.startQuiz(t)

	v, err := f.s.Answer(ctx, v.SessionID, session.AnswerRequest{Index: 0, Answer: ptr("Cairo")})
	require.NoError(t, err)

	v, err = f.s.Submit(ctx, v.SessionID)
	require.NoError(t, err)
	graded := v.Questions

	_, err = f.quiz.DeleteQuestion(ctx, 0)
	require.NoError(t, err)
	_, err = f.quiz.AddQuestion(ctx, domain.Question{Text: "Longest river?", Type: domain.QuestionEssay, Points: 2})
	require.NoError(t, err)

	v, err = f.s.Get(ctx, v.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.PageQuiz, v.Page)
	require.Equal(t, quiz.TimerResultsShown, v.Timer)
	require.Equal(t, graded, v.Questions)
	require.Len(t, v.Questions, len(v.Result.Questions))
	require.Equal(t, "Capital of Egypt?", v.Questions[0].Text)
	require.Equal(t, domain.OutcomeCorrect, v.Result.Questions[0].Outcome)
}

func TestService_Answer(t *testing.T) {
	tests := map[string]struct {
		req      session.AnswerRequest
		wantCode *errors.Code
	}{
		"multiple choice option":      {req: session.AnswerRequest{Index: 0, Answer: ptr("Giza")}},
		"true false":                  {req: session.AnswerRequest{Index: 1, Answer: ptr("False")}},
		"essay free text":             {req: session.AnswerRequest{Index: 2, Answer: ptr("anything at all")}},
		"clear answer":                {req: session.AnswerRequest{Index: 0}},
		"not an option":               {req: session.AnswerRequest{Index: 0, Answer: ptr("Aswan")}, wantCode: code(errors.CodeInvalidArgument)},
		"answers are case sensitive":  {req: session.AnswerRequest{Index: 1, Answer: ptr("true")}, wantCode: code(errors.CodeInvalidArgument)},
		"index out of range":          {req: session.AnswerRequest{Index: 3, Answer: ptr("Cairo")}, wantCode: code(errors.CodeInvalidArgument)},
		"negative index":              {req: session.AnswerRequest{Index: -1, Answer: ptr("Cairo")}, wantCode: code(errors.CodeInvalidArgument)},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, 600)
			v := f.startQuiz(t)

			got, err := f.s.Answer(context.Background(), v.SessionID, tt.req)
			if tt.wantCode != nil {
				require.True(t, errors.Is(err, *tt.wantCode), "got %v", err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.req.Answer, got.Answers[tt.req.Index])
		})
	}
}

func TestService_AnswerBeforeStart(t *testing.T) {
	f := newFixture(t, 600)

	v, err := f.s.Create(context.Background())
	require.NoError(t, err)

	_, err = f.s.Answer(context.Background(), v.SessionID, session.AnswerRequest{Index: 0, Answer: ptr("Cairo")})
	require.True(t, errors.Is(err, errors.CodeFailedPrecondition), "got %v", err)
}

func TestService_QuestionSetChangedMidQuiz(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 600)

	v := f.startQuiz(t)

	_, err := f.quiz.DeleteQuestion(ctx, 2)
	require.NoError(t, err)

	_, err = f.s.Answer(ctx, v.SessionID, session.AnswerRequest{Index: 0, Answer: ptr("Cairo")})
	require.True(t, errors.Is(err, errors.CodeFailedPrecondition), "got %v", err)

	v, err = f.s.Get(ctx, v.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.PageMain, v.Page)
	require.Equal(t, quiz.TimerNotStarted, v.Timer)

	v, err = f.s.Navigate(ctx, v.SessionID, domain.PageQuiz)
	require.NoError(t, err)
	require.Len(t, v.Answers, 2)
}

func TestService_StartWithoutQuestions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 600, withoutQuestions())

	v, err := f.s.Create(ctx)
	require.NoError(t, err)

	_, err = f.s.Navigate(ctx, v.SessionID, domain.PageQuiz)
	require.True(t, errors.Is(err, errors.CodeFailedPrecondition), "got %v", err)

	v, err = f.s.Get(ctx, v.SessionID)
	require.NoError(t, err)
	require.Equal(t, domain.PageMain, v.Page)
}

func TestService_Reset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 600)

	v := f.startQuiz(t)
	_, err := f.s.Submit(ctx, v.SessionID)
	require.NoError(t, err)

	f.advance(5 * time.Minute)

	v, err = f.s.Reset(ctx, v.SessionID)
	require.NoError(t, err)
	require.Equal(t, quiz.TimerRunning, v.Timer)
	require.Equal(t, 600*time.Second, v.Remaining)
	require.Nil(t, v.Result)
	require.Equal(t, []*string{nil, nil, nil}, v.Answers)
}

func TestService_LoginGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 600)

	v, err := f.s.Create(ctx)
	require.NoError(t, err)
	id := v.SessionID

	v, err = f.s.Navigate(ctx, id, domain.PageSettings)
	require.NoError(t, err)
	require.Equal(t, domain.PageLogin, v.Page, "settings redirect to login")

	_, err = f.s.SetQuizTime(ctx, id, 120)
	require.True(t, errors.Is(err, errors.CodeUnauthenticated), "got %v", err)

	_, err = f.s.Login(ctx, id, session.LoginRequest{Username: "admin", Password: "wrong"})
	require.True(t, errors.Is(err, errors.CodeUnauthenticated), "got %v", err)

	_, err = f.s.Login(ctx, id, session.LoginRequest{Username: "admin"})
	require.True(t, errors.Is(err, errors.CodeInvalidArgument), "got %v", err)

	v, err = f.s.Login(ctx, id, session.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)
	require.Equal(t, domain.PageSettings, v.Page)
	require.Equal(t, "admin", v.Username)
	require.Len(t, v.Authoring, 3)
	require.Equal(t, "Cairo", v.Authoring[0].Correct)

	v, err = f.s.AddQuestion(ctx, id, domain.Question{Text: "Sand is wet.", Type: domain.QuestionTrueFalse, Correct: "False", Points: 1})
	require.NoError(t, err)
	require.Len(t, v.Authoring, 4)

	v, err = f.s.SetQuizTime(ctx, id, 120)
	require.NoError(t, err)
	require.Equal(t, 120, v.QuizTime)

	_, err = f.s.DeleteQuestion(ctx, id, 10)
	require.True(t, errors.Is(err, errors.CodeNotFound), "got %v", err)

	v, err = f.s.DeleteQuestion(ctx, id, 3)
	require.NoError(t, err)
	require.Len(t, v.Authoring, 3)

	v, err = f.s.Logout(ctx, id)
	require.NoError(t, err)
	require.False(t, v.Authenticated)
	require.Equal(t, domain.PageMain, v.Page)

	v, err = f.s.Navigate(ctx, id, domain.PageSettings)
	require.NoError(t, err)
	require.Equal(t, domain.PageLogin, v.Page)
}

func TestService_QuizPageHidesCorrectAnswers(t *testing.T) {
	f := newFixture(t, 600)
	v := f.startQuiz(t)

	require.Nil(t, v.Authoring)
	require.Equal(t, session.QuestionView{
		Index:   0,
		Text:    "Capital of Egypt?",
		Type:    domain.QuestionMultipleChoice,
		Options: []string{"Cairo", "Giza", "Luxor"},
		Points:  5,
	}, v.Questions[0])
}

func TestService_Get(t *testing.T) {
	f := newFixture(t, 600)

	tests := map[string]struct {
		id       string
		wantCode errors.Code
	}{
		"malformed id":    {id: "not-a-session", wantCode: errors.CodeInvalidArgument},
		"unknown session": {id: "0192a3b4-5c6d-7e8f-9a0b-1c2d3e4f5a6b", wantCode: errors.CodeNotFound},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.s.Get(context.Background(), tt.id)
			require.True(t, errors.Is(err, tt.wantCode), "got %v", err)
		})
	}

	_, err := f.s.Navigate(context.Background(), "0192a3b4-5c6d-7e8f-9a0b-1c2d3e4f5a6b", domain.Page("admin"))
	require.True(t, errors.Is(err, errors.CodeInvalidArgument), "got %v", err)
}

func TestService_RedisUnavailable(t *testing.T) {
	f := newFixture(t, 600)
	f.redis.Close()

	_, err := f.s.Create(context.Background())
	require.True(t, errors.Is(err, errors.CodeUnavailable), "got %v", err)
}

type fixture struct {
	s     *session.Service
	quiz  *quiz.Store
	eb    *event.Bus
	redis *miniredis.Miniredis

	now time.Time

	mu     sync.Mutex
	events []domain.EventQuizSubmitted
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) submitted() []domain.EventQuizSubmitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

func (f *fixture) startQuiz(t *testing.T) *session.View {
	v, err := f.s.Create(context.Background())
	require.NoError(t, err)

	v, err = f.s.Navigate(context.Background(), v.SessionID, domain.PageQuiz)
	require.NoError(t, err)
	return v
}

type fixtureOptions struct {
	questions []domain.Question
}

type option func(o *fixtureOptions)

func withoutQuestions() option {
	return func(o *fixtureOptions) {
		o.questions = nil
	}
}

func newFixture(t *testing.T, quizTime int, opts ...option) *fixture {
	ctx := context.Background()

	o := fixtureOptions{
		questions: []domain.Question{
			{Text: "Capital of Egypt?", Type: domain.QuestionMultipleChoice, Options: []string{"Cairo", "Giza", "Luxor"}, Correct: "Cairo", Points: 5},
			{Text: "The Nile flows north.", Type: domain.QuestionTrueFalse, Correct: "True", Points: 5},
			{Text: "Describe the Aswan dam.", Type: domain.QuestionEssay, Points: 10},
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	qs := quiz.Open(ctx, quiz.Config{File: filepath.Join(t.TempDir(), "quiz.json")})
	for _, q := range o.questions {
		_, err := qs.AddQuestion(ctx, q)
		require.NoError(t, err)
	}
	_, err := qs.SetQuizTime(ctx, quizTime)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	creds, err := auth.NewStaticStore(map[string]string{"admin": string(hash)})
	require.NoError(t, err)

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { _ = rc.Close() })

	f := &fixture{
		quiz:  qs,
		eb:    event.NewBus(),
		redis: rs,
		now:   time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}

	f.eb.Subscribe(domain.EventNameQuizSubmitted, func(_ context.Context, e event.Event) error {
		f.mu.Lock()
		f.events = append(f.events, e.(domain.EventQuizSubmitted))
		f.mu.Unlock()
		return nil
	})

	f.s = session.NewService(session.Config{
		Redis:       rc,
		Prefix:      "test",
		Quiz:        qs,
		Credentials: creds,
		EventBus:    f.eb,
		Now:         func() time.Time { return f.now },
	})

	return f
}

func ptr(s string) *string {
	return &s
}

func code(c errors.Code) *errors.Code {
	return &c
}
