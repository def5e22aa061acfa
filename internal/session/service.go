package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/kiosk/internal/auth"
	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/errors"
	"github.com/victornm/kiosk/internal/event"
	"github.com/victornm/kiosk/internal/quiz"
)

const defaultTTL = 12 * time.Hour

type Config struct {
	Redis       redis.UniversalClient
	Prefix      string
	TTL         time.Duration
	Quiz        *quiz.Store
	Credentials auth.CredentialStore
	EventBus    *event.Bus
	Now         quiz.Clock
}

// Service owns the per-browser session context. Every user action is one
// method: it loads the session, checks the quiz deadline, applies the action,
// saves the session and returns the page to render next.
type Service struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	quiz   *quiz.Store
	creds  auth.CredentialStore
	eb     *event.Bus
	timer  quiz.Timer
}

func NewService(c Config) *Service {
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}

	return &Service{
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.TTL,
		quiz:   c.Quiz,
		creds:  c.Credentials,
		eb:     c.EventBus,
		timer:  quiz.NewTimer(c.Now),
	}
}

// Create starts a fresh session on the main menu.
func (s *Service) Create(ctx context.Context) (*View, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("generate session ID: %w", err))
	}

	ss := &domain.Session{
		SessionID: id.String(),
		Page:      domain.PageMain,
	}

	if err := s.save(ctx, ss); err != nil {
		return nil, err
	}

	return s.view(ss, s.quiz.Snapshot()), nil
}

// Get re-renders the current page; it is also where an elapsed deadline is noticed.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	return s.do(ctx, id, func(*domain.Session, *quiz.Snapshot) error {
		return nil
	})
}

// Navigate moves to page. The settings page is behind the login gate and the
// first visit to the quiz page starts the countdown.
func (s *Service) Navigate(ctx context.Context, id string, page domain.Page) (*View, error) {
	if !page.Valid() {
		return nil, errors.InvalidArgument("unknown page %q", page)
	}

	return s.do(ctx, id, func(ss *domain.Session, snap *quiz.Snapshot) error {
		switch page {
		case domain.PageSettings:
			if !ss.Authenticated {
				page = domain.PageLogin
			}
		case domain.PageQuiz:
			if !ss.InProgress && !ss.ResultsShown {
				if err := s.start(ss, *snap); err != nil {
					return err
				}
			}
		}

		ss.Page = page
		return nil
	})
}

type LoginRequest struct {
	Username string
	Password string
}

func (s *Service) Login(ctx context.Context, id string, req LoginRequest) (*View, error) {
	return s.do(ctx, id, func(ss *domain.Session, _ *quiz.Snapshot) error {
		if err := s.creds.Verify(ctx, req.Username, req.Password); err != nil {
			return err
		}

		ss.Authenticated = true
		ss.Username = req.Username
		ss.Page = domain.PageSettings
		return nil
	})
}

func (s *Service) Logout(ctx context.Context, id string) (*View, error) {
	return s.do(ctx, id, func(ss *domain.Session, _ *quiz.Snapshot) error {
		ss.Authenticated = false
		ss.Username = ""
		ss.Page = domain.PageMain
		return nil
	})
}

type AnswerRequest struct {
	Index int
	// Answer is nil to clear the slot.
	Answer *string
}

func (s *Service) Answer(ctx context.Context, id string, req AnswerRequest) (*View, error) {
	return s.do(ctx, id, func(ss *domain.Session, snap *quiz.Snapshot) error {
		if err := requireRunning(ss); err != nil {
			return err
		}

		if req.Index < 0 || req.Index >= len(ss.Answers) {
			return errors.InvalidArgument("question index out of range: index=%d", req.Index)
		}

		if req.Answer != nil {
			if err := validateAnswer(snap.Questions[req.Index], *req.Answer); err != nil {
				return err
			}
		}

		ss.Answers[req.Index] = req.Answer
		ss.Page = domain.PageQuiz
		return nil
	})
}

// Submit grades the attempt. Submitting once results are shown, including after
// the deadline already forced a submission, just shows the results again.
func (s *Service) Submit(ctx context.Context, id string) (*View, error) {
	return s.do(ctx, id, func(ss *domain.Session, snap *quiz.Snapshot) error {
		ss.Page = domain.PageQuiz

		if ss.ResultsShown {
			return nil
		}

		if !ss.InProgress {
			return errors.FailedPrecondition("quiz has not started")
		}

		s.submit(ctx, ss, *snap, domain.SubmitReasonManual)
		return nil
	})
}

// Reset discards the current attempt and starts a new one.
func (s *Service) Reset(ctx context.Context, id string) (*View, error) {
	return s.do(ctx, id, func(ss *domain.Session, snap *quiz.Snapshot) error {
		resetQuiz(ss)
		if err := s.start(ss, *snap); err != nil {
			return err
		}

		ss.Page = domain.PageQuiz
		return nil
	})
}

func (s *Service) AddQuestion(ctx context.Context, id string, q domain.Question) (*View, error) {
	return s.author(ctx, id, func(snap *quiz.Snapshot) (err error) {
		*snap, err = s.quiz.AddQuestion(ctx, q)
		return err
	})
}

func (s *Service) DeleteQuestion(ctx context.Context, id string, index int) (*View, error) {
	return s.author(ctx, id, func(snap *quiz.Snapshot) (err error) {
		*snap, err = s.quiz.DeleteQuestion(ctx, index)
		return err
	})
}

func (s *Service) SetQuizTime(ctx context.Context, id string, seconds int) (*View, error) {
	return s.author(ctx, id, func(snap *quiz.Snapshot) (err error) {
		*snap, err = s.quiz.SetQuizTime(ctx, seconds)
		return err
	})
}

func (s *Service) author(ctx context.Context, id string, f func(snap *quiz.Snapshot) error) (*View, error) {
	return s.do(ctx, id, func(ss *domain.Session, snap *quiz.Snapshot) error {
		if !ss.Authenticated {
			return errors.New(errors.CodeUnauthenticated, errors.WithMessagef("login required"))
		}

		if err := f(snap); err != nil {
			return err
		}

		ss.Page = domain.PageSettings
		return nil
	})
}

// do runs one user action. A failing action leaves the stored session as it
// was before the action; deadline expiry and question-set resets detected
// beforehand are still saved.
func (s *Service) do(ctx context.Context, id string, action func(ss *domain.Session, snap *quiz.Snapshot) error) (*View, error) {
	ss, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	snap := s.quiz.Snapshot()

	refreshed, err := s.refresh(ctx, ss, snap)
	if err != nil {
		return nil, stderrors.Join(err, s.save(ctx, ss))
	}

	if err := action(ss, &snap); err != nil {
		if refreshed {
			if saveErr := s.save(ctx, ss); saveErr != nil {
				return nil, saveErr
			}
		}
		return nil, err
	}

	if err := s.save(ctx, ss); err != nil {
		return nil, err
	}

	return s.view(ss, snap), nil
}

// refresh applies what happened since the last interaction: a changed question
// set resets the attempt, and a passed deadline submits it.
func (s *Service) refresh(ctx context.Context, ss *domain.Session, snap quiz.Snapshot) (bool, error) {
	if !ss.InProgress || ss.ResultsShown {
		return false, nil
	}

	if ss.QuestionSet != snap.Fingerprint || len(ss.Answers) != len(snap.Questions) {
		resetQuiz(ss)
		ss.Page = domain.PageMain
		return true, errors.FailedPrecondition("the questions changed during the quiz; the attempt was discarded")
	}

	if s.timer.State(ss) == quiz.TimerExpired {
		s.submit(ctx, ss, snap, domain.SubmitReasonExpired)
		return true, nil
	}

	return false, nil
}

func (s *Service) start(ss *domain.Session, snap quiz.Snapshot) error {
	if len(snap.Questions) == 0 {
		return errors.FailedPrecondition("no questions have been added yet")
	}

	ss.Answers = make([]*string, len(snap.Questions))
	ss.QuestionSet = snap.Fingerprint
	ss.Result = nil
	ss.SubmitReason = ""
	s.timer.Start(ss, snap.QuizTime)

	return nil
}

func (s *Service) submit(ctx context.Context, ss *domain.Session, snap quiz.Snapshot, reason string) {
	res := quiz.Grade(snap.Questions, ss.Answers)

	ss.Result = &res
	ss.ResultsShown = true
	ss.InProgress = false
	ss.SubmitReason = reason

	s.eb.Publish(ctx, domain.EventQuizSubmitted{
		SessionID: ss.SessionID,
		Reason:    reason,
		Result:    res,
	})
}

func resetQuiz(ss *domain.Session) {
	ss.InProgress = false
	ss.ResultsShown = false
	ss.StartTime = time.Time{}
	ss.Deadline = time.Time{}
	ss.Answers = nil
	ss.Result = nil
	ss.SubmitReason = ""
	ss.QuestionSet = ""
}

func requireRunning(ss *domain.Session) error {
	switch {
	case ss.ResultsShown:
		return errors.FailedPrecondition("quiz already submitted")
	case !ss.InProgress:
		return errors.FailedPrecondition("quiz has not started")
	}
	return nil
}

func validateAnswer(q domain.Question, answer string) error {
	if q.Type == domain.QuestionEssay {
		return nil
	}

	for _, o := range q.Options {
		if o == answer {
			return nil
		}
	}
	return errors.InvalidArgument("answer %q is not one of the options", answer)
}

func (s *Service) load(ctx context.Context, id string) (*domain.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.InvalidArgument("invalid session id %q", id)
	}

	b, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.NotFound("session not found: session=%s", id)
	}
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("get session: %w", err))
	}

	var ss domain.Session
	if err := json.Unmarshal(b, &ss); err != nil {
		return nil, errors.Internal(fmt.Errorf("unmarshal session %s: %w", id, err))
	}

	return &ss, nil
}

func (s *Service) save(ctx context.Context, ss *domain.Session) error {
	ss.UpdateTime = s.timer.Now()

	b, err := json.Marshal(ss)
	if err != nil {
		return errors.Internal(fmt.Errorf("marshal session: %w", err))
	}

	if err := s.redis.Set(ctx, s.key(ss.SessionID), b, s.ttl).Err(); err != nil {
		return errors.Unavailable(fmt.Errorf("save session: %w", err))
	}

	return nil
}

func (s *Service) key(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}
