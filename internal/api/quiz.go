package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/kiosk/internal/domain"
	"github.com/victornm/kiosk/internal/errors"
	"github.com/victornm/kiosk/internal/session"
)

type (
	View struct {
		SessionID        string     `json:"session_id"`
		Page             string     `json:"page"`
		Authenticated    bool       `json:"authenticated"`
		Username         string     `json:"username,omitempty"`
		Timer            string     `json:"timer"`
		RemainingSeconds int        `json:"remaining_seconds"`
		Deadline         *time.Time `json:"deadline,omitempty"`
		QuizTime         int        `json:"quiz_time"`

		Questions    []QuestionView    `json:"questions,omitempty"`
		Answers      []*string         `json:"answers,omitempty"`
		Result       *domain.Result    `json:"result,omitempty"`
		SubmitReason string            `json:"submit_reason,omitempty"`
		Authoring    []domain.Question `json:"authoring,omitempty"`
	}

	QuestionView struct {
		Index   int      `json:"index"`
		Text    string   `json:"text"`
		Type    string   `json:"type"`
		Options []string `json:"options,omitempty"`
		Points  int      `json:"points"`
	}

	NavigateRequest struct {
		Page string `json:"page"`
	}

	LoginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	AnswerRequest struct {
		// Answer is null to clear the slot.
		Answer *string `json:"answer"`
	}

	SetQuizTimeRequest struct {
		Seconds int `json:"seconds"`
	}
)

func (a *API) CreateSession(c *gin.Context) {
	v, err := a.qss.Create(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toView(v))
}

func (a *API) GetSession(c *gin.Context) {
	a.renderView(c)(a.qss.Get(c, c.Param("id")))
}

func (a *API) Navigate(c *gin.Context) {
	var req NavigateRequest
	if !bindJSON(c, &req) {
		return
	}

	a.renderView(c)(a.qss.Navigate(c, c.Param("id"), domain.Page(req.Page)))
}

func (a *API) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	a.renderView(c)(a.qss.Login(c, c.Param("id"), session.LoginRequest{
		Username: req.Username,
		Password: req.Password,
	}))
}

func (a *API) Logout(c *gin.Context) {
	a.renderView(c)(a.qss.Logout(c, c.Param("id")))
}

func (a *API) Answer(c *gin.Context) {
	i, ok := pathIndex(c)
	if !ok {
		return
	}

	var req AnswerRequest
	if !bindJSON(c, &req) {
		return
	}

	a.renderView(c)(a.qss.Answer(c, c.Param("id"), session.AnswerRequest{
		Index:  i,
		Answer: req.Answer,
	}))
}

func (a *API) Submit(c *gin.Context) {
	a.renderView(c)(a.qss.Submit(c, c.Param("id")))
}

func (a *API) Reset(c *gin.Context) {
	a.renderView(c)(a.qss.Reset(c, c.Param("id")))
}

func (a *API) AddQuestion(c *gin.Context) {
	var q domain.Question
	if !bindJSON(c, &q) {
		return
	}

	a.renderView(c)(a.qss.AddQuestion(c, c.Param("id"), q))
}

func (a *API) DeleteQuestion(c *gin.Context) {
	i, ok := pathIndex(c)
	if !ok {
		return
	}

	a.renderView(c)(a.qss.DeleteQuestion(c, c.Param("id"), i))
}

func (a *API) SetQuizTime(c *gin.Context) {
	var req SetQuizTimeRequest
	if !bindJSON(c, &req) {
		return
	}

	a.renderView(c)(a.qss.SetQuizTime(c, c.Param("id"), req.Seconds))
}

func (a *API) renderView(c *gin.Context) func(*session.View, error) {
	return func(v *session.View, err error) {
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, toView(v))
	}
}

func toView(v *session.View) View {
	res := View{
		SessionID:        v.SessionID,
		Page:             string(v.Page),
		Authenticated:    v.Authenticated,
		Username:         v.Username,
		Timer:            string(v.Timer),
		RemainingSeconds: seconds(v.Remaining),
		QuizTime:         v.QuizTime,
		Answers:          v.Answers,
		Result:           v.Result,
		SubmitReason:     v.SubmitReason,
		Authoring:        v.Authoring,
	}

	if !v.Deadline.IsZero() {
		res.Deadline = &v.Deadline
	}

	for _, q := range v.Questions {
		res.Questions = append(res.Questions, QuestionView{
			Index:   q.Index,
			Text:    q.Text,
			Type:    string(q.Type),
			Options: q.Options,
			Points:  q.Points,
		})
	}

	return res
}

// seconds rounds up so a running quiz never shows 0 seconds left.
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func pathIndex(c *gin.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		abortWithError(c, errors.InvalidArgument("index must be an integer: %q", c.Param("index")))
		return 0, false
	}
	return i, true
}
