package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the product classification chosen on the admin form.
type Category string

const (
	CategoryGeneral     Category = "general"
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryFood        Category = "food"
	CategoryOther       Category = "other"
)

// Categories lists the allowed categories in form order.
var Categories = []Category{
	CategoryGeneral,
	CategoryElectronics,
	CategoryClothing,
	CategoryFood,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Product is one row of the Inventory sheet, keyed by Barcode.
type Product struct {
	Barcode      string
	Name         string
	Category     Category
	SalePrice    decimal.Decimal
	CostPrice    decimal.Decimal
	Quantity     int
	ReorderLevel int
}

// Low reports whether the product is at or below its reorder level.
func (p Product) Low() bool {
	return p.Quantity <= p.ReorderLevel
}

// Sale is one append-only row of the Sales sheet.
type Sale struct {
	SaleID      string
	Timestamp   time.Time
	ProductName string
	Quantity    int
	Total       decimal.Decimal
	Profit      decimal.Decimal
}

// InventoryStats summarises the Inventory sheet.
type InventoryStats struct {
	Items       int
	TotalPieces int
	TotalValue  decimal.Decimal
	Currency    string
	Display     string
}

// TopSellers ranks products by quantity sold, in descending order.
type TopSellers struct {
	Entries []TopSellerEntry
}

type TopSellerEntry struct {
	ProductName string
	Quantity    float64
}

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionEssay          QuestionType = "essay"
)

const (
	AnswerTrue  = "True"
	AnswerFalse = "False"
)

// Question is an authored quiz question. Options is only set for multiple choice
// and true/false questions.
type Question struct {
	Text    string       `json:"text" yaml:"text"`
	Type    QuestionType `json:"type" yaml:"type"`
	Options []string     `json:"options,omitempty" yaml:"options,omitempty"`
	Correct string       `json:"correct" yaml:"correct"`
	Points  int          `json:"points" yaml:"points"`
}

// QuizData is the whole on-disk quiz document.
type QuizData struct {
	Questions []Question `json:"questions" yaml:"questions"`
	QuizTime  int        `json:"quiz_time" yaml:"quiz_time"`
}

// Page is the screen a session is currently showing.
type Page string

const (
	PageMain     Page = "main"
	PageLogin    Page = "login"
	PageSettings Page = "settings"
	PageQuiz     Page = "quiz"
)

func (p Page) Valid() bool {
	switch p {
	case PageMain, PageLogin, PageSettings, PageQuiz:
		return true
	}
	return false
}

// Session is the transient per-user state of one browser session.
type Session struct {
	SessionID     string    `json:"session_id"`
	Page          Page      `json:"page"`
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username,omitempty"`
	InProgress    bool      `json:"in_progress"`
	StartTime     time.Time `json:"start_time"`
	Deadline      time.Time `json:"deadline"`
	Answers       []*string `json:"answers,omitempty"`
	ResultsShown  bool      `json:"results_shown"`
	Result        *Result   `json:"result,omitempty"`
	SubmitReason  string    `json:"submit_reason,omitempty"`
	QuestionSet   string    `json:"question_set,omitempty"`
	UpdateTime    time.Time `json:"update_time"`
}

// Outcome is the grading result of a single question.
type Outcome string

const (
	OutcomeCorrect    Outcome = "correct"
	OutcomeIncorrect  Outcome = "incorrect"
	OutcomeUnanswered Outcome = "unanswered"
	OutcomePending    Outcome = "pending_review"
)

// Result is a graded quiz attempt.
type Result struct {
	Score      int              `json:"score"`
	MaxScore   int              `json:"max_score"`
	Pending    int              `json:"pending"`
	Unanswered int              `json:"unanswered"`
	Questions  []QuestionResult `json:"questions"`
}

// QuestionResult keeps the graded question as it was at submission, so the
// results still line up after the question set is edited.
type QuestionResult struct {
	Index   int          `json:"index"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
	Outcome Outcome      `json:"outcome"`
	Points  int          `json:"points"`
	Awarded int          `json:"awarded"`
}
