package progress

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/virtuallab/core/quiz"
)

// Coefficient bounds
const (
	MinCoefficient = -5.0
	MaxCoefficient = 5.0
)

type Coefficients struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

func DefaultCoefficients() Coefficients {
	return Coefficients{A: 1, B: 0, C: 0}
}

// Clamp bounds every coefficient to [MinCoefficient, MaxCoefficient].
func (c Coefficients) Clamp() Coefficients {
	return Coefficients{A: clamp(c.A), B: clamp(c.B), C: clamp(c.C)}
}

func clamp(v float64) float64 {
	switch {
	case v < MinCoefficient:
		return MinCoefficient
	case v > MaxCoefficient:
		return MaxCoefficient
	}
	return v
}

// ViewState is the presentational state of the graph (zoom and pan).
type ViewState struct {
	Scale   float64 `json:"scale" validate:"gt=0"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

func DefaultViewState() ViewState {
	return ViewState{Scale: 1, OffsetX: 0, OffsetY: 0}
}

// Progress is the persisted state of one user in one lab.
type Progress struct {
	UserID           int64         `json:"user_id"`
	LabID            string        `json:"lab_id"`
	Coefficients     Coefficients  `json:"coefficients"`
	ViewState        ViewState     `json:"graph_state"`
	QuizAnswers      *quiz.Answers `json:"quiz_answers"`
	QuizScore        null.Int      `json:"quiz_score"`
	QuizAttemptCount int           `json:"quiz_attempt_count"`
	IsCompleted      bool          `json:"is_completed"`
	CompletedAt      null.Time     `json:"completed_at"` // UTC, first passing attempt
	LastModified     null.Time     `json:"last_modified"`
	LastAttemptAt    null.Time     `json:"last_attempt_at"`
}

// Default is what a user sees in a lab they never touched.
func Default(userID int64, labID string) Progress {
	return Progress{
		UserID:       userID,
		LabID:        labID,
		Coefficients: DefaultCoefficients(),
		ViewState:    DefaultViewState(),
	}
}

// Attempt is one scored quiz submission, ready to be recorded.
type Attempt struct {
	UserID  int64
	LabID   string
	Answers quiz.Answers
	Score   int
	Passed  bool
	At      time.Time
}

// Submission is the outcome of a recorded quiz submission.
type Submission struct {
	Result   quiz.Result
	Progress Progress
}
