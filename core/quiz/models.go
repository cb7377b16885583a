package quiz

import (
	"context"
	"errors"
	"fmt"

	"github.com/trezcool/virtuallab/core"
)

// Scoring rules
const (
	MultipleChoicePoints = 3
	ShortAnswerPoints    = 4
	PassThreshold        = 10
)

var (
	// errors
	ErrNotFound = errors.New("quiz not found")
)

type (
	MultipleChoiceQuestion struct {
		ID            int      `json:"id" yaml:"id"`
		Question      string   `json:"question" yaml:"question"`
		Options       []string `json:"options" yaml:"options"`
		CorrectAnswer int      `json:"correct_answer" yaml:"correct_answer"`
	}

	ShortAnswerQuestion struct {
		ID            int    `json:"id" yaml:"id"`
		Question      string `json:"question" yaml:"question"`
		CorrectAnswer string `json:"correct_answer" yaml:"correct_answer"`
	}

	// Definition is the authoritative question bank of a lab.
	Definition struct {
		LabID          string                   `json:"lab_id" yaml:"lab_id"`
		Title          string                   `json:"title" yaml:"title"`
		MultipleChoice []MultipleChoiceQuestion `json:"multiple_choice" yaml:"multiple_choice"`
		ShortAnswer    []ShortAnswerQuestion    `json:"short_answer" yaml:"short_answer"`
	}

	PublicMultipleChoiceQuestion struct {
		ID       int      `json:"id"`
		Question string   `json:"question"`
		Options  []string `json:"options"`
	}

	PublicShortAnswerQuestion struct {
		ID       int    `json:"id"`
		Question string `json:"question"`
	}

	// PublicDefinition is a Definition stripped from its correct answers.
	PublicDefinition struct {
		LabID          string                         `json:"lab_id"`
		Title          string                         `json:"title"`
		MaxScore       int                            `json:"max_score"`
		PassThreshold  int                            `json:"pass_threshold"`
		MultipleChoice []PublicMultipleChoiceQuestion `json:"multiple_choice"`
		ShortAnswer    []PublicShortAnswerQuestion    `json:"short_answer"`
	}

	// Answers holds a learner's submission, positionally aligned with the question bank.
	// nil entries are unanswered questions.
	Answers struct {
		MultipleChoice []*int    `json:"multiple_choice"`
		ShortAnswer    []*string `json:"short_answer"`
	}

	// Result is the outcome of scoring one submission.
	Result struct {
		MultipleChoice int  `json:"mc_score"`
		ShortAnswer    int  `json:"sa_score"`
		Total          int  `json:"score"`
		Max            int  `json:"max_score"`
		Passed         bool `json:"passed"`
	}

	Repository interface {
		GetQuiz(ctx context.Context, labID string) (Definition, error)
		PutQuiz(ctx context.Context, def Definition) error
	}
)

// MaxScore is the highest total a submission can reach on this question bank.
func (def Definition) MaxScore() int {
	return len(def.MultipleChoice)*MultipleChoicePoints + len(def.ShortAnswer)*ShortAnswerPoints
}

// Public returns the question bank without the correct answers.
func (def Definition) Public() PublicDefinition {
	pub := PublicDefinition{
		LabID:          def.LabID,
		Title:          def.Title,
		MaxScore:       def.MaxScore(),
		PassThreshold:  PassThreshold,
		MultipleChoice: make([]PublicMultipleChoiceQuestion, 0, len(def.MultipleChoice)),
		ShortAnswer:    make([]PublicShortAnswerQuestion, 0, len(def.ShortAnswer)),
	}
	for _, q := range def.MultipleChoice {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		pub.MultipleChoice = append(pub.MultipleChoice, PublicMultipleChoiceQuestion{ID: q.ID, Question: q.Question, Options: opts})
	}
	for _, q := range def.ShortAnswer {
		pub.ShortAnswer = append(pub.ShortAnswer, PublicShortAnswerQuestion{ID: q.ID, Question: q.Question})
	}
	return pub
}

// Validate checks that the question bank can be scored.
func (def Definition) Validate() error {
	if def.LabID == "" {
		return errors.New("quiz: lab_id is required")
	}
	if !core.IsLabID(def.LabID) {
		return errors.New("quiz: " + core.LabIDText)
	}
	for _, q := range def.MultipleChoice {
		if len(q.Options) == 0 {
			return errors.New("quiz: multiple choice question without options")
		}
		// correct answers are 1-based option positions
		if q.CorrectAnswer < 1 || q.CorrectAnswer > len(q.Options) {
			return fmt.Errorf("quiz: multiple choice question %d: correct_answer %d not in 1..%d", q.ID, q.CorrectAnswer, len(q.Options))
		}
	}
	for _, q := range def.ShortAnswer {
		if q.CorrectAnswer == "" {
			return errors.New("quiz: short answer question without a correct answer")
		}
	}
	return nil
}
