package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/virtuallab/core"
	"github.com/trezcool/virtuallab/core/quiz"
)

const (
	selectQuizSQL = `SELECT lab_id, title, question_bank FROM quizzes WHERE lab_id = ?`

	upsertQuizSQL = `
		INSERT INTO quizzes (lab_id, title, question_bank, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (lab_id) DO UPDATE SET
			title = EXCLUDED.title,
			question_bank = EXCLUDED.question_bank,
			updated_at = EXCLUDED.updated_at`
)

type (
	quizRow struct {
		LabID        string `db:"lab_id"`
		Title        string `db:"title"`
		QuestionBank string `db:"question_bank"`
	}

	questionBank struct {
		MultipleChoice []quiz.MultipleChoiceQuestion `json:"multiple_choice"`
		ShortAnswer    []quiz.ShortAnswerQuestion    `json:"short_answer"`
	}

	quizRepository struct {
		db core.DB
	}
)

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db core.DB) quiz.Repository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) GetQuiz(ctx context.Context, labID string) (quiz.Definition, error) {
	var row quizRow
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(selectQuizSQL), labID); err != nil {
		if err == sql.ErrNoRows {
			return quiz.Definition{}, quiz.ErrNotFound
		}
		return quiz.Definition{}, errors.Wrap(err, "selecting quiz")
	}

	var bank questionBank
	if err := json.Unmarshal([]byte(row.QuestionBank), &bank); err != nil {
		return quiz.Definition{}, errors.Wrap(err, "decoding question bank")
	}
	return quiz.Definition{
		LabID:          row.LabID,
		Title:          row.Title,
		MultipleChoice: bank.MultipleChoice,
		ShortAnswer:    bank.ShortAnswer,
	}, nil
}

func (repo *quizRepository) PutQuiz(ctx context.Context, def quiz.Definition) error {
	bank, err := encodeJSON(questionBank{MultipleChoice: def.MultipleChoice, ShortAnswer: def.ShortAnswer})
	if err != nil {
		return errors.Wrap(err, "encoding question bank")
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(upsertQuizSQL), def.LabID, def.Title, bank, now); err != nil {
		return errors.Wrap(err, "upserting quiz")
	}
	return nil
}
