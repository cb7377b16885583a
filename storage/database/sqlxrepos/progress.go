package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/virtuallab/core"
	"github.com/trezcool/virtuallab/core/progress"
	"github.com/trezcool/virtuallab/core/quiz"
)

const (
	progressColumns = `user_id, lab_id, coefficients, view_state, quiz_answers, quiz_score, quiz_attempt_count,
		is_completed, completed_at, last_modified, last_attempt_at`

	selectProgressSQL = `SELECT ` + progressColumns + ` FROM lab_progress WHERE user_id = ? AND lab_id = ?`

	saveCoefficientsSQL = `
		INSERT INTO lab_progress (user_id, lab_id, coefficients, view_state, quiz_attempt_count, is_completed, last_modified, created_at)
		VALUES (?, ?, ?, ?, 0, FALSE, ?, ?)
		ON CONFLICT (user_id, lab_id) DO UPDATE SET
			coefficients = EXCLUDED.coefficients,
			view_state = EXCLUDED.view_state,
			last_modified = EXCLUDED.last_modified`

	// the counter is incremented in place and completion is sticky
	recordAttemptSQL = `
		INSERT INTO lab_progress (user_id, lab_id, coefficients, view_state, quiz_answers, quiz_score, quiz_attempt_count,
			is_completed, completed_at, last_modified, last_attempt_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, lab_id) DO UPDATE SET
			quiz_answers = EXCLUDED.quiz_answers,
			quiz_score = EXCLUDED.quiz_score,
			quiz_attempt_count = lab_progress.quiz_attempt_count + 1,
			is_completed = lab_progress.is_completed OR EXCLUDED.is_completed,
			completed_at = COALESCE(lab_progress.completed_at, EXCLUDED.completed_at),
			last_modified = EXCLUDED.last_modified,
			last_attempt_at = EXCLUDED.last_attempt_at`
)

var orderableColumns = map[string]bool{
	"lab_id":          true,
	"quiz_score":      true,
	"completed_at":    true,
	"last_modified":   true,
	"last_attempt_at": true,
}

type progressRow struct {
	UserID           int64     `db:"user_id"`
	LabID            string    `db:"lab_id"`
	Coefficients     string    `db:"coefficients"`
	ViewState        string    `db:"view_state"`
	QuizAnswers      null.JSON `db:"quiz_answers"`
	QuizScore        null.Int  `db:"quiz_score"`
	QuizAttemptCount int       `db:"quiz_attempt_count"`
	IsCompleted      bool      `db:"is_completed"`
	CompletedAt      null.Time `db:"completed_at"`
	LastModified     null.Time `db:"last_modified"`
	LastAttemptAt    null.Time `db:"last_attempt_at"`
}

func (row progressRow) toModel() (progress.Progress, error) {
	prog := progress.Progress{
		UserID:           row.UserID,
		LabID:            row.LabID,
		QuizScore:        row.QuizScore,
		QuizAttemptCount: row.QuizAttemptCount,
		CompletedAt:      row.CompletedAt,
		LastModified:     row.LastModified,
		LastAttemptAt:    row.LastAttemptAt,
	}
	if err := json.Unmarshal([]byte(row.Coefficients), &prog.Coefficients); err != nil {
		return progress.Progress{}, errors.Wrap(err, "decoding coefficients")
	}
	if err := json.Unmarshal([]byte(row.ViewState), &prog.ViewState); err != nil {
		return progress.Progress{}, errors.Wrap(err, "decoding view state")
	}
	if row.QuizAnswers.Valid && len(row.QuizAnswers.JSON) > 0 {
		var ans quiz.Answers
		if err := json.Unmarshal(row.QuizAnswers.JSON, &ans); err != nil {
			return progress.Progress{}, errors.Wrap(err, "decoding quiz answers")
		}
		prog.QuizAnswers = &ans
	}
	// completion is derived from the first passing attempt
	prog.IsCompleted = row.CompletedAt.Valid
	prog.CompletedAt.Time = prog.CompletedAt.Time.UTC()
	prog.LastModified.Time = prog.LastModified.Time.UTC()
	prog.LastAttemptAt.Time = prog.LastAttemptAt.Time.UTC()
	return prog, nil
}

func encodeJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type progressRepository struct {
	db core.DB
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db core.DB) progress.Repository {
	return &progressRepository{db: db}
}

func getProgress(ctx context.Context, exec core.DBExecutor, userID int64, labID string) (progress.Progress, error) {
	var row progressRow
	if err := exec.GetContext(ctx, &row, exec.Rebind(selectProgressSQL), userID, labID); err != nil {
		if err == sql.ErrNoRows {
			return progress.Progress{}, progress.ErrNotFound
		}
		return progress.Progress{}, errors.Wrap(err, "selecting lab progress")
	}
	return row.toModel()
}

func (repo *progressRepository) GetProgress(ctx context.Context, userID int64, labID string) (progress.Progress, error) {
	return getProgress(ctx, repo.db, userID, labID)
}

func (repo *progressRepository) ListProgress(ctx context.Context, userID int64, orderings ...core.DBOrdering) ([]progress.Progress, error) {
	orderBy := make([]string, 0, len(orderings)+1)
	for _, ord := range orderings {
		if !orderableColumns[ord.Field] {
			return nil, errors.Errorf("cannot order lab progress by %q", ord.Field)
		}
		orderBy = append(orderBy, ord.String())
	}
	orderBy = append(orderBy, "lab_id ASC")

	q := `SELECT ` + progressColumns + ` FROM lab_progress WHERE user_id = ? ORDER BY ` + strings.Join(orderBy, ", ")
	var rows []progressRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), userID); err != nil {
		return nil, errors.Wrap(err, "selecting lab progress")
	}

	progs := make([]progress.Progress, 0, len(rows))
	for _, row := range rows {
		prog, err := row.toModel()
		if err != nil {
			return nil, err
		}
		progs = append(progs, prog)
	}
	return progs, nil
}

func (repo *progressRepository) SaveCoefficientsAndView(
	ctx context.Context,
	userID int64,
	labID string,
	coefs progress.Coefficients,
	view progress.ViewState,
	at time.Time,
) (progress.Progress, error) {
	coefsJSON, err := encodeJSON(coefs)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "encoding coefficients")
	}
	viewJSON, err := encodeJSON(view)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "encoding view state")
	}

	var prog progress.Progress
	err = inTx(ctx, repo.db, func(tx core.DBTransactor) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(saveCoefficientsSQL), userID, labID, coefsJSON, viewJSON, at, at); err != nil {
			return errors.Wrap(err, "upserting coefficients and view")
		}
		prog, err = getProgress(ctx, tx, userID, labID)
		return err
	})
	return prog, err
}

func (repo *progressRepository) RecordQuizAttempt(ctx context.Context, attempt progress.Attempt) (progress.Progress, error) {
	coefsJSON, err := encodeJSON(progress.DefaultCoefficients())
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "encoding coefficients")
	}
	viewJSON, err := encodeJSON(progress.DefaultViewState())
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "encoding view state")
	}
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "encoding quiz answers")
	}

	var completedAt null.Time
	if attempt.Passed {
		completedAt = null.TimeFrom(attempt.At)
	}

	var prog progress.Progress
	err = inTx(ctx, repo.db, func(tx core.DBTransactor) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(recordAttemptSQL),
			attempt.UserID, attempt.LabID, coefsJSON, viewJSON,
			null.JSONFrom(answers), attempt.Score, attempt.Passed, completedAt,
			attempt.At, attempt.At, attempt.At,
		)
		if err != nil {
			return errors.Wrap(err, "upserting quiz attempt")
		}
		prog, err = getProgress(ctx, tx, attempt.UserID, attempt.LabID)
		return err
	})
	return prog, err
}
