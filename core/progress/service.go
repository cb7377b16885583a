package progress

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/virtuallab/core"
	"github.com/trezcool/virtuallab/core/quiz"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound = errors.New("progress not found")

	orderableFields = map[string]bool{
		"lab_id":          true,
		"quiz_score":      true,
		"completed_at":    true,
		"last_modified":   true,
		"last_attempt_at": true,
	}
)

const (
	msgLoadFailed   = "failed to load progress"
	msgSaveFailed   = "failed to save progress"
	msgSubmitFailed = "failed to submit quiz"
	msgQuizFailed   = "failed to load quiz"
)

type (
	Repository interface {
		// GetProgress returns ErrNotFound when the user never touched the lab.
		GetProgress(ctx context.Context, userID int64, labID string) (Progress, error)
		ListProgress(ctx context.Context, userID int64, orderings ...core.DBOrdering) ([]Progress, error)
		// SaveCoefficientsAndView upserts the graph state only; quiz columns are left untouched.
		SaveCoefficientsAndView(ctx context.Context, userID int64, labID string, coefs Coefficients, view ViewState, at time.Time) (Progress, error)
		// RecordQuizAttempt upserts the attempt atomically, incrementing the attempt counter in place.
		RecordQuizAttempt(ctx context.Context, attempt Attempt) (Progress, error)
	}

	Service interface {
		GetProgress(ctx context.Context, userID int64, labID string) (Progress, error)
		ListProgress(ctx context.Context, userID int64, orderings ...core.DBOrdering) ([]Progress, error)
		SaveCoefficientsAndView(ctx context.Context, userID int64, labID string, coefs Coefficients, view ViewState) (Progress, error)
		RecordQuizAttempt(ctx context.Context, userID int64, labID string, answers quiz.Answers, score int) (Progress, error)
		SubmitQuiz(ctx context.Context, userID int64, labID string, answers quiz.Answers) (Submission, error)
		GetQuiz(ctx context.Context, labID string) (quiz.PublicDefinition, error)
	}

	service struct {
		repo     Repository
		quizRepo quiz.Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, quizRepo quiz.Repository) Service {
	return &service{repo: repo, quizRepo: quizRepo}
}

func now() time.Time {
	return NowFunc().UTC().Truncate(time.Microsecond)
}

func validateKey(userID int64, labID string) error {
	var flds []core.FieldError
	if userID <= 0 {
		flds = append(flds, core.FieldError{Field: "userId", Error: "userId required"})
	}
	if labID == "" {
		flds = append(flds, core.FieldError{Field: "labId", Error: "labId required"})
	} else if !core.IsLabID(labID) {
		flds = append(flds, core.FieldError{Field: "labId", Error: core.LabIDText})
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// validateGraph rejects non-finite numbers and a non-positive scale.
func validateGraph(coefs Coefficients, view ViewState) error {
	var flds []core.FieldError
	check := func(field string, v float64) {
		if !finite(v) {
			flds = append(flds, core.FieldError{Field: field, Error: field + " must be a finite number"})
		}
	}
	check("coefficients.a", coefs.A)
	check("coefficients.b", coefs.B)
	check("coefficients.c", coefs.C)
	check("graph_state.scale", view.Scale)
	check("graph_state.offsetX", view.OffsetX)
	check("graph_state.offsetY", view.OffsetY)
	if finite(view.Scale) && view.Scale <= 0 {
		flds = append(flds, core.FieldError{Field: "graph_state.scale", Error: "graph_state.scale must be greater than 0"})
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (svc *service) GetProgress(ctx context.Context, userID int64, labID string) (Progress, error) {
	if err := validateKey(userID, labID); err != nil {
		return Progress{}, err
	}
	prog, err := svc.repo.GetProgress(ctx, userID, labID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Default(userID, labID), nil
		}
		return Progress{}, core.NewStorageError(msgLoadFailed, errors.Wrap(err, "getting progress"))
	}
	return prog, nil
}

func (svc *service) ListProgress(ctx context.Context, userID int64, orderings ...core.DBOrdering) ([]Progress, error) {
	if userID <= 0 {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "userId", Error: "userId required"})
	}
	for _, ord := range orderings {
		if !orderableFields[ord.Field] {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "ordering", Error: "cannot order by " + ord.Field})
		}
	}
	progs, err := svc.repo.ListProgress(ctx, userID, orderings...)
	if err != nil {
		return nil, core.NewStorageError(msgLoadFailed, errors.Wrap(err, "listing progress"))
	}
	return progs, nil
}

func (svc *service) SaveCoefficientsAndView(ctx context.Context, userID int64, labID string, coefs Coefficients, view ViewState) (Progress, error) {
	if err := validateKey(userID, labID); err != nil {
		return Progress{}, err
	}
	if err := validateGraph(coefs, view); err != nil {
		return Progress{}, err
	}
	prog, err := svc.repo.SaveCoefficientsAndView(ctx, userID, labID, coefs.Clamp(), view, now())
	if err != nil {
		return Progress{}, core.NewStorageError(msgSaveFailed, errors.Wrap(err, "saving coefficients and view"))
	}
	return prog, nil
}

func (svc *service) RecordQuizAttempt(ctx context.Context, userID int64, labID string, answers quiz.Answers, score int) (Progress, error) {
	if err := validateKey(userID, labID); err != nil {
		return Progress{}, err
	}
	if score < 0 {
		return Progress{}, core.NewValidationError(nil, core.FieldError{Field: "score", Error: "score cannot be negative"})
	}
	prog, err := svc.repo.RecordQuizAttempt(ctx, Attempt{
		UserID:  userID,
		LabID:   labID,
		Answers: answers,
		Score:   score,
		Passed:  score >= quiz.PassThreshold,
		At:      now(),
	})
	if err != nil {
		return Progress{}, core.NewStorageError(msgSubmitFailed, errors.Wrap(err, "recording quiz attempt"))
	}
	return prog, nil
}

func (svc *service) getDefinition(ctx context.Context, labID string) (quiz.Definition, error) {
	def, err := svc.quizRepo.GetQuiz(ctx, labID)
	if err != nil {
		if errors.Cause(err) == quiz.ErrNotFound {
			return quiz.Definition{}, core.NewNotFoundError("quiz")
		}
		return quiz.Definition{}, core.NewStorageError(msgQuizFailed, errors.Wrap(err, "getting quiz"))
	}
	return def, nil
}

// SubmitQuiz scores answers against the lab's question bank and records the attempt.
// The submission is only reported once the attempt is persisted.
func (svc *service) SubmitQuiz(ctx context.Context, userID int64, labID string, answers quiz.Answers) (Submission, error) {
	if err := validateKey(userID, labID); err != nil {
		return Submission{}, err
	}
	def, err := svc.getDefinition(ctx, labID)
	if err != nil {
		return Submission{}, err
	}

	res := quiz.Score(answers, def)
	prog, err := svc.RecordQuizAttempt(ctx, userID, labID, answers, res.Total)
	if err != nil {
		return Submission{}, err
	}
	return Submission{Result: res, Progress: prog}, nil
}

func (svc *service) GetQuiz(ctx context.Context, labID string) (quiz.PublicDefinition, error) {
	if labID == "" {
		return quiz.PublicDefinition{}, core.NewValidationError(nil, core.FieldError{Field: "labId", Error: "labId required"})
	}
	if !core.IsLabID(labID) {
		return quiz.PublicDefinition{}, core.NewValidationError(nil, core.FieldError{Field: "labId", Error: core.LabIDText})
	}
	def, err := svc.getDefinition(ctx, labID)
	if err != nil {
		return quiz.PublicDefinition{}, err
	}
	return def.Public(), nil
}
