package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/virtuallab/core"
	"github.com/trezcool/virtuallab/core/progress"
	"github.com/trezcool/virtuallab/core/quiz"
)

type progressRepository struct {
	db *progressTable
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress}
}

func copyAnswers(ans *quiz.Answers) *quiz.Answers {
	if ans == nil {
		return nil
	}
	cp := quiz.Answers{
		MultipleChoice: make([]*int, len(ans.MultipleChoice)),
		ShortAnswer:    make([]*string, len(ans.ShortAnswer)),
	}
	for i, v := range ans.MultipleChoice {
		if v != nil {
			val := *v
			cp.MultipleChoice[i] = &val
		}
	}
	for i, v := range ans.ShortAnswer {
		if v != nil {
			val := *v
			cp.ShortAnswer[i] = &val
		}
	}
	return &cp
}

func clone(p *progress.Progress) progress.Progress {
	cp := *p
	cp.QuizAnswers = copyAnswers(p.QuizAnswers)
	return cp
}

func (repo *progressRepository) GetProgress(_ context.Context, userID int64, labID string) (progress.Progress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[progressKey{userID, labID}]; ok {
		return clone(p), nil
	}
	return progress.Progress{}, progress.ErrNotFound
}

func (repo *progressRepository) ListProgress(_ context.Context, userID int64, orderings ...core.DBOrdering) ([]progress.Progress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	progs := make([]progress.Progress, 0)
	for key, p := range repo.db.table {
		if key.userID == userID {
			progs = append(progs, clone(p))
		}
	}
	less, err := orderingLess(orderings)
	if err != nil {
		return nil, err
	}
	sort.Slice(progs, func(i, j int) bool { return less(progs[i], progs[j]) })
	return progs, nil
}

// compare funcs return <0, 0 or >0; NULLs sort first, as sqlite does.
var progressComparers = map[string]func(a, b progress.Progress) int{
	"lab_id": func(a, b progress.Progress) int { return strings.Compare(a.LabID, b.LabID) },
	"quiz_score": func(a, b progress.Progress) int {
		if c := compareValid(a.QuizScore.Valid, b.QuizScore.Valid); c != 0 || !a.QuizScore.Valid {
			return c
		}
		return a.QuizScore.Int - b.QuizScore.Int
	},
	"completed_at":    func(a, b progress.Progress) int { return compareTime(a.CompletedAt, b.CompletedAt) },
	"last_modified":   func(a, b progress.Progress) int { return compareTime(a.LastModified, b.LastModified) },
	"last_attempt_at": func(a, b progress.Progress) int { return compareTime(a.LastAttemptAt, b.LastAttemptAt) },
}

func compareValid(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func compareTime(a, b null.Time) int {
	if c := compareValid(a.Valid, b.Valid); c != 0 || !a.Valid {
		return c
	}
	switch {
	case a.Time.Before(b.Time):
		return -1
	case a.Time.After(b.Time):
		return 1
	}
	return 0
}

func orderingLess(orderings []core.DBOrdering) (func(a, b progress.Progress) bool, error) {
	orderings = append(append([]core.DBOrdering(nil), orderings...), core.DBOrdering{Field: "lab_id", Ascending: true})
	for _, ord := range orderings {
		if progressComparers[ord.Field] == nil {
			return nil, errors.Errorf("cannot order lab progress by %q", ord.Field)
		}
	}
	return func(a, b progress.Progress) bool {
		for _, ord := range orderings {
			c := progressComparers[ord.Field](a, b)
			if !ord.Ascending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	}, nil
}

func (repo *progressRepository) getOrCreate(userID int64, labID string) *progress.Progress {
	key := progressKey{userID, labID}
	p, ok := repo.db.table[key]
	if !ok {
		def := progress.Default(userID, labID)
		p = &def
		repo.db.table[key] = p
	}
	return p
}

func (repo *progressRepository) SaveCoefficientsAndView(
	_ context.Context,
	userID int64,
	labID string,
	coefs progress.Coefficients,
	view progress.ViewState,
	at time.Time,
) (progress.Progress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.err != nil {
		return progress.Progress{}, repo.db.err
	}
	p := repo.getOrCreate(userID, labID)
	p.Coefficients = coefs
	p.ViewState = view
	p.LastModified = null.TimeFrom(at)
	return clone(p), nil
}

func (repo *progressRepository) RecordQuizAttempt(_ context.Context, attempt progress.Attempt) (progress.Progress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.err != nil {
		return progress.Progress{}, repo.db.err
	}
	p := repo.getOrCreate(attempt.UserID, attempt.LabID)
	p.QuizAnswers = copyAnswers(&attempt.Answers)
	p.QuizScore = null.IntFrom(attempt.Score)
	p.QuizAttemptCount++
	p.LastModified = null.TimeFrom(attempt.At)
	p.LastAttemptAt = null.TimeFrom(attempt.At)
	if attempt.Passed && !p.CompletedAt.Valid {
		p.CompletedAt = null.TimeFrom(attempt.At)
	}
	p.IsCompleted = p.CompletedAt.Valid
	return clone(p), nil
}
