package sqlxrepos_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/virtuallab/core/progress"
	"github.com/trezcool/virtuallab/core/quiz"
	"github.com/trezcool/virtuallab/storage/database"
	"github.com/trezcool/virtuallab/storage/database/sqlxrepos"
	testutil "github.com/trezcool/virtuallab/tests"
)

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func setupProgress(t *testing.T) (progress.Service, progress.Repository, int64) {
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	progRepo := sqlxrepos.NewProgressRepository(db)
	quizRepo := sqlxrepos.NewQuizRepository(db)

	defs, err := database.SeedQuizzes()
	require.NoError(t, err)
	require.NoError(t, database.PutQuizzes(context.Background(), quizRepo, defs...))

	usr := testutil.CreateUser(t, usrRepo, "10222001", "Budi Santoso", "budi@test.id", "")
	return progress.NewService(progRepo, quizRepo), progRepo, usr.ID
}

func TestProgressRepository_Defaults(t *testing.T) {
	svc, repo, uid := setupProgress(t)
	ctx := context.Background()

	_, err := repo.GetProgress(ctx, uid, "quadratic")
	assert.Equal(t, progress.ErrNotFound, err)

	got, err := svc.GetProgress(ctx, uid, "quadratic")
	require.NoError(t, err)
	assert.Equal(t, progress.Default(uid, "quadratic"), got)
}

func TestProgressRepository_SaveCoefficientsAndView(t *testing.T) {
	svc, _, uid := setupProgress(t)
	ctx := context.Background()

	saved, err := svc.SaveCoefficientsAndView(ctx, uid, "quadratic",
		progress.Coefficients{A: 7.3, B: -0.1, C: 1.0000000000000002},
		progress.ViewState{Scale: 1.75, OffsetX: -12.5, OffsetY: 3},
	)
	require.NoError(t, err)
	assert.Equal(t, progress.Coefficients{A: 5, B: -0.1, C: 1.0000000000000002}, saved.Coefficients)
	assert.Equal(t, progress.ViewState{Scale: 1.75, OffsetX: -12.5, OffsetY: 3}, saved.ViewState)
	assert.Zero(t, saved.QuizAttemptCount)
	assert.False(t, saved.QuizScore.Valid)
	assert.Nil(t, saved.QuizAnswers)

	got, err := svc.GetProgress(ctx, uid, "quadratic")
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	// second save overwrites graph state only
	_, err = svc.SubmitQuiz(ctx, uid, "quadratic", quiz.Answers{MultipleChoice: []*int{intPtr(2), intPtr(1), intPtr(3)}})
	require.NoError(t, err)
	again, err := svc.SaveCoefficientsAndView(ctx, uid, "quadratic", progress.Coefficients{A: -2, B: 3, C: -4}, progress.DefaultViewState())
	require.NoError(t, err)
	assert.Equal(t, progress.Coefficients{A: -2, B: 3, C: -4}, again.Coefficients)
	assert.Equal(t, 1, again.QuizAttemptCount)
	assert.Equal(t, 9, again.QuizScore.Int)
	require.NotNil(t, again.QuizAnswers)
	assert.Equal(t, 2, *again.QuizAnswers.MultipleChoice[0])
}

func TestProgressRepository_RecordQuizAttempt(t *testing.T) {
	svc, _, uid := setupProgress(t)
	ctx := context.Background()

	t1 := time.Date(2024, 5, 2, 8, 30, 0, 123456000, time.UTC)
	progress.NowFunc = func() time.Time { return t1 }
	defer func() { progress.NowFunc = time.Now }()

	// 9 points: not passed
	sub, err := svc.SubmitQuiz(ctx, uid, "quadratic", quiz.Answers{
		MultipleChoice: []*int{intPtr(2), intPtr(1), intPtr(3)},
		ShortAnswer:    []*string{nil, nil},
	})
	require.NoError(t, err)
	assert.Equal(t, 9, sub.Result.Total)
	assert.False(t, sub.Result.Passed)
	assert.False(t, sub.Progress.IsCompleted)
	assert.False(t, sub.Progress.CompletedAt.Valid)
	assert.Equal(t, progress.DefaultCoefficients(), sub.Progress.Coefficients)
	assert.Equal(t, t1, sub.Progress.LastAttemptAt.Time)

	// 10 points: passed
	t2 := t1.Add(time.Minute)
	progress.NowFunc = func() time.Time { return t2 }
	sub, err = svc.SubmitQuiz(ctx, uid, "quadratic", quiz.Answers{
		MultipleChoice: []*int{intPtr(2), intPtr(1), nil},
		ShortAnswer:    []*string{strPtr("PARABOLA  "), strPtr("apex")},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, sub.Result.Total)
	assert.True(t, sub.Result.Passed)
	assert.True(t, sub.Progress.IsCompleted)
	assert.Equal(t, t2, sub.Progress.CompletedAt.Time)
	assert.Equal(t, 2, sub.Progress.QuizAttemptCount)

	// full marks later: completedAt stays at the first pass
	progress.NowFunc = func() time.Time { return t2.Add(time.Hour) }
	sub, err = svc.SubmitQuiz(ctx, uid, "quadratic", quiz.Answers{
		MultipleChoice: []*int{intPtr(2), intPtr(1), intPtr(3)},
		ShortAnswer:    []*string{strPtr("parabola"), strPtr("vertex")},
	})
	require.NoError(t, err)
	assert.Equal(t, 17, sub.Result.Total)
	assert.Equal(t, t2, sub.Progress.CompletedAt.Time)

	// regression: score drops, completion does not
	progress.NowFunc = func() time.Time { return t2.Add(2 * time.Hour) }
	sub, err = svc.SubmitQuiz(ctx, uid, "quadratic", quiz.Answers{})
	require.NoError(t, err)
	assert.Equal(t, 0, sub.Progress.QuizScore.Int)
	assert.True(t, sub.Progress.IsCompleted)
	assert.Equal(t, t2, sub.Progress.CompletedAt.Time)
	assert.Equal(t, 4, sub.Progress.QuizAttemptCount)
	assert.Equal(t, &quiz.Answers{}, sub.Progress.QuizAnswers)
}

func TestProgressRepository_ConcurrentAttempts(t *testing.T) {
	svc, _, uid := setupProgress(t)
	ctx := context.Background()

	const n = 2
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.SubmitQuiz(ctx, uid, "quadratic", quiz.Answers{MultipleChoice: []*int{intPtr(i + 1)}})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := svc.GetProgress(ctx, uid, "quadratic")
	require.NoError(t, err)
	assert.Equal(t, n, got.QuizAttemptCount)
	// last writer wins, both are valid outcomes
	assert.Contains(t, []int{0, 3}, got.QuizScore.Int)
}

func TestProgressRepository_Isolation(t *testing.T) {
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	quizRepo := sqlxrepos.NewQuizRepository(db)
	svc := progress.NewService(sqlxrepos.NewProgressRepository(db), quizRepo)
	ctx := context.Background()

	budi := testutil.CreateUser(t, usrRepo, "10222001", "Budi", "budi@test.id", "")
	siti := testutil.CreateUser(t, usrRepo, "10222002", "Siti", "siti@test.id", "")

	_, err := svc.SaveCoefficientsAndView(ctx, budi.ID, "quadratic", progress.Coefficients{A: 2}, progress.DefaultViewState())
	require.NoError(t, err)
	_, err = svc.SaveCoefficientsAndView(ctx, budi.ID, "linear", progress.Coefficients{A: 3}, progress.DefaultViewState())
	require.NoError(t, err)

	got, err := svc.GetProgress(ctx, siti.ID, "quadratic")
	require.NoError(t, err)
	assert.Equal(t, progress.Default(siti.ID, "quadratic"), got)

	progs, err := svc.ListProgress(ctx, budi.ID)
	require.NoError(t, err)
	require.Len(t, progs, 2)
	assert.Equal(t, "linear", progs[0].LabID)
	assert.Equal(t, "quadratic", progs[1].LabID)

	progs, err = svc.ListProgress(ctx, siti.ID)
	require.NoError(t, err)
	assert.Empty(t, progs)
}
