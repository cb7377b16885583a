package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/virtuallab/core"
	"github.com/trezcool/virtuallab/core/quiz"
	inmemdb "github.com/trezcool/virtuallab/storage/database/inmem"
)

type nopLogger struct {
	warned int
}

func (l *nopLogger) Debug(string, ...interface{}) {}
func (l *nopLogger) Info(string, ...interface{})  {}
func (l *nopLogger) Warn(string, ...interface{})  { l.warned++ }
func (l *nopLogger) Error(string, ...interface{}) {}
func (l *nopLogger) Fatal(string, ...interface{}) {}

var _ core.Logger = (*nopLogger)(nil)

// mapRedis keeps GET/SET/DEL in a map; any other command panics on the nil Cmdable.
type mapRedis struct {
	redis.Cmdable
	data map[string][]byte
}

func newMapRedis() *mapRedis {
	return &mapRedis{data: make(map[string][]byte)}
}

func (r *mapRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := r.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (r *mapRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	r.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func (r *mapRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := r.data[key]; ok {
			delete(r.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func intPtr(i int) *int { return &i }

func linearQuiz(labID string) quiz.Definition {
	return quiz.Definition{
		LabID: labID,
		Title: "Fungsi Linear",
		MultipleChoice: []quiz.MultipleChoiceQuestion{
			{ID: 1, Question: "Gradien y = 2x + 1?", Options: []string{"1", "2"}, CorrectAnswer: 2},
		},
	}
}

func TestQuizRepository_PutEvictsAnswerKey(t *testing.T) {
	ctx := context.Background()
	client := newMapRedis()
	logger := &nopLogger{}
	repo := NewQuizRepository(inmemdb.NewQuizRepository(inmemdb.Open()), client, time.Minute, logger)

	def := linearQuiz("linear")
	require.NoError(t, repo.PutQuiz(ctx, def))
	got, err := repo.GetQuiz(ctx, "linear")
	require.NoError(t, err)
	assert.Equal(t, 2, got.MultipleChoice[0].CorrectAnswer)
	assert.Contains(t, client.data, quizKey("linear"))

	def.MultipleChoice[0].CorrectAnswer = 1
	require.NoError(t, repo.PutQuiz(ctx, def))
	assert.NotContains(t, client.data, quizKey("linear"))

	got, err = repo.GetQuiz(ctx, "linear")
	require.NoError(t, err)
	assert.Equal(t, 1, got.MultipleChoice[0].CorrectAnswer)
	assert.Equal(t, quiz.Result{MultipleChoice: 3, Total: 3, Max: 3}, quiz.Score(
		quiz.Answers{MultipleChoice: []*int{intPtr(1)}}, got,
	))
	assert.Zero(t, logger.warned)
}

func TestWrapQuizRepository(t *testing.T) {
	ctx := context.Background()
	next := inmemdb.NewQuizRepository(inmemdb.Open())

	tests := []struct {
		name       string
		conf       core.RedisConfig
		wantWarned int
	}{
		{name: "disabled", conf: core.RedisConfig{}},
		{name: "unreachable", conf: core.RedisConfig{Addr: "127.0.0.1:1"}, wantWarned: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &nopLogger{}
			repo, closeCache := WrapQuizRepository(ctx, next, tt.conf, logger)
			defer closeCache()

			assert.Equal(t, next, repo)
			assert.Equal(t, tt.wantWarned, logger.warned)
		})
	}
}

func TestQuizRepository_Redis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, core.RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("NewRedisClient() failed: %v", err)
	}
	defer client.Close()

	labID := fmt.Sprintf("lab-%s", uuid.NewString()[:8])
	defer client.Del(ctx, quizKey(labID))

	db := inmemdb.Open()
	logger := &nopLogger{}
	repo := NewQuizRepository(inmemdb.NewQuizRepository(db), client, time.Minute, logger)

	_, err = repo.GetQuiz(ctx, labID)
	assert.Equal(t, quiz.ErrNotFound, err)

	def := linearQuiz(labID)
	require.NoError(t, repo.PutQuiz(ctx, def))

	got, err := repo.GetQuiz(ctx, labID)
	require.NoError(t, err)
	assert.Equal(t, def, got)
	exists, err := client.Exists(ctx, quizKey(labID)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	// served from cache even when the backing store fails
	db.FailQuizWith(fmt.Errorf("db down"))
	got, err = repo.GetQuiz(ctx, labID)
	require.NoError(t, err)
	assert.Equal(t, def, got)
	db.FailQuizWith(nil)

	// writes evict
	def.Title = "Fungsi Linear 2"
	require.NoError(t, repo.PutQuiz(ctx, def))
	got, err = repo.GetQuiz(ctx, labID)
	require.NoError(t, err)
	assert.Equal(t, "Fungsi Linear 2", got.Title)
	assert.Zero(t, logger.warned)
}

func TestQuizRepository_RedisDown(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	db := inmemdb.Open()
	logger := &nopLogger{}
	repo := NewQuizRepository(inmemdb.NewQuizRepository(db), client, time.Minute, logger)

	def := linearQuiz("linear")
	require.NoError(t, repo.PutQuiz(ctx, def))
	got, err := repo.GetQuiz(ctx, "linear")
	require.NoError(t, err)
	assert.Equal(t, def, got)
	assert.Equal(t, 3, logger.warned) // evict, read, write
}
