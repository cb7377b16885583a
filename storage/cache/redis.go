package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/virtuallab/core"
	"github.com/trezcool/virtuallab/core/quiz"
)

const quizKeyPrefix = "quiz:"

// NewRedisClient connects to conf.Redis.Addr and pings it.
func NewRedisClient(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// QuizRepository is a read-through cache in front of another quiz.Repository.
// Redis failures are logged and never fail a request: the wrapped repository stays authoritative.
type QuizRepository struct {
	next   quiz.Repository
	client redis.Cmdable
	ttl    time.Duration
	logger core.Logger
}

var _ quiz.Repository = (*QuizRepository)(nil)

func NewQuizRepository(next quiz.Repository, client redis.Cmdable, ttl time.Duration, logger core.Logger) *QuizRepository {
	return &QuizRepository{next: next, client: client, ttl: ttl, logger: logger}
}

// WrapQuizRepository puts a redis cache in front of next when conf.Addr is set.
// An unreachable redis leaves next unwrapped. The returned func releases the client.
func WrapQuizRepository(ctx context.Context, next quiz.Repository, conf core.RedisConfig, logger core.Logger) (quiz.Repository, func()) {
	if conf.Addr == "" {
		return next, func() {}
	}
	client, err := NewRedisClient(ctx, conf)
	if err != nil {
		logger.Warn("quiz cache disabled", err)
		return next, func() {}
	}
	return NewQuizRepository(next, client, conf.QuizTTL, logger), func() { _ = client.Close() }
}

func quizKey(labID string) string {
	return quizKeyPrefix + labID
}

func (repo *QuizRepository) GetQuiz(ctx context.Context, labID string) (quiz.Definition, error) {
	key := quizKey(labID)
	data, err := repo.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var def quiz.Definition
		if err = json.Unmarshal(data, &def); err == nil {
			return def, nil
		}
		repo.logger.Warn("dropping undecodable cached quiz", err, map[string]interface{}{"key": key})
	case err != redis.Nil:
		repo.logger.Warn("reading cached quiz", err, map[string]interface{}{"key": key})
	}

	def, err := repo.next.GetQuiz(ctx, labID)
	if err != nil {
		return quiz.Definition{}, err
	}
	if data, err = json.Marshal(def); err == nil {
		err = repo.client.Set(ctx, key, data, repo.ttl).Err()
	}
	if err != nil {
		repo.logger.Warn("caching quiz", err, map[string]interface{}{"key": key})
	}
	return def, nil
}

func (repo *QuizRepository) PutQuiz(ctx context.Context, def quiz.Definition) error {
	if err := repo.next.PutQuiz(ctx, def); err != nil {
		return err
	}
	if err := repo.client.Del(ctx, quizKey(def.LabID)).Err(); err != nil {
		repo.logger.Warn("evicting cached quiz", err, map[string]interface{}{"key": quizKey(def.LabID)})
	}
	return nil
}
