package inmemdb

import (
	"context"

	"github.com/trezcool/virtuallab/core/quiz"
)

type quizRepository struct {
	db *quizTable
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db.quiz}
}

func (repo *quizRepository) GetQuiz(_ context.Context, labID string) (quiz.Definition, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if repo.db.err != nil {
		return quiz.Definition{}, repo.db.err
	}
	if def, ok := repo.db.table[labID]; ok {
		return def, nil
	}
	return quiz.Definition{}, quiz.ErrNotFound
}

func (repo *quizRepository) PutQuiz(_ context.Context, def quiz.Definition) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[def.LabID] = def
	return nil
}
