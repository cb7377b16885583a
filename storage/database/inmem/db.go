package inmemdb

import (
	"sync"

	"github.com/trezcool/virtuallab/core/progress"
	"github.com/trezcool/virtuallab/core/quiz"
)

type (
	progressKey struct {
		userID int64
		labID  string
	}

	// DB is a process local store, mostly used by unit tests.
	DB struct {
		progress *progressTable
		quiz     *quizTable
	}

	progressTable struct {
		sync.RWMutex
		table map[progressKey]*progress.Progress
		err   error
	}

	quizTable struct {
		sync.RWMutex
		table map[string]quiz.Definition
		err   error
	}
)

func Open() *DB {
	return &DB{
		progress: &progressTable{table: make(map[progressKey]*progress.Progress)},
		quiz:     &quizTable{table: make(map[string]quiz.Definition)},
	}
}

// FailWith makes every following progress write fail with err; nil restores normal behaviour.
func (db *DB) FailWith(err error) {
	db.progress.Lock()
	defer db.progress.Unlock()
	db.progress.err = err
}

// FailQuizWith makes every following quiz lookup fail with err; nil restores normal behaviour.
func (db *DB) FailQuizWith(err error) {
	db.quiz.Lock()
	defer db.quiz.Unlock()
	db.quiz.err = err
}
