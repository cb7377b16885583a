package main

import (
	"context"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/trezcool/virtuallab/core"
	"github.com/trezcool/virtuallab/core/user"
	logsvc "github.com/trezcool/virtuallab/services/logger"
	"github.com/trezcool/virtuallab/storage/cache"
	"github.com/trezcool/virtuallab/storage/database"
	"github.com/trezcool/virtuallab/storage/database/sqlxrepos"
)

func main() {
	conf := core.NewConfig()

	zl, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	logger := zl.Named("ADMIN").Sugar()

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatalf("creating database: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatalf("opening database: %v", err)
	}

	// loaded quizzes must evict what the API instances have cached
	cacheLogger := logsvc.NewRollbarLogger(zl, "CACHE", conf)
	cacheLogger.Enable(false)
	quizRepo, closeCache := cache.WrapQuizRepository(context.Background(), sqlxrepos.NewQuizRepository(db), conf.Redis, cacheLogger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:       db,
		usrSvc:   user.NewService(sqlxrepos.NewUserRepository(db)),
		quizRepo: quizRepo,
		validate: validate,
	}
	err = cli.run(os.Args)
	closeCache()
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Errorf("error: %v", err)
		}
		os.Exit(1)
	}
}
