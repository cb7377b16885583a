package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/virtuallab/apps/api/echo"
	"github.com/trezcool/virtuallab/core"
	"github.com/trezcool/virtuallab/core/progress"
	"github.com/trezcool/virtuallab/core/quiz"
	"github.com/trezcool/virtuallab/core/user"
	"github.com/trezcool/virtuallab/services/jobs"
	logsvc "github.com/trezcool/virtuallab/services/logger"
	"github.com/trezcool/virtuallab/storage/cache"
	"github.com/trezcool/virtuallab/storage/database"
	"github.com/trezcool/virtuallab/storage/database/sqlxrepos"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, "API", conf)
	logger.Enable(!conf.Debug)
	defer logger.Sync()

	dbLogger := logsvc.NewRollbarLogger(zl, "DB", conf)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up repos
	usrRepo := sqlxrepos.NewUserRepository(db)
	// writes go through the cache so seeding evicts stale definitions
	quizRepo, closeCache := cache.WrapQuizRepository(context.Background(), sqlxrepos.NewQuizRepository(db), conf.Redis, logger)
	defer closeCache()

	if conf.QuizSeedOnStart {
		if err = seedQuizzes(quizRepo); err != nil {
			logger.Fatal(fmt.Sprintf("seeding quizzes: %v", err), err)
		}
	}

	// set up services
	usrSvc := user.NewService(usrRepo)
	progSvc := progress.NewService(sqlxrepos.NewProgressRepository(db), quizRepo)

	scheduler := jobs.NewScheduler(usrSvc, logger)
	if err = scheduler.Start(conf.PurgeJobsInterval); err != nil {
		logger.Fatal(fmt.Sprintf("starting jobs: %v", err), err)
	}
	defer scheduler.Stop()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			UserSvc:     usrSvc,
			ProgressSvc: progSvc,
			Validate:    validate,
			Translator:  translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func seedQuizzes(repo quiz.Repository) error {
	defs, err := database.SeedQuizzes()
	if err != nil {
		return err
	}
	return database.PutQuizzes(context.Background(), repo, defs...)
}
