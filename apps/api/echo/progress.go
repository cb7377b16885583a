package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/virtuallab/core/progress"
	"github.com/trezcool/virtuallab/core/quiz"
)

type progressApi struct {
	svc      progress.Service
	validate *validator.Validate
}

func registerProgressAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := progressApi{
		svc:      deps.ProgressSvc,
		validate: deps.Validate,
	}

	pg := g.Group("/progress", authed...)
	pg.GET("", api.list)
	pg.POST("/save", api.save)
	pg.GET("/:labId", api.retrieve)

	qg := g.Group("/quiz", authed...)
	qg.GET("/:labId", api.quiz)
	qg.POST("/:labId/submit", api.submit)
}

// Handlers

func (api *progressApi) list(ctx echo.Context) error {
	uid, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	progs, err := api.svc.ListProgress(ctx.Request().Context(), uid, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "listing progress")
	}
	if progs == nil {
		progs = []progress.Progress{}
	}
	return ctx.JSON(http.StatusOK, progs)
}

func (api *progressApi) retrieve(ctx echo.Context) error {
	uid, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	prog, err := api.svc.GetProgress(ctx.Request().Context(), uid, ctx.Param("labId"))
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *progressApi) save(ctx echo.Context) error {
	uid, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	data := SaveProgressRequest{
		Coefficients: progress.DefaultCoefficients(),
		ViewState:    progress.DefaultViewState(),
	}
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveProgressRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	prog, err := api.svc.SaveCoefficientsAndView(ctx.Request().Context(), uid, data.LabID, data.Coefficients, data.ViewState)
	if err != nil {
		return errors.Wrap(err, "saving progress")
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *progressApi) quiz(ctx echo.Context) error {
	pub, err := api.svc.GetQuiz(ctx.Request().Context(), ctx.Param("labId"))
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	return ctx.JSON(http.StatusOK, pub)
}

func (api *progressApi) submit(ctx echo.Context) error {
	uid, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	var data SubmitQuizRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitQuizRequest")
	}

	sub, err := api.svc.SubmitQuiz(ctx.Request().Context(), uid, ctx.Param("labId"), data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting quiz")
	}
	return ctx.JSON(http.StatusOK, newSubmitQuizResponse(sub))
}

type (
	// SaveProgressRequest only carries the graph state: scores and completion are never client supplied.
	SaveProgressRequest struct {
		LabID        string                `json:"labId" validate:"required,labid"`
		Coefficients progress.Coefficients `json:"coefficients"`
		ViewState    progress.ViewState    `json:"graph_state"`
	}

	SubmitQuizRequest struct {
		Answers quiz.Answers `json:"answers"`
	}

	SubmitQuizResponse struct {
		quiz.Result
		Attempts int               `json:"attempts"`
		Message  string            `json:"message"`
		Progress progress.Progress `json:"progress"`
	}
)

func newSubmitQuizResponse(sub progress.Submission) SubmitQuizResponse {
	msg := fmt.Sprintf("Nilai kuis Anda: %d/%d", sub.Result.Total, sub.Result.Max)
	if sub.Result.Passed {
		msg += " - Selamat! Anda telah lulus."
	}
	return SubmitQuizResponse{
		Result:   sub.Result,
		Attempts: sub.Progress.QuizAttemptCount,
		Message:  msg,
		Progress: sub.Progress,
	}
}
