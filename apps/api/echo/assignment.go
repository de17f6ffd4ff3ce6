package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/classroom"
)

type assignmentApi struct {
	*server
	svc *assignment.Service
}

func registerAssignmentAPI(g *echo.Group, auth []echo.MiddlewareFunc, s *server) {
	api := assignmentApi{server: s, svc: s.opts.AssignmentSvc}

	ag := g.Group("/assignments", auth...)
	ag.POST("", api.create)
	ag.GET("/class/:classId", api.queryByClass)

	// submissions
	ag.GET("/submissions/my", api.querySubmissionsMine)
	ag.GET("/submissions/:id", api.retrieveSubmission)
	ag.POST("/submissions/:id/grade", api.grade)
	ag.POST("/submissions/:id/return", api.returnSubmission)

	// detail endpoints
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.POST("/:id/submit", api.submit)
	ag.GET("/:id/submissions", api.querySubmissions)
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data assignment.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err = data.Validate(api.opts.Validate); err != nil {
		return err
	}

	asg, err := api.svc.Create(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *assignmentApi) queryByClass(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	page := new(Pagination)
	if err = page.Bind(ctx); err != nil {
		return err
	}
	q := classroom.AssignmentQuery{Status: statusParams[classroom.AssignmentStatus](ctx)}

	assignments, total, err := api.svc.ListByClass(ctx.Request().Context(), caller, ctx.Param("classId"), q, page.Pagination)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	if assignments == nil {
		assignments = []classroom.Assignment{}
	}
	page.SetHeaders(ctx, total)
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	asg, err := api.svc.Get(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data assignment.UpdateAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err = data.Validate(api.opts.Validate); err != nil {
		return err
	}

	asg, err := api.svc.Update(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data assignment.SubmitAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAssignment")
	}
	if err = data.Validate(api.opts.Validate); err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	api.metrics.submission(string(sub.Status))
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assignmentApi) querySubmissions(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	q := classroom.SubmissionQuery{Status: statusParams[classroom.SubmissionStatus](ctx)}

	subs, err := api.svc.ListSubmissions(ctx.Request().Context(), caller, ctx.Param("id"), q)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) querySubmissionsMine(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	page := new(Pagination)
	if err = page.Bind(ctx); err != nil {
		return err
	}
	q := classroom.SubmissionQuery{Status: statusParams[classroom.SubmissionStatus](ctx)}

	subs, total, err := api.svc.MySubmissions(ctx.Request().Context(), caller, q, page.Pagination)
	if err != nil {
		return errors.Wrap(err, "listing my submissions")
	}
	if subs == nil {
		subs = []assignment.MySubmission{}
	}
	page.SetHeaders(ctx, total)
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) retrieveSubmission(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	sub, err := api.svc.GetSubmission(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assignmentApi) grade(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data assignment.GradeSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err = data.Validate(api.opts.Validate); err != nil {
		return err
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	api.metrics.submission(string(sub.Status))
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assignmentApi) returnSubmission(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	sub, err := api.svc.Return(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "returning submission")
	}
	api.metrics.submission(string(sub.Status))
	return ctx.JSON(http.StatusOK, sub)
}
