package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/classroom"
)

type classApi struct {
	*server
	svc *class.Service
}

func registerClassAPI(g *echo.Group, auth []echo.MiddlewareFunc, limit echo.MiddlewareFunc, s *server) {
	api := classApi{server: s, svc: s.opts.ClassSvc}

	cg := g.Group("/classes", auth...)
	cg.POST("", api.create)
	cg.GET("/my", api.queryMine)
	cg.POST("/join", api.join, limit)

	// detail endpoints
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.POST("/:id/invite-code", api.rotateInviteCode)
	cg.GET("/:id/enrollments", api.queryMembers)
	cg.POST("/:id/users", api.addMember)
	cg.PUT("/:id/users/:userId", api.updateMember)
	cg.DELETE("/:id/users/:userId", api.removeMember)
}

// Handlers

func (api *classApi) create(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data class.NewClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err = data.Validate(api.opts.Validate); err != nil {
		return err
	}

	cls, err := api.svc.Create(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	api.metrics.classEvent("created")
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classApi) queryMine(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	page := new(Pagination)
	if err = page.Bind(ctx); err != nil {
		return err
	}
	q := classroom.ClassQuery{
		Search: core.CleanString(ctx.QueryParam("search")),
		Status: statusParams[classroom.ClassStatus](ctx),
	}

	classes, total, err := api.svc.ListMine(ctx.Request().Context(), caller, q, page.Pagination)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []classroom.Class{}
	}
	page.SetHeaders(ctx, total)
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) join(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data class.JoinClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinClass")
	}
	if err = data.Validate(api.opts.Validate); err != nil {
		return err
	}

	cls, enr, err := api.svc.Join(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "joining class")
	}
	api.metrics.classEvent("joined")
	return ctx.JSON(http.StatusCreated, JoinResponse{Class: cls, Enrollment: enr})
}

func (api *classApi) retrieve(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	details, err := api.svc.Get(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	return ctx.JSON(http.StatusOK, details)
}

func (api *classApi) update(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data class.UpdateClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err = data.Validate(api.opts.Validate); err != nil {
		return err
	}

	cls, err := api.svc.Update(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) rotateInviteCode(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	cls, err := api.svc.RotateInviteCode(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "rotating invite code")
	}
	return ctx.JSON(http.StatusOK, InviteCodeResponse{
		InviteCode: cls.InviteCode,
		ExpiresAt:  cls.InviteCodeExpiresAt,
	})
}

func (api *classApi) queryMembers(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	members, err := api.svc.ListMembers(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing members")
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *classApi) addMember(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data class.NewMember
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if err = data.Validate(api.opts.Validate); err != nil {
		return err
	}

	member, err := api.svc.AddMember(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding member")
	}
	return ctx.JSON(http.StatusCreated, member)
}

func (api *classApi) updateMember(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data class.UpdateMember
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMember")
	}
	if err = data.Validate(api.opts.Validate); err != nil {
		return err
	}

	enr, err := api.svc.UpdateMember(ctx.Request().Context(), caller, ctx.Param("id"), ctx.Param("userId"), data)
	if err != nil {
		return errors.Wrap(err, "updating member")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *classApi) removeMember(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.RemoveMember(ctx.Request().Context(), caller, ctx.Param("id"), ctx.Param("userId")); err != nil {
		return errors.Wrap(err, "removing member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// statusParams returns the repeated `status` query param.
func statusParams[S ~string](ctx echo.Context) []S {
	vals := ctx.QueryParams()["status"]
	if len(vals) == 0 {
		return nil
	}
	statuses := make([]S, 0, len(vals))
	for _, v := range vals {
		if v = core.CleanString(v, true /* lower */); v != "" {
			statuses = append(statuses, S(v))
		}
	}
	return statuses
}

type (
	JoinResponse struct {
		Class      classroom.Class      `json:"class"`
		Enrollment classroom.Enrollment `json:"enrollment"`
	}

	InviteCodeResponse struct {
		InviteCode string     `json:"invite_code"`
		ExpiresAt  *time.Time `json:"invite_code_expires_at"`
	}
)
