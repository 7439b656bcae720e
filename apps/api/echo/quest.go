package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core/quest"
	"github.com/optioeducation/optio/core/user"
)

type questApi struct {
	svc      quest.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerQuestAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := questApi{
		svc:      deps.QuestSvc,
		userSvc:  deps.UserSvc,
		validate: deps.Validate,
	}

	qg := g.Group("/quests", jwt)
	qg.GET("", api.query)
	qg.POST("", api.create, adminMiddleware())
	qg.DELETE("", api.destroyMultiple, adminMiddleware())

	qg.GET("/enrollments", api.myEnrollments)
	qg.GET("/completions", api.myCompletions)
	qg.POST("/completions", api.completeTask)

	qg.GET("/verifications", api.pendingVerifications, verifierMiddleware())
	qg.POST("/verifications/:id", api.review, verifierMiddleware())

	qg.GET("/:id", api.retrieve)
	qg.PUT("/:id", api.update, adminMiddleware())
	qg.DELETE("/:id", api.destroy, adminMiddleware())
	qg.POST("/:id/enroll", api.enroll)
}

// Handlers

func (api *questApi) create(ctx echo.Context) error {
	var data quest.NewQuest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating quest")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *questApi) query(ctx echo.Context) error {
	filter := new(quest.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []quest.Quest{})
	}
	filter.Clean()

	// non-admins only browse the active catalog
	if claims, err := getContextClaims(ctx); err == nil && !claims.IsAdmin {
		active := true
		filter.IsActive = &active
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	quests, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying quests")
	}
	if quests == nil {
		quests = []quest.Quest{}
	}
	return ctx.JSON(http.StatusOK, quests)
}

func (api *questApi) retrieve(ctx echo.Context) error {
	q, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == quest.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting quest")
	}

	if claims, cErr := getContextClaims(ctx); cErr == nil && !claims.IsAdmin && !q.Active() {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questApi) update(ctx echo.Context) error {
	orig, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == quest.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting quest")
	}

	var data quest.UpdateQuest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuest")
	}
	if err := data.Validate(api.validate, orig); err != nil {
		return err
	}

	q, err := api.svc.Update(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating quest")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting quest")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *questApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting quests")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *questApi) enroll(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		switch errors.Cause(err) {
		case quest.ErrNotFound:
			return errHttpNotFound
		case quest.ErrQuestInactive, quest.ErrAlreadyEnrolled:
			return echo.NewHTTPError(http.StatusBadRequest, errors.Cause(err).Error())
		}
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *questApi) myEnrollments(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enrollments, err := api.svc.EnrollmentsOf(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []quest.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *questApi) completeTask(ctx echo.Context) error {
	var data quest.TaskSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TaskSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	tc, err := api.svc.CompleteTask(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		switch errors.Cause(err) {
		case quest.ErrTaskNotFound, quest.ErrNotFound:
			return errHttpNotFound
		case quest.ErrNotEnrolled:
			return echo.NewHTTPError(http.StatusBadRequest, quest.ErrNotEnrolled.Error())
		}
		return errors.Wrap(err, "completing task")
	}
	return ctx.JSON(http.StatusCreated, tc)
}

func (api *questApi) myCompletions(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	completions, err := api.svc.CompletionsOf(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying completions")
	}
	if completions == nil {
		completions = []quest.TaskCompletion{}
	}
	return ctx.JSON(http.StatusOK, completions)
}

func (api *questApi) pendingVerifications(ctx echo.Context) error {
	completions, err := api.svc.PendingVerifications(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending verifications")
	}
	if completions == nil {
		completions = []quest.TaskCompletion{}
	}
	return ctx.JSON(http.StatusOK, completions)
}

func (api *questApi) review(ctx echo.Context) error {
	var data ReviewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewRequest")
	}
	if data.Approve == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "approve is required")
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	tc, err := api.svc.Review(ctx.Request().Context(), ctx.Param("id"), ctxUsr, *data.Approve)
	if err != nil {
		if errors.Cause(err) == quest.ErrCompletionNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "reviewing completion")
	}
	return ctx.JSON(http.StatusOK, tc)
}

type ReviewRequest struct {
	Approve *bool `json:"approve"`
}
