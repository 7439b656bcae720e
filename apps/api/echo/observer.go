package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core/observer"
	"github.com/optioeducation/optio/core/user"
)

// progressWindow bounds the recent-events slice of a progress snapshot.
const progressWindow = 30 * 24 * time.Hour

type observerApi struct {
	svc      observer.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerObserverAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := observerApi{
		svc:      deps.ObserverSvc,
		userSvc:  deps.UserSvc,
		validate: deps.Validate,
	}

	og := g.Group("/observers", jwt)
	og.POST("/invite", api.invite)
	og.POST("/accept", api.accept)
	og.POST("/:id/revoke", api.revoke)
	og.GET("/mine", api.mine)
	og.GET("/students", api.students)
	og.GET("/students/:id/progress", api.progress)
}

// Handlers

func (api *observerApi) invite(ctx echo.Context) error {
	var data observer.InviteObserver
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InviteObserver")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	link, err := api.svc.Invite(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "inviting observer")
	}
	return ctx.JSON(http.StatusCreated, link)
}

func (api *observerApi) accept(ctx echo.Context) error {
	var data observer.AcceptInvite
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AcceptInvite")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	link, err := api.svc.Accept(ctx.Request().Context(), ctxUsr, data.Token)
	if err != nil {
		return errors.Wrap(err, "accepting invite")
	}
	return ctx.JSON(http.StatusOK, link)
}

func (api *observerApi) revoke(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	link, err := api.svc.Revoke(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == observer.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "revoking link")
	}
	return ctx.JSON(http.StatusOK, link)
}

// mine lists the links on the calling student's account, all statuses.
func (api *observerApi) mine(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	links, err := api.svc.ObserversOf(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying links")
	}
	if links == nil {
		links = []observer.Link{}
	}
	return ctx.JSON(http.StatusOK, links)
}

// students lists the accepted links where the caller is the observer.
func (api *observerApi) students(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	links, err := api.svc.StudentsOf(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying links")
	}
	if links == nil {
		links = []observer.Link{}
	}
	return ctx.JSON(http.StatusOK, links)
}

func (api *observerApi) progress(ctx echo.Context) error {
	studentID := ctx.Param("id")

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !(ctxUsr.IsAdmin() || ctxUsr.ID == studentID) {
		ok, err := api.svc.CanObserve(ctx.Request().Context(), ctxUsr.ID, studentID)
		if err != nil {
			return errors.Wrap(err, "checking observer link")
		}
		if !ok {
			return errHttpNotFound
		}
	}

	progress, err := api.svc.ProgressOf(ctx.Request().Context(), studentID, time.Now().UTC().Add(-progressWindow))
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "assembling progress")
	}
	return ctx.JSON(http.StatusOK, progress)
}
