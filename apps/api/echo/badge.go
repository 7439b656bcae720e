package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core/badge"
	"github.com/optioeducation/optio/core/observer"
	"github.com/optioeducation/optio/core/user"
)

type badgeApi struct {
	svc         badge.Service
	userSvc     user.Service
	observerSvc observer.Service
	validate    *validator.Validate
}

func registerBadgeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := badgeApi{
		svc:         deps.BadgeSvc,
		userSvc:     deps.UserSvc,
		observerSvc: deps.ObserverSvc,
		validate:    deps.Validate,
	}

	bg := g.Group("/badges", jwt)
	bg.GET("", api.query)
	bg.POST("", api.create, adminMiddleware())
	bg.DELETE("", api.destroyMultiple, adminMiddleware())
	bg.GET("/mine", api.mine)
	bg.GET("/users/:id", api.userBadges)
	bg.GET("/:id", api.retrieve)
	bg.PUT("/:id", api.update, adminMiddleware())
	bg.DELETE("/:id", api.destroy, adminMiddleware())
}

// Handlers

func (api *badgeApi) create(ctx echo.Context) error {
	var data badge.NewBadge
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBadge")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating badge")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *badgeApi) query(ctx echo.Context) error {
	filter := new(badge.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []badge.Badge{})
	}
	filter.Clean()

	// non-admins only browse active badges
	if claims, err := getContextClaims(ctx); err == nil && !claims.IsAdmin {
		active := true
		filter.IsActive = &active
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	badges, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying badges")
	}
	if badges == nil {
		badges = []badge.Badge{}
	}
	return ctx.JSON(http.StatusOK, badges)
}

func (api *badgeApi) retrieve(ctx echo.Context) error {
	b, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == badge.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting badge")
	}

	if claims, cErr := getContextClaims(ctx); cErr == nil && !claims.IsAdmin && !b.Active() {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *badgeApi) update(ctx echo.Context) error {
	orig, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == badge.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting badge")
	}

	var data badge.UpdateBadge
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBadge")
	}
	if err := data.Validate(api.validate, orig); err != nil {
		return err
	}

	b, err := api.svc.Update(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating badge")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *badgeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting badge")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *badgeApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting badges")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *badgeApi) mine(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	badges, err := api.svc.BadgesOf(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying user badges")
	}
	if badges == nil {
		badges = []badge.UserBadge{}
	}
	return ctx.JSON(http.StatusOK, badges)
}

// userBadges lists a user's awards: themselves, an admin, or an accepted
// observer of the student.
func (api *badgeApi) userBadges(ctx echo.Context) error {
	targetID := ctx.Param("id")

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !(ctxUsr.ID == targetID || ctxUsr.IsAdmin()) {
		ok, err := api.observerSvc.CanObserve(ctx.Request().Context(), ctxUsr.ID, targetID)
		if err != nil {
			return errors.Wrap(err, "checking observer link")
		}
		if !ok {
			return errHttpNotFound
		}
	}

	badges, err := api.svc.BadgesOf(ctx.Request().Context(), targetID)
	if err != nil {
		return errors.Wrap(err, "querying user badges")
	}
	if badges == nil {
		badges = []badge.UserBadge{}
	}
	return ctx.JSON(http.StatusOK, badges)
}
