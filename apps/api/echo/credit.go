package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/credit"
	"github.com/optioeducation/optio/core/observer"
	"github.com/optioeducation/optio/core/user"
)

type creditApi struct {
	svc         credit.Service
	userSvc     user.Service
	observerSvc observer.Service
	validate    *validator.Validate
}

func registerCreditAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := creditApi{
		svc:         deps.CreditSvc,
		userSvc:     deps.UserSvc,
		observerSvc: deps.ObserverSvc,
		validate:    deps.Validate,
	}

	cg := g.Group("/credits", jwt)
	cg.GET("/balance", api.myBalance)
	cg.GET("/history", api.myHistory)
	cg.POST("/adjust", api.adjust, adminMiddleware())
	cg.GET("/users/:id/balance", api.userBalance)
	cg.GET("/users/:id/history", api.userHistory)
}

// canReadUserLedger reports whether the caller may read the target user's
// balances: themselves, an admin, or an accepted observer of the student.
func (api *creditApi) canReadUserLedger(ctx echo.Context, targetID string) (bool, error) {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return false, errors.Wrap(err, "getting context user")
	}
	if ctxUsr.ID == targetID || ctxUsr.IsAdmin() {
		return true, nil
	}
	return api.observerSvc.CanObserve(ctx.Request().Context(), ctxUsr.ID, targetID)
}

// Handlers

func (api *creditApi) myBalance(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return api.balanceOf(ctx, ctxUsr.ID)
}

func (api *creditApi) myHistory(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return api.historyOf(ctx, ctxUsr.ID)
}

func (api *creditApi) userBalance(ctx echo.Context) error {
	targetID := ctx.Param("id")
	ok, err := api.canReadUserLedger(ctx, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return errHttpNotFound
	}
	return api.balanceOf(ctx, targetID)
}

func (api *creditApi) userHistory(ctx echo.Context) error {
	targetID := ctx.Param("id")
	ok, err := api.canReadUserLedger(ctx, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return errHttpNotFound
	}
	return api.historyOf(ctx, targetID)
}

func (api *creditApi) balanceOf(ctx echo.Context, userID string) error {
	balance, err := api.svc.BalanceOf(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "getting balance")
	}
	return ctx.JSON(http.StatusOK, balance)
}

func (api *creditApi) historyOf(ctx echo.Context, userID string) error {
	page := new(Page)
	if err := ctx.Bind(page); err != nil {
		page = new(Page)
	}

	entries, err := api.svc.HistoryOf(ctx.Request().Context(), userID, page.DBPage())
	if err != nil {
		return errors.Wrap(err, "getting ledger history")
	}
	if entries == nil {
		entries = []credit.LedgerEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *creditApi) adjust(ctx echo.Context) error {
	var data AdjustRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AdjustRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// target must exist
	if _, err := api.userSvc.GetByID(ctx.Request().Context(), data.UserID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding user by ID")
	}

	entry, err := api.svc.Adjust(ctx.Request().Context(), data.UserID, data.Kind, data.Delta, data.Note)
	if err != nil {
		return errors.Wrap(err, "adjusting ledger")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

type AdjustRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Kind   string `json:"kind" validate:"required,oneof=xp credit"`
	Delta  int    `json:"delta" validate:"required"`
	Note   string `json:"note"`
}

func (ar *AdjustRequest) Validate(validate *validator.Validate) error {
	ar.Note = core.CleanString(ar.Note)
	return validate.Struct(ar)
}
