package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core/generator"
)

type generatorApi struct {
	svc      generator.Service
	validate *validator.Validate
}

func registerGeneratorAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := generatorApi{
		svc:      deps.GeneratorSvc,
		validate: deps.Validate,
	}

	gg := g.Group("/generator", jwt, adminMiddleware())
	gg.POST("/quests", api.generate)
}

// Handlers

func (api *generatorApi) generate(ctx echo.Context) error {
	var data generator.GenerateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	drafts, err := api.svc.Generate(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == generator.ErrBadDraft {
			return echo.NewHTTPError(http.StatusBadGateway, generator.ErrBadDraft.Error())
		}
		return errors.Wrap(err, "generating quests")
	}
	return ctx.JSON(http.StatusCreated, drafts)
}
