package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/optioeducation/optio/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// Page binds limit/offset query params into a core.DBPage.
type Page struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (p *Page) DBPage() core.DBPage {
	return core.DBPage{Limit: p.Limit, Offset: p.Offset}
}
