package boards

import (
	"github.com/collabodraw/live/internal/api/rest/middleware"
	"github.com/collabodraw/live/internal/api/rest/rest"
	"github.com/collabodraw/live/internal/global"
	"github.com/collabodraw/live/internal/svc/cursors"
)

type cursorsRoute struct {
	Ctx global.Context
}

func newCursors(gctx global.Context) rest.Route {
	return &cursorsRoute{gctx}
}

func (r *cursorsRoute) Config() rest.RouteConfig {
	return rest.RouteConfig{
		URI:    "/cursors",
		Method: rest.GET,
		Middleware: []rest.Middleware{
			middleware.Auth(r.Ctx),
			middleware.NoStore(),
		},
	}
}

// Handler lists stored cursor positions, most recently moved first
func (r *cursorsRoute) Handler(ctx *rest.Ctx) rest.APIError {
	boardID, err := authorize(r.Ctx, ctx)
	if err != nil {
		return err
	}

	return ctx.JSON(rest.OK, CursorsResponse{
		Items: r.Ctx.Inst().Dispatch.Cursors(boardID),
	})
}

type CursorsResponse struct {
	Items []cursors.Position `json:"items"`
}
