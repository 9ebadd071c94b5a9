package live

import (
	"encoding/json"

	"github.com/collabodraw/live/internal/api/rest/middleware"
	"github.com/collabodraw/live/internal/api/rest/rest"
	"github.com/collabodraw/live/internal/api/rest/v1/helpers"
	"github.com/collabodraw/live/internal/global"
)

type Route struct {
	Ctx global.Context
}

func New(gctx global.Context) rest.Route {
	return &Route{gctx}
}

func (r *Route) Config() rest.RouteConfig {
	return rest.RouteConfig{
		URI:      "/live/{board.id}",
		Method:   rest.GET,
		Children: []rest.Route{},
		Middleware: []rest.Middleware{
			middleware.Auth(r.Ctx),
			middleware.NoStore(),
		},
	}
}

// Handler returns the board's replay log so a late joiner can rebuild the canvas before following the live channels
func (r *Route) Handler(ctx *rest.Ctx) rest.APIError {
	boardID, err := ctx.UserValue("board.id").BoardID()
	if err != nil {
		return err
	}

	actor, _ := ctx.GetActor()

	events, er := r.Ctx.Inst().Dispatch.LiveEvents(ctx, boardID, actor)
	if er != nil {
		return helpers.APIError(er)
	}

	return ctx.JSON(rest.OK, Response{
		Success: true,
		BoardID: boardID.String(),
		Events:  events,
	})
}

type Response struct {
	Success bool              `json:"success"`
	BoardID string            `json:"board_id"`
	Events  []json.RawMessage `json:"events"`
}
