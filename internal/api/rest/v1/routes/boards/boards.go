package boards

import (
	"github.com/collabodraw/live/data/model"
	"github.com/collabodraw/live/internal/api/rest/middleware"
	"github.com/collabodraw/live/internal/api/rest/rest"
	"github.com/collabodraw/live/internal/api/rest/v1/helpers"
	"github.com/collabodraw/live/internal/global"
	"github.com/collabodraw/live/internal/svc/cursors"
)

type Route struct {
	Ctx global.Context
}

func New(gctx global.Context) rest.Route {
	return &Route{gctx}
}

func (r *Route) Config() rest.RouteConfig {
	return rest.RouteConfig{
		URI:    "/boards/{board.id}",
		Method: rest.GET,
		Children: []rest.Route{
			newParticipants(r.Ctx),
			newCursors(r.Ctx),
		},
		Middleware: []rest.Middleware{
			middleware.Auth(r.Ctx),
			middleware.NoStore(),
		},
	}
}

// Handler returns everything a client needs to render presence on a board
func (r *Route) Handler(ctx *rest.Ctx) rest.APIError {
	boardID, err := authorize(r.Ctx, ctx)
	if err != nil {
		return err
	}

	d := r.Ctx.Inst().Dispatch

	return ctx.JSON(rest.OK, Response{
		BoardID:      boardID.String(),
		Participants: d.Participants(boardID),
		Cursors:      d.Cursors(boardID),
		Channels:     d.Channels(boardID),
	})
}

type Response struct {
	BoardID      string              `json:"board_id"`
	Participants []model.Participant `json:"participants"`
	Cursors      []cursors.Position  `json:"cursors"`
	Channels     []string            `json:"channels"`
}

func authorize(gctx global.Context, ctx *rest.Ctx) (model.BoardID, rest.APIError) {
	boardID, err := ctx.UserValue("board.id").BoardID()
	if err != nil {
		return 0, err
	}

	actor, _ := ctx.GetActor()

	if er := gctx.Inst().Dispatch.Authorize(ctx, boardID, actor); er != nil {
		return 0, helpers.APIError(er)
	}

	return boardID, nil
}
