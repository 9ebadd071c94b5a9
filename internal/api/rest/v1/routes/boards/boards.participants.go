package boards

import (
	"github.com/collabodraw/live/data/events"
	"github.com/collabodraw/live/internal/api/rest/middleware"
	"github.com/collabodraw/live/internal/api/rest/rest"
	"github.com/collabodraw/live/internal/global"
)

type participantsRoute struct {
	Ctx global.Context
}

func newParticipants(gctx global.Context) rest.Route {
	return &participantsRoute{gctx}
}

func (r *participantsRoute) Config() rest.RouteConfig {
	return rest.RouteConfig{
		URI:    "/participants",
		Method: rest.GET,
		Middleware: []rest.Middleware{
			middleware.Auth(r.Ctx),
			middleware.NoStore(),
		},
	}
}

func (r *participantsRoute) Handler(ctx *rest.Ctx) rest.APIError {
	boardID, err := authorize(r.Ctx, ctx)
	if err != nil {
		return err
	}

	return ctx.JSON(rest.OK, events.ParticipantsEnvelope{
		Type:  events.EventTypeParticipants,
		Items: r.Ctx.Inst().Dispatch.Participants(boardID),
	})
}
