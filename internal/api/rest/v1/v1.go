package v1

import (
	"github.com/collabodraw/live/internal/api/rest/rest"
	"github.com/collabodraw/live/internal/api/rest/v1/routes"
	"github.com/collabodraw/live/internal/global"
)

func API(gctx global.Context) rest.Route {
	return routes.New(gctx)
}
