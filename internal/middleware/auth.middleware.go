package middleware

import (
	"strings"

	"github.com/collabodraw/live/data/model"
	"github.com/collabodraw/live/internal/api/rest/rest"
	"github.com/collabodraw/live/internal/global"
	"github.com/seventv/common/errors"
	"github.com/seventv/common/utils"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Auth resolves the caller from a bearer token, when one is sent. Requests without a token proceed as guests,
// as does every request when no authorizer is configured.
func Auth(gctx global.Context) Middleware {
	return func(ctx *fasthttp.RequestCtx) errors.APIError {
		if gctx.Inst().Auth == nil {
			return nil
		}

		token := BearerToken(ctx)
		if token == "" {
			// try the query for clients that cannot set headers, such as browser websockets
			token = utils.B2S(ctx.QueryArgs().Peek("token"))
		}

		if token == "" {
			return nil
		}

		user, err := DoAuth(gctx, token)
		if err != nil {
			return err
		}

		ctx.SetUserValue(string(rest.ActorKey), user)

		return nil
	}
}

func BearerToken(ctx *fasthttp.RequestCtx) string {
	h := utils.B2S(ctx.Request.Header.Peek("Authorization"))

	s := strings.SplitN(h, "Bearer ", 2)
	if len(s) != 2 {
		return ""
	}

	return strings.TrimSpace(s[1])
}

func DoAuth(gctx global.Context, t string) (model.Identity, errors.APIError) {
	if gctx.Inst().Auth == nil {
		return model.Identity{}, errors.ErrUnauthorized().SetDetail("Authentication Unavailable")
	}

	user, err := gctx.Inst().Auth.Identify(t)
	if err != nil {
		zap.S().Debugw("rejected token",
			"error", err,
		)

		return model.Identity{}, errors.ErrUnauthorized().SetDetail(err.Error())
	}

	return user, nil
}
