package middleware

import (
	"github.com/collabodraw/live/internal/api/rest/rest"
	"github.com/collabodraw/live/internal/global"
	"github.com/seventv/common/errors"
	"github.com/seventv/common/utils"
)

// Auth rejects requests whose caller could not be identified
func Auth(gctx global.Context) rest.Middleware {
	return func(ctx *rest.Ctx) rest.APIError {
		if _, ok := ctx.GetActor(); ok {
			return nil
		}

		msg := utils.B2S(ctx.Response.Header.Peek("X-Auth-Failure"))
		if msg == "" {
			msg = "Authentication Required"
		}

		return errors.ErrUnauthorized().SetFields(errors.Fields{"message": msg})
	}
}
