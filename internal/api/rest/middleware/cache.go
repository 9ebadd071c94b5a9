package middleware

import (
	"github.com/collabodraw/live/internal/api/rest/rest"
)

// NoStore marks a response as uncacheable, live state goes stale with the next action
func NoStore() rest.Middleware {
	return func(ctx *rest.Ctx) rest.APIError {
		ctx.Response.Header.Set("Cache-Control", "no-store")
		ctx.Response.Header.Set("Pragma", "no-cache")

		return nil
	}
}
