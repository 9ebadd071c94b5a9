package rest

import (
	"github.com/collabodraw/live/data/model"
	jsoniter "github.com/json-iterator/go"
	"github.com/seventv/common/errors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Ctx struct {
	*fasthttp.RequestCtx
}

type APIError = errors.APIError

func (c *Ctx) JSON(status HttpStatusCode, v interface{}) APIError {
	b, err := json.Marshal(v)
	if err != nil {
		c.SetStatusCode(InternalServerError)

		return errors.ErrInternalServerError().
			SetDetail("JSON Parsing Failed").
			SetFields(errors.Fields{"JSON_ERROR": err.Error()})
	}

	c.SetStatusCode(status)
	c.SetContentType("application/json")
	c.SetBody(b)

	return nil
}

func (c *Ctx) SetStatusCode(code HttpStatusCode) {
	c.RequestCtx.SetStatusCode(int(code))
}

func (c *Ctx) StatusCode() HttpStatusCode {
	return HttpStatusCode(c.RequestCtx.Response.StatusCode())
}

// Set the identity resolved from the request's bearer token
func (c *Ctx) SetActor(u model.Identity) {
	c.RequestCtx.SetUserValue(string(ActorKey), u)
}

// Get the identity of the caller. The zero identity is returned for guests.
func (c *Ctx) GetActor() (model.Identity, bool) {
	switch v := c.RequestCtx.UserValue(string(ActorKey)).(type) {
	case model.Identity:
		return v, v.Known()
	default:
		return model.Identity{}, false
	}
}

func (c *Ctx) Log() *zap.SugaredLogger {
	z := zap.S().Named("api/rest").With(
		"request_id", c.ID(),
		"route", string(c.Path()),
	)

	actor, ok := c.GetActor()
	if ok {
		z = z.With("actor_id", actor.UserID)
	}

	return z
}
