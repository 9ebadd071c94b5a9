package access

import (
	"context"
	"fmt"
	"time"

	"github.com/collabodraw/live/data/model"
	"github.com/google/go-querystring/query"
	"github.com/patrickmn/go-cache"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Instance decides whether a user may read a board's live state
type Instance interface {
	CanRead(ctx context.Context, boardID model.BoardID, user model.Identity) (bool, error)
}

type open struct{}

// NewOpen grants read access to every identified user
func NewOpen() Instance {
	return open{}
}

func (open) CanRead(ctx context.Context, boardID model.BoardID, user model.Identity) (bool, error) {
	return user.Known(), nil
}

type HTTPOptions struct {
	URL      string
	CacheTTL time.Duration
	Timeout  time.Duration
	// Dial overrides how connections to the access service are made
	Dial fasthttp.DialFunc
}

type httpChecker struct {
	url     string
	timeout time.Duration
	client  *fasthttp.Client
	cache   *cache.Cache
	ttl     time.Duration
}

type checkParams struct {
	BoardID  int64  `url:"board_id"`
	UserID   int64  `url:"user_id"`
	Username string `url:"username,omitempty"`
}

// NewHTTP asks the board service whether a user can read a board.
// A 2xx answer grants access, 401, 403 and 404 deny it, anything else is an error.
// Decisions are cached for CacheTTL, errors are not.
func NewHTTP(o HTTPOptions) Instance {
	if o.Timeout <= 0 {
		o.Timeout = time.Second * 2
	}

	c := &fasthttp.Client{
		Name:                "collabodraw-live",
		ReadTimeout:         o.Timeout,
		WriteTimeout:        o.Timeout,
		MaxIdleConnDuration: time.Minute,
	}
	if o.Dial != nil {
		c.Dial = o.Dial
	}

	return &httpChecker{
		url:     o.URL,
		timeout: o.Timeout,
		client:  c,
		cache:   cache.New(o.CacheTTL, o.CacheTTL*2+time.Minute),
		ttl:     o.CacheTTL,
	}
}

func (a *httpChecker) CanRead(ctx context.Context, boardID model.BoardID, user model.Identity) (bool, error) {
	if !user.Known() {
		return false, nil
	}

	key := fmt.Sprintf("%d:%d", boardID, user.UserID)
	if v, ok := a.cache.Get(key); ok {
		return v.(bool), nil
	}

	params, err := query.Values(&checkParams{
		BoardID:  int64(boardID),
		UserID:   int64(user.UserID),
		Username: user.Username,
	})
	if err != nil {
		return false, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(a.url + "?" + params.Encode())
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(a.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err = a.client.DoDeadline(req, resp, deadline); err != nil {
		zap.S().Warnw("access check failed",
			"error", err,
			"board_id", boardID,
			"user_id", user.UserID,
		)

		return false, err
	}

	var allowed bool

	switch status := resp.StatusCode(); {
	case status >= 200 && status < 300:
		allowed = true
	case status == fasthttp.StatusUnauthorized, status == fasthttp.StatusForbidden, status == fasthttp.StatusNotFound:
		allowed = false
	default:
		return false, fmt.Errorf("access service responded with %d", status)
	}

	if a.ttl > 0 {
		a.cache.Set(key, allowed, a.ttl)
	}

	return allowed, nil
}
