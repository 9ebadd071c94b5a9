package global

import (
	"context"
	"time"

	"github.com/collabodraw/live/internal/configure"
	"github.com/collabodraw/live/internal/instance"
)

// Context carries the process configuration and service instances alongside a regular context
type Context interface {
	context.Context
	Config() *configure.Config
	Inst() *instance.Instances
}

type gCtx struct {
	context.Context
	config *configure.Config
	inst   *instance.Instances
}

func (g *gCtx) Config() *configure.Config {
	return g.config
}

func (g *gCtx) Inst() *instance.Instances {
	return g.inst
}

func New(ctx context.Context, config *configure.Config) Context {
	return &gCtx{
		Context: ctx,
		config:  config,
		inst:    &instance.Instances{},
	}
}

func derive(parent Context, ctx context.Context) Context {
	return &gCtx{
		Context: ctx,
		config:  parent.Config(),
		inst:    parent.Inst(),
	}
}

func WithCancel(ctx Context) (Context, context.CancelFunc) {
	c, cancel := context.WithCancel(ctx)

	return derive(ctx, c), cancel
}

func WithTimeout(ctx Context, timeout time.Duration) (Context, context.CancelFunc) {
	c, cancel := context.WithTimeout(ctx, timeout)

	return derive(ctx, c), cancel
}
