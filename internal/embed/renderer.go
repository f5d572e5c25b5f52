package embed

import (
	"context"
	"errors"
	"fmt"
)

// ErrRenderPanic wraps a value recovered from a panicking renderer.
var ErrRenderPanic = errors.New("renderer panicked")

// Renderer draws the view selected by cfg and reports the resulting content height.
type Renderer interface {
	Render(ctx context.Context, cfg Config) (height int, err error)
}

type RendererFunc func(ctx context.Context, cfg Config) (int, error)

func (f RendererFunc) Render(ctx context.Context, cfg Config) (int, error) { return f(ctx, cfg) }

// render never lets a renderer panic escape the runtime.
func render(ctx context.Context, r Renderer, cfg Config) (h int, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%w: %v", ErrRenderPanic, v)
		}
	}()
	if r == nil {
		return 0, errors.New("no renderer")
	}
	return r.Render(ctx, cfg)
}
