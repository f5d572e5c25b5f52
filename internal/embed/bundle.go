package embed

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"vestiva/pkg/bus"
)

// BundleOptions configures a runtime mounted directly in the host document.
type BundleOptions struct {
	Window *bus.Window // the host page, shared with the loader
	// Channel carries host messages for this runtime only. Several runtimes
	// on one page each need their own; defaults to Window.
	Channel  *bus.Window
	Config   Config
	Renderer Renderer

	// OnError receives render failures after the initial mount.
	OnError func(err error)
	// OnEvent receives application events; the loader re-dispatches them as vestiva:<name>.
	OnEvent func(name string, data any)
	Log     *zap.SugaredLogger
}

// BundleRuntime keeps its configuration in memory and re-renders in place on
// config-update, so view state survives updates.
type BundleRuntime struct {
	opts BundleOptions
	log  *zap.SugaredLogger

	mu      sync.Mutex
	ctx     context.Context
	initial Config
	cfg     Config
	height  int
	renders int
	remove  func()
}

func NewBundleRuntime(o BundleOptions) *BundleRuntime {
	log := o.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if o.Channel == nil {
		o.Channel = o.Window
	}
	cfg := o.Config.WithDefaults()
	return &BundleRuntime{opts: o, log: log, initial: cfg, cfg: cfg}
}

// Start performs the initial render and starts listening on the channel for
// config-update messages posted by the page. A failed initial render returns the error and
// leaves no listener behind.
func (r *BundleRuntime) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	cfg := r.cfg
	r.mu.Unlock()

	if err := r.renderWith(cfg); err != nil {
		return err
	}
	remove := r.opts.Channel.AddMessageListener(r.onMessage)
	r.mu.Lock()
	r.remove = remove
	r.mu.Unlock()
	return nil
}

func (r *BundleRuntime) Stop() {
	r.mu.Lock()
	remove := r.remove
	r.remove = nil
	r.mu.Unlock()
	if remove != nil {
		remove()
	}
}

func (r *BundleRuntime) Config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Height is the content height of the last successful render.
func (r *BundleRuntime) Height() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.height
}

func (r *BundleRuntime) Renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

// Emit forwards an application event to the loader or, without one, straight
// to the page as vestiva:<name>.
func (r *BundleRuntime) Emit(name string, data any) {
	if r.opts.OnEvent != nil {
		r.opts.OnEvent(name, data)
		return
	}
	r.opts.Window.DispatchEvent(bus.CustomEvent{Name: bus.Namespaced(name), Detail: data})
}

func (r *BundleRuntime) renderWith(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	h, err := render(ctx, r.opts.Renderer, cfg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.cfg = cfg
	r.height = h
	r.renders++
	r.mu.Unlock()
	return nil
}

func (r *BundleRuntime) onMessage(ev bus.MessageEvent) {
	if ev.Origin != r.opts.Window.Origin() || ev.Source != r.opts.Window {
		return
	}
	env, err := ev.Envelope()
	if err != nil {
		return
	}
	msg, err := bus.DecodeHost(env)
	if err != nil {
		return
	}
	switch m := msg.(type) {
	case bus.ConfigUpdate:
		var p Partial
		if err := json.Unmarshal(m.Config, &p); err != nil {
			r.log.Warnw("bad config-update", "err", err)
			return
		}
		r.rerender(r.Config().Merge(p))
	case bus.Exit:
		r.mu.Lock()
		initial := r.initial
		r.mu.Unlock()
		if r.rerender(initial) {
			r.Emit("exit", nil)
		}
	}
}

func (r *BundleRuntime) rerender(cfg Config) bool {
	if err := r.renderWith(cfg); err != nil {
		r.log.Warnw("embed re-render failed", "err", err)
		if r.opts.OnError != nil {
			r.opts.OnError(err)
		}
		return false
	}
	return true
}
