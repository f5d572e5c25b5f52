package embed

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"vestiva/pkg/bus"
)

// FrameOptions configures a runtime living in its own iframe document.
type FrameOptions struct {
	Window       *bus.Window // the iframe document
	Parent       *bus.Window // the host page
	ParentOrigin string      // defaults to Parent.Origin()
	URL          *url.URL
	Renderer     Renderer

	// HeightThreshold is the minimum change in pixels reported to the host. Defaults to 1.
	HeightThreshold int
	// OnNavigate observes every URL the frame loads, including the first one.
	OnNavigate func(u *url.URL)
	Log        *zap.SugaredLogger
}

// FrameRuntime is the iframe flavour of the embed runtime. Its configuration
// lives in the document URL, so a config-update rewrites the URL and reloads
// the document: the view is remounted from scratch and in-view state is lost.
type FrameRuntime struct {
	opts FrameOptions
	log  *zap.SugaredLogger

	mu         sync.Mutex
	ctx        context.Context
	initial    *url.URL
	current    *url.URL
	cfg        Config
	lastHeight int
	loads      int
	remove     func()
}

func NewFrameRuntime(o FrameOptions) *FrameRuntime {
	if o.ParentOrigin == "" && o.Parent != nil {
		o.ParentOrigin = o.Parent.Origin()
	}
	if o.HeightThreshold <= 0 {
		o.HeightThreshold = 1
	}
	log := o.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	u := *o.URL
	return &FrameRuntime{opts: o, log: log, initial: &u, current: &u, lastHeight: -1}
}

// Start loads the document: it parses the URL, renders and reports height and
// readiness to the parent. Failures are reported with an error signal as well.
func (r *FrameRuntime) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	u := r.current
	r.mu.Unlock()
	return r.load(u)
}

// Stop unloads the document; no more messages are handled.
func (r *FrameRuntime) Stop() {
	r.mu.Lock()
	remove := r.remove
	r.remove = nil
	r.mu.Unlock()
	if remove != nil {
		remove()
	}
}

// Config returns the configuration of the loaded document.
func (r *FrameRuntime) Config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// URL returns the current document URL.
func (r *FrameRuntime) URL() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := *r.current
	return &u
}

// Loads counts document loads; every config-update adds one.
func (r *FrameRuntime) Loads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

// Emit sends an application event to the host, which re-dispatches it as vestiva:<name>.
func (r *FrameRuntime) Emit(name string, data any) error {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		raw = b
	}
	return r.post(bus.Custom{Type: name, Data: raw})
}

// NotifyResize reports a new content height unless it moved by less than the threshold.
func (r *FrameRuntime) NotifyResize(h int) {
	r.mu.Lock()
	if r.lastHeight >= 0 && abs(h-r.lastHeight) < r.opts.HeightThreshold {
		r.mu.Unlock()
		return
	}
	r.lastHeight = h
	r.mu.Unlock()
	if err := r.post(bus.Height{Height: h}); err != nil {
		r.log.Warnw("post height", "err", err)
	}
}

func (r *FrameRuntime) load(u *url.URL) error {
	r.Stop()
	cfg := ParseQuery(u.Query())

	r.mu.Lock()
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	r.current = u
	r.cfg = cfg
	r.loads++
	r.lastHeight = -1
	r.remove = r.opts.Window.AddMessageListener(r.onMessage)
	r.mu.Unlock()

	if r.opts.OnNavigate != nil {
		r.opts.OnNavigate(u)
	}
	if err := cfg.Validate(); err != nil {
		return r.fail(err)
	}
	h, err := render(ctx, r.opts.Renderer, cfg)
	if err != nil {
		return r.fail(err)
	}
	r.NotifyResize(h)
	return r.post(bus.Ready{})
}

func (r *FrameRuntime) fail(err error) error {
	r.log.Warnw("embed render failed", "err", err)
	if perr := r.post(bus.ErrorSignal{Error: err.Error()}); perr != nil {
		r.log.Warnw("post error signal", "err", perr)
	}
	return err
}

func (r *FrameRuntime) post(m bus.EmbedMessage) error {
	env, err := bus.EncodeEmbed(m)
	if err != nil {
		return err
	}
	return r.opts.Parent.PostMessage(r.opts.Window, env, r.opts.ParentOrigin)
}

func (r *FrameRuntime) onMessage(ev bus.MessageEvent) {
	if ev.Origin != r.opts.ParentOrigin {
		r.log.Debugw("ignoring message from foreign origin", "origin", ev.Origin)
		return
	}
	env, err := ev.Envelope()
	if err != nil {
		return
	}
	msg, err := bus.DecodeHost(env)
	if err != nil {
		r.log.Debugw("ignoring message", "type", env.Type, "err", err)
		return
	}
	switch m := msg.(type) {
	case bus.ConfigUpdate:
		var p Partial
		if err := json.Unmarshal(m.Config, &p); err != nil {
			r.log.Warnw("bad config-update", "err", err)
			return
		}
		r.mu.Lock()
		next := rewriteURL(r.current, r.cfg.Merge(p))
		r.mu.Unlock()
		_ = r.load(next)
	case bus.Exit:
		r.mu.Lock()
		initial, current := r.initial, r.current
		r.mu.Unlock()
		if current.String() != initial.String() {
			if err := r.load(initial); err != nil {
				return
			}
		}
		if err := r.Emit("exit", nil); err != nil {
			r.log.Warnw("post exit", "err", err)
		}
	}
}

// rewriteURL replaces the configuration parameters of u, keeping unrelated ones.
func rewriteURL(u *url.URL, cfg Config) *url.URL {
	next := *u
	q := u.Query()
	for _, k := range []string{"accountId", "sections"} {
		q.Del(k)
	}
	for k, v := range cfg.Query() {
		q[k] = v
	}
	next.RawQuery = q.Encode()
	return &next
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
