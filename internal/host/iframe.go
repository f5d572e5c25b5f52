package host

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"vestiva/internal/embed"
	"vestiva/pkg/bus"
	"vestiva/pkg/widgetclient"
)

// FrameLoader navigates a freshly inserted iframe to its src. It must call
// f.Attach once the document exists. A loader error is a transport failure;
// failures inside the document are reported by the embed itself.
type FrameLoader func(ctx context.Context, f *Frame, parent *bus.Window) error

// IframeStrategy mounts the embed in a cross-origin iframe. Configuration
// travels in the iframe URL, so every update reloads the frame.
type IframeStrategy struct {
	// API, when set, serves the loader manifest and issues a widget token
	// for Options.ClientID that is passed to the frame.
	API *widgetclient.Client
	// EmbedURL overrides the manifest's embed URL; required without API.
	EmbedURL string
	Loader   FrameLoader
}

func (IframeStrategy) Name() string { return "iframe" }

func (s IframeStrategy) newDriver(env driverEnv) driver {
	return &iframeDriver{s: s, env: env, embedURL: s.EmbedURL}
}

type iframeDriver struct {
	s   IframeStrategy
	env driverEnv

	mu        sync.Mutex
	embedURL  string
	origin    string
	frame     *Frame
	container *Container
	remove    func()
}

func (d *iframeDriver) load(ctx context.Context) error {
	if d.s.Loader == nil {
		return newError(KindConfiguration, errors.New("iframe strategy without a frame loader"))
	}
	if d.s.API != nil {
		m, err := d.s.API.Manifest(ctx)
		if err != nil {
			return newError(KindTransport, fmt.Errorf("load manifest: %w", err))
		}
		d.mu.Lock()
		if d.embedURL == "" {
			d.embedURL = m.EmbedURL
		}
		d.mu.Unlock()
	}
	if d.embedURL == "" {
		return newError(KindConfiguration, errors.New("no embed URL"))
	}
	return nil
}

func (d *iframeDriver) authenticate(ctx context.Context, cfg *embed.Config) error {
	if d.s.API == nil || cfg.ClientID == "" {
		return nil
	}
	tok, err := d.s.API.IssueToken(ctx, cfg.ClientID, nil)
	if err != nil {
		return classify(err)
	}
	cfg.Token = tok
	return nil
}

func (d *iframeDriver) mount(ctx context.Context, c *Container, cfg embed.Config) error {
	u, err := url.Parse(d.embedURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return newError(KindConfiguration, fmt.Errorf("bad embed URL %q", d.embedURL))
	}
	q := u.Query()
	for k, v := range cfg.Query() {
		q[k] = v
	}
	u.RawQuery = q.Encode()

	f := &Frame{src: u.String(), hidden: d.env.opts.Hidden}
	d.mu.Lock()
	d.origin = originOf(u)
	d.frame = f
	d.container = c
	d.remove = d.env.page.Window().AddMessageListener(d.onMessage)
	d.mu.Unlock()

	c.Append(f)
	if err := d.s.Loader(ctx, f, d.env.page.Window()); err != nil {
		return newError(KindTransport, fmt.Errorf("load frame: %w", err))
	}
	return nil
}

func (d *iframeDriver) onMessage(ev bus.MessageEvent) {
	d.mu.Lock()
	origin, f := d.origin, d.frame
	d.mu.Unlock()
	if f == nil || ev.Origin != origin {
		return
	}
	// Frames sharing an embed origin are told apart by their document.
	if src := f.ContentWindow(); src == nil || ev.Source != src {
		return
	}
	env, err := ev.Envelope()
	if err != nil {
		d.env.log.Debugw("ignoring malformed message", "err", err)
		return
	}
	msg, err := bus.DecodeEmbed(env)
	if err != nil {
		d.env.log.Debugw("ignoring message", "type", env.Type, "err", err)
		return
	}
	switch m := msg.(type) {
	case bus.Height:
		f.setHeight(m.Height)
	case bus.Ready:
		d.env.sink.ready()
	case bus.ErrorSignal:
		d.env.sink.fail(&Error{Kind: KindRender, Err: fmt.Errorf("%w: %s", ErrRender, m.Error)})
	case bus.Custom:
		d.env.sink.event(m.Type, m.Data)
	}
}

func (d *iframeDriver) send(m bus.HostMessage) error {
	d.mu.Lock()
	f, origin := d.frame, d.origin
	d.mu.Unlock()
	if f == nil || f.ContentWindow() == nil {
		return errors.New("frame not loaded")
	}
	env, err := bus.EncodeHost(m)
	if err != nil {
		return err
	}
	return f.ContentWindow().PostMessage(d.env.page.Window(), env, origin)
}

func (d *iframeDriver) setHidden(hidden bool) {
	d.mu.Lock()
	f := d.frame
	d.mu.Unlock()
	if f != nil {
		f.SetHidden(hidden)
	}
}

func (d *iframeDriver) unmount() {
	d.mu.Lock()
	remove, f, c := d.remove, d.frame, d.container
	d.remove, d.frame, d.container = nil, nil, nil
	d.mu.Unlock()
	if remove != nil {
		remove()
	}
	if f != nil {
		f.detach()
		if c != nil {
			c.Remove(f)
		}
	}
}

// InProcessFrames loads frames with the embed runtime in the same process,
// each document in its own window sharing the parent's event loop.
func InProcessFrames(r embed.Renderer, log *zap.SugaredLogger) FrameLoader {
	return func(ctx context.Context, f *Frame, parent *bus.Window) error {
		u, err := url.Parse(f.Src())
		if err != nil {
			return err
		}
		win := bus.NewWindow(originOf(u), parent.Loop())
		rt := embed.NewFrameRuntime(embed.FrameOptions{
			Window:     win,
			Parent:     parent,
			URL:        u,
			Renderer:   r,
			OnNavigate: f.Navigated,
			Log:        log,
		})
		f.Attach(win, rt.Stop)
		// Content failures reach the host as error messages.
		_ = rt.Start(ctx)
		return nil
	}
}
