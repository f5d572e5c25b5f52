package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vestiva/internal/embed"
	"vestiva/pkg/bus"
	"vestiva/pkg/widgetclient"
)

// DefaultHandshakeTimeout bounds the validate-domain + auth sequence when
// neither the strategy nor the manifest sets one.
const DefaultHandshakeTimeout = 5 * time.Second

// BundleStrategy mounts the embed directly in the host document after a
// two-step handshake with the widget API. Updates re-render in place.
type BundleStrategy struct {
	API *widgetclient.Client
	// Timeout overrides the manifest's handshake timeout.
	Timeout  time.Duration
	Renderer embed.Renderer
}

func (BundleStrategy) Name() string { return "bundle" }

func (s BundleStrategy) newDriver(env driverEnv) driver {
	return &bundleDriver{s: s, env: env, timeout: s.Timeout}
}

type bundleDriver struct {
	s       BundleStrategy
	env     driverEnv
	timeout time.Duration

	mu        sync.Mutex
	root      *BundleRoot
	container *Container
}

func (d *bundleDriver) load(ctx context.Context) error {
	if d.s.API == nil {
		return newError(KindConfiguration, errors.New("bundle strategy without API client"))
	}
	if d.env.opts.ClientID == "" || d.env.opts.ClientToken == "" {
		return newError(KindConfiguration, ErrMissingCredentials)
	}
	m, err := d.s.API.Manifest(ctx)
	if err != nil {
		return newError(KindTransport, fmt.Errorf("load bundle: %w", err))
	}
	if d.timeout <= 0 {
		d.timeout = time.Duration(m.HandshakeTimeoutMS) * time.Millisecond
	}
	if d.timeout <= 0 {
		d.timeout = DefaultHandshakeTimeout
	}
	return nil
}

// authenticate runs validate-domain then auth, sequentially, within the
// handshake timeout. Neither step is retried.
func (d *bundleDriver) authenticate(ctx context.Context, cfg *embed.Config) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ok, err := d.s.API.ValidateDomain(ctx, cfg.ClientID, cfg.ClientToken)
	if err != nil {
		return classify(err)
	}
	if !ok {
		return authFailed(errors.New("domain not authorized"))
	}
	tok, err := d.s.API.Authenticate(ctx, cfg.ClientID, cfg.ClientToken)
	if err != nil {
		return classify(err)
	}
	cfg.Token = tok
	return nil
}

func (d *bundleDriver) mount(ctx context.Context, c *Container, cfg embed.Config) error {
	page := d.env.page.Window()
	root := &BundleRoot{hidden: d.env.opts.Hidden, channel: bus.NewWindow(page.Origin(), page.Loop())}
	rt := embed.NewBundleRuntime(embed.BundleOptions{
		Window:   page,
		Channel:  root.channel,
		Config:   cfg,
		Renderer: d.s.Renderer,
		OnError: func(err error) {
			d.env.sink.fail(&Error{Kind: KindRender, Err: fmt.Errorf("%w: %w", ErrRender, err)})
		},
		OnEvent: d.env.sink.event,
		Log:     d.env.log,
	})
	root.runtime = rt
	d.mu.Lock()
	d.root, d.container = root, c
	d.mu.Unlock()

	c.Append(root)
	if err := rt.Start(ctx); err != nil {
		return newError(KindRender, fmt.Errorf("%w: %w", ErrRender, err))
	}
	d.env.sink.ready()
	return nil
}

// send posts from the page to this instance's channel only.
func (d *bundleDriver) send(m bus.HostMessage) error {
	d.mu.Lock()
	root := d.root
	d.mu.Unlock()
	if root == nil {
		return errors.New("bundle not mounted")
	}
	env, err := bus.EncodeHost(m)
	if err != nil {
		return err
	}
	return root.channel.PostMessage(d.env.page.Window(), env, root.channel.Origin())
}

func (d *bundleDriver) setHidden(hidden bool) {
	d.mu.Lock()
	root := d.root
	d.mu.Unlock()
	if root != nil {
		root.SetHidden(hidden)
	}
}

func (d *bundleDriver) unmount() {
	d.mu.Lock()
	root, c := d.root, d.container
	d.root, d.container = nil, nil
	d.mu.Unlock()
	if root == nil {
		return
	}
	root.mu.Lock()
	rt := root.runtime
	root.runtime = nil
	root.mu.Unlock()
	if rt != nil {
		rt.Stop()
	}
	if c != nil {
		c.Remove(root)
	}
}
