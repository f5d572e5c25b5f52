package host_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vestiva/internal/embed"
	"vestiva/internal/host"
	"vestiva/internal/token"
	"vestiva/internal/widgetapi"
	"vestiva/pkg/bus"
	"vestiva/pkg/clients"
	"vestiva/pkg/config"
	"vestiva/pkg/widgetclient"
)

const (
	shopOrigin  = "https://shop.example.com"
	embedURL    = "https://embed.vestiva.io/app"
	embedOrigin = "https://embed.vestiva.io"
	containerID = "vestiva-widget"
)

func wait(t *testing.T, inst *host.Instance) (host.State, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := inst.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return st, err
}

func heightRenderer(h int) embed.Renderer {
	return embed.RendererFunc(func(context.Context, embed.Config) (int, error) { return h, nil })
}

func newPage() *host.Page {
	p := host.NewPage(shopOrigin, nil)
	p.AddContainer(containerID)
	return p
}

func onlyFrame(t *testing.T, p *host.Page) *host.Frame {
	t.Helper()
	c, _ := p.Container(containerID)
	children := c.Children()
	require.Len(t, children, 1)
	f, ok := children[0].(*host.Frame)
	require.True(t, ok)
	return f
}

func iframe(r embed.Renderer) host.IframeStrategy {
	return host.IframeStrategy{EmbedURL: embedURL, Loader: host.InProcessFrames(r, nil)}
}

func TestIframeReady(t *testing.T) {
	page := newPage()
	var readyEvents, successes atomic.Int32
	remove := page.Window().AddEventListener("vestiva:ready", func(bus.CustomEvent) { readyEvents.Add(1) })

	inst := host.Create(context.Background(), page, host.Options{
		Config:    embed.Config{ContainerID: containerID, Theme: embed.ThemeDark, Language: embed.LanguageEN},
		OnSuccess: func() { successes.Add(1) },
	}, iframe(heightRenderer(640)))

	st, err := wait(t, inst)
	require.NoError(t, err)
	assert.Equal(t, host.StateReady, st)
	assert.EqualValues(t, 1, successes.Load())
	assert.EqualValues(t, 1, readyEvents.Load())

	f := onlyFrame(t, page)
	assert.Equal(t, 640, f.Height())
	assert.True(t, strings.HasPrefix(f.Src(), embedURL+"?"))
	assert.Contains(t, f.Src(), "theme=dark")
	assert.Contains(t, f.Src(), "embedded=true")
	remove()
}

func TestIframeUpdateReloadsFrame(t *testing.T) {
	page := newPage()
	inst := host.Create(context.Background(), page, host.Options{Config: embed.Config{ContainerID: containerID}}, iframe(heightRenderer(100)))
	_, err := wait(t, inst)
	require.NoError(t, err)

	dark := embed.ThemeDark
	require.NoError(t, inst.Update(embed.Partial{Theme: &dark}))

	f := onlyFrame(t, page)
	assert.Contains(t, f.Src(), "theme=dark")
	assert.Equal(t, embed.ThemeDark, inst.Config().Theme)
	assert.Equal(t, embed.LanguageES, inst.Config().Language)
	assert.Equal(t, host.StateReady, inst.State())
}

// gatedLoader holds frame loading until release is closed.
func gatedLoader(next host.FrameLoader) (host.FrameLoader, chan struct{}, chan struct{}) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	return func(ctx context.Context, f *host.Frame, parent *bus.Window) error {
		once.Do(func() { close(started) })
		<-release
		return next(ctx, f, parent)
	}, started, release
}

func TestIframeQueuedUpdatesApplyOnReady(t *testing.T) {
	page := newPage()
	loader, started, release := gatedLoader(host.InProcessFrames(heightRenderer(100), nil))
	inst := host.Create(context.Background(), page, host.Options{Config: embed.Config{ContainerID: containerID}},
		host.IframeStrategy{EmbedURL: embedURL, Loader: loader})
	<-started
	assert.Equal(t, host.StateMounting, inst.State())

	dark, light := embed.ThemeDark, embed.ThemeLight
	en := embed.LanguageEN
	require.NoError(t, inst.Update(embed.Partial{Theme: &dark}))
	require.NoError(t, inst.Update(embed.Partial{Language: &en}))
	require.NoError(t, inst.Update(embed.Partial{Theme: &light}))
	close(release)

	_, err := wait(t, inst)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		src := onlyFrame(t, page).Src()
		return strings.Contains(src, "language=en") && strings.Contains(src, "theme=light")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, embed.LanguageEN, inst.Config().Language)
}

func TestIframeDestroy(t *testing.T) {
	page := newPage()
	inst := host.Create(context.Background(), page, host.Options{Config: embed.Config{ContainerID: containerID}}, iframe(heightRenderer(100)))
	_, err := wait(t, inst)
	require.NoError(t, err)
	content := onlyFrame(t, page).ContentWindow()
	require.NotNil(t, content)

	inst.Destroy()
	inst.Destroy()

	assert.Equal(t, host.StateDestroyed, inst.State())
	assert.Zero(t, page.Window().ListenerCount())
	assert.Zero(t, content.ListenerCount(), "frame document unloaded")
	c, _ := page.Container(containerID)
	assert.Empty(t, c.Children())
	assert.ErrorIs(t, inst.Update(embed.Partial{}), host.ErrInactive)
}

func TestIframeDestroyDuringInit(t *testing.T) {
	page := newPage()
	loader, started, release := gatedLoader(host.InProcessFrames(heightRenderer(100), nil))
	var successes atomic.Int32
	inst := host.Create(context.Background(), page, host.Options{
		Config:    embed.Config{ContainerID: containerID},
		OnSuccess: func() { successes.Add(1) },
	}, host.IframeStrategy{EmbedURL: embedURL, Loader: loader})
	<-started

	inst.Destroy()
	st, err := wait(t, inst)
	require.NoError(t, err)
	assert.Equal(t, host.StateDestroyed, st)
	close(release)

	c, _ := page.Container(containerID)
	require.Eventually(t, func() bool { return len(c.Children()) == 0 && page.Window().ListenerCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, successes.Load())
	assert.Equal(t, host.StateDestroyed, inst.State())
}

func TestIframeIgnoresForeignOrigins(t *testing.T) {
	page := newPage()
	inst := host.Create(context.Background(), page, host.Options{Config: embed.Config{ContainerID: containerID}}, iframe(heightRenderer(100)))
	_, err := wait(t, inst)
	require.NoError(t, err)

	evil := bus.NewWindow("https://evil.example", page.Window().Loop())
	height, _ := bus.EncodeEmbed(bus.Height{Height: 9999})
	fail, _ := bus.EncodeEmbed(bus.ErrorSignal{Error: "pwned"})
	require.NoError(t, page.Window().PostMessage(evil, height, "*"))
	require.NoError(t, page.Window().PostMessage(evil, fail, shopOrigin))
	require.NoError(t, page.Window().PostRaw(onlyFrame(t, page).ContentWindow(), []byte(`{"nope":1}`), "*"))

	assert.Equal(t, 100, onlyFrame(t, page).Height())
	assert.Equal(t, host.StateReady, inst.State())
}

func TestIframeRenderErrorFails(t *testing.T) {
	page := newPage()
	var got []*host.Error
	var events atomic.Int32
	remove := page.Window().AddEventListener("vestiva:error", func(bus.CustomEvent) { events.Add(1) })
	defer remove()

	r := embed.RendererFunc(func(context.Context, embed.Config) (int, error) { return 0, errors.New("no data") })
	inst := host.Create(context.Background(), page, host.Options{
		Config:  embed.Config{ContainerID: containerID},
		OnError: func(err *host.Error) { got = append(got, err) },
	}, iframe(r))

	st, err := wait(t, inst)
	assert.Equal(t, host.StateFailed, st)
	var he *host.Error
	require.ErrorAs(t, err, &he)
	assert.Equal(t, host.KindRender, he.Kind)
	assert.ErrorIs(t, err, host.ErrRender)
	assert.Contains(t, err.Error(), "no data")
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, events.Load())

	c, _ := page.Container(containerID)
	assert.Empty(t, c.Children())
	inst.Destroy()
	assert.Equal(t, host.StateFailed, inst.State())
}

func TestMissingContainer(t *testing.T) {
	page := host.NewPage(shopOrigin, nil)
	var loads atomic.Int32
	loader := func(context.Context, *host.Frame, *bus.Window) error { loads.Add(1); return nil }
	inst := host.Create(context.Background(), page, host.Options{Config: embed.Config{ContainerID: "absent"}},
		host.IframeStrategy{EmbedURL: embedURL, Loader: loader})

	st, err := wait(t, inst)
	assert.Equal(t, host.StateFailed, st)
	assert.ErrorIs(t, err, host.ErrContainerNotFound)
	assert.Equal(t, host.KindConfiguration, inst.Err().Kind)
	assert.Zero(t, loads.Load())
}

func TestInvalidConfiguration(t *testing.T) {
	page := newPage()
	inst := host.Create(context.Background(), page, host.Options{Config: embed.Config{ContainerID: containerID, View: embed.ViewAccount}}, iframe(heightRenderer(1)))
	_, err := wait(t, inst)
	assert.ErrorIs(t, err, embed.ErrInvalidConfig)
	assert.Equal(t, host.KindConfiguration, inst.Err().Kind)
}

func TestIframeEventsAndExit(t *testing.T) {
	page := newPage()
	var mu sync.Mutex
	var names []string
	var exits int
	inst := host.Create(context.Background(), page, host.Options{
		Config: embed.Config{ContainerID: containerID},
		OnEvent: func(name string, _ any) {
			mu.Lock()
			names = append(names, name)
			mu.Unlock()
		},
		OnExit: func(any) {
			mu.Lock()
			exits++
			mu.Unlock()
		},
	}, iframe(heightRenderer(1)))
	_, err := wait(t, inst)
	require.NoError(t, err)

	var detail json.RawMessage
	remove := page.Window().AddEventListener("vestiva:navigate", func(ev bus.CustomEvent) { detail, _ = ev.Detail.(json.RawMessage) })
	defer remove()
	nav, _ := bus.EncodeEmbed(bus.Custom{Type: "navigate", Data: json.RawMessage(`{"to":"statements"}`)})
	require.NoError(t, page.Window().PostMessage(onlyFrame(t, page).ContentWindow(), nav, shopOrigin))
	assert.JSONEq(t, `{"to":"statements"}`, string(detail))

	inst.Exit()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"navigate", "exit"}, names)
	assert.Equal(t, 1, exits)
}

func TestOpenRevealsHiddenSurface(t *testing.T) {
	page := newPage()
	inst := host.Create(context.Background(), page, host.Options{Config: embed.Config{ContainerID: containerID}, Hidden: true}, iframe(heightRenderer(1)))
	_, err := wait(t, inst)
	require.NoError(t, err)
	f := onlyFrame(t, page)
	assert.True(t, f.Hidden())
	inst.Open()
	assert.False(t, f.Hidden())
}

func TestOpenAndExitBeforeReadyAreNoops(t *testing.T) {
	page := newPage()
	loader, started, release := gatedLoader(host.InProcessFrames(heightRenderer(1), nil))
	inst := host.Create(context.Background(), page, host.Options{Config: embed.Config{ContainerID: containerID}, Hidden: true},
		host.IframeStrategy{EmbedURL: embedURL, Loader: loader})
	<-started
	inst.Open()
	inst.Exit()
	close(release)
	_, err := wait(t, inst)
	require.NoError(t, err)
	assert.True(t, onlyFrame(t, page).Hidden())
}

func TestIframeWithAPIPassesToken(t *testing.T) {
	srv := newAPIServer(t)
	page := host.NewPage("http://localhost:5173", nil)
	page.AddContainer(containerID)
	api := widgetclient.New(srv.URL, page.Origin())

	var seen string
	r := embed.RendererFunc(func(_ context.Context, cfg embed.Config) (int, error) {
		seen = cfg.Token
		return 1, nil
	})
	inst := host.Create(context.Background(), page, host.Options{Config: embed.Config{ContainerID: containerID, ClientID: clients.DevClientID}},
		host.IframeStrategy{API: api, Loader: host.InProcessFrames(r, nil)})
	_, err := wait(t, inst)
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.True(t, strings.HasPrefix(onlyFrame(t, page).Src(), "http://localhost:5173?"), onlyFrame(t, page).Src())

	res, err := api.ValidateToken(context.Background(), seen)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		JWTSecret:       "test-secret",
		TokenTTL:        time.Hour,
		RateLimitWindow: time.Minute,
		RateLimitMax:    100,
		EmbedURL:        "http://localhost:5173",
		PublicURL:       "http://localhost:3000",
	}
	reg := clients.NewRegistry(clients.NewMemoryProvider(clients.DevRegistration()), nil)
	app := widgetapi.New(cfg, nil, reg, token.NewService(reg, []byte(cfg.JWTSecret), nil), nil)
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		srv.Close()
		app.Close()
	})
	return srv
}

func bundleFor(t *testing.T, origin string, r embed.Renderer) (*host.Page, host.BundleStrategy) {
	t.Helper()
	srv := newAPIServer(t)
	page := host.NewPage(origin, nil)
	page.AddContainer(containerID)
	return page, host.BundleStrategy{API: widgetclient.New(srv.URL, origin), Renderer: r}
}

func devOptions() host.Options {
	return host.Options{Config: embed.Config{ContainerID: containerID, ClientID: clients.DevClientID, ClientToken: "dev-client-token"}}
}

func TestBundleReadyAndLiveUpdate(t *testing.T) {
	var themes []embed.Theme
	var mu sync.Mutex
	r := embed.RendererFunc(func(_ context.Context, cfg embed.Config) (int, error) {
		mu.Lock()
		themes = append(themes, cfg.Theme)
		mu.Unlock()
		if cfg.Token == "" {
			return 0, errors.New("no session token")
		}
		return 320, nil
	})
	page, strategy := bundleFor(t, "http://localhost:5173", r)
	inst := host.Create(context.Background(), page, devOptions(), strategy)
	st, err := wait(t, inst)
	require.NoError(t, err)
	require.Equal(t, host.StateReady, st)

	c, _ := page.Container(containerID)
	require.Len(t, c.Children(), 1)
	root := c.Children()[0].(*host.BundleRoot)
	rt := root.Runtime()
	require.NotNil(t, rt)
	assert.Equal(t, 320, rt.Height())

	dark := embed.ThemeDark
	require.NoError(t, inst.Update(embed.Partial{Theme: &dark}))
	assert.Same(t, rt, root.Runtime(), "bundle updates re-render in place")
	assert.Equal(t, 2, rt.Renders())
	mu.Lock()
	assert.Equal(t, []embed.Theme{embed.ThemeLight, embed.ThemeDark}, themes)
	mu.Unlock()

	inst.Destroy()
	assert.Zero(t, page.Window().ListenerCount())
	assert.Empty(t, c.Children())
}

func TestBundleAuthorizationFailuresCollapse(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		opts   func(*host.Options)
	}{
		{"wrong client token", "http://localhost:5173", func(o *host.Options) { o.ClientToken = "guess" }},
		{"unknown client", "http://localhost:5173", func(o *host.Options) { o.ClientID = "nope" }},
		{"unauthorized origin", "https://evil.example", func(*host.Options) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, strategy := bundleFor(t, tt.origin, heightRenderer(1))
			opts := devOptions()
			tt.opts(&opts)
			inst := host.Create(context.Background(), page, opts, strategy)
			st, err := wait(t, inst)
			assert.Equal(t, host.StateFailed, st)
			assert.Equal(t, host.KindAuthorization, inst.Err().Kind)
			assert.ErrorIs(t, err, host.ErrAuthenticationFailed)
			assert.Equal(t, "authorization: authentication failed", err.Error())
			assert.Zero(t, page.Window().ListenerCount())
		})
	}
}

func TestBundleMissingCredentials(t *testing.T) {
	page, strategy := bundleFor(t, "http://localhost:5173", heightRenderer(1))
	inst := host.Create(context.Background(), page, host.Options{Config: embed.Config{ContainerID: containerID, ClientID: clients.DevClientID}}, strategy)
	_, err := wait(t, inst)
	assert.ErrorIs(t, err, host.ErrMissingCredentials)
	assert.Equal(t, host.KindConfiguration, inst.Err().Kind)
}

func TestBundleHandshakeTimeoutFromManifest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/widget/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"1","handshake_timeout_ms":40}`))
	})
	mux.HandleFunc("/api/widget/validate-domain", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	start := time.Now()
	inst := host.Create(context.Background(), newPage(), devOptions(), host.BundleStrategy{API: widgetclient.New(srv.URL, shopOrigin), Renderer: heightRenderer(1)})
	_, err := wait(t, inst)
	assert.ErrorIs(t, err, host.ErrHandshakeTimeout)
	assert.Less(t, time.Since(start), host.DefaultHandshakeTimeout)
}

func TestBundleHandshakeTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/widget/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"1"}`))
	})
	mux.HandleFunc("/api/widget/validate-domain", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	page := newPage()
	strategy := host.BundleStrategy{API: widgetclient.New(srv.URL, shopOrigin), Renderer: heightRenderer(1), Timeout: 50 * time.Millisecond}
	inst := host.Create(context.Background(), page, devOptions(), strategy)
	_, err := wait(t, inst)
	assert.ErrorIs(t, err, host.ErrHandshakeTimeout)
	assert.Equal(t, host.KindTransport, inst.Err().Kind)
}

func TestBundleTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	page := newPage()
	inst := host.Create(context.Background(), page, devOptions(), host.BundleStrategy{API: widgetclient.New(srv.URL, shopOrigin), Renderer: heightRenderer(1)})
	_, err := wait(t, inst)
	require.Error(t, err)
	assert.Equal(t, host.KindTransport, inst.Err().Kind)
}

func TestBundleRerenderFailure(t *testing.T) {
	r := embed.RendererFunc(func(_ context.Context, cfg embed.Config) (int, error) {
		if cfg.Theme == embed.ThemeDark {
			panic("theme assets missing")
		}
		return 1, nil
	})
	page, strategy := bundleFor(t, "http://localhost:5173", r)
	var got atomic.Pointer[host.Error]
	opts := devOptions()
	opts.OnError = func(err *host.Error) { got.Store(err) }
	inst := host.Create(context.Background(), page, opts, strategy)
	_, err := wait(t, inst)
	require.NoError(t, err)

	dark := embed.ThemeDark
	require.NoError(t, inst.Update(embed.Partial{Theme: &dark}))
	assert.Equal(t, host.StateFailed, inst.State())
	require.NotNil(t, got.Load())
	assert.Equal(t, host.KindRender, got.Load().Kind)
	assert.ErrorIs(t, got.Load(), embed.ErrRenderPanic)
	assert.Zero(t, page.Window().ListenerCount())
}

// flush waits until every task already queued on the page loop has run.
func flush(p *host.Page) { p.Window().Loop().Call(func() {}) }

func frameIn(t *testing.T, p *host.Page, id string) *host.Frame {
	t.Helper()
	c, ok := p.Container(id)
	require.True(t, ok)
	children := c.Children()
	require.Len(t, children, 1)
	f, ok := children[0].(*host.Frame)
	require.True(t, ok)
	return f
}

func bundleRootIn(t *testing.T, p *host.Page, id string) *host.BundleRoot {
	t.Helper()
	c, ok := p.Container(id)
	require.True(t, ok)
	children := c.Children()
	require.Len(t, children, 1)
	root, ok := children[0].(*host.BundleRoot)
	require.True(t, ok)
	return root
}

func TestIframeInstancesOnOnePageAreIndependent(t *testing.T) {
	page := newPage()
	page.AddContainer("second")
	var exitsA, exitsB atomic.Int32
	a := host.Create(context.Background(), page, host.Options{
		Config: embed.Config{ContainerID: containerID},
		OnExit: func(any) { exitsA.Add(1) },
	}, iframe(heightRenderer(100)))
	b := host.Create(context.Background(), page, host.Options{
		Config: embed.Config{ContainerID: "second"},
		OnExit: func(any) { exitsB.Add(1) },
	}, iframe(heightRenderer(200)))
	for _, inst := range []*host.Instance{a, b} {
		st, err := wait(t, inst)
		require.NoError(t, err)
		require.Equal(t, host.StateReady, st)
	}
	flush(page)
	fa, fb := frameIn(t, page, containerID), frameIn(t, page, "second")
	srcB := fb.Src()

	height, _ := bus.EncodeEmbed(bus.Height{Height: 777})
	require.NoError(t, page.Window().PostMessage(fa.ContentWindow(), height, shopOrigin))
	flush(page)
	assert.Equal(t, 777, fa.Height())
	assert.Equal(t, 200, fb.Height())

	dark := embed.ThemeDark
	require.NoError(t, a.Update(embed.Partial{Theme: &dark}))
	flush(page)
	assert.Contains(t, fa.Src(), "theme=dark")
	assert.Equal(t, srcB, fb.Src())

	a.Exit()
	flush(page)
	assert.EqualValues(t, 1, exitsA.Load())
	assert.Zero(t, exitsB.Load())

	a.Destroy()
	assert.Equal(t, 1, page.Window().ListenerCount(), "the second instance keeps its listener")
	assert.Equal(t, host.StateReady, b.State())
	require.NoError(t, b.Update(embed.Partial{Theme: &dark}))
	flush(page)
	assert.Contains(t, fb.Src(), "theme=dark")
}

func TestIframeErrorFromOneFrameFailsOnlyItsInstance(t *testing.T) {
	page := newPage()
	page.AddContainer("second")
	a := host.Create(context.Background(), page, host.Options{Config: embed.Config{ContainerID: containerID}}, iframe(heightRenderer(100)))
	b := host.Create(context.Background(), page, host.Options{Config: embed.Config{ContainerID: "second"}}, iframe(heightRenderer(100)))
	for _, inst := range []*host.Instance{a, b} {
		_, err := wait(t, inst)
		require.NoError(t, err)
	}
	flush(page)
	fa := frameIn(t, page, containerID)

	fail, _ := bus.EncodeEmbed(bus.ErrorSignal{Error: "first frame broke"})
	require.NoError(t, page.Window().PostMessage(fa.ContentWindow(), fail, shopOrigin))
	flush(page)

	assert.Equal(t, host.StateFailed, a.State())
	assert.Equal(t, host.KindRender, a.Err().Kind)
	assert.Equal(t, host.StateReady, b.State())
	assert.Nil(t, b.Err())
	assert.Equal(t, 1, page.Window().ListenerCount())
}

func TestBundleInstancesOnOnePageAreIndependent(t *testing.T) {
	page, strategy := bundleFor(t, "http://localhost:5173", heightRenderer(50))
	page.AddContainer("second")
	var exitsA, exitsB atomic.Int32
	optsA, optsB := devOptions(), devOptions()
	optsB.ContainerID = "second"
	optsA.OnExit = func(any) { exitsA.Add(1) }
	optsB.OnExit = func(any) { exitsB.Add(1) }

	a := host.Create(context.Background(), page, optsA, strategy)
	b := host.Create(context.Background(), page, optsB, strategy)
	for _, inst := range []*host.Instance{a, b} {
		st, err := wait(t, inst)
		require.NoError(t, err)
		require.Equal(t, host.StateReady, st)
	}
	flush(page)
	rootA, rootB := bundleRootIn(t, page, containerID), bundleRootIn(t, page, "second")
	ra, rb := rootA.Runtime(), rootB.Runtime()

	dark := embed.ThemeDark
	require.NoError(t, a.Update(embed.Partial{Theme: &dark}))
	flush(page)
	assert.Equal(t, embed.ThemeDark, ra.Config().Theme)
	assert.Equal(t, embed.ThemeLight, rb.Config().Theme)
	assert.Equal(t, 1, rb.Renders())

	a.Exit()
	flush(page)
	assert.Equal(t, embed.ThemeLight, ra.Config().Theme)
	assert.EqualValues(t, 1, exitsA.Load())
	assert.Zero(t, exitsB.Load())
	assert.Equal(t, 1, rb.Renders())

	a.Destroy()
	assert.Zero(t, rootA.Channel().ListenerCount())
	assert.Equal(t, 1, rootB.Channel().ListenerCount(), "the second instance keeps its listener")
	assert.Equal(t, host.StateReady, b.State())
	require.NoError(t, b.Update(embed.Partial{Theme: &dark}))
	flush(page)
	assert.Equal(t, embed.ThemeDark, rb.Config().Theme)
}
