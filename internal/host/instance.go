// Package host is the loader running in the integrator page. It validates
// options, loads the transport, authenticates, mounts the embed through a
// strategy and relays the embed's signals to page callbacks and vestiva:*
// events.
package host

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vestiva/internal/embed"
	"vestiva/pkg/bus"
	"vestiva/pkg/logger"
	"vestiva/pkg/metrics"
)

type State int

const (
	StateUninitialized State = iota
	StateLoadingTransport
	StateAuthenticating
	StateMounting
	StateReady
	StateFailed
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoadingTransport:
		return "loading-transport"
	case StateAuthenticating:
		return "authenticating"
	case StateMounting:
		return "mounting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Options are what the integrator passes to Create.
type Options struct {
	embed.Config

	// Hidden mounts the surface hidden until Open.
	Hidden bool

	OnSuccess func()
	OnExit    func(meta any)
	OnEvent   func(name string, meta any)
	OnError   func(err *Error)
	Log       *zap.SugaredLogger
}

// Strategy decides how the embed is delivered: IframeStrategy or BundleStrategy.
type Strategy interface {
	Name() string
	newDriver(env driverEnv) driver
}

type driverEnv struct {
	page *Page
	opts Options
	sink sink
	log  *zap.SugaredLogger
}

// driver is one strategy bound to one instance.
type driver interface {
	load(ctx context.Context) error
	authenticate(ctx context.Context, cfg *embed.Config) error
	mount(ctx context.Context, c *Container, cfg embed.Config) error
	send(m bus.HostMessage) error
	setHidden(hidden bool)
	// unmount removes listeners first and the surface second. It may be
	// called repeatedly and releases whatever is still held.
	unmount()
}

// sink receives embed signals; all methods are safe from any goroutine.
type sink interface {
	ready()
	fail(err *Error)
	event(name string, data any)
}

// Instance is one embed mounted (or being mounted) in a page.
type Instance struct {
	id       string
	page     *Page
	opts     Options
	strategy string
	drv      driver
	log      *zap.SugaredLogger
	started  time.Time
	cancel   context.CancelFunc

	mu      sync.Mutex
	state   State
	cfg     embed.Config
	pending embed.Partial
	err     *Error
	settled chan struct{}
	once    sync.Once
}

// Create starts initializing an embed and returns immediately. Progress is
// observable through State, Wait and the callbacks in opts.
func Create(ctx context.Context, page *Page, opts Options, strategy Strategy) *Instance {
	ctx, cancel := context.WithCancel(ctx)
	inst := &Instance{
		id:       uuid.NewString(),
		page:     page,
		opts:     opts,
		strategy: strategy.Name(),
		log:      logger.OrNop(opts.Log),
		started:  time.Now(),
		cancel:   cancel,
		cfg:      opts.Config.WithDefaults(),
		settled:  make(chan struct{}),
	}
	inst.log = inst.log.With("embed", inst.id, "strategy", inst.strategy)
	inst.drv = strategy.newDriver(driverEnv{page: page, opts: opts, sink: inst, log: inst.log})
	go inst.run(ctx)
	return inst
}

func (i *Instance) ID() string { return i.id }

func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Err returns the failure of a failed instance.
func (i *Instance) Err() *Error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

// Config returns the configuration last sent to the embed.
func (i *Instance) Config() embed.Config {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cfg
}

// Wait blocks until the instance is ready, failed or destroyed.
func (i *Instance) Wait(ctx context.Context) (State, error) {
	select {
	case <-i.settled:
	case <-ctx.Done():
		return i.State(), ctx.Err()
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.state, i.err
	}
	return i.state, nil
}

// Open shows the surface. It does nothing before ready.
func (i *Instance) Open() {
	if i.State() != StateReady {
		return
	}
	i.drv.setHidden(false)
}

// Exit asks the embed to return to its neutral state. It does nothing before ready.
func (i *Instance) Exit() {
	if i.State() != StateReady {
		return
	}
	if err := i.drv.send(bus.Exit{}); err != nil {
		i.log.Warnw("forward exit", "err", err)
	}
}

// Update applies a partial configuration. Before ready, updates are merged
// and applied once the embed is ready.
func (i *Instance) Update(p embed.Partial) error {
	i.mu.Lock()
	switch i.state {
	case StateFailed, StateDestroyed:
		i.mu.Unlock()
		return ErrInactive
	case StateReady:
		i.cfg = i.cfg.Merge(p)
		i.mu.Unlock()
		return i.sendUpdate(p)
	default:
		i.pending = i.pending.Merge(p)
		i.mu.Unlock()
		return nil
	}
}

// Destroy tears the instance down: listeners first, then the surface. It
// cancels an in-flight initialization and is safe to call repeatedly. A
// failed instance has already released everything and stays failed.
func (i *Instance) Destroy() {
	i.mu.Lock()
	if i.state == StateDestroyed || i.state == StateFailed {
		i.mu.Unlock()
		return
	}
	prev := i.state
	i.state = StateDestroyed
	i.mu.Unlock()

	i.cancel()
	i.drv.unmount()
	i.settle()
	if prev != StateReady {
		i.observe("cancelled")
	}
	i.log.Infow("embed destroyed", "from", prev.String())
}

func (i *Instance) run(ctx context.Context) {
	cfg := i.Config()
	if err := i.preflight(cfg); err != nil {
		i.fail(err)
		return
	}
	if !i.advance(StateLoadingTransport) {
		return
	}
	if err := i.drv.load(ctx); err != nil {
		i.fail(newError(KindTransport, err))
		return
	}
	if !i.advance(StateAuthenticating) {
		return
	}
	if err := i.drv.authenticate(ctx, &cfg); err != nil {
		i.fail(newError(KindAuthorization, err))
		return
	}
	if !i.advance(StateMounting) {
		return
	}
	c, ok := i.page.Container(cfg.ContainerID)
	if !ok {
		i.fail(newError(KindConfiguration, ErrContainerNotFound))
		return
	}
	err := i.drv.mount(ctx, c, cfg)
	// Destroy may have run before mount registered anything.
	if i.State() == StateDestroyed {
		i.drv.unmount()
		return
	}
	if err != nil {
		i.fail(newError(KindRender, err))
	}
}

func (i *Instance) preflight(cfg embed.Config) *Error {
	if cfg.ContainerID == "" {
		return newError(KindConfiguration, ErrContainerNotFound)
	}
	if _, ok := i.page.Container(cfg.ContainerID); !ok {
		return newError(KindConfiguration, ErrContainerNotFound)
	}
	if err := cfg.Validate(); err != nil {
		return newError(KindConfiguration, err)
	}
	return nil
}

// advance moves to next unless the instance was destroyed or failed meanwhile.
func (i *Instance) advance(next State) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == StateDestroyed || i.state == StateFailed {
		return false
	}
	i.state = next
	return true
}

func (i *Instance) ready() {
	i.mu.Lock()
	if i.state != StateMounting {
		i.mu.Unlock()
		return
	}
	i.state = StateReady
	pending := i.pending
	i.pending = embed.Partial{}
	if !pending.IsZero() {
		i.cfg = i.cfg.Merge(pending)
	}
	i.mu.Unlock()

	i.observe("ready")
	i.log.Infow("embed ready", "container", i.opts.ContainerID, "elapsed", time.Since(i.started))
	i.page.Window().DispatchEvent(bus.CustomEvent{
		Name:   bus.Namespaced(bus.TypeReady),
		Detail: map[string]string{"containerId": i.opts.ContainerID},
	})
	if i.opts.OnSuccess != nil {
		i.opts.OnSuccess()
	}
	i.settle()
	if !pending.IsZero() {
		if err := i.sendUpdate(pending); err != nil {
			i.log.Warnw("apply queued update", "err", err)
		}
	}
}

func (i *Instance) fail(err *Error) {
	i.mu.Lock()
	if i.state == StateDestroyed || i.state == StateFailed {
		i.mu.Unlock()
		return
	}
	i.state = StateFailed
	i.err = err
	i.mu.Unlock()

	i.cancel()
	i.drv.unmount()
	i.observe("failed")
	if err.cause != nil {
		i.log.Warnw("embed failed", "kind", err.Kind.String(), "err", err.Err, "cause", err.cause)
	} else {
		i.log.Warnw("embed failed", "kind", err.Kind.String(), "err", err.Err)
	}
	i.page.Window().DispatchEvent(bus.CustomEvent{Name: bus.Namespaced(bus.TypeError), Detail: err})
	if i.opts.OnError != nil {
		i.opts.OnError(err)
	}
	i.settle()
}

func (i *Instance) event(name string, data any) {
	st := i.State()
	if st != StateReady && st != StateMounting {
		return
	}
	i.page.Window().DispatchEvent(bus.CustomEvent{Name: bus.Namespaced(name), Detail: data})
	if name == "exit" && i.opts.OnExit != nil {
		i.opts.OnExit(data)
	}
	if i.opts.OnEvent != nil {
		i.opts.OnEvent(name, data)
	}
}

func (i *Instance) sendUpdate(p embed.Partial) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return i.drv.send(bus.ConfigUpdate{Config: raw})
}

func (i *Instance) settle() {
	i.once.Do(func() { close(i.settled) })
}

func (i *Instance) observe(outcome string) {
	metrics.HandshakeDuration.WithLabelValues(i.strategy, outcome).Observe(time.Since(i.started).Seconds())
}
