package host

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vestiva/internal/embed"
	"vestiva/pkg/bus"
)

// lateDriver registers its listener and surface only after Destroy has run,
// then reports the cancellation as a mount error.
type lateDriver struct {
	env driverEnv

	mu     sync.Mutex
	remove func()
	root   *BundleRoot
	c      *Container
}

type lateStrategy struct{}

func (lateStrategy) Name() string                   { return "late" }
func (lateStrategy) newDriver(env driverEnv) driver { return &lateDriver{env: env} }

func (d *lateDriver) load(context.Context) error                        { return nil }
func (d *lateDriver) authenticate(context.Context, *embed.Config) error { return nil }
func (d *lateDriver) send(bus.HostMessage) error                        { return nil }
func (d *lateDriver) setHidden(bool)                                    {}

func (d *lateDriver) mount(ctx context.Context, c *Container, _ embed.Config) error {
	d.env.sink.(*Instance).Destroy()
	root := &BundleRoot{}
	d.mu.Lock()
	d.remove = d.env.page.Window().AddMessageListener(func(bus.MessageEvent) {})
	d.root, d.c = root, c
	d.mu.Unlock()
	c.Append(root)
	return ctx.Err()
}

func (d *lateDriver) unmount() {
	d.mu.Lock()
	remove, root, c := d.remove, d.root, d.c
	d.remove, d.root, d.c = nil, nil, nil
	d.mu.Unlock()
	if remove != nil {
		remove()
	}
	if root != nil {
		c.Remove(root)
	}
}

func TestDestroyBeforeMountRegistersReleasesEverything(t *testing.T) {
	page := NewPage("https://shop.example.com", nil)
	c := page.AddContainer("w")
	inst := Create(context.Background(), page, Options{Config: embed.Config{ContainerID: "w"}}, lateStrategy{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := inst.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateDestroyed, st)

	require.Eventually(t, func() bool {
		return page.Window().ListenerCount() == 0 && len(c.Children()) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateDestroyed, inst.State())
	assert.Nil(t, inst.Err())
}
