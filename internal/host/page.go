package host

import (
	"net/url"
	"slices"
	"sync"

	"vestiva/internal/embed"
	"vestiva/pkg/bus"
)

// Page is the integrator document the loader runs in: a window plus the
// containers it can mount into.
type Page struct {
	win *bus.Window

	mu         sync.Mutex
	containers map[string]*Container
}

// NewPage creates a page at origin. loop may be nil.
func NewPage(origin string, loop *bus.Loop) *Page {
	return &Page{win: bus.NewWindow(origin, loop), containers: map[string]*Container{}}
}

func (p *Page) Window() *bus.Window { return p.win }
func (p *Page) Origin() string      { return p.win.Origin() }

// AddContainer adds an empty element with id, or returns the existing one.
func (p *Page) AddContainer(id string) *Container {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.containers[id]; ok {
		return c
	}
	c := &Container{ID: id}
	p.containers[id] = c
	return c
}

func (p *Page) Container(id string) (*Container, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.containers[id]
	return c, ok
}

// Surface is an element an embed mounts into a container.
type Surface interface {
	SetHidden(hidden bool)
	Hidden() bool
}

type Container struct {
	ID string

	mu       sync.Mutex
	children []Surface
}

func (c *Container) Append(s Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children = append(c.children, s)
}

func (c *Container) Remove(s Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := slices.Index(c.children, s); i >= 0 {
		c.children = slices.Delete(c.children, i, i+1)
	}
}

func (c *Container) Children() []Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.children)
}

// Frame is an iframe element.
type Frame struct {
	mu      sync.Mutex
	src     string
	height  int
	hidden  bool
	content *bus.Window
	unload  func()
}

func (f *Frame) Src() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.src
}

// Height is the last height reported by the embed, in CSS pixels.
func (f *Frame) Height() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.height
}

func (f *Frame) setHeight(h int) {
	f.mu.Lock()
	f.height = h
	f.mu.Unlock()
}

func (f *Frame) SetHidden(hidden bool) {
	f.mu.Lock()
	f.hidden = hidden
	f.mu.Unlock()
}

func (f *Frame) Hidden() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hidden
}

// ContentWindow is the document loaded in the frame, nil before load.
func (f *Frame) ContentWindow() *bus.Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.content
}

// Attach is called by a FrameLoader once the document exists. unload runs
// when the frame is removed.
func (f *Frame) Attach(content *bus.Window, unload func()) {
	f.mu.Lock()
	f.content = content
	f.unload = unload
	f.mu.Unlock()
}

// Navigated records a document-initiated navigation.
func (f *Frame) Navigated(u *url.URL) {
	f.mu.Lock()
	f.src = u.String()
	f.mu.Unlock()
}

func (f *Frame) detach() {
	f.mu.Lock()
	unload := f.unload
	f.unload = nil
	f.content = nil
	f.mu.Unlock()
	if unload != nil {
		unload()
	}
}

// BundleRoot is the element a bundle runtime renders into.
type BundleRoot struct {
	channel *bus.Window

	mu      sync.Mutex
	hidden  bool
	runtime *embed.BundleRuntime
}

// Channel is the private message channel between the page and this root's runtime.
func (b *BundleRoot) Channel() *bus.Window { return b.channel }

func (b *BundleRoot) SetHidden(hidden bool) {
	b.mu.Lock()
	b.hidden = hidden
	b.mu.Unlock()
}

func (b *BundleRoot) Hidden() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hidden
}

// Runtime returns the mounted runtime, nil once unmounted.
func (b *BundleRoot) Runtime() *embed.BundleRuntime {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runtime
}

func originOf(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
