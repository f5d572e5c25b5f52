package bus

import (
	"encoding/json"
	"sync"
)

// MessageEvent is what a message listener receives.
type MessageEvent struct {
	Origin string  // sender origin, set by the bus and never by the sender
	Source *Window // sender window
	Data   []byte  // serialized envelope
}

// Envelope parses the event payload.
func (e MessageEvent) Envelope() (Envelope, error) { return ParseEnvelope(e.Data) }

// CustomEvent is a same-document signal (window.dispatchEvent analogue).
type CustomEvent struct {
	Name   string
	Detail any
}

// Window is one browsing context: a host page or the document inside an iframe.
type Window struct {
	origin string
	loop   *Loop

	messages listeners[func(MessageEvent)]
	mu       sync.Mutex
	events   map[string]*listeners[func(CustomEvent)]
}

// NewWindow creates a browsing context for origin whose messages run on loop.
func NewWindow(origin string, loop *Loop) *Window {
	if loop == nil {
		loop = NewLoop()
	}
	return &Window{origin: origin, loop: loop, events: map[string]*listeners[func(CustomEvent)]{}}
}

func (w *Window) Origin() string { return w.origin }
func (w *Window) Loop() *Loop    { return w.loop }

// PostMessage delivers env to w as if from had called w.postMessage.
// targetOrigin must be "*" or w's origin, otherwise the message is dropped
// silently. Delivery is asynchronous with respect to listeners: it is queued on
// w's loop.
func (w *Window) PostMessage(from *Window, env Envelope, targetOrigin string) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return w.PostRaw(from, raw, targetOrigin)
}

// PostRaw delivers an already serialized payload; used for untyped traffic.
func (w *Window) PostRaw(from *Window, raw []byte, targetOrigin string) error {
	if targetOrigin != "*" && targetOrigin != w.origin {
		return nil
	}
	ev := MessageEvent{Data: append([]byte(nil), raw...)}
	if from != nil {
		ev.Origin = from.origin
		ev.Source = from
	}
	w.loop.Post(func() {
		w.messages.each(func(fn func(MessageEvent)) { fn(ev) })
	})
	return nil
}

// AddMessageListener registers fn for incoming messages. The returned func
// removes it; a removed listener is never invoked again, even for messages
// already queued.
func (w *Window) AddMessageListener(fn func(MessageEvent)) (remove func()) {
	return w.messages.add(fn)
}

// DispatchEvent invokes listeners for ev.Name synchronously.
func (w *Window) DispatchEvent(ev CustomEvent) {
	w.mu.Lock()
	ls := w.events[ev.Name]
	w.mu.Unlock()
	if ls == nil {
		return
	}
	ls.each(func(fn func(CustomEvent)) { fn(ev) })
}

// AddEventListener registers fn for custom events named name.
func (w *Window) AddEventListener(name string, fn func(CustomEvent)) (remove func()) {
	w.mu.Lock()
	ls, ok := w.events[name]
	if !ok {
		ls = &listeners[func(CustomEvent)]{}
		w.events[name] = ls
	}
	w.mu.Unlock()
	return ls.add(fn)
}

// ListenerCount reports registered message listeners plus custom event listeners.
func (w *Window) ListenerCount() int {
	n := w.messages.len()
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ls := range w.events {
		n += ls.len()
	}
	return n
}

// listeners is an ordered registry with stable ids; removal is idempotent.
type listeners[F any] struct {
	mu     sync.Mutex
	nextID int
	order  []int
	fns    map[int]F
}

func (l *listeners[F]) add(fn F) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = map[int]F{}
	}
	l.nextID++
	id := l.nextID
	l.order = append(l.order, id)
	l.fns[id] = fn
	var once sync.Once
	return func() { once.Do(func() { l.remove(id) }) }
}

func (l *listeners[F]) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.fns, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *listeners[F]) get(id int) (F, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn, ok := l.fns[id]
	return fn, ok
}

func (l *listeners[F]) each(call func(F)) {
	l.mu.Lock()
	ids := append([]int(nil), l.order...)
	l.mu.Unlock()
	for _, id := range ids {
		if fn, ok := l.get(id); ok {
			call(fn)
		}
	}
}

func (l *listeners[F]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}
