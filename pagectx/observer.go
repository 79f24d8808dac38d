package pagectx

import "sync"

// Navigator is the host's navigation primitive set. Hosts that manage
// their own location (single-page flows) hand the runtime a Navigator so
// page changes can be observed.
type Navigator interface {
	Push(url string)
	Replace(url string)
	Back()
}

// WrappedNavigator intercepts a host Navigator and reports every
// navigation to a callback while delegating to the original behavior
// unchanged. The host swaps its Navigator for the wrapper and swaps back
// via Restore.
type WrappedNavigator struct {
	inner    Navigator
	onChange func(url string)

	mu       sync.Mutex
	restored bool
}

// Wrap returns a Navigator that forwards to inner and invokes onChange
// after each navigation. onChange receives the target URL for pushes and
// replaces and "" for back navigation (the host resolves its own
// location).
func Wrap(inner Navigator, onChange func(url string)) *WrappedNavigator {
	return &WrappedNavigator{inner: inner, onChange: onChange}
}

func (w *WrappedNavigator) notify(url string) {
	w.mu.Lock()
	restored := w.restored
	w.mu.Unlock()
	if !restored && w.onChange != nil {
		w.onChange(url)
	}
}

func (w *WrappedNavigator) Push(url string) {
	w.inner.Push(url)
	w.notify(url)
}

func (w *WrappedNavigator) Replace(url string) {
	w.inner.Replace(url)
	w.notify(url)
}

func (w *WrappedNavigator) Back() {
	w.inner.Back()
	w.notify("")
}

// Restore returns the original Navigator and permanently silences the
// wrapper: callbacks never fire again even if the host keeps calling the
// wrapper by mistake. Safe to call more than once.
func (w *WrappedNavigator) Restore() Navigator {
	w.mu.Lock()
	w.restored = true
	w.mu.Unlock()
	return w.inner
}

// HookObserver is the cooperative alternative to wrapping: hosts that do
// not want their Navigator intercepted call Notify on every navigation
// themselves.
type HookObserver struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(url string)
}

func NewHookObserver() *HookObserver {
	return &HookObserver{subs: make(map[int]func(string))}
}

// Subscribe registers a callback and returns its cleanup function. After
// cleanup the callback is never invoked again; cleanup is idempotent.
func (h *HookObserver) Subscribe(cb func(url string)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.subs[id] = cb
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// Notify reports a navigation to all subscribers.
func (h *HookObserver) Notify(url string) {
	h.mu.Lock()
	cbs := make([]func(string), 0, len(h.subs))
	for _, cb := range h.subs {
		cbs = append(cbs, cb)
	}
	h.mu.Unlock()
	for _, cb := range cbs {
		cb(url)
	}
}
