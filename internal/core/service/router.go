// Package service provides the session store, view router and login form.
//
// Router selects the view for the current session.
package service

import "sync"

// View is one of the mutually exclusive screens.
type View int

const (
	// ViewLoading is shown until the initial load from secure storage
	// completes. It belongs to the unauthenticated subtree.
	ViewLoading View = iota
	// ViewLogin is the login form.
	ViewLogin
	// ViewProfile is the authenticated subtree.
	ViewProfile
)

// String returns the view name.
func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewLogin:
		return "login"
	case ViewProfile:
		return "profile"
	default:
		return "unknown"
	}
}

// Authenticated reports whether the view is part of the authenticated subtree.
func (v View) Authenticated() bool {
	return v == ViewProfile
}

// Route picks the view for a snapshot. Only the access credential decides
// between the subtrees; the refresh credential is never consulted.
func Route(snap Snapshot) View {
	switch {
	case snap.Session.Authenticated():
		return ViewProfile
	case !snap.Loaded:
		return ViewLoading
	default:
		return ViewLogin
	}
}

// Renderer draws a routed view.
type Renderer interface {
	Render(view View, snap Snapshot)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(View, Snapshot)

// Render calls f(view, snap).
func (f RendererFunc) Render(view View, snap Snapshot) {
	f(view, snap)
}

// Router re-renders whenever the session store changes.
type Router struct {
	store    *SessionStore
	renderer Renderer

	startMu     sync.Mutex
	unsubscribe func()

	mu   sync.Mutex
	last *Snapshot
}

// NewRouter binds renderer to store.
func NewRouter(store *SessionStore, renderer Renderer) *Router {
	return &Router{store: store, renderer: renderer}
}

// Start renders the current view and subscribes to changes.
// Calling Start twice is a no-op.
func (r *Router) Start() {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if r.unsubscribe != nil {
		return
	}
	r.unsubscribe = r.store.Watch(r.render)
}

// Stop unsubscribes from the store.
func (r *Router) Stop() {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

// View returns the view for the store's current state.
func (r *Router) View() View {
	return Route(r.store.Snapshot())
}

// render skips snapshots identical to the last one rendered.
func (r *Router) render(snap Snapshot) {
	r.mu.Lock()
	if r.last != nil && *r.last == snap {
		r.mu.Unlock()
		return
	}
	r.last = &snap
	r.mu.Unlock()

	r.renderer.Render(Route(snap), snap)
}
