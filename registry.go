package formviewer

import (
	"context"
	"fmt"
	"sync"

	"github.com/tbxark/formviewer/store"
)

// Registry hands out one Viewer per session key so a single host process
// can serve many respondents. The key travels on the context via
// store.WithSessionKey; requests without a key share the default session.
type Registry struct {
	mu      sync.Mutex
	store   store.Store[*Viewer]
	factory func(ctx context.Context) (*Viewer, error)
}

// NewRegistry builds a registry over an in-memory cache. The factory is
// invoked once per new session key.
func NewRegistry(factory func(ctx context.Context) (*Viewer, error)) *Registry {
	return &Registry{
		store:   store.NewStore(store.NewMemoryCache[*Viewer](), "viewer:session"),
		factory: factory,
	}
}

// Viewer returns the session's viewer, creating it on first use.
func (r *Registry) Viewer(ctx context.Context) (*Viewer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	viewer, ok, err := r.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if ok {
		return viewer, nil
	}
	viewer, err = r.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := r.store.Set(ctx, viewer); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return viewer, nil
}

// Remove drops the session's viewer. The next lookup starts a fresh one.
func (r *Registry) Remove(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Del(ctx)
}
