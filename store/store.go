// Package store provides keyed storage for per-session data. One host
// process serves many independent form sessions; the session key travels on
// the context so every layer reads and writes its own slice of state
// without threading identifiers through call signatures.
package store

import (
	"context"
	"errors"
)

type sessionKeyContext struct{}

const defaultSessionKey = "default"

// WithSessionKey sets the routing key for session storage in the context.
// Hosts typically use the form ID, or formID:visitorID when one form serves
// many concurrent respondents.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKeyContext{}, key)
}

// SessionKeyFromContext gets the routing key from the context.
func SessionKeyFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(sessionKeyContext{})
	if value == nil {
		return "", false
	}
	key, ok := value.(string)
	return key, ok
}

func sessionKeyOrDefault(ctx context.Context) string {
	key, ok := SessionKeyFromContext(ctx)
	if ok && key != "" {
		return key
	}
	return defaultSessionKey
}

// Store namespaces a Cache and routes every operation through the session
// key carried on the context.
type Store[S any] struct {
	core      Cache[S]
	namespace string
}

func NewStore[S any](core Cache[S], namespace string) Store[S] {
	return Store[S]{core: core, namespace: namespace}
}

func (s Store[S]) key(ctx context.Context) (string, error) {
	if s.core == nil {
		return "", errors.New("store has no cache")
	}
	return s.namespace + ":" + sessionKeyOrDefault(ctx), nil
}

func (s Store[S]) Set(ctx context.Context, val S) error {
	key, err := s.key(ctx)
	if err != nil {
		return err
	}
	return s.core.Set(ctx, key, val)
}

func (s Store[S]) Get(ctx context.Context) (S, bool, error) {
	key, err := s.key(ctx)
	if err != nil {
		var zero S
		return zero, false, err
	}
	return s.core.Get(ctx, key)
}

func (s Store[S]) Del(ctx context.Context) error {
	key, err := s.key(ctx)
	if err != nil {
		return err
	}
	return s.core.Del(ctx, key)
}
