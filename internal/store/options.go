package store

import (
	"log/slog"

	"github.com/roach88/statekit/internal/async"
	"github.com/roach88/statekit/internal/event"
	"github.com/roach88/statekit/internal/middleware"
)

// Option configures a Store.
type Option func(*Store)

// WithLoop runs the store on l instead of a private loop. Several stores may
// share one loop.
func WithLoop(l *async.Loop) Option {
	return func(s *Store) {
		s.loop = l
	}
}

// WithLogger sets the structured logger.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithCascadeMargin sets the cascade guard margin.
//
// Default: 100 (DefaultCascadeMargin)
// Use WithCascadeMargin(5) for testing cascade enforcement.
func WithCascadeMargin(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.guard.margin = n
		}
	}
}

// WithHandler registers h before the store initializes, so it can observe
// (and adjust) BeforeInitialize.
func WithHandler(t event.Type, h event.Handler) Option {
	return func(s *Store) {
		s.events.On(t, h)
	}
}

// WithMiddleware registers an interceptor at construction time.
func WithMiddleware(i middleware.Interceptor[*Store]) Option {
	return func(s *Store) {
		s.middleware.Use(i)
	}
}

// WithAutoReset resets the store to its initial value whenever its last
// subscriber unsubscribes.
func WithAutoReset() Option {
	return func(s *Store) {
		s.autoReset = true
	}
}

// WithID sets the store identifier used in logs and errors.
//
// Default: a fresh UUIDv7
func WithID(id string) Option {
	return func(s *Store) {
		s.id = id
	}
}
