package store

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/statekit/internal/async"
	"github.com/roach88/statekit/internal/event"
	"github.com/roach88/statekit/internal/middleware"
	"github.com/roach88/statekit/internal/pathexpr"
	"github.com/roach88/statekit/internal/subscriber"
	"github.com/roach88/statekit/internal/value"
)

// Store is a reactive container for one immutable value.
//
// Thread-safety model:
//   - Dispatch(): safe from any goroutine
//   - everything else: the loop goroutine only (see package docs)
type Store struct {
	id     string
	loop   *async.Loop
	logger *slog.Logger

	events     *event.Emitter
	middleware middleware.Pipeline[*Store]
	subs       subscriber.Registry

	initial any
	state   any

	// Scheduler state
	waiting    bool     // An awaited promise is in flight
	buffered   []func() // Requests that arrived while waiting, in order
	committing int      // Nesting of commit calls
	commits    uint64   // Completed commits, for cascade accounting
	guard      cascadeGuard

	// Notification state
	notifyPending bool
	notifyPrev    any    // Value before the first commit of the pending wave
	notifyGen     uint64 // Invalidates a posted flush superseded by SetStateSync
	flushing      bool

	used      bool
	autoReset bool
}

// New creates a store holding initial.
//
// BeforeInitialize and AfterInitialize are emitted before New returns; use
// WithHandler to observe them.
func New(initial any, opts ...Option) *Store {
	s := &Store{
		logger: slog.Default(),
		events: event.NewEmitter(),
		guard:  cascadeGuard{margin: DefaultCascadeMargin},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.Must(uuid.NewV7()).String()
	}
	if s.loop == nil {
		s.loop = async.NewLoop(async.WithLoopLogger(s.logger))
	}
	s.logger = s.logger.With("store", s.id)

	s.subs.OnPanic = func(_ *subscriber.Descriptor, err error) {
		s.fail(SetterException, "@", err)
	}

	tr := &Transition{Next: initial}
	s.events.Emit(BeforeInitialize, tr)
	s.initial = tr.Next
	s.state = tr.Next
	s.events.Emit(AfterInitialize, s.state)

	s.logger.Debug("store initialized", "interceptors", s.middleware.Len())
	return s
}

// ID returns the store identifier.
func (s *Store) ID() string {
	return s.id
}

// Loop returns the loop the store runs on.
func (s *Store) Loop() *async.Loop {
	return s.loop
}

// Logger returns the store's logger, for collaborators.
func (s *Store) Logger() *slog.Logger {
	return s.logger
}

// Dispatch posts fn onto the store's loop. Thread-safe.
func (s *Store) Dispatch(fn func()) bool {
	return s.loop.Post(fn)
}

// GetState returns the committed value.
func (s *Store) GetState() any {
	return s.state
}

// GetStateAt returns the committed value at path.
func (s *Store) GetStateAt(path string) (any, error) {
	return pathexpr.GetAt(s.state, path)
}

// GetInitialState returns the value the store was created with.
func (s *Store) GetInitialState() any {
	return s.initial
}

// GetInitialStateAt returns the initial value at path.
func (s *Store) GetInitialStateAt(path string) (any, error) {
	return pathexpr.GetAt(s.initial, path)
}

// ExtendState shallow-merges partial into the current value without events,
// middleware or notifications. It is meant for plugin-time hydration before
// the store is first used.
func (s *Store) ExtendState(partial any) {
	if s.used {
		s.logger.Warn("ExtendState after first use bypasses subscribers")
	}
	s.state = value.Merge(s.state, partial)
}

// On registers an event handler.
func (s *Store) On(t event.Type, h event.Handler) event.HandlerID {
	return s.events.On(t, h)
}

// Once registers a handler that runs at most once.
func (s *Store) Once(t event.Type, h event.Handler) event.HandlerID {
	return s.events.Once(t, h)
}

// Off removes a handler registered with On or Once.
func (s *Store) Off(t event.Type, id event.HandlerID) bool {
	return s.events.Off(t, id)
}

// Emit dispatches a custom event through the store's emitter.
func (s *Store) Emit(t event.Type, data any) *event.Event {
	return s.events.Emit(t, data)
}

// Use appends a middleware interceptor. It applies to commits that start
// after the call.
func (s *Store) Use(i middleware.Interceptor[*Store]) {
	s.middleware.Use(i)
}

// PluginFunc initializes a plugin against a store. It may register handlers,
// middleware and subscribers; its result is returned from Plugin.
type PluginFunc func(s *Store) (any, error)

// Plugin invokes init immediately and returns its result. A panic in init
// is returned as an error.
func (s *Store) Plugin(init PluginFunc) (result any, err error) {
	s.events.Emit(BeforePlugin, nil)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("plugin panicked: %v", r)
			}
		}()
		result, err = init(s)
	}()
	if err != nil {
		s.logger.Error("plugin failed", "error", err)
		return nil, fmt.Errorf("install plugin: %w", err)
	}

	s.events.Emit(AfterPlugin, result)
	return result, nil
}

// Subscribe registers d with the subscriber registry and emits the mount
// lifecycle events. For framework adapters.
func (s *Store) Subscribe(d *subscriber.Descriptor) {
	if !s.used {
		s.used = true
		s.events.Emit(BeforeFirstUse, s.state)
	}
	ch := s.subs.Add(d)
	if !ch.Added {
		return
	}
	if ch.FirstEver {
		s.events.Emit(AfterFirstUse, s.state)
	}
	if ch.First {
		s.events.Emit(AfterFirstMount, d)
	}
	s.events.Emit(AfterMount, d)
}

// Unsubscribe removes d and emits the unmount lifecycle events. With
// WithAutoReset, removing the last subscriber resets the state.
func (s *Store) Unsubscribe(d *subscriber.Descriptor) {
	removed, last := s.subs.Remove(d)
	if !removed {
		return
	}
	s.events.Emit(AfterUnmount, d)
	if !last {
		return
	}
	s.events.Emit(AfterLastUnmount, d)
	if s.autoReset {
		if err := s.ResetState(); err != nil {
			s.logger.Error("auto reset failed", "error", err)
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (s *Store) Subscribers() int {
	return s.subs.Len()
}
