// Package service provides the session store, view router and login form.
//
// SessionStore owns the credential pair and mirrors it to secure storage.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yndnr/tokpass/internal/core/domain"
	"github.com/yndnr/tokpass/internal/infra/securestore"
	"github.com/yndnr/tokpass/internal/telemetry/logger"
	"github.com/yndnr/tokpass/internal/telemetry/metric"
)

// Snapshot is what observers receive: the committed session and whether the
// initial load from secure storage has completed.
type Snapshot struct {
	Session domain.Session
	Loaded  bool
}

// Observer is notified after every committed change.
type Observer func(Snapshot)

// SessionStore is the single source of truth for authentication state.
//
// It is constructed once per process and passed to whatever needs it.
// Mutations are serialized by mu; observers are called outside the lock,
// in registration order, from the goroutine that performed the mutation.
// Overlapping Login and Logout calls run one after the other, storage
// writes included.
type SessionStore struct {
	storage securestore.Storage
	logger  logger.Logger
	metrics *metric.Registry

	mu        sync.Mutex
	session   domain.Session
	loaded    bool
	initDone  chan struct{}
	initOnce  sync.Once
	closed    bool
	nextID    int
	observers []observerEntry

	// notifyMu orders notifications so observers see commits in order.
	notifyMu sync.Mutex

	// writeMu spans commit and persist of Login and Logout, so storage
	// always ends up holding the last committed session.
	writeMu sync.Mutex
}

type observerEntry struct {
	id int
	fn Observer
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithSessionLogger sets the logger.
func WithSessionLogger(l logger.Logger) SessionOption {
	return func(s *SessionStore) {
		s.logger = l
	}
}

// WithSessionMetrics sets the metrics registry.
func WithSessionMetrics(m *metric.Registry) SessionOption {
	return func(s *SessionStore) {
		s.metrics = m
	}
}

// NewSessionStore creates a logged-out store backed by storage.
func NewSessionStore(storage securestore.Storage, opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		storage:  storage,
		logger:   logger.Default(),
		initDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	s.metrics.SetSessionState(domain.StateLoggedOut.String(), allStates...)
	return s
}

var allStates = []string{
	domain.StateLoggedOut.String(),
	domain.StateLoggedIn.String(),
	domain.StatePartial.String(),
}

// Initialize loads the credential pair from secure storage.
//
// Absent values and read failures leave the attribute unset; read failures
// are logged and never returned. Only the first call does any work. If the
// store was closed, or a Login already happened, before the read resolves,
// the loaded values are discarded.
func (s *SessionStore) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		defer close(s.initDone)

		access := s.read(ctx, securestore.KeyAccessToken)
		refresh := s.read(ctx, securestore.KeyRefreshToken)

		s.commit(func() (domain.Session, bool) {
			if s.closed || s.loaded {
				s.logger.Debug("discarding stale initialize result")
				return s.session, false
			}
			s.loaded = true
			return domain.Session{Access: access, Refresh: refresh}, true
		})

		cur := s.Current()
		if cur.State() == domain.StatePartial {
			s.logger.Warn("secure storage holds a partial session", "state", cur.State().String())
		}
		s.logger.Debug("session initialized", "state", cur.State().String())
	})
	return nil
}

// InitializeAsync runs Initialize on its own goroutine. The returned channel
// is closed once it has completed.
func (s *SessionStore) InitializeAsync(ctx context.Context) <-chan struct{} {
	go func() {
		_ = s.Initialize(ctx)
	}()
	return s.initDone
}

// WaitLoaded blocks until Initialize has completed or ctx is done.
func (s *SessionStore) WaitLoaded(ctx context.Context) error {
	select {
	case <-s.initDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SessionStore) read(ctx context.Context, key string) string {
	v, ok, err := s.storage.Get(ctx, key)
	if err != nil {
		s.logger.Warn("secure storage read failed, treating as absent", "slot", key, "error", err)
		s.metrics.ObserveReadFailure()
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// Login commits both credentials, notifies observers, then persists them.
//
// A storage failure returns ErrPersistence but leaves the session usable.
func (s *SessionStore) Login(ctx context.Context, access, refresh string) error {
	sess, err := domain.NewSession(access, refresh)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.commit(func() (domain.Session, bool) {
		s.loaded = true
		return sess, true
	})
	s.logger.Info("session started")

	if err := s.persist(ctx, "set", func() error {
		err := s.storage.Set(ctx, securestore.KeyAccessToken, sess.Access)
		if err == nil {
			err = s.storage.Set(ctx, securestore.KeyRefreshToken, sess.Refresh)
		}
		if err != nil {
			// Never leave a mismatched pair on disk.
			_ = s.storage.Delete(ctx, securestore.KeyAccessToken)
			_ = s.storage.Delete(ctx, securestore.KeyRefreshToken)
		}
		return err
	}); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

// Logout clears both credentials and deletes them from secure storage.
// Calling it without a session is a no-op apart from the deletes.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.commit(func() (domain.Session, bool) {
		s.loaded = true
		return domain.Session{}, true
	})
	s.logger.Info("session cleared")

	if err := s.persist(ctx, "delete", func() error {
		return errors.Join(
			s.storage.Delete(ctx, securestore.KeyAccessToken),
			s.storage.Delete(ctx, securestore.KeyRefreshToken),
		)
	}); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (s *SessionStore) persist(ctx context.Context, op string, fn func() error) error {
	if err := fn(); err != nil {
		s.logger.Error("secure storage write failed, session kept in memory", "op", op, "error", err)
		s.metrics.ObservePersistenceFailure(op)
		return domain.ErrPersistence.WithCause(err)
	}
	return nil
}

// commit applies mutate under the lock and, when the snapshot changed,
// notifies observers. mutate returns the new session and whether to apply it.
func (s *SessionStore) commit(mutate func() (domain.Session, bool)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	before := Snapshot{Session: s.session, Loaded: s.loaded}
	next, apply := mutate()
	if apply {
		s.session = next
	}
	after := Snapshot{Session: s.session, Loaded: s.loaded}
	closed := s.closed
	observers := make([]observerEntry, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	if after == before {
		return
	}
	s.metrics.SetSessionState(after.Session.State().String(), allStates...)
	if closed {
		return
	}
	for _, o := range observers {
		o.fn(after)
	}
}

// Current returns the committed session.
func (s *SessionStore) Current() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// State returns the login state of the committed session.
func (s *SessionStore) State() domain.State {
	return s.Current().State()
}

// Loaded reports whether the initial load has completed (or been superseded
// by a login or logout).
func (s *SessionStore) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Snapshot returns the current session and load state together.
func (s *SessionStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Session: s.session, Loaded: s.loaded}
}

// Subscribe registers fn for change notifications. The returned function
// removes it and may be called more than once. fn must not call Login or
// Logout synchronously.
func (s *SessionStore) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Watch is Subscribe plus an immediate call with the current snapshot. The
// initial call is ordered with notifications, so fn never sees an older
// snapshot after a newer one.
func (s *SessionStore) Watch(fn Observer) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	unsubscribe = s.Subscribe(fn)
	fn(s.Snapshot())
	return unsubscribe
}

// Close tears the store down: pending initialize results are discarded and
// observers are no longer notified. It does not close the storage.
func (s *SessionStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.observers = nil
}
