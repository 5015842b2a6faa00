package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"skillscape/internal/domain"
)

// ErrSessionContextStarted is returned by Start on a running context.
var ErrSessionContextStarted = errors.New("session context already started")

// SessionContext holds the signed-in users of this process. It is fed by the
// provider's auth-state stream between Start and Stop, and re-enriches a user
// from its profile on every change for that identity.
//
// Enrichment for one identity is serialized, and each run takes a generation
// number once it holds the identity's lock: a result never replaces one read
// after it, and a sign-out discards every run that started before it.
type SessionContext struct {
	provider IdentityProvider
	profiles ProfileStore
	now      func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sessionLock

	mu          sync.RWMutex
	gen         uint64
	applied     map[string]uint64
	signedOut   map[string]uint64
	inflight    map[string]int
	identities  map[string]domain.Identity
	users       map[string]domain.SessionUser
	loading     bool
	subscribers map[chan domain.SessionState]struct{}
	cancel      func()
	done        chan struct{}
}

func NewSessionContext(provider IdentityProvider, profiles ProfileStore) *SessionContext {
	return &SessionContext{
		provider:    provider,
		profiles:    profiles,
		now:         time.Now,
		locks:       make(map[string]*sessionLock),
		applied:     make(map[string]uint64),
		signedOut:   make(map[string]uint64),
		inflight:    make(map[string]int),
		identities:  make(map[string]domain.Identity),
		users:       make(map[string]domain.SessionUser),
		loading:     true,
		subscribers: make(map[chan domain.SessionState]struct{}),
	}
}

// Start subscribes to auth-state changes. Loading stays true until the first
// change has been applied.
func (s *SessionContext) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrSessionContextStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	events, unsubscribe, err := s.provider.Subscribe(runCtx)
	if err != nil {
		cancel()
		return err
	}
	done := make(chan struct{})
	s.cancel = func() {
		cancel()
		unsubscribe()
	}
	s.done = done
	s.loading = true

	go s.run(runCtx, events, done)
	return nil
}

// Stop cancels the subscription, waits for the stream to drain and closes
// every subscriber. A stopped context can be started again.
func (s *SessionContext) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if done == nil {
		return
	}

	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.applied = make(map[string]uint64)
	s.signedOut = make(map[string]uint64)
	s.identities = make(map[string]domain.Identity)
	s.users = make(map[string]domain.SessionUser)
	s.loading = true
	s.cancel = nil
	s.done = nil
}

// Loading reports whether the initial auth state is still unknown.
func (s *SessionContext) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// CurrentUser returns the enriched user for a signed-in identity.
func (s *SessionContext) CurrentUser(uid string) (domain.SessionUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[uid]
	return user, ok
}

// Refresh re-reads the profile of a verified identity, e.g. right after the
// profile was written or edited, and tracks the identity as signed in.
func (s *SessionContext) Refresh(ctx context.Context, identity domain.Identity) (domain.SessionUser, error) {
	if identity.UID == "" {
		return domain.SessionUser{}, domain.ErrIdentityNotFound
	}
	user, _ := s.enrich(context.WithoutCancel(ctx), identity)
	return user, nil
}

// Subscribe returns a channel of session-state transitions, starting with a
// snapshot. The caller must invoke the returned cancel function to avoid leaks.
func (s *SessionContext) Subscribe() (<-chan domain.SessionState, func()) {
	ch := make(chan domain.SessionState, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- domain.SessionState{Loading: s.loading, At: s.now()}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *SessionContext) run(ctx context.Context, events <-chan domain.AuthStateChange, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-events:
			if !ok {
				return
			}
			s.apply(ctx, change)
		}
	}
}

func (s *SessionContext) apply(ctx context.Context, change domain.AuthStateChange) {
	if change.SignedIn() {
		s.enrich(ctx, *change.Identity)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if change.UID != "" {
		s.gen++
		delete(s.applied, change.UID)
		if s.inflight[change.UID] > 0 {
			s.signedOut[change.UID] = s.gen
		}
		delete(s.identities, change.UID)
		delete(s.users, change.UID)
	}
	s.loading = false
	s.broadcastLocked(domain.SessionState{UID: change.UID, SignedIn: false, At: s.now()})
}

// enrich fetches the identity's profile and records the merged user unless a
// later run or a sign-out got there first. It reports whether it was recorded.
func (s *SessionContext) enrich(ctx context.Context, identity domain.Identity) (domain.SessionUser, bool) {
	uid := identity.UID
	s.mu.Lock()
	s.gen++
	started := s.gen
	s.inflight[uid]++
	s.mu.Unlock()

	unlock := s.lock(uid)
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	user := s.fetch(ctx, identity)
	unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	stale := s.signedOut[uid] > started || s.applied[uid] > gen
	if s.inflight[uid]--; s.inflight[uid] == 0 {
		delete(s.inflight, uid)
		delete(s.signedOut, uid)
	}
	if stale {
		return user, false
	}
	s.applied[uid] = gen
	s.identities[identity.UID] = identity
	s.users[identity.UID] = user
	s.loading = false
	s.broadcastLocked(domain.SessionState{UID: identity.UID, SignedIn: true, User: &user, At: s.now()})
	return user, true
}

func (s *SessionContext) fetch(ctx context.Context, identity domain.Identity) domain.SessionUser {
	profile, err := s.profiles.GetProfile(ctx, identity.UID)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			log.Printf("fetch profile for %s: %v", identity.UID, err)
		}
		return Enrich(identity, nil)
	}
	return Enrich(identity, &profile)
}

func (s *SessionContext) lock(uid string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[uid]
	if !ok {
		l = &sessionLock{}
		s.locks[uid] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, uid)
		}
		s.locksMu.Unlock()
	}
}

func (s *SessionContext) broadcastLocked(state domain.SessionState) {
	for ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// drop the oldest queued state for slow readers
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}
