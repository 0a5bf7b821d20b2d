package session

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Manager owns the one session of a process. UI code and the HTTP layer
// share it by reference; it is the only place session state is mutated.
type Manager struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time

	mu       sync.RWMutex
	current  Session
	inited   bool
	disposed bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Session)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns an empty, uninitialized Manager backed by store.
// A nil store keeps the session in memory only.
func NewManager(store Store, opts ...Option) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	m := &Manager{
		store: store,
		log:   zerolog.Nop(),
		now:   time.Now,
		subs:  make(map[int]func(Session)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init rehydrates the session from the store once. Missing or unreadable
// data yields the empty session.
func (m *Manager) Init() Session {
	m.mu.Lock()
	if m.inited {
		s := m.current.clone()
		m.mu.Unlock()
		return s
	}
	m.inited = true

	loaded, err := m.store.Load()
	switch {
	case errors.Is(err, ErrNoSnapshot):
		m.current = Session{}
	case err != nil:
		m.log.Warn().Err(err).Msg("session rehydrate failed, starting empty")
		m.current = Session{}
	default:
		m.current = loaded.normalize()
	}
	s := m.current.clone()
	m.mu.Unlock()

	m.log.Debug().Bool("authenticated", s.IsAuthenticated).Msg("session initialized")
	m.notify(s)
	return s
}

// Dispose detaches subscribers. Later mutations still apply and persist,
// so an exchange that outlives the caller cannot strand a spent token on
// disk; they just notify nobody.
func (m *Manager) Dispose() {
	m.mu.Lock()
	m.disposed = true
	m.mu.Unlock()

	m.subMu.Lock()
	m.subs = make(map[int]func(Session))
	m.subMu.Unlock()
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.clone()
}

// AccessToken returns the current access token, possibly empty.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.AccessToken
}

// SetSession replaces the whole session after a login or signup.
func (m *Manager) SetSession(p Principal, accessToken, refreshToken string, expiry time.Time) {
	m.mutate("set", func(s *Session) bool {
		*s = Session{
			AccessToken:     accessToken,
			RefreshToken:    refreshToken,
			Principal:       &p,
			Expiry:          expiry,
			IsAuthenticated: accessToken != "",
		}
		return true
	})
}

// UpdateTokens swaps the tokens after a refresh, keeping the principal.
// An empty refreshToken keeps the current one: some backends do not rotate.
func (m *Manager) UpdateTokens(accessToken, refreshToken string, expiry time.Time) {
	m.mutate("tokens", func(s *Session) bool {
		if s.Principal == nil {
			m.log.Warn().Msg("token update without a principal ignored")
			return false
		}
		s.AccessToken = accessToken
		if refreshToken != "" {
			s.RefreshToken = refreshToken
		}
		s.Expiry = expiry
		s.IsAuthenticated = accessToken != ""
		return true
	})
}

// UpdatePrincipal shallow-merges patch into the principal. Without a
// principal it only logs.
func (m *Manager) UpdatePrincipal(patch PrincipalPatch) {
	m.mutate("principal", func(s *Session) bool {
		if s.Principal == nil {
			m.log.Warn().Msg("principal update without a principal ignored")
			return false
		}
		merged := s.Principal.Apply(patch)
		merged.UpdatedAt = m.now()
		s.Principal = &merged
		return true
	})
}

// ConfirmPrincipal replaces the principal with one from the profile endpoint.
func (m *Manager) ConfirmPrincipal(p Principal) {
	m.mutate("confirm", func(s *Session) bool {
		if s.AccessToken == "" {
			m.log.Warn().Msg("principal confirmation without a session ignored")
			return false
		}
		p.Trust = Confirmed
		s.Principal = &p
		s.IsAuthenticated = true
		return true
	})
}

// Clear resets to the empty session, whatever the prior state.
func (m *Manager) Clear() {
	m.mutate("clear", func(s *Session) bool {
		*s = Session{}
		return true
	})
}

// SwapTokens is UpdateTokens for a refresh that started from refreshToken
// from. It changes nothing and reports false when the session no longer
// holds that refresh token (logout or a new login happened meanwhile).
func (m *Manager) SwapTokens(from, accessToken, refreshToken string, expiry time.Time) bool {
	swapped := false
	m.mutate("tokens", func(s *Session) bool {
		if s.RefreshToken != from || s.Principal == nil {
			return false
		}
		s.AccessToken = accessToken
		if refreshToken != "" {
			s.RefreshToken = refreshToken
		}
		s.Expiry = expiry
		s.IsAuthenticated = accessToken != ""
		swapped = true
		return true
	})
	return swapped
}

// ClearFrom clears the session only while it still holds refresh token
// from. It reports whether it did.
func (m *Manager) ClearFrom(from string) bool {
	cleared := false
	m.mutate("clear", func(s *Session) bool {
		if s.RefreshToken != from {
			return false
		}
		*s = Session{}
		cleared = true
		return true
	})
	return cleared
}

// Token implements oauth2.TokenSource over the current session.
func (m *Manager) Token() (*oauth2.Token, error) {
	s := m.Snapshot()
	if !s.IsAuthenticated {
		return nil, ErrNoSession
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       s.Expiry,
	}, nil
}

// Subscribe registers fn for every session change. The returned func
// removes it.
func (m *Manager) Subscribe(fn func(Session)) (unsubscribe func()) {
	m.mu.RLock()
	disposed := m.disposed
	m.mu.RUnlock()
	if disposed {
		return func() {}
	}

	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

// mutate applies fn under the write lock and persists the result. Persisting
// happens under the lock so the store sees mutations in order.
func (m *Manager) mutate(op string, fn func(*Session) bool) {
	m.mu.Lock()
	next := m.current.clone()
	if !fn(&next) {
		m.mu.Unlock()
		return
	}
	m.current = next

	var err error
	if next.IsAuthenticated {
		err = m.store.Save(next)
	} else {
		err = m.store.Delete()
	}
	snap := next.clone()
	disposed := m.disposed
	m.mu.Unlock()

	if err != nil {
		m.log.Warn().Err(err).Str("op", op).Msg("session persist failed")
	}
	if !disposed {
		m.notify(snap)
	}
}

func (m *Manager) notify(s Session) {
	m.subMu.Lock()
	fns := make([]func(Session), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(s.clone())
	}
}
