package transport

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/demonfiddler/evidence-engine-sub001/internal/appstate"
	"github.com/demonfiddler/evidence-engine-sub001/internal/catalog"
	"github.com/demonfiddler/evidence-engine-sub001/internal/config"
	"github.com/demonfiddler/evidence-engine-sub001/internal/masterlink"
	"github.com/demonfiddler/evidence-engine-sub001/internal/observability"
	"github.com/demonfiddler/evidence-engine-sub001/internal/page"
	"github.com/demonfiddler/evidence-engine-sub001/internal/session"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// Session is one browser session: its global context and the listings it
// has opened.
type Session struct {
	ID    string
	Store *appstate.Store
	Links *masterlink.Propagator

	catalog *catalog.Catalog
	deps    page.Deps

	mu          sync.Mutex
	controllers map[model.EntityKind]page.Controller
	lastSeen    time.Time
}

// Controller returns the session's listing for kind, building it on first
// use.
func (s *Session) Controller(kind model.EntityKind) (page.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.controllers[kind]; ok {
		return c, nil
	}
	c, err := s.catalog.Controller(kind, s.deps)
	if err != nil {
		return nil, err
	}
	s.controllers[kind] = c
	return c, nil
}

// Sync refetches every mounted listing whose derived query changed, as it
// does after the master link moves. except is skipped.
func (s *Session) Sync(ctx context.Context, except model.EntityKind) error {
	s.mu.Lock()
	mounted := make([]page.Controller, 0, len(s.controllers))
	for kind, c := range s.controllers {
		if kind != except && c.Mounted() {
			mounted = append(mounted, c)
		}
	}
	s.mu.Unlock()

	for _, c := range mounted {
		if err := c.Sync(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Manager owns the sessions held by this process. The durable part of each
// session lives in the session backend, so a session evicted here, or first
// seen by another replica, is rehydrated on its next request.
type Manager struct {
	backend session.Backend
	catalog *catalog.Catalog
	pages   config.PagesConfig
	idle    time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager. Sessions unused for idle are
// dropped by Sweep.
func NewManager(backend session.Backend, cat *catalog.Catalog, pages config.PagesConfig, idle time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		backend:  backend,
		catalog:  cat,
		pages:    pages,
		idle:     idle,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session with id, hydrating it from the backend on first
// use in this process.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, session.ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.mu.Lock()
		s.lastSeen = m.now()
		s.mu.Unlock()
		return s, nil
	}

	logger := m.logger.With(zap.String("session_id", id))
	store, err := appstate.New(ctx, m.backend.Session(id), logger, m.metrics)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:      id,
		Store:   store,
		Links:   masterlink.NewPropagator(store),
		catalog: m.catalog,
		deps: page.Deps{
			Context: store,
			Pages:   m.pages,
			Logger:  logger,
			Metrics: m.metrics,
		},
		controllers: make(map[model.EntityKind]page.Controller),
		lastSeen:    m.now(),
	}
	m.sessions[id] = s
	m.metrics.SetActiveSessions(len(m.sessions))
	logger.Debug("session opened")
	return s, nil
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than the idle timeout and returns how
// many were dropped.
func (m *Manager) Sweep() int {
	if m.idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idle)

	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			dropped++
		}
	}
	if dropped > 0 {
		m.metrics.SetActiveSessions(len(m.sessions))
		m.logger.Debug("idle sessions dropped", zap.Int("count", dropped))
	}
	return dropped
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
