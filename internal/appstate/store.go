// Package appstate holds the per-session global context shared by every
// listing page: the signed-in user, the master link, remembered selections,
// per-kind query state and column layouts, and a few UI toggles.
//
// Every setter derives the new value from the latest in-memory state,
// persists the session-storable subset and then publishes the new value,
// all under one lock. A failed persist leaves memory untouched, so a reader
// never sees memory and storage disagree.
package appstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/demonfiddler/evidence-engine-sub001/internal/observability"
	"github.com/demonfiddler/evidence-engine-sub001/internal/session"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// Context is the global context as seen by pages and the master-link
// propagator.
type Context interface {
	Security() model.SecurityState
	SetSecurity(ctx context.Context, s model.SecurityState) error

	MasterLink() model.MasterLinkState
	// UpdateMasterLink replaces the master link with fn's result. fn sees
	// the latest master link and selected records and must not block.
	UpdateMasterLink(ctx context.Context, fn func(model.MasterLinkState, model.SelectedRecordsMap) model.MasterLinkState) error

	SelectedRecords() model.SelectedRecordsMap
	// SetSelectedRecord remembers ref as the selection for kind. A nil ref
	// forgets it.
	SetSelectedRecord(ctx context.Context, kind model.EntityKind, ref *model.Ref) error

	QueryState(kind model.EntityKind) (model.QueryState, bool)
	UpdateQueryState(ctx context.Context, kind model.EntityKind, fn func(model.QueryState) model.QueryState) error

	ColumnLayout(kind model.EntityKind) model.ColumnLayout
	SetColumnLayout(ctx context.Context, kind model.EntityKind, layout model.ColumnLayout) error

	SidebarOpen() bool
	SetSidebarOpen(ctx context.Context, open bool) error

	Snapshot() Snapshot
}

// Snapshot is a consistent copy of the session-wide part of the context.
type Snapshot struct {
	Security        model.SecurityState      `json:"security"`
	MasterLink      model.MasterLinkState    `json:"masterLink"`
	SelectedRecords model.SelectedRecordsMap `json:"selectedRecords"`
	SidebarOpen     bool                     `json:"sidebarOpen"`
}

// Store is the real global context provider.
type Store struct {
	storage session.Storage
	logger  *zap.Logger
	metrics *observability.Metrics

	mu          sync.RWMutex
	security    model.SecurityState
	masterLink  model.MasterLinkState
	selected    model.SelectedRecordsMap
	queries     map[model.EntityKind]model.QueryState
	layouts     map[model.EntityKind]model.ColumnLayout
	sidebarOpen bool
}

// New creates a Store and hydrates it from storage. Missing keys take their
// defaults; an undecodable value is logged and replaced by its default.
func New(ctx context.Context, storage session.Storage, logger *zap.Logger, metrics *observability.Metrics) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		storage:     storage,
		logger:      logger,
		metrics:     metrics,
		masterLink:  model.DefaultMasterLinkState(),
		selected:    model.SelectedRecordsMap{},
		queries:     make(map[model.EntityKind]model.QueryState),
		layouts:     make(map[model.EntityKind]model.ColumnLayout),
		sidebarOpen: true,
	}
	if err := s.hydrate(ctx); err != nil {
		metrics.RecordSessionHydration("failure")
		return nil, err
	}
	metrics.RecordSessionHydration("success")
	return s, nil
}

func (s *Store) hydrate(ctx context.Context) error {
	var security model.SecurityState
	if err := s.load(ctx, session.KeySecurityContext, &security); err != nil {
		return err
	}
	master := model.DefaultMasterLinkState()
	if err := s.load(ctx, session.KeyMasterLink, &master); err != nil {
		return err
	}
	selected := model.SelectedRecordsMap{}
	if err := s.load(ctx, session.KeySelectedRecords, &selected); err != nil {
		return err
	}
	if selected == nil {
		selected = model.SelectedRecordsMap{}
	}
	queries := make(map[model.EntityKind]model.QueryState)
	if err := s.load(ctx, session.KeyQueryStates, &queries); err != nil {
		return err
	}
	layouts := make(map[model.EntityKind]model.ColumnLayout)
	if err := s.load(ctx, session.KeyColumnLayouts, &layouts); err != nil {
		return err
	}
	sidebarOpen := true
	if err := s.load(ctx, session.KeySidebarOpen, &sidebarOpen); err != nil {
		return err
	}

	s.security = security
	s.masterLink = master.Normalize()
	s.selected = selected
	if queries != nil {
		s.queries = queries
	}
	if layouts != nil {
		s.layouts = layouts
	}
	s.sidebarOpen = sidebarOpen
	return nil
}

// load decodes key into v. v is left as it is when the key is absent or
// holds malformed JSON.
func (s *Store) load(ctx context.Context, key string, v any) error {
	raw, found, err := s.storage.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("hydrate %s: %w", key, err)
	}
	if !found {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.logger.Warn("discarding malformed session value",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	return nil
}

// persist writes v under key. Callers hold s.mu.
func (s *Store) persist(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.storage.Set(ctx, key, data); err != nil {
		s.metrics.RecordSessionWrite(key, "failure")
		return fmt.Errorf("persist %s: %w", key, err)
	}
	s.metrics.RecordSessionWrite(key, "success")
	return nil
}

// --- Security ---

// Security returns the signed-in user.
func (s *Store) Security() model.SecurityState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.security.Clone()
}

// SetSecurity replaces the signed-in user. The bearer token stays in memory.
func (s *Store) SetSecurity(ctx context.Context, sec model.SecurityState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := sec.Clone()
	if err := s.persist(ctx, session.KeySecurityContext, next); err != nil {
		return err
	}
	s.security = next
	return nil
}

// --- Master link ---

// MasterLink returns the current master link.
func (s *Store) MasterLink() model.MasterLinkState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.masterLink
}

// UpdateMasterLink applies fn and persists the result as one unit.
func (s *Store) UpdateMasterLink(ctx context.Context, fn func(model.MasterLinkState, model.SelectedRecordsMap) model.MasterLinkState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.masterLink, s.selected.Clone()).Normalize()
	if next == s.masterLink {
		return nil
	}
	if err := s.persist(ctx, session.KeyMasterLink, next); err != nil {
		return err
	}
	s.masterLink = next
	return nil
}

// --- Selected records ---

// SelectedRecords returns a copy of the remembered selections.
func (s *Store) SelectedRecords() model.SelectedRecordsMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected.Clone()
}

// SetSelectedRecord remembers or forgets the selection for kind.
func (s *Store) SetSelectedRecord(ctx context.Context, kind model.EntityKind, ref *model.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, had := s.selected[kind]
	if ref == nil && !had || ref != nil && had && current == *ref {
		return nil
	}
	next := s.selected.Clone()
	if ref == nil {
		delete(next, kind)
	} else {
		next[kind] = *ref
	}
	if err := s.persist(ctx, session.KeySelectedRecords, next); err != nil {
		return err
	}
	s.selected = next
	return nil
}

// --- Query state ---

// QueryState returns the remembered query state for kind. ok is false when
// the kind's page has never been mounted in this session.
func (s *Store) QueryState(kind model.EntityKind) (model.QueryState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queries[kind]
	return q.Clone(), ok
}

// UpdateQueryState replaces the query state for kind with fn's result.
func (s *Store) UpdateQueryState(ctx context.Context, kind model.EntityKind, fn func(model.QueryState) model.QueryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[model.EntityKind]model.QueryState, len(s.queries)+1)
	for k, q := range s.queries {
		next[k] = q
	}
	next[kind] = fn(s.queries[kind].Clone()).Clone()
	if err := s.persist(ctx, session.KeyQueryStates, next); err != nil {
		return err
	}
	s.queries = next
	return nil
}

// --- Column layout ---

// ColumnLayout returns the column layout for kind.
func (s *Store) ColumnLayout(kind model.EntityKind) model.ColumnLayout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneLayout(s.layouts[kind])
}

// SetColumnLayout replaces the column layout for kind.
func (s *Store) SetColumnLayout(ctx context.Context, kind model.EntityKind, layout model.ColumnLayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[model.EntityKind]model.ColumnLayout, len(s.layouts)+1)
	for k, l := range s.layouts {
		next[k] = l
	}
	next[kind] = cloneLayout(layout)
	if err := s.persist(ctx, session.KeyColumnLayouts, next); err != nil {
		return err
	}
	s.layouts = next
	return nil
}

func cloneLayout(l model.ColumnLayout) model.ColumnLayout {
	c := model.ColumnLayout{Order: append([]string(nil), l.Order...)}
	if l.Visibility != nil {
		c.Visibility = make(map[string]bool, len(l.Visibility))
		for k, v := range l.Visibility {
			c.Visibility[k] = v
		}
	}
	if l.Sizing != nil {
		c.Sizing = make(map[string]int, len(l.Sizing))
		for k, v := range l.Sizing {
			c.Sizing[k] = v
		}
	}
	return c
}

// --- UI toggles ---

// SidebarOpen reports whether the navigation sidebar is expanded.
func (s *Store) SidebarOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sidebarOpen
}

// SetSidebarOpen expands or collapses the navigation sidebar.
func (s *Store) SetSidebarOpen(ctx context.Context, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if open == s.sidebarOpen {
		return nil
	}
	if err := s.persist(ctx, session.KeySidebarOpen, open); err != nil {
		return err
	}
	s.sidebarOpen = open
	return nil
}

// Snapshot returns a consistent copy of the session-wide state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Security:        s.security.Clone(),
		MasterLink:      s.masterLink,
		SelectedRecords: s.selected.Clone(),
		SidebarOpen:     s.sidebarOpen,
	}
}

// --- Unprovisioned ---

// ErrNotProvisioned is wrapped by every setter of the unprovisioned context.
var ErrNotProvisioned = errors.New("global context used outside its provider")

// Unprovisioned returns the context a component sees when it was never given
// a real Store. Getters return defaults; every setter fails with a
// *model.ProgrammingError wrapping ErrNotProvisioned.
func Unprovisioned() Context {
	return unprovisioned{}
}

type unprovisioned struct{}

func notProvisioned(op string) error {
	return &model.ProgrammingError{
		Op:  "appstate." + op,
		Msg: ErrNotProvisioned.Error(),
		Err: ErrNotProvisioned,
	}
}

func (unprovisioned) Security() model.SecurityState { return model.SecurityState{} }

func (unprovisioned) SetSecurity(context.Context, model.SecurityState) error {
	return notProvisioned("SetSecurity")
}

func (unprovisioned) MasterLink() model.MasterLinkState { return model.DefaultMasterLinkState() }

func (unprovisioned) UpdateMasterLink(context.Context, func(model.MasterLinkState, model.SelectedRecordsMap) model.MasterLinkState) error {
	return notProvisioned("UpdateMasterLink")
}

func (unprovisioned) SelectedRecords() model.SelectedRecordsMap { return model.SelectedRecordsMap{} }

func (unprovisioned) SetSelectedRecord(context.Context, model.EntityKind, *model.Ref) error {
	return notProvisioned("SetSelectedRecord")
}

func (unprovisioned) QueryState(model.EntityKind) (model.QueryState, bool) {
	return model.QueryState{}, false
}

func (unprovisioned) UpdateQueryState(context.Context, model.EntityKind, func(model.QueryState) model.QueryState) error {
	return notProvisioned("UpdateQueryState")
}

func (unprovisioned) ColumnLayout(model.EntityKind) model.ColumnLayout { return model.ColumnLayout{} }

func (unprovisioned) SetColumnLayout(context.Context, model.EntityKind, model.ColumnLayout) error {
	return notProvisioned("SetColumnLayout")
}

func (unprovisioned) SidebarOpen() bool { return false }

func (unprovisioned) SetSidebarOpen(context.Context, bool) error { return notProvisioned("SetSidebarOpen") }

func (unprovisioned) Snapshot() Snapshot {
	return Snapshot{MasterLink: model.DefaultMasterLinkState(), SelectedRecords: model.SelectedRecordsMap{}}
}
