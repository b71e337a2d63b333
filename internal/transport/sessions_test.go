package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/demonfiddler/evidence-engine-sub001/internal/catalog"
	"github.com/demonfiddler/evidence-engine-sub001/internal/config"
	"github.com/demonfiddler/evidence-engine-sub001/internal/page"
	"github.com/demonfiddler/evidence-engine-sub001/internal/session"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

func newManager(backend session.Backend, idle time.Duration) *Manager {
	pages := config.PagesConfig{DefaultPageSize: 10, MaxPageSize: 100}
	return NewManager(backend, catalog.New(newExecutor()), pages, idle, zap.NewNop(), nil)
}

func TestManager_emptyID(t *testing.T) {
	m := newManager(session.NewMemoryBackend(time.Hour), time.Hour)
	if _, err := m.Get(context.Background(), ""); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Get(\"\") error = %v, want ErrNoSession", err)
	}
}

func TestManager_reusesSession(t *testing.T) {
	m := newManager(session.NewMemoryBackend(time.Hour), time.Hour)
	ctx := context.Background()

	a, err := m.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	b, _ := m.Get(ctx, "s1")
	if a != b {
		t.Error("Get returned a different session for the same id")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}

	c1, _ := a.Controller(model.KindClaim)
	c2, _ := a.Controller(model.KindClaim)
	if c1 != c2 {
		t.Error("Controller built the listing twice")
	}
}

func TestManager_rehydratesFromBackend(t *testing.T) {
	backend := session.NewMemoryBackend(time.Hour)
	ctx := context.Background()

	first, _ := newManager(backend, time.Hour).Get(ctx, "s1")
	if err := first.Links.SetMasterRecordKind(ctx, model.KindPerson); err != nil {
		t.Fatalf("SetMasterRecordKind error: %v", err)
	}

	// Another process sharing the backend sees the persisted link.
	second, err := newManager(backend, time.Hour).Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got := second.Store.MasterLink().MasterRecordKind; got != model.KindPerson {
		t.Errorf("MasterRecordKind = %q, want Person", got)
	}
}

func TestManager_sweepDropsIdleSessions(t *testing.T) {
	m := newManager(session.NewMemoryBackend(time.Hour), time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Get(ctx, "old")
	now = now.Add(2 * time.Minute)
	m.Get(ctx, "new")

	if dropped := m.Sweep(); dropped != 1 {
		t.Errorf("Sweep() = %d, want 1", dropped)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestManager_sweptSessionRestoresListingState(t *testing.T) {
	m := newManager(session.NewMemoryBackend(time.Hour), time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	s, _ := m.Get(ctx, "s1")
	c, _ := s.Controller(model.KindClaim)
	tab := "links"
	if err := c.MountWith(ctx, page.QueryUpdate{Filter: &model.Filter{Text: "warming"}, ActiveTab: &tab}); err != nil {
		t.Fatalf("MountWith error: %v", err)
	}
	if err := s.Store.SetColumnLayout(ctx, model.KindClaim, model.ColumnLayout{Order: []string{"text"}}); err != nil {
		t.Fatalf("SetColumnLayout error: %v", err)
	}
	if err := s.Store.SetSidebarOpen(ctx, false); err != nil {
		t.Fatalf("SetSidebarOpen error: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if dropped := m.Sweep(); dropped != 1 {
		t.Fatalf("Sweep() = %d, want 1", dropped)
	}

	resumed, err := m.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if resumed == s {
		t.Fatal("Get returned the swept session")
	}
	q, ok := resumed.Store.QueryState(model.KindClaim)
	if !ok || q.Filter.Text != "warming" || q.ActiveTab != "links" {
		t.Errorf("QueryState = %+v (ok=%v), want the filter and tab restored", q, ok)
	}
	if got := resumed.Store.ColumnLayout(model.KindClaim).Order; len(got) != 1 || got[0] != "text" {
		t.Errorf("ColumnLayout.Order = %v, want [text]", got)
	}
	if resumed.Store.SidebarOpen() {
		t.Error("SidebarOpen = true, want false")
	}
}

func TestManager_sweepDisabled(t *testing.T) {
	m := newManager(session.NewMemoryBackend(time.Hour), 0)
	m.Get(context.Background(), "s1")
	if dropped := m.Sweep(); dropped != 0 {
		t.Errorf("Sweep() = %d, want 0 when idle timeout is off", dropped)
	}
}

func TestSession_syncSkipsUnmounted(t *testing.T) {
	ex := newExecutor()
	m := NewManager(session.NewMemoryBackend(time.Hour), catalog.New(ex), config.PagesConfig{DefaultPageSize: 10, MaxPageSize: 100}, time.Hour, zap.NewNop(), nil)
	ctx := context.Background()
	s, _ := m.Get(ctx, "s1")
	s.Controller(model.KindClaim)

	if err := s.Sync(ctx, ""); err != nil {
		t.Fatalf("Sync error: %v", err)
	}
	if ex.count("ClaimList") != 0 {
		t.Errorf("ClaimList requests = %d, want 0 for an unmounted listing", ex.count("ClaimList"))
	}
}
