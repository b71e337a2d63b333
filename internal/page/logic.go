package page

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/demonfiddler/evidence-engine-sub001/internal/appstate"
	"github.com/demonfiddler/evidence-engine-sub001/internal/masterlink"
	"github.com/demonfiddler/evidence-engine-sub001/internal/observability"
	"github.com/demonfiddler/evidence-engine-sub001/internal/pagestore"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// derived is the remote query a listing state maps to.
type derived struct {
	filter   model.Filter
	pageSort *model.PageSort
}

func (d derived) equal(o derived) bool {
	return d.filter.Equal(o.filter) && d.pageSort.Equal(o.pageSort)
}

// Logic is the orchestrator for one listing. It is safe for concurrent use;
// remote calls are made without holding its lock.
type Logic[T model.Entity, V any] struct {
	cfg     Config[T, V]
	appctx  appstate.Context
	links   *masterlink.Propagator
	store   *pagestore.Store[T]
	pages   pageLimits
	logger  *zap.Logger
	metrics *observability.Metrics
	notify  model.Notifier

	mu            sync.Mutex
	mounted       bool
	query         model.QueryState
	last          derived
	fetched       bool
	seq           uint64
	inflight      int
	mode          model.Mode
	selectedID    string
	fields        V
	original      V
	notifications []model.Notification
}

type pageLimits struct {
	defaultSize int
	maxSize     int
}

// New builds the orchestrator for cfg.Kind. The listing is inert until
// Mount is called.
func New[T model.Entity, V any](cfg Config[T, V], deps Deps) (*Logic[T, V], error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	appctx := deps.Context
	if appctx == nil {
		appctx = appstate.Unprovisioned()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limits := pageLimits{defaultSize: deps.Pages.DefaultPageSize, maxSize: deps.Pages.MaxPageSize}
	if limits.defaultSize < 1 {
		limits.defaultSize = 10
	}
	if limits.maxSize < limits.defaultSize {
		limits.maxSize = limits.defaultSize
	}
	return &Logic[T, V]{
		cfg:      cfg,
		appctx:   appctx,
		links:    masterlink.NewPropagator(appctx),
		store:    pagestore.New[T](),
		pages:    limits,
		logger:   logger.With(zap.String("kind", string(cfg.Kind))),
		metrics:  deps.Metrics,
		notify:   deps.Notifier,
		mode:     model.ModeView,
		fields:   cfg.BlankFields(),
		original: cfg.BlankFields(),
	}, nil
}

// Mounted reports whether Mount has been called.
func (l *Logic[T, V]) Mounted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mounted
}

// Kind returns the listing's entity kind.
func (l *Logic[T, V]) Kind() model.EntityKind {
	return l.cfg.Kind
}

// Mount restores the listing's state from the global context and fetches
// the first page. Mounting again discards the local page and refetches.
func (l *Logic[T, V]) Mount(ctx context.Context) error {
	return l.MountWith(ctx, QueryUpdate{})
}

// MountWith mounts the listing with u applied over the restored state, so
// a listing opened with its own query fetches once.
func (l *Logic[T, V]) MountWith(ctx context.Context, u QueryUpdate) error {
	l.mu.Lock()
	q, ok := l.appctx.QueryState(l.cfg.Kind)
	if !ok {
		q = model.QueryState{Pagination: model.Pagination{PageSize: l.pages.defaultSize}}
	}
	u.apply(l.cfg.Kind, &q)
	q.Pagination = l.normalizePagination(q.Pagination)
	if err := l.persistQuery(ctx, q); err != nil {
		l.mu.Unlock()
		return err
	}
	l.query = q
	l.mounted = true
	l.mode = model.ModeView
	l.selectedID = ""
	if ref, ok := l.appctx.SelectedRecords()[l.cfg.Kind]; ok {
		l.selectedID = ref.ID
	}
	l.fields = l.cfg.BlankFields()
	l.original = l.cfg.BlankFields()
	l.store.Dispatch(pagestore.Init[T](nil))
	d := l.derive()
	l.mu.Unlock()

	l.fetch(ctx, d)
	return nil
}

// Refresh refetches the current derived query even if it has not changed.
func (l *Logic[T, V]) Refresh(ctx context.Context) error {
	l.mu.Lock()
	d := l.derive()
	l.mu.Unlock()
	l.fetch(ctx, d)
	return nil
}

// Sync refetches if the derived query has changed underneath the listing,
// as it does when the master link moves.
func (l *Logic[T, V]) Sync(ctx context.Context) error {
	return l.UpdateQuery(ctx, func(*model.QueryState) {})
}

// UpdateQuery applies fn to the listing state. Any number of changes made in
// one call cause at most one refetch, and none if the derived query is
// unchanged.
func (l *Logic[T, V]) UpdateQuery(ctx context.Context, fn func(q *model.QueryState)) error {
	l.mu.Lock()
	q := l.query.Clone()
	fn(&q)
	q.Pagination = l.normalizePagination(q.Pagination)
	if err := l.persistQuery(ctx, q); err != nil {
		l.mu.Unlock()
		return err
	}
	l.query = q
	d := l.derive()
	changed := !l.fetched || !d.equal(l.last)
	l.mu.Unlock()

	if changed {
		l.fetch(ctx, d)
	}
	return nil
}

// SetFilter replaces the listing filter and returns to the first page.
func (l *Logic[T, V]) SetFilter(ctx context.Context, f model.Filter) error {
	f = f.Restrict(l.cfg.Kind)
	return l.UpdateQuery(ctx, func(q *model.QueryState) {
		if !q.Filter.Equal(f) {
			q.Pagination.PageIndex = 0
		}
		q.Filter = f
	})
}

// SetPagination moves the listing to another page or page size.
func (l *Logic[T, V]) SetPagination(ctx context.Context, p model.Pagination) error {
	return l.UpdateQuery(ctx, func(q *model.QueryState) { q.Pagination = p })
}

// SetSorting replaces the listing's sorted columns.
func (l *Logic[T, V]) SetSorting(ctx context.Context, sorting []model.ColumnSort) error {
	return l.UpdateQuery(ctx, func(q *model.QueryState) { q.Sorting = sorting })
}

// SetShowOnlyLinked turns the master-link filter on or off.
func (l *Logic[T, V]) SetShowOnlyLinked(ctx context.Context, on bool) error {
	return l.UpdateQuery(ctx, func(q *model.QueryState) { q.ShowOnlyLinkedRecords = on })
}

// Query returns the listing state.
func (l *Logic[T, V]) Query() model.QueryState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query.Clone()
}

// Page returns a copy of the local page, nil before the first fetch lands.
func (l *Logic[T, V]) Page() *model.Page[T] {
	return l.store.Page()
}

// Effective returns the filter and page sort the next fetch would send.
func (l *Logic[T, V]) Effective() (model.Filter, *model.PageSort) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.derive()
	return d.filter, d.pageSort
}

// derive maps the listing state to its remote query. Callers hold l.mu.
func (l *Logic[T, V]) derive() derived {
	f := l.links.Filter(l.cfg.Kind, l.query.ShowOnlyLinkedRecords, l.query.Filter)
	if l.cfg.PrepareFilter != nil {
		f = l.cfg.PrepareFilter(f)
	}
	d := derived{filter: f.Restrict(l.cfg.Kind)}

	if !l.cfg.ManualPagination && !l.cfg.ManualSorting {
		return d
	}
	ps := &model.PageSort{PageSize: l.pages.maxSize}
	if l.cfg.ManualPagination {
		ps.PageNumber = l.query.Pagination.PageIndex
		ps.PageSize = l.query.Pagination.PageSize
	}
	if l.cfg.ManualSorting && len(l.query.Sorting) > 0 {
		ps.Sort = make([]model.SortOrder, 0, len(l.query.Sorting))
		for _, s := range l.query.Sorting {
			o := model.NewSortOrder(s.ID)
			if s.Desc {
				o.Direction = model.DirectionDesc
			}
			ps.Sort = append(ps.Sort, o)
		}
	}
	d.pageSort = ps
	return d
}

func (l *Logic[T, V]) normalizePagination(p model.Pagination) model.Pagination {
	if p.PageIndex < 0 {
		p.PageIndex = 0
	}
	switch {
	case p.PageSize < 1:
		p.PageSize = l.pages.defaultSize
	case p.PageSize > l.pages.maxSize:
		p.PageSize = l.pages.maxSize
	}
	return p
}

// persistQuery writes q to the global context as the listing's durable
// shadow. Callers hold l.mu.
func (l *Logic[T, V]) persistQuery(ctx context.Context, q model.QueryState) error {
	q = q.Clone()
	return l.appctx.UpdateQueryState(ctx, l.cfg.Kind, func(model.QueryState) model.QueryState { return q })
}

// fetch issues the query for d. Only the response to the most recently
// issued fetch is applied; earlier responses arriving later are dropped.
func (l *Logic[T, V]) fetch(ctx context.Context, d derived) {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.last = d
	l.fetched = true
	l.inflight++
	l.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, "page.fetch",
		observability.AttrEntityKind.String(string(l.cfg.Kind)),
		observability.AttrSequence.Int64(int64(seq)),
	)
	start := time.Now()
	page, err := l.cfg.Query(ctx, d.filter.Clone(), d.pageSort)
	elapsed := time.Since(start)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight--

	if seq != l.seq {
		span.SetAttributes(observability.AttrStale.Bool(true))
		observability.EndSpanWithError(span, nil)
		l.metrics.RecordQuery(string(l.cfg.Kind), "stale", elapsed)
		l.metrics.RecordStaleResponse(string(l.cfg.Kind))
		observability.RequestLogger(ctx, l.logger).Debug("discarding stale response",
			zap.Uint64("seq", seq),
			zap.Uint64("latest", l.seq),
		)
		return
	}
	observability.EndSpanWithError(span, err)

	if err != nil {
		l.metrics.RecordQuery(string(l.cfg.Kind), "error", elapsed)
		l.raise(ctx, model.SeverityError, fmt.Sprintf("Could not load %s", l.cfg.Kind.Label()), err)
		return
	}
	l.metrics.RecordQuery(string(l.cfg.Kind), "success", elapsed)

	if l.cfg.PreparePage != nil {
		page = l.cfg.PreparePage(page)
	}
	l.store.Dispatch(pagestore.Init(page))
	l.rebind()
}

// rebind refreshes the form from the selected record after the page
// changed. Edits in progress are left alone. Callers hold l.mu.
func (l *Logic[T, V]) rebind() {
	if l.mode != model.ModeView || l.selectedID == "" {
		return
	}
	if rec, ok := l.find(l.selectedID); ok {
		l.fields = l.cfg.ToFields(rec)
		l.original = l.cfg.ToFields(rec)
	}
}

func (l *Logic[T, V]) find(id string) (T, bool) {
	if l.cfg.FindRecord != nil {
		return l.cfg.FindRecord(l.store.Page(), id)
	}
	return l.store.Find(id)
}

// raise queues a notification, logs it and forwards it to the notifier.
// Callers hold l.mu.
func (l *Logic[T, V]) raise(ctx context.Context, severity, msg string, err error) {
	n := model.Notification{
		Severity: severity,
		Kind:     l.cfg.Kind,
		Message:  msg,
		Time:     time.Now().UTC(),
	}
	logger := observability.RequestLogger(ctx, l.logger)
	if err != nil {
		env := *model.AsErrorEnvelope(err)
		env.TraceID = observability.TraceIDFromContext(ctx)
		n.Error = &env
		logger.Warn(msg, zap.Error(err))
	} else if severity != model.SeverityInfo {
		logger.Info(msg, zap.String("severity", severity))
	}
	l.notifications = append(l.notifications, n)
	l.metrics.RecordNotification(string(l.cfg.Kind), severity)
	if l.notify != nil {
		l.notify.Notify(n)
	}
}

// Notifications drains the queued notifications.
func (l *Logic[T, V]) Notifications() []model.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.notifications
	l.notifications = nil
	return out
}

// Loading reports whether a fetch is in flight.
func (l *Logic[T, V]) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflight > 0
}
