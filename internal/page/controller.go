package page

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// Controller is the type-erased view of a Logic used by the HTTP layer.
// Form values cross it as JSON.
type Controller interface {
	Kind() model.EntityKind
	Mount(ctx context.Context) error
	MountWith(ctx context.Context, u QueryUpdate) error
	Mounted() bool
	Refresh(ctx context.Context) error
	Sync(ctx context.Context) error
	Query() model.QueryState
	ApplyQuery(ctx context.Context, u QueryUpdate) error
	Select(ctx context.Context, id string) error
	SetMode(ctx context.Context, mode model.Mode) error
	Supports(command string) bool
	Action(ctx context.Context, command string, values json.RawMessage) error
	LinkToMaster(ctx context.Context) error
	Snapshot() Snapshot
}

// QueryUpdate is a batch of listing state changes. Nil fields are left as
// they are.
type QueryUpdate struct {
	Filter             *model.Filter      `json:"filter,omitempty"`
	PageIndex          *int               `json:"pageIndex,omitempty"`
	PageSize           *int               `json:"pageSize,omitempty"`
	Sorting            []model.ColumnSort `json:"sorting,omitempty"`
	ShowOnlyLinked     *bool              `json:"showOnlyLinkedRecords,omitempty"`
	SelectedLinkID     *string            `json:"selectedLinkId,omitempty"`
	ShowUsersOrMembers *string            `json:"showUsersOrMembers,omitempty"`
	ActiveTab          *string            `json:"activeTab,omitempty"`
}

// apply folds u into q. A filter change returns the listing to its first
// page unless u also sets the page index.
func (u QueryUpdate) apply(kind model.EntityKind, q *model.QueryState) {
	if u.Filter != nil {
		f := u.Filter.Restrict(kind)
		if !q.Filter.Equal(f) {
			q.Pagination.PageIndex = 0
		}
		q.Filter = f
	}
	if u.PageIndex != nil {
		q.Pagination.PageIndex = *u.PageIndex
	}
	if u.PageSize != nil {
		q.Pagination.PageSize = *u.PageSize
	}
	if u.Sorting != nil {
		q.Sorting = u.Sorting
	}
	if u.ShowOnlyLinked != nil {
		q.ShowOnlyLinkedRecords = *u.ShowOnlyLinked
	}
	if u.SelectedLinkID != nil {
		q.SelectedLinkID = *u.SelectedLinkID
	}
	if u.ShowUsersOrMembers != nil {
		q.ShowUsersOrMembers = *u.ShowUsersOrMembers
	}
	if u.ActiveTab != nil {
		q.ActiveTab = *u.ActiveTab
	}
}

// Snapshot is everything the presentation layer needs to render a listing.
type Snapshot struct {
	Kind          model.EntityKind      `json:"kind"`
	Page          any                   `json:"page"`
	Query         model.QueryState      `json:"query"`
	Filter        model.Filter          `json:"effectiveFilter"`
	PageSort      *model.PageSort       `json:"pageSort,omitempty"`
	SelectedID    string                `json:"selectedId,omitempty"`
	Fields        any                   `json:"fields"`
	Detail        model.DetailState     `json:"detail"`
	Loading       bool                  `json:"loading"`
	MasterLink    model.MasterLinkState `json:"masterLink"`
	Notifications []model.Notification  `json:"notifications,omitempty"`
}

// ApplyQuery applies u as one batch.
func (l *Logic[T, V]) ApplyQuery(ctx context.Context, u QueryUpdate) error {
	return l.UpdateQuery(ctx, func(q *model.QueryState) { u.apply(l.cfg.Kind, q) })
}

// Action decodes values into the form's value type and runs command. Empty
// values stand for the form's current values.
func (l *Logic[T, V]) Action(ctx context.Context, command string, values json.RawMessage) error {
	v := l.Fields()
	if len(bytes.TrimSpace(values)) > 0 {
		var decoded V
		if err := json.Unmarshal(values, &decoded); err != nil {
			return model.NewBadRequestError("form values are not valid for a " + string(l.cfg.Kind))
		}
		v = decoded
	}
	return l.HandleFormAction(ctx, command, v)
}

// Snapshot captures the listing's state and drains its notifications.
func (l *Logic[T, V]) Snapshot() Snapshot {
	detail := l.DetailState()
	l.mu.Lock()
	defer l.mu.Unlock()

	d := l.derive()
	s := Snapshot{
		Kind:          l.cfg.Kind,
		Query:         l.query.Clone(),
		Filter:        d.filter,
		PageSort:      d.pageSort,
		SelectedID:    l.selectedID,
		Fields:        l.fields,
		Detail:        detail,
		Loading:       l.inflight > 0,
		MasterLink:    l.appctx.MasterLink(),
		Notifications: l.notifications,
	}
	if page := l.store.Page(); page != nil {
		s.Page = page
	}
	l.notifications = nil
	return s
}
