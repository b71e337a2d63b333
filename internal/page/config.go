// Package page implements the per-listing page orchestrator. One Logic
// instance drives one entity kind's listing: it derives the remote query from
// the listing's filter, sorting and pagination, rejects stale responses,
// mirrors the fetched page in a local store patched optimistically after
// mutations, binds the detail form to the selected record and persists its
// state to the session's global context.
package page

import (
	"context"

	"go.uber.org/zap"

	"github.com/demonfiddler/evidence-engine-sub001/internal/appstate"
	"github.com/demonfiddler/evidence-engine-sub001/internal/config"
	"github.com/demonfiddler/evidence-engine-sub001/internal/observability"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// Config parameterises a Logic for one entity kind. T is the record type and
// V the detail form's field values.
type Config[T model.Entity, V any] struct {
	Kind model.EntityKind

	// Validate runs go-playground/validator struct tags on V before create
	// and update.
	Validate bool
	// ManualPagination and ManualSorting delegate paging and sorting to the
	// server. When both are false the whole result set is fetched.
	ManualPagination bool
	ManualSorting    bool

	// Query fetches one page. Required.
	Query func(ctx context.Context, filter model.Filter, pageSort *model.PageSort) (*model.Page[T], error)
	// Mutations. A nil mutation makes the listing read-only for that command.
	Create func(ctx context.Context, input map[string]any) (T, error)
	Update func(ctx context.Context, id string, input map[string]any) (T, error)
	Delete func(ctx context.Context, id string) (T, error)
	Link   func(ctx context.Context, link model.EntityLink) (model.EntityLink, error)

	// PrepareFilter adjusts the effective filter before it is sent.
	PrepareFilter func(model.Filter) model.Filter
	// PreparePage reshapes a fetched page, e.g. into a tree.
	PreparePage func(*model.Page[T]) *model.Page[T]
	// FindRecord locates a record in a page whose content is not flat.
	FindRecord func(page *model.Page[T], id string) (T, bool)

	// ToFields transcodes a record into form values. Required.
	ToFields func(T) V
	// ToInput transcodes form values into a mutation input object. Required
	// when Create or Update is set.
	ToInput func(V) map[string]any
	// BlankFields returns the values of an empty form. Required.
	BlankFields func() V
}

func (c *Config[T, V]) check() error {
	const op = "page.New"
	switch {
	case !c.Kind.Valid():
		return model.NewProgrammingError(op, "unknown entity kind %q", c.Kind)
	case c.Query == nil:
		return model.NewProgrammingError(op, "%s listing has no query", c.Kind)
	case c.ToFields == nil || c.BlankFields == nil:
		return model.NewProgrammingError(op, "%s listing has no field transcoders", c.Kind)
	case (c.Create != nil || c.Update != nil) && c.ToInput == nil:
		return model.NewProgrammingError(op, "%s listing has mutations but no input transcoder", c.Kind)
	}
	return nil
}

// Deps are the collaborators shared by every listing of a session.
type Deps struct {
	Context appstate.Context
	Pages   config.PagesConfig
	Logger  *zap.Logger
	Metrics *observability.Metrics
	// Notifier, if set, receives every notification as it is raised, in
	// addition to the page's own queue.
	Notifier model.Notifier
}
