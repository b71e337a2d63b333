// Package catalog instantiates the page orchestrator for every listable
// entity kind: record selections, form values, transcoders and the GraphQL
// operations behind each listing.
package catalog

import (
	"context"
	"fmt"

	"github.com/demonfiddler/evidence-engine-sub001/internal/graphql"
	"github.com/demonfiddler/evidence-engine-sub001/internal/page"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

const (
	userRef       = `{ id username }`
	trackedFields = `id status created createdByUser ` + userRef + ` updated updatedByUser ` + userRef
)

var selections = map[model.EntityKind]string{
	model.KindClaim:       trackedFields + ` text date notes`,
	model.KindDeclaration: trackedFields + ` kind title date country url cached signatories signatoryCount notes`,
	model.KindPerson:      trackedFields + ` title firstName nickname prefix lastName suffix alias notes qualifications country rating checked published`,
	model.KindPublication: trackedFields + ` title kind authors journal { id label: title } date year abstract notes peerReviewed doi isbn url cached accessed`,
	model.KindQuotation:   trackedFields + ` quotee text date source url notes`,
	model.KindTopic:       trackedFields + ` label description parentId`,
	model.KindJournal:     trackedFields + ` title abbreviation url issn publisher { id label: name } notes peerReviewed`,
	model.KindPublisher:   trackedFields + ` name location country url journalCount`,
	model.KindUser:        trackedFields + ` username firstName lastName email country notes authorities`,
	model.KindGroup:       trackedFields + ` groupname authorities`,
	model.KindLog:         `id timestamp user ` + userRef + ` transactionKind entityKind entityId`,
}

type builder func(ex graphql.Executor, deps page.Deps) (page.Controller, error)

var builders = map[model.EntityKind]builder{
	model.KindClaim:       editable(model.KindClaim, claimFields),
	model.KindDeclaration: editable(model.KindDeclaration, declarationFields),
	model.KindPerson:      editable(model.KindPerson, personFields),
	model.KindPublication: editable(model.KindPublication, publicationFields),
	model.KindQuotation:   editable(model.KindQuotation, quotationFields),
	model.KindTopic:       editable(model.KindTopic, topicFields, asTree),
	model.KindJournal:     editable(model.KindJournal, journalFields),
	model.KindPublisher:   editable(model.KindPublisher, publisherFields),
	model.KindUser:        editable(model.KindUser, userFields),
	model.KindGroup:       editable(model.KindGroup, groupFields),
	model.KindLog:         readOnly[model.LogEntry](model.KindLog),
}

// Catalog builds listing controllers backed by a GraphQL executor.
type Catalog struct {
	ex graphql.Executor
}

// New returns a catalog issuing its queries and mutations through ex.
func New(ex graphql.Executor) *Catalog {
	return &Catalog{ex: ex}
}

// Kinds lists every kind the catalog can build.
func (c *Catalog) Kinds() []model.EntityKind {
	out := make([]model.EntityKind, 0, len(model.AllKinds))
	for _, k := range model.AllKinds {
		if _, ok := builders[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Controller builds an unmounted listing for kind.
func (c *Catalog) Controller(kind model.EntityKind, deps page.Deps) (page.Controller, error) {
	build, ok := builders[kind]
	if !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("no listing for entity kind %q", kind))
	}
	return build(c.ex, deps)
}

type option[T model.Entity, V any] func(*page.Config[T, V])

// editable wires a listing with the full set of mutations, plus entity
// linking for linkable kinds.
func editable[T model.Entity, V any](kind model.EntityKind, fields func(T) V, opts ...option[T, V]) builder {
	return func(ex graphql.Executor, deps page.Deps) (page.Controller, error) {
		ops := graphql.NewOperations(kind, selections[kind])
		cfg := page.Config[T, V]{
			Kind:             kind,
			Validate:         true,
			ManualPagination: true,
			ManualSorting:    true,
			Query:            query[T](ex, ops),
			Create: func(ctx context.Context, input map[string]any) (T, error) {
				return graphql.Create[T](ctx, ex, ops, input)
			},
			Update: func(ctx context.Context, id string, input map[string]any) (T, error) {
				input["id"] = id
				return graphql.Update[T](ctx, ex, ops, input)
			},
			Delete: func(ctx context.Context, id string) (T, error) {
				return graphql.Delete[T](ctx, ex, ops, id)
			},
			ToFields:    fields,
			ToInput:     toInput[V],
			BlankFields: blank[V],
		}
		if kind.Linkable() {
			cfg.Link = func(ctx context.Context, link model.EntityLink) (model.EntityLink, error) {
				return graphql.Link(ctx, ex, link)
			}
		}
		for _, opt := range opts {
			opt(&cfg)
		}
		l, err := page.New(cfg, deps)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

// readOnly wires a listing with no mutations whose form shows the record
// itself.
func readOnly[T model.Entity](kind model.EntityKind) builder {
	return func(ex graphql.Executor, deps page.Deps) (page.Controller, error) {
		ops := graphql.NewOperations(kind, selections[kind])
		l, err := page.New(page.Config[T, T]{
			Kind:             kind,
			ManualPagination: true,
			ManualSorting:    true,
			Query:            query[T](ex, ops),
			ToFields:         func(r T) T { return r },
			BlankFields:      blank[T],
		}, deps)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

func query[T model.Entity](ex graphql.Executor, ops graphql.Operations) func(context.Context, model.Filter, *model.PageSort) (*model.Page[T], error) {
	return func(ctx context.Context, f model.Filter, ps *model.PageSort) (*model.Page[T], error) {
		return graphql.List[T](ctx, ex, ops, f.Variables(ops.Kind), ps)
	}
}

func blank[V any]() V {
	var v V
	return v
}

// asTree fetches the whole topic hierarchy at once and presents it nested.
var asTree option[model.Topic, TopicFields] = func(cfg *page.Config[model.Topic, TopicFields]) {
	cfg.ManualPagination = false
	cfg.ManualSorting = false
	cfg.PreparePage = topicTree
	cfg.FindRecord = findTopic
}
