package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// pageFields selects the paging envelope of every list query.
const pageFields = `hasContent hasNext hasPrevious isEmpty isFirst isLast number numberOfElements size totalElements totalPages`

// linkFields selects an entity link.
const linkFields = `id status fromEntityKind fromEntityId toEntityKind toEntityId`

var filterTypes = map[model.FilterClass]string{
	model.FilterClassTracked:  "TrackedEntityQueryFilter",
	model.FilterClassLinkable: "LinkableEntityQueryFilter",
	model.FilterClassTopic:    "TopicQueryFilter",
	model.FilterClassLog:      "LogQueryFilter",
}

// Operations builds the GraphQL documents for one entity kind.
type Operations struct {
	Kind model.EntityKind
	// Selection is the field selection applied to each record.
	Selection string
}

// NewOperations returns the documents for kind selecting the given fields.
func NewOperations(kind model.EntityKind, selection string) Operations {
	return Operations{Kind: kind, Selection: selection}
}

// ListField is the query's root field, e.g. "claims".
func (o Operations) ListField() string {
	return o.Kind.Plural()
}

// List returns the paged list query.
func (o Operations) List(filter map[string]any, pageSort *model.PageSort) Request {
	vars := map[string]any{}
	if len(filter) > 0 {
		vars["filter"] = filter
	}
	if pageSort != nil {
		vars["pageSort"] = pageSort
	}
	name := string(o.Kind) + "List"
	return Request{
		OperationName: name,
		Query: fmt.Sprintf(`query %s($filter: %s, $pageSort: PageableInput) { %s(filter: $filter, pageSort: $pageSort) { %s content { %s } } }`,
			name, filterTypes[o.Kind.Class()], o.ListField(), pageFields, o.Selection),
		Variables: vars,
	}
}

// Create returns the create<Kind> mutation.
func (o Operations) Create(input map[string]any) Request {
	return o.inputMutation("create", input)
}

// Update returns the update<Kind> mutation. input carries the record id.
func (o Operations) Update(input map[string]any) Request {
	return o.inputMutation("update", input)
}

// Delete returns the delete<Kind> mutation.
func (o Operations) Delete(id string) Request {
	field := "delete" + string(o.Kind)
	return Request{
		OperationName: "Delete" + string(o.Kind),
		Query: fmt.Sprintf(`mutation Delete%s($id: ID!) { %s(id: $id) { %s } }`,
			o.Kind, field, o.Selection),
		Variables: map[string]any{"id": id},
	}
}

func (o Operations) inputMutation(verb string, input map[string]any) Request {
	field := verb + string(o.Kind)
	name := strings.ToUpper(verb[:1]) + verb[1:] + string(o.Kind)
	return Request{
		OperationName: name,
		Query: fmt.Sprintf(`mutation %s($input: %sInput!) { %s(input: $input) { %s } }`,
			name, o.Kind, field, o.Selection),
		Variables: map[string]any{"input": input},
	}
}

// CreateEntityLink returns the createEntityLink mutation.
func CreateEntityLink(link model.EntityLink) Request {
	return Request{
		OperationName: "CreateEntityLink",
		Query:         `mutation CreateEntityLink($input: EntityLinkInput!) { createEntityLink(input: $input) { ` + linkFields + ` } }`,
		Variables: map[string]any{"input": map[string]any{
			"fromEntityKind": link.FromEntityKind,
			"fromEntityId":   link.FromEntityID,
			"toEntityKind":   link.ToEntityKind,
			"toEntityId":     link.ToEntityID,
		}},
	}
}

// --- Typed execution ---

// Executor runs GraphQL requests. *Client implements it.
type Executor interface {
	Query(ctx context.Context, req Request) (json.RawMessage, error)
	Mutate(ctx context.Context, req Request) (json.RawMessage, error)
}

// List runs ops' list query and decodes the page.
func List[T any](ctx context.Context, ex Executor, ops Operations, filter map[string]any, pageSort *model.PageSort) (*model.Page[T], error) {
	data, err := ex.Query(ctx, ops.List(filter, pageSort))
	if err != nil {
		return nil, err
	}
	var page *model.Page[T]
	if err := field(data, ops.ListField(), &page); err != nil {
		return nil, err
	}
	if page == nil {
		return nil, model.NewMalformedResultError(fmt.Sprintf("%s returned no page", ops.ListField()))
	}
	return page, nil
}

// Create runs the create<Kind> mutation and decodes the created record.
func Create[T any](ctx context.Context, ex Executor, ops Operations, input map[string]any) (T, error) {
	return mutate[T](ctx, ex, ops.Create(input), "create"+string(ops.Kind))
}

// Update runs the update<Kind> mutation and decodes the updated record.
func Update[T any](ctx context.Context, ex Executor, ops Operations, input map[string]any) (T, error) {
	return mutate[T](ctx, ex, ops.Update(input), "update"+string(ops.Kind))
}

// Delete runs the delete<Kind> mutation and decodes the soft-deleted record.
func Delete[T any](ctx context.Context, ex Executor, ops Operations, id string) (T, error) {
	return mutate[T](ctx, ex, ops.Delete(id), "delete"+string(ops.Kind))
}

// Link runs createEntityLink and decodes the created link.
func Link(ctx context.Context, ex Executor, link model.EntityLink) (model.EntityLink, error) {
	return mutate[model.EntityLink](ctx, ex, CreateEntityLink(link), "createEntityLink")
}

func mutate[T any](ctx context.Context, ex Executor, req Request, name string) (T, error) {
	var out T
	data, err := ex.Mutate(ctx, req)
	if err != nil {
		return out, err
	}
	err = field(data, name, &out)
	return out, err
}

// field decodes data[name] into out.
func field(data json.RawMessage, name string, out any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return model.NewMalformedResultError("response data is not an object")
	}
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return model.NewMalformedResultError(fmt.Sprintf("response data has no %s", name))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return model.NewMalformedResultError(fmt.Sprintf("decoding %s: %v", name, err))
	}
	return nil
}
