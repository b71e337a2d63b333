package model

import (
	"slices"
	"time"
)

// Record status codes.
const (
	StatusDraft     = "DRA"
	StatusPublished = "PUB"
	StatusSuspended = "SUS"
	StatusDeleted   = "DEL"
)

// Filter holds every predicate a listing can send to the backend. Which
// fields are meaningful depends on the listing kind's FilterClass; zero values
// mean "unset" and are never sent.
type Filter struct {
	// Tracked entity fields.
	Status         []string `json:"status,omitempty"`
	Text           string   `json:"text,omitempty"`
	AdvancedSearch bool     `json:"advancedSearch,omitempty"`

	// Linkable entity fields.
	TopicID        string     `json:"topicId,omitempty"`
	Recursive      bool       `json:"recursive,omitempty"`
	FromEntityKind EntityKind `json:"fromEntityKind,omitempty"`
	FromEntityID   string     `json:"fromEntityId,omitempty"`
	ToEntityKind   EntityKind `json:"toEntityKind,omitempty"`
	ToEntityID     string     `json:"toEntityId,omitempty"`

	// Topic fields.
	ParentID string `json:"parentId,omitempty"`

	// Log fields.
	EntityKind       EntityKind `json:"entityKind,omitempty"`
	EntityID         string     `json:"entityId,omitempty"`
	UserID           string     `json:"userId,omitempty"`
	TransactionKinds []string   `json:"transactionKinds,omitempty"`
	From             *time.Time `json:"from,omitempty"`
	To               *time.Time `json:"to,omitempty"`
}

// Equal reports whether f and o carry the same predicates. Nil and empty
// slices compare equal, as do nil and absent times.
func (f Filter) Equal(o Filter) bool {
	return slices.Equal(f.Status, o.Status) &&
		f.Text == o.Text &&
		f.AdvancedSearch == o.AdvancedSearch &&
		f.TopicID == o.TopicID &&
		f.Recursive == o.Recursive &&
		f.FromEntityKind == o.FromEntityKind &&
		f.FromEntityID == o.FromEntityID &&
		f.ToEntityKind == o.ToEntityKind &&
		f.ToEntityID == o.ToEntityID &&
		f.ParentID == o.ParentID &&
		f.EntityKind == o.EntityKind &&
		f.EntityID == o.EntityID &&
		f.UserID == o.UserID &&
		slices.Equal(f.TransactionKinds, o.TransactionKinds) &&
		timeEqual(f.From, o.From) &&
		timeEqual(f.To, o.To)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Clone returns a deep copy of f.
func (f Filter) Clone() Filter {
	c := f
	c.Status = slices.Clone(f.Status)
	c.TransactionKinds = slices.Clone(f.TransactionKinds)
	if f.From != nil {
		t := *f.From
		c.From = &t
	}
	if f.To != nil {
		t := *f.To
		c.To = &t
	}
	return c
}

// Restrict returns a copy of f with every field that kind's filter class does
// not define cleared.
func (f Filter) Restrict(kind EntityKind) Filter {
	class := kind.Class()
	var r Filter
	if class.Includes(FilterClassTracked) {
		r.Status = slices.Clone(f.Status)
		r.Text = f.Text
		r.AdvancedSearch = f.AdvancedSearch
	}
	if class.Includes(FilterClassLinkable) {
		r.TopicID = f.TopicID
		r.Recursive = f.Recursive
		r.FromEntityKind = f.FromEntityKind
		r.FromEntityID = f.FromEntityID
		r.ToEntityKind = f.ToEntityKind
		r.ToEntityID = f.ToEntityID
	}
	if class.Includes(FilterClassTopic) {
		r.ParentID = f.ParentID
	}
	if class == FilterClassLog {
		c := f.Clone()
		r.EntityKind = c.EntityKind
		r.EntityID = c.EntityID
		r.UserID = c.UserID
		r.TransactionKinds = c.TransactionKinds
		r.From = c.From
		r.To = c.To
	}
	return r
}

// Variables renders the filter as a GraphQL variables object for the given
// listing kind. Only set fields meaningful to the kind are present; an empty
// map means "no constraints".
func (f Filter) Variables(kind EntityKind) map[string]any {
	r := f.Restrict(kind)
	vars := make(map[string]any)
	if len(r.Status) > 0 {
		vars["status"] = slices.Clone(r.Status)
	}
	putString(vars, "text", r.Text)
	putBool(vars, "advancedSearch", r.AdvancedSearch)
	putString(vars, "topicId", r.TopicID)
	putBool(vars, "recursive", r.Recursive)
	putString(vars, "fromEntityKind", string(r.FromEntityKind))
	putString(vars, "fromEntityId", r.FromEntityID)
	putString(vars, "toEntityKind", string(r.ToEntityKind))
	putString(vars, "toEntityId", r.ToEntityID)
	putString(vars, "parentId", r.ParentID)
	putString(vars, "entityKind", string(r.EntityKind))
	putString(vars, "entityId", r.EntityID)
	putString(vars, "userId", r.UserID)
	if len(r.TransactionKinds) > 0 {
		vars["transactionKinds"] = slices.Clone(r.TransactionKinds)
	}
	if r.From != nil {
		vars["from"] = r.From.UTC().Format(time.RFC3339)
	}
	if r.To != nil {
		vars["to"] = r.To.UTC().Format(time.RFC3339)
	}
	return vars
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}

func putBool(m map[string]any, key string, v bool) {
	if v {
		m[key] = true
	}
}

// ExcludesStatus reports whether the filter's status constraint rules out a
// record with the given status. An empty status constraint excludes nothing.
func (f Filter) ExcludesStatus(status string) bool {
	return len(f.Status) > 0 && !slices.Contains(f.Status, status)
}
