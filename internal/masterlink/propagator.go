package masterlink

import (
	"context"

	"github.com/demonfiddler/evidence-engine-sub001/internal/appstate"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// TopicRef identifies a topic together with its display path.
type TopicRef struct {
	ID   string `json:"id"`
	Path string `json:"path,omitempty"`
}

// Propagator updates the master link held by a global context. Each setter
// is a single read-modify-write of the context.
type Propagator struct {
	ctx appstate.Context
}

// NewPropagator returns a Propagator over c.
func NewPropagator(c appstate.Context) *Propagator {
	return &Propagator{ctx: c}
}

// State returns the current master link.
func (p *Propagator) State() model.MasterLinkState {
	return p.ctx.MasterLink()
}

// SetMasterTopic pins topic as the master topic. A nil topic removes the
// topic filter.
func (p *Propagator) SetMasterTopic(ctx context.Context, topic *TopicRef) error {
	return p.ctx.UpdateMasterLink(ctx, func(m model.MasterLinkState, _ model.SelectedRecordsMap) model.MasterLinkState {
		if topic == nil || topic.ID == "" {
			m.MasterTopicID = ""
			m.MasterTopicPath = ""
		} else {
			m.MasterTopicID = topic.ID
			m.MasterTopicPath = topic.Path
		}
		return m
	})
}

// SetMasterRecord pins record as the master record if kind is the active
// master kind; otherwise it does nothing. A nil record clears the master
// record but keeps the kind.
func (p *Propagator) SetMasterRecord(ctx context.Context, kind model.EntityKind, record *model.Ref) error {
	return p.ctx.UpdateMasterLink(ctx, func(m model.MasterLinkState, _ model.SelectedRecordsMap) model.MasterLinkState {
		if kind == model.KindNone || kind != m.MasterRecordKind {
			return m
		}
		if record == nil {
			m.MasterRecordID = ""
			m.MasterRecordLabel = ""
		} else {
			m.MasterRecordID = record.ID
			m.MasterRecordLabel = record.Label
		}
		return m
	})
}

// SetMasterRecordKind switches the master kind and restores that kind's
// last selected record, if any.
func (p *Propagator) SetMasterRecordKind(ctx context.Context, kind model.EntityKind) error {
	if kind != model.KindNone && !kind.Linkable() {
		return model.NewBadRequestError("master record kind must be a linkable kind or None")
	}
	return p.ctx.UpdateMasterLink(ctx, func(m model.MasterLinkState, selected model.SelectedRecordsMap) model.MasterLinkState {
		m.MasterRecordKind = kind
		m.MasterRecordID = ""
		m.MasterRecordLabel = ""
		if ref, ok := selected[kind]; ok && kind != model.KindNone {
			m.MasterRecordID = ref.ID
			m.MasterRecordLabel = ref.Label
		}
		return m
	})
}

// Filter returns the effective filter for a listing of the given kind.
// When showOnlyLinked is false the filter is returned unchanged.
func (p *Propagator) Filter(listing model.EntityKind, showOnlyLinked bool, f model.Filter) model.Filter {
	if !showOnlyLinked {
		return f.Clone()
	}
	return Derive(listing, p.ctx.MasterLink(), f)
}
