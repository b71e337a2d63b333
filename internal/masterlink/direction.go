// Package masterlink tracks the topic and record the user is drilling down
// from and derives the auxiliary filter that restricts other listings to
// records linked to them.
package masterlink

import "github.com/demonfiddler/evidence-engine-sub001/model"

// Side identifies which end of an entity link the master record occupies.
type Side int

const (
	// SideNone means the two kinds are not linked through the master.
	SideNone Side = iota
	// SideFrom means the master record is the link's source.
	SideFrom
	// SideTo means the master record is the link's target.
	SideTo
)

func (s Side) String() string {
	switch s {
	case SideFrom:
		return "from"
	case SideTo:
		return "to"
	default:
		return "none"
	}
}

// directions[listing][master] gives the side the master record occupies when
// it filters a listing. Links run Person -> Publication -> Declaration ->
// Quotation -> Claim -> Topic.
var directions = map[model.EntityKind]map[model.EntityKind]Side{
	model.KindClaim: {
		model.KindDeclaration: SideFrom,
		model.KindPerson:      SideFrom,
		model.KindPublication: SideFrom,
		model.KindQuotation:   SideFrom,
		model.KindTopic:       SideTo,
	},
	model.KindDeclaration: {
		model.KindClaim:       SideTo,
		model.KindPerson:      SideFrom,
		model.KindPublication: SideFrom,
		model.KindQuotation:   SideTo,
		model.KindTopic:       SideTo,
	},
	model.KindPerson: {
		model.KindClaim:       SideTo,
		model.KindDeclaration: SideTo,
		model.KindPublication: SideTo,
		model.KindQuotation:   SideTo,
		model.KindTopic:       SideTo,
	},
	model.KindPublication: {
		model.KindClaim:       SideTo,
		model.KindDeclaration: SideTo,
		model.KindPerson:      SideFrom,
		model.KindQuotation:   SideTo,
		model.KindTopic:       SideTo,
	},
	model.KindQuotation: {
		model.KindClaim:       SideTo,
		model.KindDeclaration: SideFrom,
		model.KindPerson:      SideFrom,
		model.KindPublication: SideFrom,
		model.KindTopic:       SideTo,
	},
	model.KindTopic: {
		model.KindClaim:       SideFrom,
		model.KindDeclaration: SideFrom,
		model.KindPerson:      SideFrom,
		model.KindPublication: SideFrom,
		model.KindQuotation:   SideFrom,
	},
}

// Direction returns the side a master record of kind master occupies when it
// filters a listing of kind listing.
func Direction(listing, master model.EntityKind) Side {
	return directions[listing][master]
}

// Derive returns the effective filter for a listing of the given kind when
// "show only linked records" is on. A master topic adds topicId with
// recursive forced true; a master record adds exactly one of
// fromEntityId/toEntityId. The input filter is not modified.
func Derive(listing model.EntityKind, state model.MasterLinkState, f model.Filter) model.Filter {
	out := f.Clone()
	if !listing.Linkable() {
		return out
	}

	if state.MasterTopicID != "" {
		out.TopicID = state.MasterTopicID
		out.Recursive = true
	}

	state = state.Normalize()
	if !state.HasMasterRecord() {
		return out
	}
	switch Direction(listing, state.MasterRecordKind) {
	case SideFrom:
		out.FromEntityKind = state.MasterRecordKind
		out.FromEntityID = state.MasterRecordID
		out.ToEntityKind = ""
		out.ToEntityID = ""
	case SideTo:
		out.ToEntityKind = state.MasterRecordKind
		out.ToEntityID = state.MasterRecordID
		out.FromEntityKind = ""
		out.FromEntityID = ""
	}
	return out
}

// LinkEnds returns the link that would join a record of the given kind to the
// master record, oriented by the direction table. ok is false when there is
// no master record or the kinds do not link.
func LinkEnds(kind model.EntityKind, id string, state model.MasterLinkState) (link model.EntityLink, ok bool) {
	state = state.Normalize()
	if !state.HasMasterRecord() {
		return model.EntityLink{}, false
	}
	switch Direction(kind, state.MasterRecordKind) {
	case SideFrom:
		link.FromEntityKind, link.FromEntityID = state.MasterRecordKind, state.MasterRecordID
		link.ToEntityKind, link.ToEntityID = kind, id
	case SideTo:
		link.FromEntityKind, link.FromEntityID = kind, id
		link.ToEntityKind, link.ToEntityID = state.MasterRecordKind, state.MasterRecordID
	default:
		return model.EntityLink{}, false
	}
	return link, true
}
