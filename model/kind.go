package model

// EntityKind names a kind of record the console can list. The string values
// match the backend's EntityKind enumeration.
type EntityKind string

// Linkable kinds.
const (
	KindClaim       EntityKind = "Claim"
	KindDeclaration EntityKind = "Declaration"
	KindPerson      EntityKind = "Person"
	KindPublication EntityKind = "Publication"
	KindQuotation   EntityKind = "Quotation"
	KindTopic       EntityKind = "Topic"
)

// Tracked, non-linkable kinds.
const (
	KindJournal   EntityKind = "Journal"
	KindPublisher EntityKind = "Publisher"
	KindUser      EntityKind = "User"
	KindGroup     EntityKind = "Group"
)

// KindLog is the read-only audit log.
const KindLog EntityKind = "Log"

// KindNone is the sentinel master kind meaning "no master record".
const KindNone EntityKind = "None"

// FilterClass identifies which query filter type a kind's listing accepts.
// Each class is a strict superset of the previous one, except FilterClassLog
// which stands alone.
type FilterClass int

const (
	FilterClassTracked FilterClass = iota
	FilterClassLinkable
	FilterClassTopic
	FilterClassLog
)

// Includes reports whether a filter of class c carries the fields of class other.
func (c FilterClass) Includes(other FilterClass) bool {
	if c == FilterClassLog || other == FilterClassLog {
		return c == other
	}
	return c >= other
}

type kindInfo struct {
	class  FilterClass
	plural string
	label  string
}

var kinds = map[EntityKind]kindInfo{
	KindClaim:       {FilterClassLinkable, "claims", "Claims"},
	KindDeclaration: {FilterClassLinkable, "declarations", "Declarations"},
	KindPerson:      {FilterClassLinkable, "persons", "Persons"},
	KindPublication: {FilterClassLinkable, "publications", "Publications"},
	KindQuotation:   {FilterClassLinkable, "quotations", "Quotations"},
	KindTopic:       {FilterClassTopic, "topics", "Topics"},
	KindJournal:     {FilterClassTracked, "journals", "Journals"},
	KindPublisher:   {FilterClassTracked, "publishers", "Publishers"},
	KindUser:        {FilterClassTracked, "users", "Users"},
	KindGroup:       {FilterClassTracked, "groups", "Groups"},
	KindLog:         {FilterClassLog, "log", "Log"},
}

// LinkableKinds lists the kinds that participate in entity links, in a
// stable order.
var LinkableKinds = []EntityKind{
	KindClaim, KindDeclaration, KindPerson, KindPublication, KindQuotation, KindTopic,
}

// AllKinds lists every listable kind.
var AllKinds = []EntityKind{
	KindClaim, KindDeclaration, KindPerson, KindPublication, KindQuotation, KindTopic,
	KindJournal, KindPublisher, KindUser, KindGroup, KindLog,
}

// Valid reports whether k names a listable kind.
func (k EntityKind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Class returns the filter class for k. Unknown kinds map to FilterClassTracked.
func (k EntityKind) Class() FilterClass {
	return kinds[k].class
}

// Linkable reports whether k can be the source or target of an entity link.
func (k EntityKind) Linkable() bool {
	c, ok := kinds[k]
	return ok && (c.class == FilterClassLinkable || c.class == FilterClassTopic)
}

// Plural returns the GraphQL list field name for k, e.g. "claims".
func (k EntityKind) Plural() string {
	return kinds[k].plural
}

// Label returns a human readable plural label.
func (k EntityKind) Label() string {
	if info, ok := kinds[k]; ok {
		return info.label
	}
	return string(k)
}

// ParseEntityKind returns the kind named by s. The sentinel None is accepted.
func ParseEntityKind(s string) (EntityKind, bool) {
	k := EntityKind(s)
	if k == KindNone || k.Valid() {
		return k, true
	}
	return "", false
}
