package model

import (
	"strings"
	"time"
)

// Entity is implemented by every record a listing can hold.
type Entity interface {
	EntityID() string
	EntityStatus() string
	EntityLabel() string
}

// UserRef is the abbreviated user embedded in audit fields.
type UserRef struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
}

// TrackedEntity carries the identity and audit metadata common to all tracked
// records.
type TrackedEntity struct {
	ID            string     `json:"id"`
	Status        string     `json:"status,omitempty"`
	Created       *time.Time `json:"created,omitempty"`
	CreatedByUser *UserRef   `json:"createdByUser,omitempty"`
	Updated       *time.Time `json:"updated,omitempty"`
	UpdatedByUser *UserRef   `json:"updatedByUser,omitempty"`
}

// EntityID implements Entity.
func (e TrackedEntity) EntityID() string { return e.ID }

// EntityStatus implements Entity.
func (e TrackedEntity) EntityStatus() string { return e.Status }

// Claim is a scientific claim.
type Claim struct {
	TrackedEntity
	Text  string `json:"text"`
	Date  string `json:"date,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// EntityLabel implements Entity.
func (c Claim) EntityLabel() string { return c.Text }

// Declaration is a public declaration, open letter or petition.
type Declaration struct {
	TrackedEntity
	Kind           string `json:"kind,omitempty"`
	Title          string `json:"title"`
	Date           string `json:"date,omitempty"`
	Country        string `json:"country,omitempty"`
	URL            string `json:"url,omitempty"`
	Cached         bool   `json:"cached,omitempty"`
	Signatories    string `json:"signatories,omitempty"`
	SignatoryCount int    `json:"signatoryCount,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// EntityLabel implements Entity.
func (d Declaration) EntityLabel() string { return d.Title }

// Person is a scientist or other public figure.
type Person struct {
	TrackedEntity
	Title          string `json:"title,omitempty"`
	FirstName      string `json:"firstName,omitempty"`
	Nickname       string `json:"nickname,omitempty"`
	Prefix         string `json:"prefix,omitempty"`
	LastName       string `json:"lastName"`
	Suffix         string `json:"suffix,omitempty"`
	Alias          string `json:"alias,omitempty"`
	Notes          string `json:"notes,omitempty"`
	Qualifications string `json:"qualifications,omitempty"`
	Country        string `json:"country,omitempty"`
	Rating         int    `json:"rating,omitempty"`
	Checked        bool   `json:"checked,omitempty"`
	Published      bool   `json:"published,omitempty"`
}

// EntityLabel implements Entity.
func (p Person) EntityLabel() string {
	return strings.Join(strings.Fields(p.Title+" "+p.FirstName+" "+p.Prefix+" "+p.LastName+" "+p.Suffix), " ")
}

// Publication is a paper, book or other published work.
type Publication struct {
	TrackedEntity
	Title        string `json:"title"`
	Kind         string `json:"kind,omitempty"`
	Authors      string `json:"authors,omitempty"`
	Journal      *Ref   `json:"journal,omitempty"`
	Date         string `json:"date,omitempty"`
	Year         int    `json:"year,omitempty"`
	Abstract     string `json:"abstract,omitempty"`
	Notes        string `json:"notes,omitempty"`
	PeerReviewed bool   `json:"peerReviewed,omitempty"`
	DOI          string `json:"doi,omitempty"`
	ISBN         string `json:"isbn,omitempty"`
	URL          string `json:"url,omitempty"`
	Cached       bool   `json:"cached,omitempty"`
	Accessed     string `json:"accessed,omitempty"`
}

// EntityLabel implements Entity.
func (p Publication) EntityLabel() string { return p.Title }

// Quotation is a quote attributed to a person.
type Quotation struct {
	TrackedEntity
	Quotee string `json:"quotee"`
	Text   string `json:"text"`
	Date   string `json:"date,omitempty"`
	Source string `json:"source,omitempty"`
	URL    string `json:"url,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// EntityLabel implements Entity.
func (q Quotation) EntityLabel() string { return q.Quotee + ": " + q.Text }

// Topic is a node in the topic hierarchy.
type Topic struct {
	TrackedEntity
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	ParentID    string  `json:"parentId,omitempty"`
	Children    []Topic `json:"children,omitempty"`
}

// EntityLabel implements Entity.
func (t Topic) EntityLabel() string { return t.Label }

// Journal is a scientific journal.
type Journal struct {
	TrackedEntity
	Title        string `json:"title"`
	Abbreviation string `json:"abbreviation,omitempty"`
	URL          string `json:"url,omitempty"`
	ISSN         string `json:"issn,omitempty"`
	Publisher    *Ref   `json:"publisher,omitempty"`
	Notes        string `json:"notes,omitempty"`
	PeerReviewed bool   `json:"peerReviewed,omitempty"`
}

// EntityLabel implements Entity.
func (j Journal) EntityLabel() string { return j.Title }

// Publisher is a publishing house.
type Publisher struct {
	TrackedEntity
	Name         string `json:"name"`
	Location     string `json:"location,omitempty"`
	Country      string `json:"country,omitempty"`
	URL          string `json:"url,omitempty"`
	JournalCount int    `json:"journalCount,omitempty"`
}

// EntityLabel implements Entity.
func (p Publisher) EntityLabel() string { return p.Name }

// User is an application user account.
type User struct {
	TrackedEntity
	Username    string   `json:"username"`
	FirstName   string   `json:"firstName,omitempty"`
	LastName    string   `json:"lastName,omitempty"`
	Email       string   `json:"email,omitempty"`
	Country     string   `json:"country,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Authorities []string `json:"authorities,omitempty"`
}

// EntityLabel implements Entity.
func (u User) EntityLabel() string { return u.Username }

// Group is a named set of users sharing authorities.
type Group struct {
	TrackedEntity
	Groupname   string   `json:"groupname"`
	Authorities []string `json:"authorities,omitempty"`
}

// EntityLabel implements Entity.
func (g Group) EntityLabel() string { return g.Groupname }

// LogEntry is one audit record of a transaction against a tracked entity.
type LogEntry struct {
	ID              string     `json:"id"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
	User            *UserRef   `json:"user,omitempty"`
	TransactionKind string     `json:"transactionKind"`
	EntityKind      EntityKind `json:"entityKind"`
	LoggedEntityID  string     `json:"entityId"`
}

// EntityID implements Entity.
func (l LogEntry) EntityID() string { return l.ID }

// EntityStatus implements Entity. Log entries have no status.
func (l LogEntry) EntityStatus() string { return "" }

// EntityLabel implements Entity.
func (l LogEntry) EntityLabel() string {
	return l.TransactionKind + " " + string(l.EntityKind) + "#" + l.LoggedEntityID
}

// Ref is a lightweight {id, label} reference to a record.
type Ref struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// EntityLink records a typed from/to association between two linkable records.
type EntityLink struct {
	TrackedEntity
	FromEntityKind EntityKind `json:"fromEntityKind"`
	FromEntityID   string     `json:"fromEntityId"`
	ToEntityKind   EntityKind `json:"toEntityKind"`
	ToEntityID     string     `json:"toEntityId"`
}

// EntityLabel implements Entity.
func (l EntityLink) EntityLabel() string {
	return string(l.FromEntityKind) + "#" + l.FromEntityID + " -> " + string(l.ToEntityKind) + "#" + l.ToEntityID
}
