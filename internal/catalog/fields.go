package catalog

import (
	"encoding/json"

	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// Detail form values, one struct per editable kind. JSON names match the
// backend's input types so the structs double as mutation inputs.

type ClaimFields struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
	Text   string `json:"text" validate:"required,max=500"`
	Date   string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes  string `json:"notes,omitempty" validate:"max=65535"`
}

type DeclarationFields struct {
	ID          string `json:"id,omitempty"`
	Status      string `json:"status,omitempty"`
	Kind        string `json:"kind" validate:"required,oneof=DECL OPLE PETN"`
	Title       string `json:"title" validate:"required,max=100"`
	Date        string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Country     string `json:"country,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	URL         string `json:"url,omitempty" validate:"omitempty,url"`
	Cached      bool   `json:"cached,omitempty"`
	Signatories string `json:"signatories,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type PersonFields struct {
	ID             string `json:"id,omitempty"`
	Status         string `json:"status,omitempty"`
	Title          string `json:"title,omitempty" validate:"max=10"`
	FirstName      string `json:"firstName,omitempty" validate:"max=80"`
	Nickname       string `json:"nickname,omitempty" validate:"max=40"`
	Prefix         string `json:"prefix,omitempty" validate:"max=20"`
	LastName       string `json:"lastName" validate:"required,max=40"`
	Suffix         string `json:"suffix,omitempty" validate:"max=16"`
	Alias          string `json:"alias,omitempty" validate:"max=40"`
	Notes          string `json:"notes,omitempty"`
	Qualifications string `json:"qualifications,omitempty"`
	Country        string `json:"country,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	Rating         int    `json:"rating,omitempty" validate:"min=0,max=5"`
	Checked        bool   `json:"checked,omitempty"`
	Published      bool   `json:"published,omitempty"`
}

type PublicationFields struct {
	ID           string `json:"id,omitempty"`
	Status       string `json:"status,omitempty"`
	Title        string `json:"title" validate:"required,max=200"`
	Kind         string `json:"kind" validate:"required"`
	Authors      string `json:"authors,omitempty"`
	JournalID    string `json:"journalId,omitempty"`
	Date         string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Year         int    `json:"year,omitempty" validate:"omitempty,min=1000,max=9999"`
	Abstract     string `json:"abstract,omitempty"`
	Notes        string `json:"notes,omitempty"`
	PeerReviewed bool   `json:"peerReviewed,omitempty"`
	DOI          string `json:"doi,omitempty" validate:"max=255"`
	ISBN         string `json:"isbn,omitempty" validate:"omitempty,isbn"`
	URL          string `json:"url,omitempty" validate:"omitempty,url"`
	Cached       bool   `json:"cached,omitempty"`
	Accessed     string `json:"accessed,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type QuotationFields struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
	Quotee string `json:"quotee" validate:"required,max=50"`
	Text   string `json:"text" validate:"required,max=1000"`
	Date   string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Source string `json:"source,omitempty" validate:"max=200"`
	URL    string `json:"url,omitempty" validate:"omitempty,url"`
	Notes  string `json:"notes,omitempty"`
}

type TopicFields struct {
	ID          string `json:"id,omitempty"`
	Status      string `json:"status,omitempty"`
	Label       string `json:"label" validate:"required,max=50"`
	Description string `json:"description,omitempty" validate:"max=500"`
	ParentID    string `json:"parentId,omitempty"`
}

type JournalFields struct {
	ID           string `json:"id,omitempty"`
	Status       string `json:"status,omitempty"`
	Title        string `json:"title" validate:"required,max=100"`
	Abbreviation string `json:"abbreviation,omitempty" validate:"max=50"`
	URL          string `json:"url,omitempty" validate:"omitempty,url"`
	ISSN         string `json:"issn,omitempty" validate:"omitempty,len=9"`
	PublisherID  string `json:"publisherId,omitempty"`
	Notes        string `json:"notes,omitempty"`
	PeerReviewed bool   `json:"peerReviewed,omitempty"`
}

type PublisherFields struct {
	ID           string `json:"id,omitempty"`
	Status       string `json:"status,omitempty"`
	Name         string `json:"name" validate:"required,max=200"`
	Location     string `json:"location,omitempty" validate:"max=50"`
	Country      string `json:"country,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	URL          string `json:"url,omitempty" validate:"omitempty,url"`
	JournalCount int    `json:"journalCount,omitempty" validate:"min=0"`
}

type UserFields struct {
	ID          string   `json:"id,omitempty"`
	Status      string   `json:"status,omitempty"`
	Username    string   `json:"username" validate:"required,max=50"`
	FirstName   string   `json:"firstName,omitempty" validate:"max=50"`
	LastName    string   `json:"lastName,omitempty" validate:"max=50"`
	Email       string   `json:"email" validate:"required,email"`
	Country     string   `json:"country,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	Notes       string   `json:"notes,omitempty"`
	Authorities []string `json:"authorities,omitempty" validate:"dive,oneof=ADM CRE DEL LNK REA UPD UPL COM"`
}

type GroupFields struct {
	ID          string   `json:"id,omitempty"`
	Status      string   `json:"status,omitempty"`
	Groupname   string   `json:"groupname" validate:"required,max=50"`
	Authorities []string `json:"authorities,omitempty" validate:"dive,oneof=ADM CRE DEL LNK REA UPD UPL COM"`
}

func claimFields(c model.Claim) ClaimFields {
	return ClaimFields{ID: c.ID, Status: c.Status, Text: c.Text, Date: c.Date, Notes: c.Notes}
}

func declarationFields(d model.Declaration) DeclarationFields {
	return DeclarationFields{
		ID: d.ID, Status: d.Status, Kind: d.Kind, Title: d.Title, Date: d.Date,
		Country: d.Country, URL: d.URL, Cached: d.Cached, Signatories: d.Signatories, Notes: d.Notes,
	}
}

func personFields(p model.Person) PersonFields {
	return PersonFields{
		ID: p.ID, Status: p.Status, Title: p.Title, FirstName: p.FirstName, Nickname: p.Nickname,
		Prefix: p.Prefix, LastName: p.LastName, Suffix: p.Suffix, Alias: p.Alias, Notes: p.Notes,
		Qualifications: p.Qualifications, Country: p.Country, Rating: p.Rating,
		Checked: p.Checked, Published: p.Published,
	}
}

func publicationFields(p model.Publication) PublicationFields {
	f := PublicationFields{
		ID: p.ID, Status: p.Status, Title: p.Title, Kind: p.Kind, Authors: p.Authors,
		Date: p.Date, Year: p.Year, Abstract: p.Abstract, Notes: p.Notes,
		PeerReviewed: p.PeerReviewed, DOI: p.DOI, ISBN: p.ISBN, URL: p.URL,
		Cached: p.Cached, Accessed: p.Accessed,
	}
	if p.Journal != nil {
		f.JournalID = p.Journal.ID
	}
	return f
}

func quotationFields(q model.Quotation) QuotationFields {
	return QuotationFields{
		ID: q.ID, Status: q.Status, Quotee: q.Quotee, Text: q.Text, Date: q.Date,
		Source: q.Source, URL: q.URL, Notes: q.Notes,
	}
}

func topicFields(t model.Topic) TopicFields {
	return TopicFields{ID: t.ID, Status: t.Status, Label: t.Label, Description: t.Description, ParentID: t.ParentID}
}

func journalFields(j model.Journal) JournalFields {
	f := JournalFields{
		ID: j.ID, Status: j.Status, Title: j.Title, Abbreviation: j.Abbreviation,
		URL: j.URL, ISSN: j.ISSN, Notes: j.Notes, PeerReviewed: j.PeerReviewed,
	}
	if j.Publisher != nil {
		f.PublisherID = j.Publisher.ID
	}
	return f
}

func publisherFields(p model.Publisher) PublisherFields {
	return PublisherFields{
		ID: p.ID, Status: p.Status, Name: p.Name, Location: p.Location,
		Country: p.Country, URL: p.URL, JournalCount: p.JournalCount,
	}
}

func userFields(u model.User) UserFields {
	return UserFields{
		ID: u.ID, Status: u.Status, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName,
		Email: u.Email, Country: u.Country, Notes: u.Notes, Authorities: u.Authorities,
	}
}

func groupFields(g model.Group) GroupFields {
	return GroupFields{ID: g.ID, Status: g.Status, Groupname: g.Groupname, Authorities: g.Authorities}
}

// toInput converts form values into a mutation input object. Status is
// server-managed and never sent.
func toInput[V any](v V) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	input := map[string]any{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return map[string]any{}
	}
	delete(input, "status")
	return input
}
