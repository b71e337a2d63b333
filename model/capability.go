package model

import "slices"

// Authority codes granted to users and groups by the backend.
const (
	AuthorityAdminister = "ADM"
	AuthorityCreate     = "CRE"
	AuthorityDelete     = "DEL"
	AuthorityLink       = "LNK"
	AuthorityRead       = "REA"
	AuthorityUpdate     = "UPD"
	AuthorityUpload     = "UPL"
	AuthorityComment    = "COM"
)

// AuthoritySet is the list of authority codes granted to the current user.
type AuthoritySet []string

// Has returns true if the set contains the given authority.
func (as AuthoritySet) Has(authority string) bool {
	return slices.Contains(as, authority)
}

// HasAll returns true if the set contains every given authority.
func (as AuthoritySet) HasAll(authorities ...string) bool {
	for _, a := range authorities {
		if !as.Has(a) {
			return false
		}
	}
	return true
}

// HasAny returns true if the set contains at least one of the given
// authorities.
func (as AuthoritySet) HasAny(authorities ...string) bool {
	for _, a := range authorities {
		if as.Has(a) {
			return true
		}
	}
	return false
}

// Form modes of a listing page's detail form.
type Mode string

const (
	ModeView   Mode = "view"
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// DetailState bundles the permission flags and edit state presentation
// components need to enable or disable actions.
type DetailState struct {
	AllowCreate bool `json:"allowCreate"`
	AllowEdit   bool `json:"allowEdit"`
	AllowUpdate bool `json:"allowUpdate"`
	AllowDelete bool `json:"allowDelete"`
	AllowLink   bool `json:"allowLink"`
	AllowRead   bool `json:"allowRead"`
	Updating    bool `json:"updating"`
	Mode        Mode `json:"mode"`
}

// NewDetailState derives the detail state for the given authorities and
// form mode.
func NewDetailState(authorities AuthoritySet, mode Mode) DetailState {
	ds := DetailState{
		AllowCreate: authorities.Has(AuthorityCreate),
		AllowEdit:   authorities.Has(AuthorityUpdate),
		AllowDelete: authorities.Has(AuthorityDelete),
		AllowLink:   authorities.Has(AuthorityLink),
		AllowRead:   authorities.Has(AuthorityRead),
		Updating:    mode == ModeCreate || mode == ModeEdit,
		Mode:        mode,
	}
	ds.AllowUpdate = ds.AllowCreate || ds.AllowEdit
	return ds
}
