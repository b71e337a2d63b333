package model

import "slices"

// Sort direction and null handling values accepted by PageableInput.
const (
	DirectionAsc  = "ASC"
	DirectionDesc = "DESC"

	NullHandlingNative = "NATIVE"
	NullHandlingFirst  = "NULLS_FIRST"
	NullHandlingLast   = "NULLS_LAST"
)

// Page is the paging envelope returned by every list query.
type Page[T any] struct {
	Content          []T  `json:"content"`
	Number           int  `json:"number"`
	Size             int  `json:"size"`
	NumberOfElements int  `json:"numberOfElements"`
	TotalPages       int  `json:"totalPages"`
	TotalElements    int  `json:"totalElements"`
	HasNext          bool `json:"hasNext"`
	HasPrevious      bool `json:"hasPrevious"`
	IsFirst          bool `json:"isFirst"`
	IsLast           bool `json:"isLast"`
	HasContent       bool `json:"hasContent"`
	IsEmpty          bool `json:"isEmpty"`
}

// Clone returns a shallow copy of p with its own content slice.
func (p *Page[T]) Clone() *Page[T] {
	if p == nil {
		return nil
	}
	c := *p
	c.Content = slices.Clone(p.Content)
	return &c
}

// SyncCounts recomputes the element-count fields from Content. Totals and
// navigation flags are left as they are.
func (p *Page[T]) SyncCounts() {
	p.NumberOfElements = len(p.Content)
	p.HasContent = p.NumberOfElements > 0
	p.IsEmpty = p.NumberOfElements == 0
}

// SortOrder is one ordering term of a PageSort.
type SortOrder struct {
	Property     string `json:"property"`
	Direction    string `json:"direction"`
	IgnoreCase   bool   `json:"ignoreCase"`
	NullHandling string `json:"nullHandling"`
}

// NewSortOrder returns an ascending, case-insensitive order with native null
// handling, the backend's defaults.
func NewSortOrder(property string) SortOrder {
	return SortOrder{
		Property:     property,
		Direction:    DirectionAsc,
		IgnoreCase:   true,
		NullHandling: NullHandlingNative,
	}
}

// PageSort is the PageableInput request parameter. Sort is nil unless the
// listing is sorted server-side.
type PageSort struct {
	PageNumber int         `json:"pageNumber"`
	PageSize   int         `json:"pageSize"`
	Sort       []SortOrder `json:"sort,omitempty"`
}

// Equal reports whether two page sorts request the same slice of data.
func (p *PageSort) Equal(o *PageSort) bool {
	if p == nil || o == nil {
		return p == nil && o == nil
	}
	return p.PageNumber == o.PageNumber && p.PageSize == o.PageSize && slices.Equal(p.Sort, o.Sort)
}

// Pagination is the table's page cursor.
type Pagination struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
}

// ColumnSort is one sorted column of a table.
type ColumnSort struct {
	ID   string `json:"id"`
	Desc bool   `json:"desc"`
}

// QueryState is the durable shadow of a listing page's transient state.
type QueryState struct {
	Filter                Filter       `json:"filter"`
	Sorting               []ColumnSort `json:"sorting,omitempty"`
	Pagination            Pagination   `json:"pagination"`
	SelectedLinkID        string       `json:"selectedLinkId,omitempty"`
	ShowOnlyLinkedRecords bool         `json:"showOnlyLinkedRecords,omitempty"`
	ShowUsersOrMembers    string       `json:"showUsersOrMembers,omitempty"`
	ActiveTab             string       `json:"activeTab,omitempty"`
}

// Clone returns a deep copy of q.
func (q QueryState) Clone() QueryState {
	c := q
	c.Filter = q.Filter.Clone()
	c.Sorting = slices.Clone(q.Sorting)
	return c
}

// ColumnLayout is a table's column arrangement.
type ColumnLayout struct {
	Order      []string        `json:"order,omitempty"`
	Visibility map[string]bool `json:"visibility,omitempty"`
	Sizing     map[string]int  `json:"sizing,omitempty"`
}
