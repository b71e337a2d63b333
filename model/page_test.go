package model

import "testing"

func TestPage_Clone(t *testing.T) {
	var nilPage *Page[Claim]
	if nilPage.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}

	p := &Page[Claim]{Content: []Claim{{Text: "a"}}, TotalElements: 1}
	c := p.Clone()
	c.Content[0].Text = "b"
	if p.Content[0].Text != "a" {
		t.Error("Clone shares the content slice")
	}
}

func TestPage_SyncCounts(t *testing.T) {
	p := &Page[Claim]{Content: []Claim{{}, {}}, TotalElements: 7, TotalPages: 2}
	p.SyncCounts()
	if p.NumberOfElements != 2 || !p.HasContent || p.IsEmpty {
		t.Errorf("counts = %d/%v/%v, want 2/true/false", p.NumberOfElements, p.HasContent, p.IsEmpty)
	}
	if p.TotalElements != 7 || p.TotalPages != 2 {
		t.Error("SyncCounts should leave totals alone")
	}

	p.Content = nil
	p.SyncCounts()
	if p.NumberOfElements != 0 || p.HasContent || !p.IsEmpty {
		t.Errorf("empty counts = %d/%v/%v, want 0/false/true", p.NumberOfElements, p.HasContent, p.IsEmpty)
	}
}

func TestPageSort_Equal(t *testing.T) {
	a := &PageSort{PageNumber: 1, PageSize: 10, Sort: []SortOrder{NewSortOrder("text")}}
	b := &PageSort{PageNumber: 1, PageSize: 10, Sort: []SortOrder{NewSortOrder("text")}}
	if !a.Equal(b) {
		t.Error("identical page sorts should be equal")
	}
	b.Sort[0].Direction = DirectionDesc
	if a.Equal(b) {
		t.Error("direction should matter")
	}
	var none *PageSort
	if !none.Equal(nil) || a.Equal(nil) {
		t.Error("nil handling is wrong")
	}
}

func TestQueryState_Clone(t *testing.T) {
	q := QueryState{Sorting: []ColumnSort{{ID: "text"}}, Filter: Filter{Status: []string{"PUB"}}}
	c := q.Clone()
	c.Sorting[0].Desc = true
	c.Filter.Status[0] = "DEL"
	if q.Sorting[0].Desc || q.Filter.Status[0] != "PUB" {
		t.Error("Clone shares state with the original")
	}
}
