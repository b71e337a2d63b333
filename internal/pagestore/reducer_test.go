package pagestore

import (
	"sync"
	"testing"

	"github.com/demonfiddler/evidence-engine-sub001/model"
)

func claim(id, status, text string) model.Claim {
	return model.Claim{
		TrackedEntity: model.TrackedEntity{ID: id, Status: status},
		Text:          text,
	}
}

func testPage() *model.Page[model.Claim] {
	return &model.Page[model.Claim]{
		Content: []model.Claim{
			claim("1", model.StatusPublished, "one"),
			claim("2", model.StatusPublished, "two"),
			claim("3", model.StatusDraft, "three"),
		},
		Number:           0,
		Size:             10,
		NumberOfElements: 3,
		TotalPages:       1,
		TotalElements:    3,
		IsFirst:          true,
		IsLast:           true,
		HasContent:       true,
	}
}

func ids(p *model.Page[model.Claim]) []string {
	var out []string
	for _, c := range p.Content {
		out = append(out, c.ID)
	}
	return out
}

func checkCounts(t *testing.T, p *model.Page[model.Claim]) {
	t.Helper()
	if p.NumberOfElements != len(p.Content) {
		t.Errorf("NumberOfElements = %d, len(content) = %d", p.NumberOfElements, len(p.Content))
	}
	if p.IsEmpty != (p.NumberOfElements == 0) {
		t.Errorf("IsEmpty = %v with %d elements", p.IsEmpty, p.NumberOfElements)
	}
}

// --- Init ---

func TestReduce_initReplaces(t *testing.T) {
	old := testPage()
	fresh := &model.Page[model.Claim]{Content: []model.Claim{claim("9", model.StatusPublished, "nine")}, NumberOfElements: 1, HasContent: true}

	got := Reduce(old, Init(fresh))

	if len(got.Content) != 1 || got.Content[0].ID != "9" {
		t.Errorf("content = %v, want [9]", ids(got))
	}
	fresh.Content[0].Text = "mutated"
	if got.Content[0].Text != "nine" {
		t.Error("Init aliased the fetched page")
	}
}

func TestReduce_initNil(t *testing.T) {
	if got := Reduce(testPage(), Init[model.Claim](nil)); got != nil {
		t.Errorf("Reduce(Init(nil)) = %+v, want nil", got)
	}
}

// --- Create ---

func TestReduce_createAppendsTotalsStale(t *testing.T) {
	page := testPage()

	got := Reduce(page, Create(claim("4", model.StatusDraft, "four")))

	if want := []string{"1", "2", "3", "4"}; len(ids(got)) != 4 || ids(got)[3] != "4" {
		t.Errorf("content = %v, want %v", ids(got), want)
	}
	checkCounts(t, got)
	if got.TotalElements != 3 {
		t.Errorf("TotalElements = %d, want stale 3", got.TotalElements)
	}
	if len(page.Content) != 3 {
		t.Error("Reduce modified its input page")
	}
}

func TestReduce_createIntoEmptyPage(t *testing.T) {
	empty := &model.Page[model.Claim]{IsEmpty: true}

	got := Reduce(empty, Create(claim("1", model.StatusDraft, "one")))

	checkCounts(t, got)
	if !got.HasContent {
		t.Error("HasContent = false after create")
	}
}

func TestReduce_createBeforeInit(t *testing.T) {
	if got := Reduce(nil, Create(claim("1", model.StatusDraft, "one"))); got != nil {
		t.Errorf("Reduce(nil, Create) = %+v, want nil", got)
	}
}

// --- Update ---

func TestReduce_updateReplacesInPlace(t *testing.T) {
	got := Reduce(testPage(), Update(claim("2", model.StatusPublished, "TWO")))

	if got.Content[1].Text != "TWO" {
		t.Errorf("Content[1].Text = %q, want TWO", got.Content[1].Text)
	}
	if len(got.Content) != 3 {
		t.Errorf("len(content) = %d, want 3", len(got.Content))
	}
}

func TestReduce_updateAbsentIsNoop(t *testing.T) {
	page := testPage()

	got := Reduce(page, Update(claim("99", model.StatusPublished, "ghost")))

	if len(got.Content) != len(page.Content) {
		t.Fatalf("len(content) = %d, want %d", len(got.Content), len(page.Content))
	}
	for i := range page.Content {
		if got.Content[i] != page.Content[i] {
			t.Errorf("Content[%d] = %+v, want %+v", i, got.Content[i], page.Content[i])
		}
	}
}

// --- Delete ---

func TestReduce_deleteRemovedWhenStatusFilterExcludes(t *testing.T) {
	filter := model.Filter{Status: []string{model.StatusPublished}}

	got := Reduce(testPage(), Delete(claim("1", model.StatusDeleted, "one"), filter))

	if ids := ids(got); len(ids) != 2 || ids[0] != "2" {
		t.Errorf("content = %v, want [2 3]", ids)
	}
	checkCounts(t, got)
}

func TestReduce_deleteKeptWithoutStatusFilter(t *testing.T) {
	got := Reduce(testPage(), Delete(claim("1", model.StatusDeleted, "one"), model.Filter{}))

	if len(got.Content) != 3 {
		t.Fatalf("len(content) = %d, want 3", len(got.Content))
	}
	if got.Content[0].Status != model.StatusDeleted {
		t.Errorf("Content[0].Status = %q, want DEL", got.Content[0].Status)
	}
}

func TestReduce_deleteKeptWhenFilterIncludesDeleted(t *testing.T) {
	filter := model.Filter{Status: []string{model.StatusPublished, model.StatusDeleted}}

	got := Reduce(testPage(), Delete(claim("2", model.StatusDeleted, "two"), filter))

	if got.Content[1].Status != model.StatusDeleted || len(got.Content) != 3 {
		t.Errorf("content = %+v, want record 2 replaced in place", got.Content)
	}
}

func TestReduce_deleteAbsentIsNoop(t *testing.T) {
	page := testPage()
	filter := model.Filter{Status: []string{model.StatusPublished}}

	got := Reduce(page, Delete(claim("42", model.StatusDeleted, ""), filter))

	if len(got.Content) != 3 {
		t.Errorf("len(content) = %d, want 3", len(got.Content))
	}
}

func TestReduce_deleteLastRecordEmptiesPage(t *testing.T) {
	page := &model.Page[model.Claim]{Content: []model.Claim{claim("1", model.StatusPublished, "x")}, NumberOfElements: 1, HasContent: true}
	filter := model.Filter{Status: []string{model.StatusPublished}}

	got := Reduce(page, Delete(claim("1", model.StatusDeleted, "x"), filter))

	if !got.IsEmpty || got.HasContent {
		t.Errorf("IsEmpty/HasContent = %v/%v, want true/false", got.IsEmpty, got.HasContent)
	}
}

// --- Store ---

func TestStore_dispatchOrder(t *testing.T) {
	s := New[model.Claim]()
	filter := model.Filter{Status: []string{model.StatusPublished}}

	s.Dispatch(Init(testPage()))
	s.Dispatch(Delete(claim("2", model.StatusDeleted, "two"), filter))
	got := s.Dispatch(Create(claim("2", model.StatusPublished, "two again")))

	if ids := ids(got); len(ids) != 3 || ids[2] != "2" {
		t.Errorf("content = %v, want [1 3 2]", ids)
	}
}

func TestStore_find(t *testing.T) {
	s := New[model.Claim]()
	if _, ok := s.Find("1"); ok {
		t.Error("Find before Init ok = true")
	}

	s.Dispatch(Init(testPage()))

	c, ok := s.Find("3")
	if !ok || c.Text != "three" {
		t.Errorf("Find(3) = %+v/%v", c, ok)
	}
}

func TestStore_pageIsCopy(t *testing.T) {
	s := New[model.Claim]()
	s.Dispatch(Init(testPage()))

	p := s.Page()
	p.Content[0].Text = "mutated"

	if s.Page().Content[0].Text != "one" {
		t.Error("Page returned an alias of the stored page")
	}
}

func TestStore_concurrentDispatch(t *testing.T) {
	s := New[model.Claim]()
	s.Dispatch(Init(&model.Page[model.Claim]{}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Dispatch(Create(claim("x", model.StatusDraft, "")))
		}()
	}
	wg.Wait()

	p := s.Page()
	if len(p.Content) != 50 {
		t.Errorf("len(content) = %d, want 50", len(p.Content))
	}
	checkCounts(t, p)
}

func TestOp_String(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpInit, "init"},
		{OpCreate, "create"},
		{OpUpdate, "update"},
		{OpDelete, "delete"},
		{Op(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
