package graphql

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// fakeExecutor answers every request with a canned data object and records
// the last request.
type fakeExecutor struct {
	data     string
	err      error
	last     Request
	mutation bool
}

func (f *fakeExecutor) Query(_ context.Context, req Request) (json.RawMessage, error) {
	f.last, f.mutation = req, false
	return json.RawMessage(f.data), f.err
}

func (f *fakeExecutor) Mutate(_ context.Context, req Request) (json.RawMessage, error) {
	f.last, f.mutation = req, true
	return json.RawMessage(f.data), f.err
}

func TestOperations_listDocument(t *testing.T) {
	tests := []struct {
		kind       model.EntityKind
		filterType string
		field      string
	}{
		{model.KindClaim, "LinkableEntityQueryFilter", "claims("},
		{model.KindTopic, "TopicQueryFilter", "topics("},
		{model.KindJournal, "TrackedEntityQueryFilter", "journals("},
		{model.KindLog, "LogQueryFilter", "log("},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			req := NewOperations(tt.kind, "id").List(nil, nil)
			if !strings.Contains(req.Query, "$filter: "+tt.filterType) {
				t.Errorf("query = %q, want filter type %s", req.Query, tt.filterType)
			}
			if !strings.Contains(req.Query, tt.field) {
				t.Errorf("query = %q, want root field %s", req.Query, tt.field)
			}
			if len(req.Variables) != 0 {
				t.Errorf("variables = %v, want none", req.Variables)
			}
		})
	}
}

func TestOperations_listVariables(t *testing.T) {
	ps := &model.PageSort{PageNumber: 2, PageSize: 10}
	req := NewOperations(model.KindClaim, "id text").List(map[string]any{"text": "ice"}, ps)

	if req.OperationName != "ClaimList" {
		t.Errorf("OperationName = %q, want ClaimList", req.OperationName)
	}
	if req.Variables["pageSort"] != ps {
		t.Errorf("pageSort = %v, want %v", req.Variables["pageSort"], ps)
	}
	if f, ok := req.Variables["filter"].(map[string]any); !ok || f["text"] != "ice" {
		t.Errorf("filter = %v", req.Variables["filter"])
	}
	if !strings.Contains(req.Query, "content { id text }") {
		t.Errorf("query = %q, want record selection", req.Query)
	}
}

func TestOperations_mutationDocuments(t *testing.T) {
	ops := NewOperations(model.KindPerson, "id lastName")

	create := ops.Create(map[string]any{"lastName": "Curie"})
	if create.OperationName != "CreatePerson" || !strings.Contains(create.Query, "createPerson(input: $input)") || !strings.Contains(create.Query, "$input: PersonInput!") {
		t.Errorf("create = %+v", create)
	}
	update := ops.Update(map[string]any{"id": "7"})
	if update.OperationName != "UpdatePerson" || !strings.Contains(update.Query, "updatePerson(input: $input)") {
		t.Errorf("update = %+v", update)
	}
	del := ops.Delete("7")
	if del.OperationName != "DeletePerson" || !strings.Contains(del.Query, "deletePerson(id: $id)") || del.Variables["id"] != "7" {
		t.Errorf("delete = %+v", del)
	}
}

func TestCreateEntityLink_document(t *testing.T) {
	req := CreateEntityLink(model.EntityLink{
		FromEntityKind: model.KindPerson, FromEntityID: "1",
		ToEntityKind: model.KindClaim, ToEntityID: "2",
	})
	input, _ := req.Variables["input"].(map[string]any)
	if input["fromEntityId"] != "1" || input["toEntityId"] != "2" || input["toEntityKind"] != model.KindClaim {
		t.Errorf("input = %v", input)
	}
}

// --- Typed execution ---

func TestList_decodesPage(t *testing.T) {
	ex := &fakeExecutor{data: `{"claims":{"content":[{"id":"1","text":"a"},{"id":"2","text":"b"}],"number":0,"size":10,"numberOfElements":2,"totalElements":2,"totalPages":1,"hasContent":true}}`}

	page, err := List[model.Claim](context.Background(), ex, NewOperations(model.KindClaim, "id text"), nil, &model.PageSort{PageSize: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page.Content) != 2 || page.Content[1].Text != "b" || page.TotalElements != 2 {
		t.Errorf("page = %+v", page)
	}
	if ex.mutation {
		t.Error("List ran as a mutation")
	}
}

func TestList_missingField(t *testing.T) {
	ex := &fakeExecutor{data: `{"persons":{}}`}

	_, err := List[model.Claim](context.Background(), ex, NewOperations(model.KindClaim, "id"), nil, nil)
	if env := envelope(t, err); env.Code != model.ErrMalformedResult {
		t.Errorf("Code = %q, want %q", env.Code, model.ErrMalformedResult)
	}
}

func TestList_propagatesError(t *testing.T) {
	ex := &fakeExecutor{err: model.NewBackendUnavailableError()}

	_, err := List[model.Claim](context.Background(), ex, NewOperations(model.KindClaim, "id"), nil, nil)
	if env := envelope(t, err); env.Code != model.ErrBackendUnavailable {
		t.Errorf("Code = %q", env.Code)
	}
}

func TestMutations_decodeRecord(t *testing.T) {
	ops := NewOperations(model.KindClaim, "id text status")

	ex := &fakeExecutor{data: `{"createClaim":{"id":"9","text":"new","status":"DRA"}}`}
	created, err := Create[model.Claim](context.Background(), ex, ops, map[string]any{"text": "new"})
	if err != nil || created.ID != "9" || !ex.mutation {
		t.Errorf("Create() = %+v, %v", created, err)
	}

	ex = &fakeExecutor{data: `{"updateClaim":{"id":"9","text":"newer"}}`}
	updated, err := Update[model.Claim](context.Background(), ex, ops, map[string]any{"id": "9"})
	if err != nil || updated.Text != "newer" {
		t.Errorf("Update() = %+v, %v", updated, err)
	}

	ex = &fakeExecutor{data: `{"deleteClaim":{"id":"9","status":"DEL"}}`}
	deleted, err := Delete[model.Claim](context.Background(), ex, ops, "9")
	if err != nil || deleted.Status != model.StatusDeleted {
		t.Errorf("Delete() = %+v, %v", deleted, err)
	}

	ex = &fakeExecutor{data: `{"createEntityLink":{"id":"l1","fromEntityKind":"Person","fromEntityId":"1","toEntityKind":"Claim","toEntityId":"9"}}`}
	link, err := Link(context.Background(), ex, model.EntityLink{})
	if err != nil || link.ID != "l1" || link.FromEntityKind != model.KindPerson {
		t.Errorf("Link() = %+v, %v", link, err)
	}
}
