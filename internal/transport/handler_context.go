package transport

import (
	"net/http"

	"github.com/demonfiddler/evidence-engine-sub001/internal/masterlink"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

func (a *api) handleGetContext(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, s.Store.Snapshot())
}

// handleSetMasterTopic pins the master topic. An empty id removes it.
func (a *api) handleSetMasterTopic(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var body masterlink.TopicRef
	if err := decodeBody(w, r, &body); err != nil {
		WriteError(w, err)
		return
	}
	var topic *masterlink.TopicRef
	if body.ID != "" {
		topic = &body
	}
	a.contextChanged(w, r, s, s.Links.SetMasterTopic(r.Context(), topic))
}

func (a *api) handleSetMasterRecordKind(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Kind string `json:"kind"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		WriteError(w, err)
		return
	}
	kind, valid := model.ParseEntityKind(body.Kind)
	if !valid {
		WriteError(w, model.NewBadRequestError("Unknown entity kind "+body.Kind))
		return
	}
	a.contextChanged(w, r, s, s.Links.SetMasterRecordKind(r.Context(), kind))
}

// handleSetMasterRecord pins a record of the master kind. An empty id clears
// the master record.
func (a *api) handleSetMasterRecord(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Kind  string `json:"kind"`
		ID    string `json:"id"`
		Label string `json:"label"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		WriteError(w, err)
		return
	}
	kind, valid := model.ParseEntityKind(body.Kind)
	if !valid {
		WriteError(w, model.NewBadRequestError("Unknown entity kind "+body.Kind))
		return
	}
	var ref *model.Ref
	if body.ID != "" {
		ref = &model.Ref{ID: body.ID, Label: body.Label}
	}
	a.contextChanged(w, r, s, s.Links.SetMasterRecord(r.Context(), kind, ref))
}

func (a *api) handleSetSidebar(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Open bool `json:"open"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		WriteError(w, err)
		return
	}
	a.contextChanged(w, r, s, s.Store.SetSidebarOpen(r.Context(), body.Open))
}

// contextChanged refetches the listings affected by a context change and
// returns the new context.
func (a *api) contextChanged(w http.ResponseWriter, r *http.Request, s *Session, err error) {
	if err == nil {
		err = s.Sync(r.Context(), "")
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, s.Store.Snapshot())
}
