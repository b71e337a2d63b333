package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/demonfiddler/evidence-engine-sub001/internal/filter"
	"github.com/demonfiddler/evidence-engine-sub001/internal/observability"
	"github.com/demonfiddler/evidence-engine-sub001/internal/page"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// api holds the handlers' shared dependencies.
type api struct {
	sessions *Manager
	logger   *zap.Logger
}

// session resolves the request's session and records the caller's security
// state in it.
func (a *api) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	ctx := r.Context()
	s, err := a.sessions.Get(ctx, model.SessionIDFrom(ctx))
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	if sec, ok := model.SecurityStateFrom(ctx); ok {
		if err := s.Store.SetSecurity(ctx, sec); err != nil {
			a.fail(w, r, err)
			return nil, false
		}
	}
	return s, true
}

// listing resolves the session and the listing named by the {kind} URL
// parameter.
func (a *api) listing(w http.ResponseWriter, r *http.Request) (*Session, page.Controller, bool) {
	kind, ok := model.ParseEntityKind(chi.URLParam(r, "kind"))
	if !ok || kind == model.KindNone {
		WriteError(w, model.NewNotFoundError("Unknown entity kind "+chi.URLParam(r, "kind")))
		return nil, nil, false
	}
	s, ok := a.session(w, r)
	if !ok {
		return nil, nil, false
	}
	c, err := s.Controller(kind)
	if err != nil {
		a.fail(w, r, err)
		return nil, nil, false
	}
	return s, c, true
}

// fail writes err, logging errors that are not user-facing envelopes.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		observability.RequestLogger(r.Context(), a.logger).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Bool("programming_error", model.IsProgrammingError(err)),
			zap.Error(err),
		)
	}
	WriteError(w, err)
}

// handleGetPage mounts the listing if needed, applies the filter, paging and
// sorting named in the query string and returns the listing. refresh=true
// forces a refetch.
func (a *api) handleGetPage(w http.ResponseWriter, r *http.Request) {
	_, c, ok := a.listing(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	params := r.URL.Query()

	u, changed, err := queryUpdate(c.Kind(), params)
	if err != nil {
		WriteError(w, err)
		return
	}
	switch {
	case !c.Mounted():
		err = c.MountWith(ctx, u)
	case changed:
		err = c.ApplyQuery(ctx, u)
	case params.Get("refresh") == "true":
		err = c.Refresh(ctx)
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, c.Snapshot())
}

func (a *api) handleSelect(w http.ResponseWriter, r *http.Request) {
	s, c, ok := a.listing(w, r)
	if !ok {
		return
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		WriteError(w, err)
		return
	}
	a.respond(w, r, s, c, c.Select(r.Context(), body.ID))
}

func (a *api) handleMode(w http.ResponseWriter, r *http.Request) {
	s, c, ok := a.listing(w, r)
	if !ok {
		return
	}
	var body struct {
		Mode model.Mode `json:"mode"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		WriteError(w, err)
		return
	}
	switch body.Mode {
	case model.ModeView, model.ModeEdit, model.ModeCreate:
	default:
		WriteError(w, model.NewBadRequestError("Unknown form mode "+string(body.Mode)))
		return
	}
	a.respond(w, r, s, c, c.SetMode(r.Context(), body.Mode))
}

var formCommands = map[string]bool{
	page.CommandNew:    true,
	page.CommandCreate: true,
	page.CommandUpdate: true,
	page.CommandDelete: true,
	page.CommandReset:  true,
}

// handleAction runs a form command. The request body, if any, carries the
// form values.
func (a *api) handleAction(w http.ResponseWriter, r *http.Request) {
	s, c, ok := a.listing(w, r)
	if !ok {
		return
	}
	command := chi.URLParam(r, "command")
	if !formCommands[command] {
		WriteError(w, model.NewNotFoundError("Unknown form command "+command))
		return
	}
	if !c.Supports(command) {
		WriteError(w, model.NewBadRequestError(fmt.Sprintf("The %s listing does not support %s", c.Kind(), command)))
		return
	}
	values, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		WriteError(w, model.NewBadRequestError("Unreadable request body"))
		return
	}
	a.respond(w, r, s, c, c.Action(r.Context(), command, json.RawMessage(values)))
}

func (a *api) handleLink(w http.ResponseWriter, r *http.Request) {
	s, c, ok := a.listing(w, r)
	if !ok {
		return
	}
	if !c.Supports(page.CommandLink) {
		WriteError(w, model.NewBadRequestError(fmt.Sprintf("The %s listing does not support %s", c.Kind(), page.CommandLink)))
		return
	}
	a.respond(w, r, s, c, c.LinkToMaster(r.Context()))
}

func (a *api) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	s, c, ok := a.listing(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, s.Store.ColumnLayout(c.Kind()))
}

func (a *api) handlePutLayout(w http.ResponseWriter, r *http.Request) {
	s, c, ok := a.listing(w, r)
	if !ok {
		return
	}
	var layout model.ColumnLayout
	if err := decodeBody(w, r, &layout); err != nil {
		WriteError(w, err)
		return
	}
	if err := s.Store.SetColumnLayout(r.Context(), c.Kind(), layout); err != nil {
		a.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, s.Store.ColumnLayout(c.Kind()))
}

// respond finishes a listing command: other listings are brought in line
// with any master link change and the listing is returned.
func (a *api) respond(w http.ResponseWriter, r *http.Request, s *Session, c page.Controller, err error) {
	if err == nil {
		err = s.Sync(r.Context(), c.Kind())
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, c.Snapshot())
}

// showUsersOrMembers are the values the showUsersOrMembers toggle takes.
var showUsersOrMembers = map[string]bool{"users": true, "members": true}

// queryUpdate builds the listing update named by the query string. changed
// is false when the query string names none of the listing's state.
func queryUpdate(kind model.EntityKind, params url.Values) (page.QueryUpdate, bool, error) {
	var u page.QueryUpdate
	changed := false

	for _, name := range filter.Fields(kind) {
		if params.Has(name) {
			f := filter.Decode(kind, params)
			u.Filter = &f
			changed = true
			break
		}
	}

	if v := params.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return u, false, model.NewBadRequestError("page must be a non-negative integer")
		}
		u.PageIndex = &n
		changed = true
	}
	if v := params.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return u, false, model.NewBadRequestError("size must be a positive integer")
		}
		u.PageSize = &n
		changed = true
	}

	if params.Has("showOnlyLinked") {
		linked, err := strconv.ParseBool(params.Get("showOnlyLinked"))
		if err != nil {
			return u, false, model.NewBadRequestError("showOnlyLinked must be true or false")
		}
		u.ShowOnlyLinked = &linked
		changed = true
	}

	if params.Has("sort") {
		u.Sorting = parseSort(params.Get("sort"))
		if u.Sorting == nil {
			u.Sorting = []model.ColumnSort{}
		}
		changed = true
	}

	if params.Has("selectedLinkId") {
		id := params.Get("selectedLinkId")
		u.SelectedLinkID = &id
		changed = true
	}
	if params.Has("showUsersOrMembers") {
		v := params.Get("showUsersOrMembers")
		if v != "" && !showUsersOrMembers[v] {
			return u, false, model.NewBadRequestError("showUsersOrMembers must be users or members")
		}
		u.ShowUsersOrMembers = &v
		changed = true
	}
	if params.Has("activeTab") {
		tab := params.Get("activeTab")
		u.ActiveTab = &tab
		changed = true
	}
	return u, changed, nil
}

// parseSort reads "a,-b" as a ascending then b descending.
func parseSort(s string) []model.ColumnSort {
	var out []model.ColumnSort
	for _, term := range strings.Split(s, ",") {
		term = strings.TrimSpace(term)
		desc := strings.HasPrefix(term, "-")
		term = strings.TrimLeft(term, "+-")
		if term == "" {
			continue
		}
		out = append(out, model.ColumnSort{ID: term, Desc: desc})
	}
	return out
}
