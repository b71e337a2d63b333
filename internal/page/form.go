package page

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/demonfiddler/evidence-engine-sub001/internal/masterlink"
	"github.com/demonfiddler/evidence-engine-sub001/internal/observability"
	"github.com/demonfiddler/evidence-engine-sub001/internal/pagestore"
	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// Form commands accepted by HandleFormAction.
const (
	CommandNew    = "new"
	CommandCreate = "create"
	CommandUpdate = "update"
	CommandDelete = "delete"
	CommandReset  = "reset"
)

// CommandLink names LinkToMaster in Supports.
const CommandLink = "link"

// Supports reports whether the listing is wired for command. Read-only
// listings support only reset.
func (l *Logic[T, V]) Supports(command string) bool {
	switch command {
	case CommandNew, CommandCreate:
		return l.cfg.Create != nil
	case CommandUpdate:
		return l.cfg.Update != nil
	case CommandDelete:
		return l.cfg.Delete != nil
	case CommandLink:
		return l.cfg.Link != nil
	case CommandReset:
		return true
	}
	return false
}

// Mode returns the detail form's mode.
func (l *Logic[T, V]) Mode() model.Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

// SelectedID returns the selected record's ID, empty when nothing is
// selected.
func (l *Logic[T, V]) SelectedID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selectedID
}

// Fields returns the detail form's current values.
func (l *Logic[T, V]) Fields() V {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fields
}

// DetailState derives the detail form's permission flags from the signed-in
// user's authorities.
func (l *Logic[T, V]) DetailState() model.DetailState {
	l.mu.Lock()
	mode := l.mode
	l.mu.Unlock()
	return model.NewDetailState(l.appctx.Security().Authorities, mode)
}

// Select makes id the selected record and binds the form to it. An empty id
// clears the selection. Selection changes are refused while the form is
// being edited.
func (l *Logic[T, V]) Select(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id == l.selectedID {
		return nil
	}
	if l.mode != model.ModeView {
		l.raise(ctx, model.SeverityWarning, "Save or cancel your changes before selecting another record", nil)
		return nil
	}
	if id == "" {
		l.selectedID = ""
		l.fields = l.cfg.BlankFields()
		l.original = l.cfg.BlankFields()
		return l.remember(ctx, nil)
	}
	rec, ok := l.find(id)
	if !ok {
		l.raise(ctx, model.SeverityWarning, fmt.Sprintf("%s %s is not on the current page", l.cfg.Kind, id), nil)
		return nil
	}
	l.bind(rec)
	return l.remember(ctx, &model.Ref{ID: id, Label: rec.EntityLabel()})
}

// SetMode switches the detail form between view, edit and create. Leaving
// edit or create discards unsaved changes.
func (l *Logic[T, V]) SetMode(ctx context.Context, mode model.Mode) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch mode {
	case model.ModeView:
		l.mode = model.ModeView
		if rec, ok := l.find(l.selectedID); ok && l.selectedID != "" {
			l.bind(rec)
		} else {
			l.fields = l.original
		}
	case model.ModeEdit:
		if l.selectedID == "" {
			l.raise(ctx, model.SeverityWarning, fmt.Sprintf("Select a %s to edit", l.cfg.Kind), nil)
			return nil
		}
		l.mode = model.ModeEdit
	case model.ModeCreate:
		l.startNew()
	default:
		return model.NewProgrammingError("page.SetMode", "unknown form mode %q", mode)
	}
	return nil
}

// HandleFormAction executes a detail form command with the form's values.
// Remote failures become notifications; the only errors returned are
// programming errors and failures to persist the selection.
func (l *Logic[T, V]) HandleFormAction(ctx context.Context, command string, values V) (err error) {
	ctx, span := observability.StartSpan(ctx, "page.action",
		observability.AttrEntityKind.String(string(l.cfg.Kind)),
		observability.AttrCommand.String(command),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	switch command {
	case CommandNew:
		l.mu.Lock()
		l.startNew()
		l.mu.Unlock()
		return nil
	case CommandReset:
		l.mu.Lock()
		l.fields = l.original
		l.mu.Unlock()
		return nil
	case CommandCreate:
		return l.create(ctx, span, values)
	case CommandUpdate:
		return l.update(ctx, span, values)
	case CommandDelete:
		return l.delete(ctx, span)
	}
	return model.NewProgrammingError("page.HandleFormAction", "unknown form command %q", command)
}

// LinkToMaster links the selected record to the master record, in the
// direction the kinds dictate, and refetches the page.
func (l *Logic[T, V]) LinkToMaster(ctx context.Context) error {
	if l.cfg.Link == nil {
		return model.NewProgrammingError("page.LinkToMaster", "%s listing cannot link records", l.cfg.Kind)
	}

	l.mu.Lock()
	if l.selectedID == "" {
		l.raise(ctx, model.SeverityWarning, fmt.Sprintf("Select a %s to link", l.cfg.Kind), nil)
		l.mu.Unlock()
		return nil
	}
	link, ok := masterlink.LinkEnds(l.cfg.Kind, l.selectedID, l.appctx.MasterLink())
	if !ok {
		l.raise(ctx, model.SeverityWarning, fmt.Sprintf("There is no master record to link this %s to", l.cfg.Kind), nil)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, "page.link",
		observability.AttrEntityKind.String(string(l.cfg.Kind)),
	)
	created, err := l.cfg.Link(ctx, link)
	observability.EndSpanWithError(span, err)

	l.mu.Lock()
	if err != nil {
		l.metrics.RecordMutation(string(l.cfg.Kind), "link", "error")
		l.raise(ctx, model.SeverityError, fmt.Sprintf("Could not link %s %s", l.cfg.Kind, link.ToEntityID), err)
		l.mu.Unlock()
		return nil
	}
	l.metrics.RecordMutation(string(l.cfg.Kind), "link", "success")
	l.raise(ctx, model.SeverityInfo, fmt.Sprintf("Linked %s %s to %s %s",
		created.FromEntityKind, created.FromEntityID, created.ToEntityKind, created.ToEntityID), nil)
	d := l.derive()
	l.mu.Unlock()

	l.fetch(ctx, d)
	return nil
}

func (l *Logic[T, V]) create(ctx context.Context, span trace.Span, values V) error {
	if l.cfg.Create == nil {
		return model.NewProgrammingError("page.HandleFormAction", "%s listing cannot create records", l.cfg.Kind)
	}
	l.mu.Lock()
	l.fields = values
	if !l.valid(ctx, values) {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	rec, err := l.cfg.Create(ctx, l.cfg.ToInput(values))

	l.mu.Lock()
	if err != nil {
		l.failed(ctx, span, CommandCreate, fmt.Sprintf("Could not create %s", l.cfg.Kind), err)
		l.mu.Unlock()
		return nil
	}
	l.metrics.RecordMutation(string(l.cfg.Kind), CommandCreate, "success")
	l.reduce(pagestore.Create(rec))
	l.mode = model.ModeView
	l.bind(rec)
	perr := l.remember(ctx, &model.Ref{ID: rec.EntityID(), Label: rec.EntityLabel()})
	l.raise(ctx, model.SeverityInfo, fmt.Sprintf("Created %s %s", l.cfg.Kind, rec.EntityID()), nil)
	d := l.derive()
	l.mu.Unlock()

	l.fetch(ctx, d)
	return perr
}

func (l *Logic[T, V]) update(ctx context.Context, span trace.Span, values V) error {
	if l.cfg.Update == nil {
		return model.NewProgrammingError("page.HandleFormAction", "%s listing cannot update records", l.cfg.Kind)
	}
	l.mu.Lock()
	id := l.selectedID
	if id == "" {
		l.raise(ctx, model.SeverityWarning, fmt.Sprintf("Select a %s to update", l.cfg.Kind), nil)
		l.mu.Unlock()
		return nil
	}
	l.fields = values
	if !l.valid(ctx, values) {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	rec, err := l.cfg.Update(ctx, id, l.cfg.ToInput(values))

	l.mu.Lock()
	if err != nil {
		l.failed(ctx, span, CommandUpdate, fmt.Sprintf("Could not update %s %s", l.cfg.Kind, id), err)
		l.mu.Unlock()
		return nil
	}
	l.metrics.RecordMutation(string(l.cfg.Kind), CommandUpdate, "success")
	l.store.Dispatch(pagestore.Update(rec))
	l.mode = model.ModeView
	var perr error
	if l.selectedID == id {
		l.bind(rec)
		perr = l.remember(ctx, &model.Ref{ID: id, Label: rec.EntityLabel()})
	}
	l.raise(ctx, model.SeverityInfo, fmt.Sprintf("Updated %s %s", l.cfg.Kind, id), nil)
	d := l.derive()
	l.mu.Unlock()

	l.fetch(ctx, d)
	return perr
}

func (l *Logic[T, V]) delete(ctx context.Context, span trace.Span) error {
	if l.cfg.Delete == nil {
		return model.NewProgrammingError("page.HandleFormAction", "%s listing cannot delete records", l.cfg.Kind)
	}
	l.mu.Lock()
	id := l.selectedID
	if id == "" {
		l.raise(ctx, model.SeverityWarning, fmt.Sprintf("Select a %s to delete", l.cfg.Kind), nil)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	rec, err := l.cfg.Delete(ctx, id)

	l.mu.Lock()
	if err != nil {
		l.failed(ctx, span, CommandDelete, fmt.Sprintf("Could not delete %s %s", l.cfg.Kind, id), err)
		l.mu.Unlock()
		return nil
	}
	l.metrics.RecordMutation(string(l.cfg.Kind), CommandDelete, "success")
	d := l.derive()
	l.reduce(pagestore.Delete(rec, d.filter))
	l.mode = model.ModeView
	var perr error
	if l.selectedID == id {
		if kept, ok := l.find(id); ok {
			l.bind(kept)
		} else {
			l.selectedID = ""
			l.fields = l.cfg.BlankFields()
			l.original = l.cfg.BlankFields()
			perr = l.remember(ctx, nil)
		}
	}
	l.raise(ctx, model.SeverityInfo, fmt.Sprintf("Deleted %s %s", l.cfg.Kind, id), nil)
	l.mu.Unlock()

	l.fetch(ctx, d)
	return perr
}

// startNew puts the form into create mode with blank values. Callers hold
// l.mu.
func (l *Logic[T, V]) startNew() {
	l.mode = model.ModeCreate
	l.fields = l.cfg.BlankFields()
	l.original = l.cfg.BlankFields()
}

// bind loads rec into the form. Callers hold l.mu.
func (l *Logic[T, V]) bind(rec T) {
	l.selectedID = rec.EntityID()
	l.fields = l.cfg.ToFields(rec)
	l.original = l.cfg.ToFields(rec)
}

// valid validates values when the listing asks for it, raising a
// VALIDATION_ERROR notification on failure. Callers hold l.mu.
func (l *Logic[T, V]) valid(ctx context.Context, values V) bool {
	if !l.cfg.Validate {
		return true
	}
	details := validateFields(values)
	if len(details) == 0 {
		return true
	}
	l.metrics.RecordFormValidationFailure(string(l.cfg.Kind))
	l.raise(ctx, model.SeverityError, fmt.Sprintf("The %s has invalid fields", l.cfg.Kind), model.NewValidationError(details))
	return false
}

// failed records a mutation failure. Callers hold l.mu.
func (l *Logic[T, V]) failed(ctx context.Context, span trace.Span, command, msg string, err error) {
	span.RecordError(err)
	l.metrics.RecordMutation(string(l.cfg.Kind), command, "error")
	l.raise(ctx, model.SeverityError, msg, err)
}

// remember persists the selection to the global context and, if this kind is
// the master kind, pins it as the master record. Persistence failures other
// than programming errors are reported as notifications. Callers hold l.mu.
func (l *Logic[T, V]) remember(ctx context.Context, ref *model.Ref) error {
	err := l.appctx.SetSelectedRecord(ctx, l.cfg.Kind, ref)
	if err == nil {
		err = l.links.SetMasterRecord(ctx, l.cfg.Kind, ref)
	}
	if err == nil {
		return nil
	}
	if model.IsProgrammingError(err) {
		return err
	}
	l.raise(ctx, model.SeverityError, "Could not save the selection", err)
	return nil
}

// reduce applies cmd to the local page. Pages reshaped by PreparePage keep
// the server's counts, so commands that add or drop content wait for the
// refetch instead. Callers hold l.mu.
func (l *Logic[T, V]) reduce(cmd pagestore.Command[T]) {
	if l.cfg.PreparePage != nil && cmd.Op != pagestore.OpUpdate {
		return
	}
	l.store.Dispatch(cmd)
}
