// Package pagestore mirrors the last fetched page of a listing and applies
// optimistic create, update and delete patches until the next fetch
// replaces it.
package pagestore

import (
	"sync"

	"github.com/demonfiddler/evidence-engine-sub001/model"
)

// Op tags a Command.
type Op int

const (
	// OpInit replaces the page.
	OpInit Op = iota
	// OpCreate appends a record.
	OpCreate
	// OpUpdate replaces a record in place.
	OpUpdate
	// OpDelete applies a soft delete.
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpInit:
		return "init"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Command is one reducer input. Page is used by OpInit, Record by the
// others. Filter is the listing's active filter; OpDelete consults its
// status constraint.
type Command[T model.Entity] struct {
	Op     Op
	Page   *model.Page[T]
	Record T
	Filter model.Filter
}

// Init returns a command that replaces the page.
func Init[T model.Entity](page *model.Page[T]) Command[T] {
	return Command[T]{Op: OpInit, Page: page}
}

// Create returns a command that appends record.
func Create[T model.Entity](record T) Command[T] {
	return Command[T]{Op: OpCreate, Record: record}
}

// Update returns a command that replaces the record with record's id.
func Update[T model.Entity](record T) Command[T] {
	return Command[T]{Op: OpUpdate, Record: record}
}

// Delete returns a command for a record whose status the server has just
// changed to deleted.
func Delete[T model.Entity](record T, filter model.Filter) Command[T] {
	return Command[T]{Op: OpDelete, Record: record, Filter: filter}
}

// Reduce applies cmd to page and returns the resulting page. page is never
// modified. A nil page stays nil for every command except OpInit.
func Reduce[T model.Entity](page *model.Page[T], cmd Command[T]) *model.Page[T] {
	switch cmd.Op {
	case OpInit:
		return cmd.Page.Clone()

	case OpCreate:
		if page == nil {
			return nil
		}
		next := page.Clone()
		next.Content = append(next.Content, cmd.Record)
		next.SyncCounts()
		return next

	case OpUpdate:
		i := indexOf(page, cmd.Record.EntityID())
		if i < 0 {
			return page
		}
		next := page.Clone()
		next.Content[i] = cmd.Record
		return next

	case OpDelete:
		i := indexOf(page, cmd.Record.EntityID())
		if i < 0 {
			return page
		}
		next := page.Clone()
		if cmd.Filter.ExcludesStatus(cmd.Record.EntityStatus()) {
			next.Content = append(next.Content[:i], next.Content[i+1:]...)
			next.SyncCounts()
		} else {
			next.Content[i] = cmd.Record
		}
		return next
	}
	return page
}

func indexOf[T model.Entity](page *model.Page[T], id string) int {
	if page == nil || id == "" {
		return -1
	}
	for i, r := range page.Content {
		if r.EntityID() == id {
			return i
		}
	}
	return -1
}

// Store serialises commands for one listing's page.
type Store[T model.Entity] struct {
	mu   sync.RWMutex
	page *model.Page[T]
}

// New returns an empty Store.
func New[T model.Entity]() *Store[T] {
	return &Store[T]{}
}

// Dispatch applies cmd and returns the new page.
func (s *Store[T]) Dispatch(cmd Command[T]) *model.Page[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = Reduce(s.page, cmd)
	return s.page.Clone()
}

// Page returns a copy of the current page, or nil before the first Init.
func (s *Store[T]) Page() *model.Page[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page.Clone()
}

// Find returns the record with the given id.
func (s *Store[T]) Find(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.page, id); i >= 0 {
		return s.page.Content[i], true
	}
	var zero T
	return zero, false
}
