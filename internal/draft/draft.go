// Package draft implements the draft/commit reconciliation engine: settings
// edits happen on an isolated deep copy of a canonical entity and reach the
// canonical state only through an explicit commit.
//
// One Editor holds at most one outstanding draft. Beginning a new edit
// supersedes any unsaved draft for the same entity kind; this last-writer-wins
// behavior is a deliberate simplification (no multi-admin merge).
package draft

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when the tracked canonical entity does not exist.
var ErrNotFound = errors.New("canonical entity not found")

// ErrNoDraft is returned by operations that need an outstanding draft.
var ErrNoDraft = errors.New("no draft in progress")

// Editor manages the draft lifecycle for one entity kind. The lookup
// callback resolves the current canonical value by id, so dirtiness is
// always computed against the canonical state as it is now, not as it was
// when the edit began.
type Editor[T any] struct {
	lookup func(id string) (T, bool)
	id     string
	draft  *T
}

// NewEditor returns an Editor resolving canonical values through lookup.
func NewEditor[T any](lookup func(id string) (T, bool)) *Editor[T] {
	return &Editor[T]{lookup: lookup}
}

// Begin clones the canonical entity with the given id into a fresh draft,
// discarding any outstanding draft. ErrNotFound if the id is unknown.
func (e *Editor[T]) Begin(id string) error {
	canonical, ok := e.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	clone, err := deepClone(canonical)
	if err != nil {
		return err
	}
	e.id = id
	e.draft = &clone
	return nil
}

// Active reports whether a draft is outstanding.
func (e *Editor[T]) Active() bool { return e.draft != nil }

// ID returns the canonical id the draft tracks.
func (e *Editor[T]) ID() string { return e.id }

// Draft returns the mutable working copy, or nil if no edit is in progress.
// Mutations through the pointer never affect the canonical value.
func (e *Editor[T]) Draft() *T { return e.draft }

// SetDraft replaces the working copy wholesale.
func (e *Editor[T]) SetDraft(value T) error {
	if e.draft == nil {
		return ErrNoDraft
	}
	clone, err := deepClone(value)
	if err != nil {
		return err
	}
	e.draft = &clone
	return nil
}

// Dirty recomputes structural equality between the draft and the current
// canonical value on every call; nothing is cached, so any nested mutation
// (including list reorders) is detected. A draft whose canonical entity has
// disappeared is considered dirty.
func (e *Editor[T]) Dirty() bool {
	if e.draft == nil {
		return false
	}
	canonical, ok := e.lookup(e.id)
	if !ok {
		return true
	}
	return !structurallyEqual(*e.draft, canonical)
}

// Commit hands an independent copy of the draft to apply and discards the
// draft. Committing a clean draft is a no-op: apply is not called and the
// draft stays. If apply fails the draft also stays, so the user can retry
// without re-entering anything. The committed value is cloned again before
// apply so a retained stale draft pointer can never alias the canonical
// state.
func (e *Editor[T]) Commit(apply func(id string, value T) error) (bool, error) {
	if e.draft == nil {
		return false, ErrNoDraft
	}
	if !e.Dirty() {
		return false, nil
	}
	committed, err := deepClone(*e.draft)
	if err != nil {
		return false, err
	}
	if err := apply(e.id, committed); err != nil {
		return false, err
	}
	e.draft = nil
	return true, nil
}

// Cancel discards the draft and re-clones from the (possibly changed)
// canonical entity. If the canonical entity was deleted in the meantime the
// draft is dropped entirely rather than left stale, and ErrNotFound is
// returned.
func (e *Editor[T]) Cancel() error {
	if e.draft == nil {
		return ErrNoDraft
	}
	id := e.id
	e.draft = nil
	return e.Begin(id)
}

// Discard drops the draft without touching the canonical entity.
func (e *Editor[T]) Discard() {
	e.draft = nil
	e.id = ""
}

func deepClone[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("clone marshal: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("clone unmarshal: %w", err)
	}
	return out, nil
}

// structurallyEqual compares the JSON forms, which is exactly the notion of
// change the settings UI acts on.
func structurallyEqual[T any](a, b T) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}
