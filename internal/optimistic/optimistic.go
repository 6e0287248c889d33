// Package optimistic implements the optimistic mutation protocol: apply a
// local change, issue the remote call, and undo exactly that change if the
// call fails. A change undoes itself only while it is still the latest
// mutation of its entity.
package optimistic

import (
	"context"
	"errors"
)

// ErrNotApplied is returned by Do when the local change could not be made,
// typically because the entity does not exist. The remote call is skipped.
var ErrNotApplied = errors.New("optimistic: change not applied")

// Change is a local mutation that has already been applied.
type Change interface {
	// Revert undoes the mutation. It reports false when the entity has
	// been mutated again since, in which case nothing is changed.
	Revert() bool
}

// RevertFunc adapts a function to Change.
type RevertFunc func() bool

func (f RevertFunc) Revert() bool { return f() }

// Do applies a change and runs remote. On remote failure the change is
// reverted and the remote error is returned unchanged.
func Do(ctx context.Context, apply func() (Change, bool), remote func(context.Context) error) error {
	_, err := DoReport(ctx, apply, remote)
	return err
}

// DoReport is Do that also reports whether a failed call's revert was
// skipped because a later mutation superseded it.
func DoReport(ctx context.Context, apply func() (Change, bool), remote func(context.Context) error) (skipped bool, err error) {
	change, ok := apply()
	if !ok {
		return false, ErrNotApplied
	}
	if err := remote(ctx); err != nil {
		return !change.Revert(), err
	}
	return false, nil
}

// Revisions counts mutations per entity id. It is not safe for concurrent
// use; the owning store guards it with its own lock.
type Revisions map[string]uint64

// Bump records a mutation of id and returns the new revision.
func (r Revisions) Bump(id string) uint64 {
	r[id]++
	return r[id]
}

// Current reports whether rev is still the latest revision of id.
func (r Revisions) Current(id string, rev uint64) bool {
	return r[id] == rev
}
