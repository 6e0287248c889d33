package optimistic

import (
	"context"
	"errors"
	"testing"
)

// counter is a single-entity store used to exercise the protocol.
type counter struct {
	value int
	revs  Revisions
}

func (c *counter) add(delta int) (Change, bool) {
	c.value += delta
	rev := c.revs.Bump("x")
	return RevertFunc(func() bool {
		if !c.revs.Current("x", rev) {
			return false
		}
		c.value -= delta
		c.revs.Bump("x")
		return true
	}), true
}

func TestDoSuccessKeepsChange(t *testing.T) {
	c := &counter{revs: Revisions{}}
	err := Do(context.Background(), func() (Change, bool) { return c.add(5) }, func(context.Context) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if c.value != 5 {
		t.Errorf("value = %d, want 5", c.value)
	}
}

func TestDoFailureReverts(t *testing.T) {
	c := &counter{revs: Revisions{}}
	boom := errors.New("boom")
	err := Do(context.Background(), func() (Change, bool) { return c.add(5) }, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want remote error unchanged", err)
	}
	if c.value != 0 {
		t.Errorf("value = %d, want 0 after revert", c.value)
	}
}

func TestDoSkipsSupersededRevert(t *testing.T) {
	c := &counter{revs: Revisions{}}

	// A second mutation lands while the first call is in flight.
	remote := func(context.Context) error {
		c.add(10)
		return errors.New("late failure")
	}
	skipped, err := DoReport(context.Background(), func() (Change, bool) { return c.add(5) }, remote)
	if err == nil {
		t.Fatal("expected error")
	}
	if !skipped {
		t.Error("revert should be reported as skipped")
	}
	if c.value != 15 {
		t.Errorf("value = %d, want 15 (later mutation must not be undone)", c.value)
	}
}

func TestDoNotApplied(t *testing.T) {
	called := false
	err := Do(context.Background(),
		func() (Change, bool) { return nil, false },
		func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrNotApplied) {
		t.Errorf("err = %v, want ErrNotApplied", err)
	}
	if called {
		t.Error("remote must not run when the change was not applied")
	}
}

func TestRevisions(t *testing.T) {
	r := Revisions{}
	if !r.Current("a", 0) {
		t.Error("unknown id should be at revision 0")
	}
	r1 := r.Bump("a")
	r2 := r.Bump("a")
	if r.Current("a", r1) || !r.Current("a", r2) {
		t.Errorf("Current mismatch after two bumps: r1=%d r2=%d", r1, r2)
	}
	if r.Bump("b") != 1 {
		t.Error("revisions are per id")
	}
}
