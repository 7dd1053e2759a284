package hostval

import (
	"errors"
	"testing"
)

func TestDeferredResolve(t *testing.T) {
	d := NewDeferred[String]()
	if d.State() != Pending {
		t.Fatalf("State() = %v, want pending", d.State())
	}

	d.Resolve("ok")
	if d.State() != Resolved {
		t.Fatalf("State() = %v, want resolved", d.State())
	}

	v, err := d.Await()
	if err != nil || v != "ok" {
		t.Fatalf("Await() = %v, %v", v, err)
	}

	// Settlement is final.
	d.Reject(errors.New("late"))
	d.Resolve("other")
	v, err = d.Await()
	if err != nil || v != "ok" {
		t.Errorf("Await() after re-settle = %v, %v", v, err)
	}
}

func TestDeferredReject(t *testing.T) {
	d := NewDeferred[int]()
	want := errors.New("boom")
	d.Reject(want)

	if d.State() != Rejected {
		t.Fatalf("State() = %v, want rejected", d.State())
	}
	if _, err := d.Await(); !errors.Is(err, want) {
		t.Errorf("Await() err = %v, want %v", err, want)
	}
}

func TestDeferredThen(t *testing.T) {
	t.Run("before settle", func(t *testing.T) {
		d := NewDeferred[int]()
		var got int
		d.Then(func(v int) { got = v }, nil)
		d.Resolve(7)
		if got != 7 {
			t.Errorf("callback saw %d, want 7", got)
		}
	})

	t.Run("after settle", func(t *testing.T) {
		d := NewDeferred[int]()
		d.Resolve(7)
		var got int
		d.Then(func(v int) { got = v }, nil)
		if got != 7 {
			t.Errorf("callback saw %d, want 7", got)
		}
	})

	t.Run("reject path", func(t *testing.T) {
		d := NewDeferred[int]()
		want := errors.New("no")
		var got error
		d.Then(nil, func(err error) { got = err })
		d.Reject(want)
		if !errors.Is(got, want) {
			t.Errorf("callback saw %v, want %v", got, want)
		}
	})
}

func TestDeferredAwaitCrossGoroutine(t *testing.T) {
	d := NewDeferred[int]()
	go d.Resolve(41)
	v, err := d.Await()
	if err != nil || v != 41 {
		t.Errorf("Await() = %v, %v", v, err)
	}
}
