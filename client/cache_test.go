package client

import (
	"testing"

	"github.com/google/uuid"
)

func bedNamed(code, status string) Bed {
	return Bed{ID: uuid.New(), Code: code, Ward: "ICU", Status: status}
}

func codes(items []Bed) []string {
	out := make([]string, len(items))
	for i, b := range items {
		out[i] = b.Code
	}
	return out
}

func TestCache_ApplyUpdateAppendsUnknown(t *testing.T) {
	c := NewCache[Bed]()
	c.ApplyUpdate(bedNamed("BED-101", "available"))
	c.ApplyUpdate(bedNamed("BED-102", "occupied"))

	items, _ := c.Snapshot()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestCache_ApplyUpdateReplacesInPlace(t *testing.T) {
	c := NewCache[Bed]()
	a := bedNamed("BED-101", "available")
	b := bedNamed("BED-102", "available")
	d := bedNamed("BED-103", "available")
	c.Rebaseline([]Bed{a, b, d})

	updated := b
	updated.Status = "occupied"
	c.ApplyUpdate(updated)

	items, _ := c.Snapshot()
	got := codes(items)
	want := []string{"BED-101", "BED-102", "BED-103"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order preserved %v, got %v", want, got)
		}
	}
	if items[1].Status != "occupied" {
		t.Errorf("expected in-place replacement, got %s", items[1].Status)
	}
}

func TestCache_ApplyUpdateIdempotent(t *testing.T) {
	c := NewCache[Bed]()
	b := bedNamed("BED-101", "occupied")

	c.ApplyUpdate(b)
	c.ApplyUpdate(b)
	c.ApplyUpdate(b)

	if c.Len() != 1 {
		t.Errorf("expected 1 item after duplicate updates, got %d", c.Len())
	}
}

func TestCache_RebaselineOverwrites(t *testing.T) {
	c := NewCache[Bed]()
	c.Rebaseline([]Bed{bedNamed("BED-101", "available"), bedNamed("BED-102", "occupied")})

	fresh := []Bed{bedNamed("BED-201", "maintenance")}
	c.Rebaseline(fresh)

	items, at := c.Snapshot()
	if len(items) != 1 || items[0].Code != "BED-201" {
		t.Errorf("expected rebaseline to replace the snapshot, got %v", codes(items))
	}
	if at.IsZero() {
		t.Error("expected snapshot timestamp to be set")
	}
}

func TestCache_Remove(t *testing.T) {
	c := NewCache[Bed]()
	a := bedNamed("BED-101", "available")
	b := bedNamed("BED-102", "available")
	c.Rebaseline([]Bed{a, b})

	c.Remove(a.Identity())
	c.Remove(a.Identity()) // second remove is a no-op

	items, _ := c.Snapshot()
	if len(items) != 1 || items[0].Code != "BED-102" {
		t.Errorf("unexpected items after remove: %v", codes(items))
	}
}

func TestCache_Get(t *testing.T) {
	c := NewCache[Bed]()
	b := bedNamed("BED-101", "available")
	c.ApplyUpdate(b)

	got, ok := c.Get(b.Identity())
	if !ok || got.Code != "BED-101" {
		t.Errorf("expected to find BED-101, got %v %v", got, ok)
	}
	if _, ok := c.Get(uuid.NewString()); ok {
		t.Error("expected miss for unknown identity")
	}
}
