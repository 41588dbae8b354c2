package counter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"
)

func TestAddSub(t *testing.T) {
	c := New()

	if got := c.AddValue("read", 3); got != 3 {
		t.Errorf("AddValue returned %d, want 3", got)
	}
	if got := c.AddValue("read", 2); got != 5 {
		t.Errorf("AddValue returned %d, want 5", got)
	}
	if got := c.SubValue("read", 5); got != 0 {
		t.Errorf("SubValue returned %d, want 0", got)
	}
	if got := c.SubValue("write", 1); got != -1 {
		t.Errorf("SubValue on absent key returned %d, want -1", got)
	}
}

func TestSubInvertsAdd(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := New()
		id := rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "id")
		before := rapid.Int64().Draw(t, "before")
		delta := rapid.Int64Range(-1<<40, 1<<40).Draw(t, "delta")

		c.AddValue(id, before)
		c.AddValue(id, delta)
		if got := c.SubValue(id, delta); got != before {
			t.Fatalf("add then sub of %d left %d, want %d", delta, got, before)
		}
	})
}

func genCounter(t *rapid.T, label string) *Counter {
	c := New()
	items := rapid.MapOfN(rapid.StringMatching(`[a-z]{1,4}`), rapid.Int64Range(-1000, 1000), 0, 8).Draw(t, label)
	for id, value := range items {
		c.AddValue(id, value)
	}
	return c
}

func TestMergeCommutativeAssociative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a, b, c := genCounter(t, "a"), genCounter(t, "b"), genCounter(t, "c")

		// commutative: a+b == b+a
		ab := New()
		ab.AddCounter(a)
		ab.AddCounter(b)
		ba := New()
		ba.AddCounter(b)
		ba.AddCounter(a)
		if !ab.Equal(ba) {
			t.Fatalf("merge not commutative: %v vs %v", ab, ba)
		}

		// associative: (a+b)+c == a+(b+c)
		left := New()
		left.AddCounter(ab)
		left.AddCounter(c)
		bc := New()
		bc.AddCounter(b)
		bc.AddCounter(c)
		right := New()
		right.AddCounter(a)
		right.AddCounter(bc)
		if !left.Equal(right) {
			t.Fatalf("merge not associative: %v vs %v", left, right)
		}
	})
}

func TestEqual(t *testing.T) {
	a := New()
	a.AddValue("x", 1)

	b := New()
	b.AddValue("x", 1)

	if !a.Equal(b) {
		t.Error("identical counters should be equal")
	}

	// a key touched and returned to zero still counts as present
	b.AddValue("y", 0)
	if a.Equal(b) {
		t.Error("counters with different key sets should not be equal")
	}
}

func TestString(t *testing.T) {
	c := New()
	c.AddValue("write", 2)
	c.AddValue("read", 40)

	want := "{summed_total:42, individual_values:[read:40, write:2]}"
	if diff := cmp.Diff(want, c.String()); diff != "" {
		t.Errorf("counter string mismatch (-want +got):\n%s", diff)
	}

	empty := New()
	if got := empty.String(); got != "{summed_total:0, individual_values:[]}" {
		t.Errorf("empty counter string %q", got)
	}
}
