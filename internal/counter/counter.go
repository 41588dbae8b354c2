// Package counter implements a named integer accumulator used for statistics.
//
// Counters are kept per thread or per handler and merged after the fact:
// AddCounter is commutative and associative, so independent counters can be
// aggregated in any order.
package counter

import (
	"fmt"
	"sort"
	"strings"
)

// A Counter maps string identifiers to signed 64-bit values. The zero-valued
// key springs into existence on first touch.
type Counter struct {
	items map[string]int64
}

func New() *Counter {
	return &Counter{items: make(map[string]int64)}
}

// AddValue adds value to the item with the given id, creating it at zero if
// absent, and returns the new value.
func (c *Counter) AddValue(id string, value int64) int64 {
	c.items[id] += value
	return c.items[id]
}

// SubValue subtracts value from the item with the given id, creating it at
// zero if absent, and returns the new value.
func (c *Counter) SubValue(id string, value int64) int64 {
	c.items[id] -= value
	return c.items[id]
}

// Value returns the current value of the item with the given id, without
// creating it.
func (c *Counter) Value(id string) int64 {
	return c.items[id]
}

// AddCounter adds every item of other into c.
func (c *Counter) AddCounter(other *Counter) {
	for id, value := range other.items {
		c.items[id] += value
	}
}

// SubCounter subtracts every item of other from c.
func (c *Counter) SubCounter(other *Counter) {
	for id, value := range other.items {
		c.items[id] -= value
	}
}

// Equal reports structural equality: same keys with same values. Keys that
// were touched and returned to zero still count as present.
func (c *Counter) Equal(other *Counter) bool {
	if c == nil || other == nil {
		return c == other
	}
	if len(c.items) != len(other.items) {
		return false
	}
	for id, value := range c.items {
		otherValue, ok := other.items[id]
		if !ok || value != otherValue {
			return false
		}
	}
	return true
}

// String returns a human-readable serialization for logging, with the summed
// total first and the individual values sorted by key.
func (c *Counter) String() string {
	ids := make([]string, 0, len(c.items))
	var total int64
	for id, value := range c.items {
		ids = append(ids, id)
		total += value
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "{summed_total:%d, individual_values:[", total)
	for i, id := range ids {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s:%d", id, c.items[id])
	}
	b.WriteString("]}")
	return b.String()
}
