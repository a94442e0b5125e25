package engine

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rsned/tower-planner/pkg/planner"
)

// Bus is an ordered snapshot of pending item quantities. Every operation
// returns a new Bus; a Bus value is never modified after it is built, so a
// snapshot taken for one level can be handed to the next without copying.
//
// Remaining entries keep their position and new entries are appended, which
// keeps lane placement and residual ordering deterministic.
type Bus struct {
	keys []string
	qty  map[string]float64
}

// NewBus builds a bus from entries, merging duplicates and dropping
// quantities at or below planner.Epsilon.
func NewBus(entries ...planner.ItemAmount) Bus {
	b := Bus{qty: make(map[string]float64, len(entries))}
	for _, e := range entries {
		b.add(e.ItemID, e.Amount)
	}
	return b
}

func (b Bus) clone() Bus {
	out := Bus{
		keys: make([]string, len(b.keys), len(b.keys)+4),
		qty:  make(map[string]float64, len(b.qty)+4),
	}
	copy(out.keys, b.keys)
	for k, v := range b.qty {
		out.qty[k] = v
	}
	return out
}

// add mutates b; only used on fresh clones.
func (b *Bus) add(id string, amount float64) {
	if id == "" || math.IsNaN(amount) {
		return
	}
	cur, exists := b.qty[id]
	next := cur + amount
	if next <= planner.Epsilon {
		if exists {
			b.remove(id)
		}
		return
	}
	if !exists {
		b.keys = append(b.keys, id)
	}
	b.qty[id] = next
}

func (b *Bus) remove(id string) {
	if _, ok := b.qty[id]; !ok {
		return
	}
	delete(b.qty, id)
	for i, k := range b.keys {
		if k == id {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of distinct non-zero entries.
func (b Bus) Len() int {
	return len(b.keys)
}

// Has reports whether id is on the bus.
func (b Bus) Has(id string) bool {
	_, ok := b.qty[id]
	return ok
}

// Get returns the pending quantity of id.
func (b Bus) Get(id string) float64 {
	return b.qty[id]
}

// Keys returns item IDs in bus order.
func (b Bus) Keys() []string {
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Max returns the largest pending quantity, NaN if any quantity is NaN, or 0
// for an empty bus.
func (b Bus) Max() float64 {
	m := 0.0
	for _, v := range b.qty {
		if math.IsNaN(v) {
			return v
		}
		m = math.Max(m, v)
	}
	return m
}

// Entries returns the bus contents in bus order.
func (b Bus) Entries() []planner.ItemAmount {
	out := make([]planner.ItemAmount, len(b.keys))
	for i, k := range b.keys {
		out[i] = planner.ItemAmount{ItemID: k, Amount: b.qty[k]}
	}
	return out
}

// Add returns a bus with amount merged into id. A result at or below
// planner.Epsilon removes the entry.
func (b Bus) Add(id string, amount float64) Bus {
	out := b.clone()
	out.add(id, amount)
	return out
}

// Sub returns a bus with amount taken from id, never going below zero.
func (b Bus) Sub(id string, amount float64) Bus {
	out := b.clone()
	if amount >= out.qty[id] {
		out.remove(id)
		return out
	}
	out.add(id, -amount)
	return out
}

// Without returns a bus with id removed.
func (b Bus) Without(id string) Bus {
	out := b.clone()
	out.remove(id)
	return out
}

// Expand returns the bus after replacing id with inputs scaled by runs.
func (b Bus) Expand(id string, inputs []planner.ItemAmount, runs float64) Bus {
	out := b.clone()
	out.remove(id)
	for _, in := range inputs {
		if in.Amount <= 0 {
			continue
		}
		out.add(in.ItemID, in.Amount*runs)
	}
	return out
}

// WidthAfter returns the number of distinct entries the bus would hold if id
// were replaced by inputs.
func (b Bus) WidthAfter(id string, inputs []planner.ItemAmount) int {
	width := len(b.keys)
	if b.Has(id) {
		width--
	}
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if in.Amount <= 0 || in.ItemID == id || seen[in.ItemID] {
			continue
		}
		seen[in.ItemID] = true
		if !b.Has(in.ItemID) {
			width++
		}
	}
	return width
}

// Signature identifies the bus state for cycle detection: the sorted
// (item, quantity rounded to 4 decimals) pairs.
func (b Bus) Signature() string {
	keys := b.Keys()
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(math.Round(b.qty[k]*1e4)/1e4, 'f', 4, 64))
	}
	return sb.String()
}
