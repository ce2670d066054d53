package clinic

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityKind tags a table for identifier assignment.
type EntityKind string

const (
	KindPatient     EntityKind = "patient"
	KindAppointment EntityKind = "appointment"
	KindExamination EntityKind = "examination"
	KindOrder       EntityKind = "order"
	KindBilling     EntityKind = "billing"
)

// idBase is the first numeric suffix handed out for an empty table.
const idBase = 10000

var idPrefixes = map[EntityKind]string{
	KindPatient:     "P",
	KindAppointment: "A",
	KindExamination: "E",
	KindOrder:       "LO",
	KindBilling:     "B",
}

// Prefix returns the id prefix ("P", "LO", ...) of the kind.
func (k EntityKind) Prefix() string { return idPrefixes[k] }

// IDGenerator hands out "<Prefix>-<n>" identifiers from a per-kind counter
// that only moves forward. Deleting rows never frees an id for reuse.
type IDGenerator struct {
	next map[EntityKind]int
}

// NewIDGenerator returns a generator with every counter at its base.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{next: make(map[EntityKind]int)}
}

// Next returns the next id for kind given the current table size. The
// size keeps the historical <Prefix>-<10000+n> numbering for fresh tables.
func (g *IDGenerator) Next(kind EntityKind, tableSize int) string {
	n := g.next[kind]
	if floor := idBase + tableSize; n < floor {
		n = floor
	}
	g.next[kind] = n + 1
	return fmt.Sprintf("%s-%d", kind.Prefix(), n)
}

// Observe advances the counter past an id that already exists, so seeded or
// restored rows are never handed out again.
func (g *IDGenerator) Observe(kind EntityKind, id string) {
	n, ok := parseIDNumber(kind, id)
	if !ok {
		return
	}
	if n >= g.next[kind] {
		g.next[kind] = n + 1
	}
}

// Counters exports the counter state for snapshots.
func (g *IDGenerator) Counters() map[EntityKind]int {
	out := make(map[EntityKind]int, len(g.next))
	for k, v := range g.next {
		out[k] = v
	}
	return out
}

// Restore replaces the counter state, never moving a counter backwards.
func (g *IDGenerator) Restore(counters map[EntityKind]int) {
	for k, v := range counters {
		if v > g.next[k] {
			g.next[k] = v
		}
	}
}

func (g *IDGenerator) clone() *IDGenerator {
	return &IDGenerator{next: g.Counters()}
}

func parseIDNumber(kind EntityKind, id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, kind.Prefix()+"-")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}
