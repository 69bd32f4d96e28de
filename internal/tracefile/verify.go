package tracefile

import (
	"fmt"

	"github.com/roach88/probelog/internal/event"
)

// Gap is a run of missing indices [From, To].
type Gap struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Summary describes the contents of a trace.
type Summary struct {
	Records    int            `json:"records"`
	Bytes      int64          `json:"bytes"`
	ByKind     map[string]int `json:"by_kind"`
	FirstIndex uint64         `json:"first_index"`
	LastIndex  uint64         `json:"last_index"`

	// Gaps lists indices missing between InitialIndex and LastIndex.
	Gaps []Gap `json:"gaps,omitempty"`

	// OutOfOrder lists indices that were not greater than the one before.
	// A correctly written trace has none.
	OutOfOrder []uint64 `json:"out_of_order,omitempty"`
}

// OK reports whether the trace holds indices InitialIndex..LastIndex exactly
// once each, in order.
func (s Summary) OK() bool {
	if s.Records == 0 {
		return true
	}
	return len(s.Gaps) == 0 && len(s.OutOfOrder) == 0 && s.FirstIndex == event.InitialIndex
}

// Verify reads r to the end and checks index continuity.
// A decode error stops verification; the Summary covers what was read.
func Verify(r *Reader) (Summary, error) {
	sum := Summary{ByKind: make(map[string]int)}
	var prev uint64
	expected := event.InitialIndex

	for e, err := range r.All() {
		if err != nil {
			sum.Bytes = r.Offset()
			return sum, fmt.Errorf("verify: record %d: %w", sum.Records, err)
		}

		idx := e.Index()
		if sum.Records == 0 {
			sum.FirstIndex = idx
		} else if idx <= prev {
			sum.OutOfOrder = append(sum.OutOfOrder, idx)
		}
		if idx > expected {
			sum.Gaps = append(sum.Gaps, Gap{From: expected, To: idx - 1})
		}
		if idx >= expected {
			expected = idx + 1
		}

		sum.Records++
		sum.ByKind[e.Kind().String()]++
		sum.LastIndex = max(sum.LastIndex, idx)
		prev = idx
	}

	sum.Bytes = r.Offset()
	return sum, nil
}
