package artifact

import "fmt"

// SummarySlot is the value stored in the header summary for a: its
// dimensions packed as complex(rows, cols).
func SummarySlot(a *Artifact) complex128 {
	return complex(float64(a.Rows), float64(a.Cols))
}

// FillSummary populates the header summary reserved by the aggregator.
// The header must hold exactly one slot per post-header artifact.
func (s *Store) FillSummary() error {
	if s.released {
		return ErrReleased
	}
	if len(s.header.Data) != len(s.order) {
		return fmt.Errorf("header summary has %d slots for %d artifacts", len(s.header.Data), len(s.order))
	}
	for i, a := range s.order {
		s.header.Data[i] = SummarySlot(a)
	}
	return nil
}
