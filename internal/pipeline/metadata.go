package pipeline

import (
	"fmt"

	"github.com/banshee-data/sarsim/internal/artifact"
)

// Aggregate reserves the run summary on the store header: one zeroed slot
// per post-header artifact, attached to the header as a 1 x N matrix.
//
// Slot k summarizes the k-th artifact in creation order. Aggregate does
// not fill the slots; the persistence collaborator does, through
// artifact.Store.FillSummary, immediately before encoding.
func Aggregate(store *artifact.Store) ([]complex128, error) {
	n := store.Count()
	slots := make([]complex128, n)
	if err := store.Header().Replace(artifact.Matrix{Rows: 1, Cols: n, Data: slots}); err != nil {
		return nil, fmt.Errorf("attach summary: %w", err)
	}
	logf("reserved %d summary slots", n)
	return slots, nil
}
