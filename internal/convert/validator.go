package convert

import (
	"github.com/musacelikk/bbsm-garage-sub000/internal/domain"
)

// StockAvailability answers how many units of a stock entry can be drawn.
// The second return is false when the entry is unknown to the checker.
//
// The default implementation is a point-in-time snapshot taken once per
// batch. A stricter checker (re-reading the ledger per line, or backed by
// a conditional decrement) can be substituted without touching the
// validator or the orchestrator.
type StockAvailability interface {
	Available(stockID int64) (int, bool)
}

// SnapshotAvailability is a StockAvailability over a stock snapshot read
// once before validation. It goes stale relative to concurrent ledger
// writes; the whole batch is checked against the same snapshot.
type SnapshotAvailability map[int64]int

func NewSnapshotAvailability(entries []domain.StockEntry) SnapshotAvailability {
	snapshot := make(SnapshotAvailability, len(entries))
	for _, entry := range entries {
		snapshot[entry.ID] = entry.Quantity
	}
	return snapshot
}

func (s SnapshotAvailability) Available(stockID int64) (int, bool) {
	qty, ok := s[stockID]
	return qty, ok
}

// Validate checks every stock-linked work item of the batch against the
// stock checker and returns the full violation list. An empty result
// approves the batch; any violation means the entire batch must be
// aborted with no side effects.
//
// Each line is checked in isolation against the checker's quantity. There
// is no cross-line reservation: two lines drawing from the same entry are
// both approved if each fits on its own, even when their combined demand
// exceeds supply. A line whose stock entry is unknown to the checker is
// allowed through; both behaviors are kept for compatibility with the
// original workflow.
func Validate(quotes []domain.Quote, stock StockAvailability) []domain.StockViolation {
	violations := make([]domain.StockViolation, 0)
	for _, quote := range quotes {
		for i, item := range quote.WorkItems {
			if !item.IsFromStock || item.StockID == 0 {
				continue
			}
			available, ok := stock.Available(item.StockID)
			if !ok {
				continue
			}
			if available < item.UnitCount {
				violations = append(violations, domain.StockViolation{
					QuoteID:   quote.ID,
					LineIndex: i,
					PartName:  item.PartName,
					StockID:   item.StockID,
					Available: available,
					Requested: item.UnitCount,
				})
			}
		}
	}
	return violations
}
