package convert

import (
	"testing"

	"github.com/musacelikk/bbsm-garage-sub000/internal/domain"
)

func quoteWithItems(id string, items ...domain.WorkItem) domain.Quote {
	return domain.Quote{ID: id, GarageID: "main-garage", WorkItems: items}
}

func TestValidateApprovesBatchWithoutStockLinkedItems(t *testing.T) {
	quotes := []domain.Quote{
		quoteWithItems("quote-1",
			domain.WorkItem{PartName: "İşçilik", UnitCount: 1, UnitPriceCents: 50000},
			domain.WorkItem{PartName: "Özel Parça", UnitCount: 99, UnitPriceCents: 1000},
		),
	}
	stock := NewSnapshotAvailability(nil)

	if violations := Validate(quotes, stock); len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}
}

func TestValidateReportsInsufficientStock(t *testing.T) {
	quotes := []domain.Quote{
		quoteWithItems("quote-1",
			domain.WorkItem{PartName: "Fren Balatası", UnitCount: 3, UnitPriceCents: 20000, IsFromStock: true, StockID: 7},
		),
	}
	stock := NewSnapshotAvailability([]domain.StockEntry{{ID: 7, Quantity: 2}})

	violations := Validate(quotes, stock)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	v := violations[0]
	if v.QuoteID != "quote-1" || v.StockID != 7 {
		t.Fatalf("unexpected violation identity: %+v", v)
	}
	if v.Available != 2 || v.Requested != 3 {
		t.Fatalf("expected available=2 requested=3, got %+v", v)
	}
}

func TestValidateAllowsUnknownStockEntry(t *testing.T) {
	quotes := []domain.Quote{
		quoteWithItems("quote-1",
			domain.WorkItem{PartName: "Hayalet Parça", UnitCount: 5, UnitPriceCents: 1000, IsFromStock: true, StockID: 424242},
		),
	}
	stock := NewSnapshotAvailability([]domain.StockEntry{{ID: 1, Quantity: 10}})

	if violations := Validate(quotes, stock); len(violations) != 0 {
		t.Fatalf("expected unknown stock entry to pass, got %v", violations)
	}
}

func TestValidateSkipsUnlinkedItems(t *testing.T) {
	quotes := []domain.Quote{
		quoteWithItems("quote-1",
			// IsFromStock false means the stock id is ignored entirely.
			domain.WorkItem{PartName: "Serbest Parça", UnitCount: 100, UnitPriceCents: 100, IsFromStock: false, StockID: 1},
			domain.WorkItem{PartName: "Sıfır ID", UnitCount: 100, UnitPriceCents: 100, IsFromStock: true, StockID: 0},
		),
	}
	stock := NewSnapshotAvailability([]domain.StockEntry{{ID: 1, Quantity: 1}})

	if violations := Validate(quotes, stock); len(violations) != 0 {
		t.Fatalf("expected unlinked items to be skipped, got %v", violations)
	}
}

func TestValidateChecksEachLineIndependently(t *testing.T) {
	// Two lines each drawing 3 units from an entry holding 4. Combined
	// demand exceeds supply, but each line fits on its own and there is
	// no cross-line reservation, so both pass.
	quotes := []domain.Quote{
		quoteWithItems("quote-1",
			domain.WorkItem{PartName: "Yağ Filtresi", UnitCount: 3, UnitPriceCents: 5000, IsFromStock: true, StockID: 3},
		),
		quoteWithItems("quote-2",
			domain.WorkItem{PartName: "Yağ Filtresi", UnitCount: 3, UnitPriceCents: 5000, IsFromStock: true, StockID: 3},
		),
	}
	stock := NewSnapshotAvailability([]domain.StockEntry{{ID: 3, Quantity: 4}})

	if violations := Validate(quotes, stock); len(violations) != 0 {
		t.Fatalf("expected both lines to pass independently, got %v", violations)
	}
}

func TestValidateCollectsAllViolationsAcrossBatch(t *testing.T) {
	quotes := []domain.Quote{
		quoteWithItems("quote-1",
			domain.WorkItem{PartName: "Parça A", UnitCount: 5, UnitPriceCents: 100, IsFromStock: true, StockID: 1},
		),
		quoteWithItems("quote-2",
			domain.WorkItem{PartName: "Parça B", UnitCount: 1, UnitPriceCents: 100, IsFromStock: true, StockID: 2},
			domain.WorkItem{PartName: "Parça C", UnitCount: 9, UnitPriceCents: 100, IsFromStock: true, StockID: 2},
		),
	}
	stock := NewSnapshotAvailability([]domain.StockEntry{
		{ID: 1, Quantity: 4},
		{ID: 2, Quantity: 2},
	})

	violations := Validate(quotes, stock)
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations (one per failing line), got %d: %v", len(violations), violations)
	}
	if violations[0].QuoteID != "quote-1" || violations[1].QuoteID != "quote-2" {
		t.Fatalf("violations out of order: %v", violations)
	}
	if violations[1].LineIndex != 1 {
		t.Fatalf("expected second violation on line 1, got %d", violations[1].LineIndex)
	}
}

func TestValidateIsRepeatable(t *testing.T) {
	quotes := []domain.Quote{
		quoteWithItems("quote-1",
			domain.WorkItem{PartName: "Buji", UnitCount: 2, UnitPriceCents: 3000, IsFromStock: true, StockID: 5},
		),
	}
	stock := NewSnapshotAvailability([]domain.StockEntry{{ID: 5, Quantity: 1}})

	first := Validate(quotes, stock)
	second := Validate(quotes, stock)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("validation must not consume the snapshot: first=%v second=%v", first, second)
	}
	if first[0] != second[0] {
		t.Fatalf("expected identical violations, got %+v vs %+v", first[0], second[0])
	}
}
