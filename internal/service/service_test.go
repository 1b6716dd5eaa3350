package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/musacelikk/bbsm-garage-sub000/internal/cache"
	"github.com/musacelikk/bbsm-garage-sub000/internal/domain"
	"github.com/musacelikk/bbsm-garage-sub000/internal/store"
	"github.com/musacelikk/bbsm-garage-sub000/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopReportCache{}, "main-garage", 0)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func mechanicCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "usta", Role: "mechanic"})
}

func TestConvertQuotesMovesQuoteToCard(t *testing.T) {
	svc := newTestService()
	ctx := mechanicCtx()

	quote, err := svc.CreateQuote(ctx, domain.QuoteCreateRequest{
		CustomerName: "Ahmet Yılmaz",
		VehicleMake:  "Renault",
		VehicleModel: "Clio",
		Plate:        "34abc123",
		ChassisNo:    "vf1xxxxx",
		IntakeDate:   "2026-08-20",
		WorkItems: []domain.WorkItem{
			// Seeded entry 2 is Yağ Filtresi with quantity 18.
			{PartName: "Yağ Filtresi", UnitCount: 1, UnitPriceCents: 5000, IsFromStock: true, StockID: 2},
			{PartName: "İşçilik", UnitCount: 1, UnitPriceCents: 50000},
		},
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}

	resp, err := svc.ConvertQuotes(ctx, domain.ConvertRequest{QuoteIDs: []string{quote.ID}})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(resp.Violations) != 0 || len(resp.Failed) != 0 || len(resp.Succeeded) != 1 {
		t.Fatalf("expected clean conversion, got %+v", resp)
	}

	if _, err := svc.GetQuote(ctx, quote.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected converted quote to be gone, got %v", err)
	}

	cards, err := svc.ListCards(ctx, "main-garage")
	if err != nil {
		t.Fatalf("list cards: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(cards))
	}
	card := cards[0]
	if card.CustomerName != "Ahmet Yılmaz" || card.Plate != "34ABC123" {
		t.Fatalf("card fields not carried from quote: %+v", card)
	}
	if len(card.WorkItems) != 2 || card.WorkItems[0].StockID != 2 {
		t.Fatalf("work items not carried: %+v", card.WorkItems)
	}
	if card.PaymentReceived {
		t.Fatalf("fresh card must not be marked paid")
	}

	// Converting never touches stock quantities.
	entry, err := svc.GetStock(ctx, 2)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if entry.Quantity != 18 {
		t.Fatalf("conversion must not decrement stock, got %d", entry.Quantity)
	}
}

func TestConvertQuotesRejectsBatchOnViolationWithoutSideEffects(t *testing.T) {
	svc := newTestService()
	ctx := mechanicCtx()

	good, err := svc.CreateQuote(ctx, domain.QuoteCreateRequest{
		CustomerName: "Sorunsuz",
		WorkItems:    []domain.WorkItem{{PartName: "İşçilik", UnitCount: 1, UnitPriceCents: 10000}},
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}

	// Seeded entry 10 is Triger Seti with quantity 3.
	bad, err := svc.CreateQuote(ctx, domain.QuoteCreateRequest{
		CustomerName: "Stok Yetersiz",
		WorkItems: []domain.WorkItem{
			{PartName: "Triger Seti", UnitCount: 5, UnitPriceCents: 80000, IsFromStock: true, StockID: 10},
		},
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}

	resp, err := svc.ConvertQuotes(ctx, domain.ConvertRequest{QuoteIDs: []string{good.ID, bad.ID}})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(resp.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %+v", resp)
	}
	v := resp.Violations[0]
	if v.QuoteID != bad.ID || v.StockID != 10 || v.Available != 3 || v.Requested != 5 {
		t.Fatalf("unexpected violation: %+v", v)
	}
	if len(resp.Succeeded) != 0 {
		t.Fatalf("a rejected batch must convert nothing, got %v", resp.Succeeded)
	}

	// One bad quote blocks the whole batch: the clean quote stays too.
	if _, err := svc.GetQuote(ctx, good.ID); err != nil {
		t.Fatalf("clean quote must survive a rejected batch: %v", err)
	}
	cards, err := svc.ListCards(ctx, "main-garage")
	if err != nil {
		t.Fatalf("list cards: %v", err)
	}
	if len(cards) != 0 {
		t.Fatalf("a rejected batch must create no cards, got %d", len(cards))
	}
}

func TestConvertQuotesDefaultsBlankFields(t *testing.T) {
	svc := newTestService()
	ctx := mechanicCtx()

	quote, err := svc.CreateQuote(ctx, domain.QuoteCreateRequest{
		WorkItems: []domain.WorkItem{{PartName: "İşçilik", UnitCount: 1, UnitPriceCents: 10000}},
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}

	resp, err := svc.ConvertQuotes(ctx, domain.ConvertRequest{QuoteIDs: []string{quote.ID}})
	if err != nil || len(resp.Succeeded) != 1 {
		t.Fatalf("convert failed: err=%v resp=%+v", err, resp)
	}

	cards, _ := svc.ListCards(ctx, "main-garage")
	if len(cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(cards))
	}
	card := cards[0]
	if card.CustomerName != domain.Unspecified || card.Plate != domain.Unspecified || card.IntakeDate != domain.Unspecified {
		t.Fatalf("blank required fields must default to %q, got %+v", domain.Unspecified, card)
	}
}

func TestConvertQuotesValidatesInput(t *testing.T) {
	svc := newTestService()
	ctx := mechanicCtx()

	if _, err := svc.ConvertQuotes(ctx, domain.ConvertRequest{}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty id list, got %v", err)
	}
	if _, err := svc.ConvertQuotes(ctx, domain.ConvertRequest{QuoteIDs: []string{"quote-missing"}}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown quote, got %v", err)
	}

	quote, err := svc.CreateQuote(ctx, domain.QuoteCreateRequest{
		WorkItems: []domain.WorkItem{{PartName: "İşçilik", UnitCount: 1, UnitPriceCents: 10000}},
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	_, err = svc.ConvertQuotes(ctx, domain.ConvertRequest{GarageID: "other-garage", QuoteIDs: []string{quote.ID}})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected garage mismatch rejection, got %v", err)
	}
}

func TestCreateStockRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateStock(mechanicCtx(), domain.StockCreateRequest{Name: "Yeni Parça", Quantity: 5})
	if err == nil {
		t.Fatalf("expected mechanic stock create to be rejected")
	}

	entry, err := svc.CreateStock(adminCtx(), domain.StockCreateRequest{Name: "Yeni Parça", Quantity: 5})
	if err != nil {
		t.Fatalf("admin stock create failed: %v", err)
	}
	if entry.ID < 1 || entry.MinimumThreshold != domain.DefaultMinimumThreshold {
		t.Fatalf("unexpected created entry: %+v", entry)
	}
}

func TestAdjustStockRejectsDecrementBelowZero(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	entry, err := svc.CreateStock(ctx, domain.StockCreateRequest{Name: "Tek Parça", Quantity: 1})
	if err != nil {
		t.Fatalf("create stock: %v", err)
	}

	if _, err := svc.AdjustStock(ctx, entry.ID, -1); err != nil {
		t.Fatalf("first decrement: %v", err)
	}
	if _, err := svc.AdjustStock(ctx, entry.ID, -1); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict below zero, got %v", err)
	}

	current, err := svc.GetStock(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if current.Quantity != 0 {
		t.Fatalf("rejected decrement must leave quantity at 0, got %d", current.Quantity)
	}
}

func TestLowStockAlertsFlagEntriesAtThreshold(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	entry, err := svc.CreateStock(ctx, domain.StockCreateRequest{Name: "Azalan Parça", Quantity: 2, MinimumThreshold: 4})
	if err != nil {
		t.Fatalf("create stock: %v", err)
	}

	resp, err := svc.LowStockAlerts(ctx, "main-garage")
	if err != nil {
		t.Fatalf("low stock alerts: %v", err)
	}
	found := false
	for _, alert := range resp.Alerts {
		if alert.StockID == entry.ID {
			found = true
			if alert.Quantity != 2 || alert.MinimumThreshold != 4 {
				t.Fatalf("unexpected alert payload: %+v", alert)
			}
		}
	}
	if !found {
		t.Fatalf("expected alert for entry %d, got %+v", entry.ID, resp.Alerts)
	}
}

func TestRevenueReportCountsOnlyPaidCards(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	_, err := svc.CreateCard(ctx, domain.CardCreateRequest{
		CustomerName:    "Ödedi",
		PaymentReceived: true,
		WorkItems:       []domain.WorkItem{{PartName: "İşçilik", UnitCount: 2, UnitPriceCents: 30000}},
	})
	if err != nil {
		t.Fatalf("create paid card: %v", err)
	}
	_, err = svc.CreateCard(ctx, domain.CardCreateRequest{
		CustomerName: "Ödemedi",
		WorkItems:    []domain.WorkItem{{PartName: "İşçilik", UnitCount: 1, UnitPriceCents: 99999}},
	})
	if err != nil {
		t.Fatalf("create unpaid card: %v", err)
	}

	report, err := svc.RevenueReport(ctx, "main-garage", "", "")
	if err != nil {
		t.Fatalf("revenue report: %v", err)
	}
	if report.Cards != 1 {
		t.Fatalf("expected 1 paid card in report, got %d", report.Cards)
	}
	if report.GrossCents != 60000 {
		t.Fatalf("expected gross 60000, got %d", report.GrossCents)
	}
	if len(report.ByDay) != 1 || report.ByDay[0].TotalCents != 60000 {
		t.Fatalf("unexpected by-day breakdown: %+v", report.ByDay)
	}
}

func TestQuoteLifecycleWritesAuditLog(t *testing.T) {
	svc := newTestService()
	ctx := mechanicCtx()

	quote, err := svc.CreateQuote(ctx, domain.QuoteCreateRequest{
		CustomerName: "Kayıt Testi",
		WorkItems:    []domain.WorkItem{{PartName: "İşçilik", UnitCount: 1, UnitPriceCents: 10000}},
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	if err := svc.DeleteQuote(ctx, quote.ID); err != nil {
		t.Fatalf("delete quote: %v", err)
	}

	logs, err := svc.ListAuditLogs(ctx, "main-garage", "", 50)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	actions := make(map[string]int)
	for _, entry := range logs {
		actions[entry.Action]++
		if entry.ActorUsername != "usta" {
			t.Fatalf("expected actor usta on %s, got %s", entry.Action, entry.ActorUsername)
		}
	}
	if actions[domain.ActionQuoteCreate] != 1 || actions[domain.ActionQuoteDelete] != 1 {
		t.Fatalf("expected create and delete audit entries, got %v", actions)
	}
}

func TestNormalizeWorkItemsRecomputesLineTotals(t *testing.T) {
	items, err := normalizeWorkItems([]domain.WorkItem{
		{PartName: " Fren Balatası ", UnitCount: 3, UnitPriceCents: 20000, LineTotalCents: 1},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if items[0].PartName != "Fren Balatası" {
		t.Fatalf("part name not trimmed: %q", items[0].PartName)
	}
	if items[0].LineTotalCents != 60000 {
		t.Fatalf("client-supplied total must be recomputed, got %d", items[0].LineTotalCents)
	}

	if _, err := normalizeWorkItems([]domain.WorkItem{{PartName: "X", UnitCount: -1, UnitPriceCents: 1}}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected rejection of negative unit count, got %v", err)
	}
	if _, err := normalizeWorkItems([]domain.WorkItem{{PartName: " ", UnitCount: 1, UnitPriceCents: 1}}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected rejection of blank part name, got %v", err)
	}
}

func TestNotificationSettingsDefaultsAndUpdate(t *testing.T) {
	svc := newTestService()
	ctx := mechanicCtx()

	settings, err := svc.GetNotificationSettings(ctx, "usta")
	if err != nil {
		t.Fatalf("get defaults: %v", err)
	}
	if !settings.LowStockAlerts || settings.DailySummary {
		t.Fatalf("unexpected defaults: %+v", settings)
	}

	daily := true
	updated, err := svc.UpdateNotificationSettings(ctx, "usta", domain.NotificationSettingsUpdateRequest{DailySummary: &daily})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if !updated.DailySummary || !updated.LowStockAlerts {
		t.Fatalf("patch must keep untouched fields: %+v", updated)
	}
}

func TestNewFallsBackToDefaultReportTTL(t *testing.T) {
	svc := New(memory.NewSeeded(), cache.NoopReportCache{}, "main-garage", 0)
	if svc.reportTTL != defaultReportCacheTTL {
		t.Fatalf("expected default report ttl %v, got %v", defaultReportCacheTTL, svc.reportTTL)
	}

	svc = New(memory.NewSeeded(), cache.NoopReportCache{}, "main-garage", 90*time.Second)
	if svc.reportTTL != 90*time.Second {
		t.Fatalf("expected configured report ttl, got %v", svc.reportTTL)
	}
}
