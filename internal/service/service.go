package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/musacelikk/bbsm-garage-sub000/internal/cache"
	"github.com/musacelikk/bbsm-garage-sub000/internal/convert"
	"github.com/musacelikk/bbsm-garage-sub000/internal/domain"
	"github.com/musacelikk/bbsm-garage-sub000/internal/store"
	"github.com/musacelikk/bbsm-garage-sub000/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const defaultReportCacheTTL = 5 * time.Minute

type Service struct {
	repo            store.Repository
	reports         cache.ReportCache
	reportTTL       time.Duration
	defaultGarageID string
}

func New(repo store.Repository, reports cache.ReportCache, defaultGarageID string, reportTTL time.Duration) *Service {
	if defaultGarageID == "" {
		defaultGarageID = "main-garage"
	}
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = defaultReportCacheTTL
	}

	return &Service{
		repo:            repo,
		reports:         reports,
		reportTTL:       reportTTL,
		defaultGarageID: defaultGarageID,
	}
}

func (s *Service) ListQuotes(ctx context.Context, garageID string) ([]domain.Quote, error) {
	if garageID == "" {
		garageID = s.defaultGarageID
	}
	return s.repo.ListQuotes(ctx, garageID)
}

func (s *Service) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	quote, err := s.repo.GetQuoteByID(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	return *quote, nil
}

func (s *Service) CreateQuote(ctx context.Context, req domain.QuoteCreateRequest) (domain.Quote, error) {
	if req.GarageID == "" {
		req.GarageID = s.defaultGarageID
	}

	items, err := normalizeWorkItems(req.WorkItems)
	if err != nil {
		return domain.Quote{}, err
	}

	actor, _ := ActorFromContext(ctx)
	quote := domain.Quote{
		ID:           xid.New("quote"),
		GarageID:     req.GarageID,
		CustomerName: strings.TrimSpace(req.CustomerName),
		Phone:        strings.TrimSpace(req.Phone),
		VehicleMake:  strings.TrimSpace(req.VehicleMake),
		VehicleModel: strings.TrimSpace(req.VehicleModel),
		Plate:        strings.ToUpper(strings.TrimSpace(req.Plate)),
		ChassisNo:    strings.ToUpper(strings.TrimSpace(req.ChassisNo)),
		ModelYear:    req.ModelYear,
		KM:           req.KM,
		IntakeDate:   strings.TrimSpace(req.IntakeDate),
		Complaint:    strings.TrimSpace(req.Complaint),
		WorkItems:    items,
		CreatedBy:    actor.Username,
	}

	created, err := s.repo.CreateQuote(ctx, quote)
	if err != nil {
		return domain.Quote{}, err
	}

	s.logAudit(ctx, created.GarageID, domain.ActionQuoteCreate, "quote", created.ID, fmt.Sprintf("customer=%s,plate=%s,items=%d", created.CustomerName, created.Plate, len(created.WorkItems)))
	return *created, nil
}

func (s *Service) UpdateQuote(ctx context.Context, id string, req domain.QuoteCreateRequest) (domain.Quote, error) {
	existing, err := s.repo.GetQuoteByID(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}

	items, err := normalizeWorkItems(req.WorkItems)
	if err != nil {
		return domain.Quote{}, err
	}

	quote := *existing
	quote.CustomerName = strings.TrimSpace(req.CustomerName)
	quote.Phone = strings.TrimSpace(req.Phone)
	quote.VehicleMake = strings.TrimSpace(req.VehicleMake)
	quote.VehicleModel = strings.TrimSpace(req.VehicleModel)
	quote.Plate = strings.ToUpper(strings.TrimSpace(req.Plate))
	quote.ChassisNo = strings.ToUpper(strings.TrimSpace(req.ChassisNo))
	quote.ModelYear = req.ModelYear
	quote.KM = req.KM
	quote.IntakeDate = strings.TrimSpace(req.IntakeDate)
	quote.Complaint = strings.TrimSpace(req.Complaint)
	quote.WorkItems = items

	updated, err := s.repo.UpdateQuote(ctx, quote)
	if err != nil {
		return domain.Quote{}, err
	}

	s.logAudit(ctx, updated.GarageID, domain.ActionQuoteUpdate, "quote", updated.ID, fmt.Sprintf("items=%d", len(updated.WorkItems)))
	return *updated, nil
}

func (s *Service) DeleteQuote(ctx context.Context, id string) error {
	quote, err := s.repo.GetQuoteByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteQuote(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, quote.GarageID, domain.ActionQuoteDelete, "quote", id, fmt.Sprintf("customer=%s", quote.CustomerName))
	return nil
}

// ConvertQuotes runs one quote→card conversion attempt: load the selected
// quotes, validate every stock-linked line against a single stock snapshot,
// and only when the whole batch passes hand it to the orchestrator. A
// rejected batch has no side effects.
func (s *Service) ConvertQuotes(ctx context.Context, req domain.ConvertRequest) (domain.ConvertResponse, error) {
	if req.GarageID == "" {
		req.GarageID = s.defaultGarageID
	}
	if len(req.QuoteIDs) == 0 {
		return domain.ConvertResponse{}, fmt.Errorf("%w: quote_ids is required", store.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(req.QuoteIDs))
	ids := make([]string, 0, len(req.QuoteIDs))
	for _, id := range req.QuoteIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return domain.ConvertResponse{}, fmt.Errorf("%w: quote_ids is required", store.ErrInvalidInput)
	}

	quotes, err := s.repo.GetQuotesByIDs(ctx, ids)
	if err != nil {
		return domain.ConvertResponse{}, err
	}
	for _, quote := range quotes {
		if quote.GarageID != req.GarageID {
			return domain.ConvertResponse{}, fmt.Errorf("%w: quote %s does not belong to garage %s", store.ErrInvalidInput, quote.ID, req.GarageID)
		}
	}

	entries, err := s.repo.ListStock(ctx, req.GarageID)
	if err != nil {
		return domain.ConvertResponse{}, err
	}

	if violations := convert.Validate(quotes, convert.NewSnapshotAvailability(entries)); len(violations) > 0 {
		return domain.ConvertResponse{
			Violations: violations,
			Succeeded:  make([]string, 0),
			Failed:     make([]domain.ConvertFailure, 0),
		}, nil
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	orchestrator := convert.NewOrchestrator(s.repo, s.repo, s.repo)
	return orchestrator.Run(ctx, quotes, actor), nil
}

func (s *Service) ListCards(ctx context.Context, garageID string) ([]domain.Card, error) {
	if garageID == "" {
		garageID = s.defaultGarageID
	}
	return s.repo.ListCards(ctx, garageID)
}

func (s *Service) GetCard(ctx context.Context, id string) (domain.Card, error) {
	card, err := s.repo.GetCardByID(ctx, id)
	if err != nil {
		return domain.Card{}, err
	}
	return *card, nil
}

func (s *Service) CreateCard(ctx context.Context, req domain.CardCreateRequest) (domain.Card, error) {
	if req.GarageID == "" {
		req.GarageID = s.defaultGarageID
	}

	items, err := normalizeWorkItems(req.WorkItems)
	if err != nil {
		return domain.Card{}, err
	}

	actor, _ := ActorFromContext(ctx)
	card := domain.Card{
		ID:                  xid.New("card"),
		GarageID:            req.GarageID,
		CustomerName:        defaultIfBlank(req.CustomerName),
		Phone:               strings.TrimSpace(req.Phone),
		VehicleMake:         defaultIfBlank(req.VehicleMake),
		VehicleModel:        defaultIfBlank(req.VehicleModel),
		Plate:               defaultIfBlank(strings.ToUpper(req.Plate)),
		ChassisNo:           defaultIfBlank(strings.ToUpper(req.ChassisNo)),
		ModelYear:           req.ModelYear,
		KM:                  req.KM,
		IntakeDate:          defaultIfBlank(req.IntakeDate),
		Complaint:           strings.TrimSpace(req.Complaint),
		WorkItems:           items,
		PaymentReceived:     req.PaymentReceived,
		PeriodicMaintenance: req.PeriodicMaintenance,
		CreatedBy:           actor.Username,
	}

	created, err := s.repo.CreateCard(ctx, card)
	if err != nil {
		return domain.Card{}, err
	}

	s.logAudit(ctx, created.GarageID, domain.ActionCardCreate, "card", created.ID, fmt.Sprintf("customer=%s,plate=%s,total=%d", created.CustomerName, created.Plate, created.TotalCents()))
	return *created, nil
}

func (s *Service) UpdateCard(ctx context.Context, id string, req domain.CardCreateRequest) (domain.Card, error) {
	existing, err := s.repo.GetCardByID(ctx, id)
	if err != nil {
		return domain.Card{}, err
	}

	items, err := normalizeWorkItems(req.WorkItems)
	if err != nil {
		return domain.Card{}, err
	}

	card := *existing
	card.CustomerName = defaultIfBlank(req.CustomerName)
	card.Phone = strings.TrimSpace(req.Phone)
	card.VehicleMake = defaultIfBlank(req.VehicleMake)
	card.VehicleModel = defaultIfBlank(req.VehicleModel)
	card.Plate = defaultIfBlank(strings.ToUpper(req.Plate))
	card.ChassisNo = defaultIfBlank(strings.ToUpper(req.ChassisNo))
	card.ModelYear = req.ModelYear
	card.KM = req.KM
	card.IntakeDate = defaultIfBlank(req.IntakeDate)
	card.Complaint = strings.TrimSpace(req.Complaint)
	card.WorkItems = items
	card.PaymentReceived = req.PaymentReceived
	card.PeriodicMaintenance = req.PeriodicMaintenance

	updated, err := s.repo.UpdateCard(ctx, card)
	if err != nil {
		return domain.Card{}, err
	}

	s.logAudit(ctx, updated.GarageID, domain.ActionCardUpdate, "card", updated.ID, fmt.Sprintf("payment=%t,total=%d", updated.PaymentReceived, updated.TotalCents()))
	return *updated, nil
}

func (s *Service) DeleteCard(ctx context.Context, id string) error {
	card, err := s.repo.GetCardByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCard(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, card.GarageID, domain.ActionCardDelete, "card", id, fmt.Sprintf("customer=%s", card.CustomerName))
	return nil
}

func (s *Service) ListStock(ctx context.Context, garageID string) ([]domain.StockEntry, error) {
	if garageID == "" {
		garageID = s.defaultGarageID
	}
	return s.repo.ListStock(ctx, garageID)
}

func (s *Service) GetStock(ctx context.Context, id int64) (domain.StockEntry, error) {
	entry, err := s.repo.GetStockByID(ctx, id)
	if err != nil {
		return domain.StockEntry{}, err
	}
	return *entry, nil
}

func (s *Service) CreateStock(ctx context.Context, req domain.StockCreateRequest) (domain.StockEntry, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.StockEntry{}, fmt.Errorf("admin role required")
	}
	if req.GarageID == "" {
		req.GarageID = s.defaultGarageID
	}

	created, err := s.repo.CreateStock(ctx, domain.StockEntry{
		GarageID:         req.GarageID,
		Name:             strings.TrimSpace(req.Name),
		Quantity:         req.Quantity,
		MinimumThreshold: req.MinimumThreshold,
	})
	if err != nil {
		return domain.StockEntry{}, err
	}

	s.logAudit(ctx, created.GarageID, domain.ActionStockCreate, "stock", fmt.Sprintf("%d", created.ID), fmt.Sprintf("name=%s,qty=%d", created.Name, created.Quantity))
	return *created, nil
}

func (s *Service) UpdateStock(ctx context.Context, id int64, req domain.StockUpdateRequest) (domain.StockEntry, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.StockEntry{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetStockByID(ctx, id)
	if err != nil {
		return domain.StockEntry{}, err
	}

	entry := *existing
	if req.Name != nil {
		entry.Name = strings.TrimSpace(*req.Name)
	}
	if req.Quantity != nil {
		entry.Quantity = *req.Quantity
	}
	if req.MinimumThreshold != nil {
		entry.MinimumThreshold = *req.MinimumThreshold
	}

	updated, err := s.repo.UpdateStock(ctx, entry)
	if err != nil {
		return domain.StockEntry{}, err
	}

	s.logAudit(ctx, updated.GarageID, domain.ActionStockUpdate, "stock", fmt.Sprintf("%d", updated.ID), fmt.Sprintf("name=%s,qty=%d,min=%d", updated.Name, updated.Quantity, updated.MinimumThreshold))
	return *updated, nil
}

func (s *Service) DeleteStock(ctx context.Context, id int64) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	entry, err := s.repo.GetStockByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteStock(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, entry.GarageID, domain.ActionStockDelete, "stock", fmt.Sprintf("%d", id), fmt.Sprintf("name=%s", entry.Name))
	return nil
}

// AdjustStock applies a manual +/- quantity adjustment from the stock
// screen. Conversions never call this; converting a quote does not touch
// stock quantities.
func (s *Service) AdjustStock(ctx context.Context, id int64, delta int) (domain.StockEntry, error) {
	if delta == 0 {
		return domain.StockEntry{}, fmt.Errorf("%w: delta must be non-zero", store.ErrInvalidInput)
	}

	adjusted, err := s.repo.AdjustStock(ctx, id, delta)
	if err != nil {
		return domain.StockEntry{}, err
	}

	s.logAudit(ctx, adjusted.GarageID, domain.ActionStockAdjust, "stock", fmt.Sprintf("%d", id), fmt.Sprintf("delta=%+d,qty=%d", delta, adjusted.Quantity))
	return *adjusted, nil
}

// LowStockAlerts lists the entries at or below their minimum threshold.
func (s *Service) LowStockAlerts(ctx context.Context, garageID string) (domain.LowStockAlertResponse, error) {
	if garageID == "" {
		garageID = s.defaultGarageID
	}

	entries, err := s.repo.ListStock(ctx, garageID)
	if err != nil {
		return domain.LowStockAlertResponse{}, err
	}

	resp := domain.LowStockAlertResponse{
		GarageID: garageID,
		Alerts:   make([]domain.LowStockAlert, 0),
	}
	for _, entry := range entries {
		if entry.Quantity > entry.MinimumThreshold {
			continue
		}
		resp.Alerts = append(resp.Alerts, domain.LowStockAlert{
			StockID:          entry.ID,
			Name:             entry.Name,
			Quantity:         entry.Quantity,
			MinimumThreshold: entry.MinimumThreshold,
		})
	}
	return resp, nil
}

func (s *Service) RevenueReport(ctx context.Context, garageID string, fromDate string, toDate string) (domain.RevenueReport, error) {
	if garageID == "" {
		garageID = s.defaultGarageID
	}

	from, to, err := parseDateRange(fromDate, toDate)
	if err != nil {
		return domain.RevenueReport{}, err
	}

	cacheKey := fmt.Sprintf("revenue:%s:%s:%s", garageID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if cached, hit, err := s.reports.Get(ctx, cacheKey); err != nil {
		log.Printf("[report] WARN: cache read failed key=%s: %v", cacheKey, err)
	} else if hit {
		return *cached, nil
	}

	report, err := s.repo.GetRevenueReport(ctx, garageID, from, to)
	if err != nil {
		return domain.RevenueReport{}, err
	}
	report.GeneratedAt = time.Now().UTC().Format(time.RFC3339)

	if err := s.reports.Set(ctx, cacheKey, &report, s.reportTTL); err != nil {
		log.Printf("[report] WARN: cache write failed key=%s: %v", cacheKey, err)
	}

	return report, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, garageID string, date string, limit int) ([]domain.AuditLog, error) {
	if garageID == "" {
		garageID = s.defaultGarageID
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}

	day := time.Now().UTC()
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidInput)
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, garageID, from, to, limit)
}

func (s *Service) GetNotificationSettings(ctx context.Context, username string) (domain.NotificationSettings, error) {
	settings, err := s.repo.GetNotificationSettings(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Unsaved users get the defaults.
			return domain.NotificationSettings{Username: username, LowStockAlerts: true, DailySummary: false}, nil
		}
		return domain.NotificationSettings{}, err
	}
	return *settings, nil
}

func (s *Service) UpdateNotificationSettings(ctx context.Context, username string, req domain.NotificationSettingsUpdateRequest) (domain.NotificationSettings, error) {
	current, err := s.GetNotificationSettings(ctx, username)
	if err != nil {
		return domain.NotificationSettings{}, err
	}

	if req.LowStockAlerts != nil {
		current.LowStockAlerts = *req.LowStockAlerts
	}
	if req.DailySummary != nil {
		current.DailySummary = *req.DailySummary
	}

	saved, err := s.repo.SaveNotificationSettings(ctx, current)
	if err != nil {
		return domain.NotificationSettings{}, err
	}

	s.logAudit(ctx, s.defaultGarageID, domain.ActionSettingsSaved, "notification_settings", username, fmt.Sprintf("low_stock=%t,daily=%t", saved.LowStockAlerts, saved.DailySummary))
	return *saved, nil
}

func (s *Service) logAudit(ctx context.Context, garageID string, action string, entityType string, entityID string, detail string) {
	if garageID == "" {
		garageID = s.defaultGarageID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		GarageID:      garageID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

// normalizeWorkItems trims names, recomputes line totals from unit count
// and unit price, and rejects malformed lines. Client-supplied totals are
// ignored.
func normalizeWorkItems(items []domain.WorkItem) ([]domain.WorkItem, error) {
	normalized := make([]domain.WorkItem, 0, len(items))
	for i, item := range items {
		item.PartName = strings.TrimSpace(item.PartName)
		if item.PartName == "" {
			return nil, fmt.Errorf("%w: work item %d has no part name", store.ErrInvalidInput, i)
		}
		if item.UnitCount < 0 {
			return nil, fmt.Errorf("%w: work item %d has negative unit count", store.ErrInvalidInput, i)
		}
		if item.UnitPriceCents < 0 {
			return nil, fmt.Errorf("%w: work item %d has negative unit price", store.ErrInvalidInput, i)
		}
		if !item.IsFromStock {
			item.StockID = 0
		}
		item.LineTotalCents = item.Total()
		normalized = append(normalized, item)
	}
	return normalized, nil
}

func defaultIfBlank(val string) string {
	val = strings.TrimSpace(val)
	if val == "" {
		return domain.Unspecified
	}
	return val
}

func parseDateRange(fromDate string, toDate string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)

	if fromDate != "" {
		parsed, err := time.Parse("2006-01-02", fromDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be YYYY-MM-DD", store.ErrInvalidInput)
		}
		from = parsed
	}
	if toDate != "" {
		parsed, err := time.Parse("2006-01-02", toDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to must be YYYY-MM-DD", store.ErrInvalidInput)
		}
		// Inclusive end date.
		to = parsed.Add(24 * time.Hour)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be before to", store.ErrInvalidInput)
	}

	return from, to, nil
}
