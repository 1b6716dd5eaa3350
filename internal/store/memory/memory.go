package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/musacelikk/bbsm-garage-sub000/internal/domain"
	"github.com/musacelikk/bbsm-garage-sub000/internal/store"
	"github.com/musacelikk/bbsm-garage-sub000/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	quotesByID      map[string]domain.Quote
	cardsByID       map[string]domain.Card
	stockByID       map[int64]domain.StockEntry
	nextStockID     int64
	auditLogs       []domain.AuditLog
	settingsByUser  map[string]domain.NotificationSettings
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_MECHANIC_PASSWORD
// environment variables; hardcoded dev defaults are used with a warning
// when unset. Production deployments run against PostgreSQL instead.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	mechanicPwd := envOr("SEED_MECHANIC_PASSWORD", "usta123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_MECHANIC_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_MECHANIC_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"usta", mechanicPwd, "mechanic"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		quotesByID:      make(map[string]domain.Quote),
		cardsByID:       make(map[string]domain.Card),
		stockByID:       make(map[int64]domain.StockEntry),
		nextStockID:     1,
		auditLogs:       make([]domain.AuditLog, 0, 128),
		settingsByUser:  make(map[string]domain.NotificationSettings),
		usersByUsername: seedUsers(),
	}
}

// NewSeeded returns a store preloaded with a handful of stock entries so
// the dev server is usable out of the box.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	for _, entry := range []domain.StockEntry{
		{GarageID: "main-garage", Name: "Motor Yağı 5W-30", Quantity: 24, MinimumThreshold: 5},
		{GarageID: "main-garage", Name: "Yağ Filtresi", Quantity: 18, MinimumThreshold: 5},
		{GarageID: "main-garage", Name: "Hava Filtresi", Quantity: 12, MinimumThreshold: 5},
		{GarageID: "main-garage", Name: "Fren Balatası Ön", Quantity: 8, MinimumThreshold: 4},
		{GarageID: "main-garage", Name: "Fren Balatası Arka", Quantity: 6, MinimumThreshold: 4},
		{GarageID: "main-garage", Name: "Polen Filtresi", Quantity: 10, MinimumThreshold: 5},
		{GarageID: "main-garage", Name: "Buji Takımı", Quantity: 7, MinimumThreshold: 3},
		{GarageID: "main-garage", Name: "Silecek Takımı", Quantity: 15, MinimumThreshold: 5},
		{GarageID: "main-garage", Name: "Antifriz 3L", Quantity: 9, MinimumThreshold: 4},
		{GarageID: "main-garage", Name: "Triger Seti", Quantity: 3, MinimumThreshold: 2},
	} {
		entry.ID = s.nextStockID
		entry.CreatedAt = now
		entry.UpdatedAt = now
		s.stockByID[entry.ID] = entry
		s.nextStockID++
	}
	return s
}

func (s *Store) ListQuotes(_ context.Context, garageID string) ([]domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := make([]domain.Quote, 0, len(s.quotesByID))
	for _, q := range s.quotesByID {
		if garageID != "" && q.GarageID != garageID {
			continue
		}
		quotes = append(quotes, cloneQuote(q))
	}

	slices.SortFunc(quotes, func(a, b domain.Quote) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	return quotes, nil
}

func (s *Store) GetQuoteByID(_ context.Context, id string) (*domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quote, exists := s.quotesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	cloned := cloneQuote(quote)
	return &cloned, nil
}

func (s *Store) GetQuotesByIDs(_ context.Context, ids []string) ([]domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := make([]domain.Quote, 0, len(ids))
	for _, id := range ids {
		quote, exists := s.quotesByID[id]
		if !exists {
			return nil, store.ErrNotFound
		}
		quotes = append(quotes, cloneQuote(quote))
	}
	return quotes, nil
}

func (s *Store) CreateQuote(_ context.Context, quote domain.Quote) (*domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quote.ID == "" {
		quote.ID = xid.New("quote")
	}
	if _, exists := s.quotesByID[quote.ID]; exists {
		return nil, store.ErrConflict
	}
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = time.Now().UTC()
	}
	quote.UpdatedAt = quote.CreatedAt

	s.quotesByID[quote.ID] = cloneQuote(quote)
	created := cloneQuote(quote)
	return &created, nil
}

func (s *Store) UpdateQuote(_ context.Context, quote domain.Quote) (*domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.quotesByID[quote.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	quote.CreatedAt = existing.CreatedAt
	quote.CreatedBy = existing.CreatedBy
	quote.UpdatedAt = time.Now().UTC()

	s.quotesByID[quote.ID] = cloneQuote(quote)
	updated := cloneQuote(quote)
	return &updated, nil
}

func (s *Store) DeleteQuote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.quotesByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.quotesByID, id)
	return nil
}

func (s *Store) ListCards(_ context.Context, garageID string) ([]domain.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cards := make([]domain.Card, 0, len(s.cardsByID))
	for _, c := range s.cardsByID {
		if garageID != "" && c.GarageID != garageID {
			continue
		}
		cards = append(cards, cloneCard(c))
	}

	slices.SortFunc(cards, func(a, b domain.Card) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	return cards, nil
}

func (s *Store) GetCardByID(_ context.Context, id string) (*domain.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, exists := s.cardsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	cloned := cloneCard(card)
	return &cloned, nil
}

func (s *Store) CreateCard(_ context.Context, card domain.Card) (*domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if card.ID == "" {
		card.ID = xid.New("card")
	}
	if _, exists := s.cardsByID[card.ID]; exists {
		return nil, store.ErrConflict
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}
	card.UpdatedAt = card.CreatedAt

	s.cardsByID[card.ID] = cloneCard(card)
	created := cloneCard(card)
	return &created, nil
}

func (s *Store) UpdateCard(_ context.Context, card domain.Card) (*domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.cardsByID[card.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	card.CreatedAt = existing.CreatedAt
	card.CreatedBy = existing.CreatedBy
	card.UpdatedAt = time.Now().UTC()

	s.cardsByID[card.ID] = cloneCard(card)
	updated := cloneCard(card)
	return &updated, nil
}

func (s *Store) DeleteCard(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cardsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.cardsByID, id)
	return nil
}

func (s *Store) ListStock(_ context.Context, garageID string) ([]domain.StockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.StockEntry, 0, len(s.stockByID))
	for _, entry := range s.stockByID {
		if garageID != "" && entry.GarageID != garageID {
			continue
		}
		entries = append(entries, entry)
	}

	slices.SortFunc(entries, func(a, b domain.StockEntry) int {
		return cmpString(a.Name, b.Name)
	})

	return entries, nil
}

func (s *Store) GetStockByID(_ context.Context, id int64) (*domain.StockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.stockByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := entry
	return &copied, nil
}

func (s *Store) CreateStock(_ context.Context, entry domain.StockEntry) (*domain.StockEntry, error) {
	if strings.TrimSpace(entry.Name) == "" || entry.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextStockID
	s.nextStockID++
	if entry.MinimumThreshold < 1 {
		entry.MinimumThreshold = domain.DefaultMinimumThreshold
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	s.stockByID[entry.ID] = entry
	created := entry
	return &created, nil
}

func (s *Store) UpdateStock(_ context.Context, entry domain.StockEntry) (*domain.StockEntry, error) {
	if strings.TrimSpace(entry.Name) == "" || entry.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.stockByID[entry.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	entry.GarageID = existing.GarageID
	entry.CreatedAt = existing.CreatedAt
	entry.UpdatedAt = time.Now().UTC()

	s.stockByID[entry.ID] = entry
	updated := entry
	return &updated, nil
}

func (s *Store) DeleteStock(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stockByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.stockByID, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, id int64, delta int) (*domain.StockEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.stockByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if entry.Quantity+delta < 0 {
		return nil, store.ErrConflict
	}
	entry.Quantity += delta
	entry.UpdatedAt = time.Now().UTC()

	s.stockByID[id] = entry
	adjusted := entry
	return &adjusted, nil
}

func (s *Store) GetRevenueReport(_ context.Context, garageID string, from time.Time, to time.Time) (domain.RevenueReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.RevenueReport{
		GarageID: garageID,
		From:     from.Format("2006-01-02"),
		To:       to.Format("2006-01-02"),
		ByDay:    make([]domain.RevenueReportDay, 0, 8),
	}

	byDay := make(map[string]*domain.RevenueReportDay)
	for _, card := range s.cardsByID {
		if card.GarageID != garageID || !card.PaymentReceived {
			continue
		}
		if card.CreatedAt.Before(from) || !card.CreatedAt.Before(to) {
			continue
		}
		report.Cards++
		report.GrossCents += card.TotalCents()

		day := card.CreatedAt.UTC().Format("2006-01-02")
		bucket, ok := byDay[day]
		if !ok {
			bucket = &domain.RevenueReportDay{Date: day}
			byDay[day] = bucket
		}
		bucket.Cards++
		bucket.TotalCents += card.TotalCents()
	}

	for _, bucket := range byDay {
		report.ByDay = append(report.ByDay, *bucket)
	}
	slices.SortFunc(report.ByDay, func(a, b domain.RevenueReportDay) int {
		return cmpString(a.Date, b.Date)
	})

	return report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, garageID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}

	logs := make([]domain.AuditLog, 0, limit)
	for _, entry := range s.auditLogs {
		if garageID != "" && entry.GarageID != garageID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}

	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) GetNotificationSettings(_ context.Context, username string) (*domain.NotificationSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, exists := s.settingsByUser[username]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := settings
	return &copied, nil
}

func (s *Store) SaveNotificationSettings(_ context.Context, settings domain.NotificationSettings) (*domain.NotificationSettings, error) {
	if strings.TrimSpace(settings.Username) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings.UpdatedAt = time.Now().UTC()
	s.settingsByUser[settings.Username] = settings
	saved := settings
	return &saved, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneQuote(q domain.Quote) domain.Quote {
	cloned := q
	cloned.WorkItems = cloneWorkItems(q.WorkItems)
	return cloned
}

func cloneCard(c domain.Card) domain.Card {
	cloned := c
	cloned.WorkItems = cloneWorkItems(c.WorkItems)
	return cloned
}

func cloneWorkItems(items []domain.WorkItem) []domain.WorkItem {
	if items == nil {
		return nil
	}
	cloned := make([]domain.WorkItem, len(items))
	copy(cloned, items)
	return cloned
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
