package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/musacelikk/bbsm-garage-sub000/internal/domain"
	"github.com/musacelikk/bbsm-garage-sub000/internal/store"
	"github.com/musacelikk/bbsm-garage-sub000/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const quoteColumns = `id, garage_id, customer_name, phone, vehicle_make, vehicle_model, plate, chassis_no, model_year, km, intake_date, complaint, work_items, created_by, created_at, updated_at`

func (s *Store) ListQuotes(ctx context.Context, garageID string) ([]domain.Quote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+quoteColumns+`
		FROM quotes
		WHERE ($1 = '' OR garage_id = $1)
		ORDER BY created_at DESC, id
	`, garageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quotes := make([]domain.Quote, 0, 64)
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return quotes, nil
}

func (s *Store) GetQuoteByID(ctx context.Context, id string) (*domain.Quote, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+quoteColumns+`
		FROM quotes
		WHERE id = $1
	`, id)

	quote, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &quote, nil
}

func (s *Store) GetQuotesByIDs(ctx context.Context, ids []string) ([]domain.Quote, error) {
	quotes := make([]domain.Quote, 0, len(ids))
	for _, id := range ids {
		quote, err := s.GetQuoteByID(ctx, id)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, *quote)
	}
	return quotes, nil
}

func (s *Store) CreateQuote(ctx context.Context, quote domain.Quote) (*domain.Quote, error) {
	if quote.ID == "" {
		quote.ID = xid.New("quote")
	}
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = time.Now().UTC()
	}
	quote.UpdatedAt = quote.CreatedAt

	itemsJSON, err := json.Marshal(quote.WorkItems)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quotes (`+quoteColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, quote.ID, quote.GarageID, quote.CustomerName, quote.Phone, quote.VehicleMake, quote.VehicleModel,
		quote.Plate, quote.ChassisNo, quote.ModelYear, quote.KM, quote.IntakeDate, quote.Complaint,
		itemsJSON, quote.CreatedBy, quote.CreatedAt, quote.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := quote
	return &created, nil
}

func (s *Store) UpdateQuote(ctx context.Context, quote domain.Quote) (*domain.Quote, error) {
	itemsJSON, err := json.Marshal(quote.WorkItems)
	if err != nil {
		return nil, err
	}

	quote.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE quotes
		SET customer_name = $2, phone = $3, vehicle_make = $4, vehicle_model = $5, plate = $6,
		    chassis_no = $7, model_year = $8, km = $9, intake_date = $10, complaint = $11,
		    work_items = $12, updated_at = $13
		WHERE id = $1
	`, quote.ID, quote.CustomerName, quote.Phone, quote.VehicleMake, quote.VehicleModel, quote.Plate,
		quote.ChassisNo, quote.ModelYear, quote.KM, quote.IntakeDate, quote.Complaint, itemsJSON, quote.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetQuoteByID(ctx, quote.ID)
}

func (s *Store) DeleteQuote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const cardColumns = `id, garage_id, customer_name, phone, vehicle_make, vehicle_model, plate, chassis_no, model_year, km, intake_date, complaint, work_items, payment_received, periodic_maintenance, created_by, created_at, updated_at`

func (s *Store) ListCards(ctx context.Context, garageID string) ([]domain.Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE ($1 = '' OR garage_id = $1)
		ORDER BY created_at DESC, id
	`, garageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := make([]domain.Card, 0, 64)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

func (s *Store) GetCardByID(ctx context.Context, id string) (*domain.Card, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE id = $1
	`, id)

	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (s *Store) CreateCard(ctx context.Context, card domain.Card) (*domain.Card, error) {
	if card.ID == "" {
		card.ID = xid.New("card")
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}
	card.UpdatedAt = card.CreatedAt

	itemsJSON, err := json.Marshal(card.WorkItems)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`, card.ID, card.GarageID, card.CustomerName, card.Phone, card.VehicleMake, card.VehicleModel,
		card.Plate, card.ChassisNo, card.ModelYear, card.KM, card.IntakeDate, card.Complaint,
		itemsJSON, card.PaymentReceived, card.PeriodicMaintenance, card.CreatedBy, card.CreatedAt, card.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := card
	return &created, nil
}

func (s *Store) UpdateCard(ctx context.Context, card domain.Card) (*domain.Card, error) {
	itemsJSON, err := json.Marshal(card.WorkItems)
	if err != nil {
		return nil, err
	}

	card.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET customer_name = $2, phone = $3, vehicle_make = $4, vehicle_model = $5, plate = $6,
		    chassis_no = $7, model_year = $8, km = $9, intake_date = $10, complaint = $11,
		    work_items = $12, payment_received = $13, periodic_maintenance = $14, updated_at = $15
		WHERE id = $1
	`, card.ID, card.CustomerName, card.Phone, card.VehicleMake, card.VehicleModel, card.Plate,
		card.ChassisNo, card.ModelYear, card.KM, card.IntakeDate, card.Complaint, itemsJSON,
		card.PaymentReceived, card.PeriodicMaintenance, card.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetCardByID(ctx, card.ID)
}

func (s *Store) DeleteCard(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListStock(ctx context.Context, garageID string) ([]domain.StockEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, garage_id, name, quantity, minimum_threshold, created_at, updated_at
		FROM stock_entries
		WHERE ($1 = '' OR garage_id = $1)
		ORDER BY name
	`, garageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.StockEntry, 0, 64)
	for rows.Next() {
		var entry domain.StockEntry
		if err := rows.Scan(&entry.ID, &entry.GarageID, &entry.Name, &entry.Quantity, &entry.MinimumThreshold, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (s *Store) GetStockByID(ctx context.Context, id int64) (*domain.StockEntry, error) {
	var entry domain.StockEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT id, garage_id, name, quantity, minimum_threshold, created_at, updated_at
		FROM stock_entries
		WHERE id = $1
	`, id).Scan(&entry.ID, &entry.GarageID, &entry.Name, &entry.Quantity, &entry.MinimumThreshold, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (s *Store) CreateStock(ctx context.Context, entry domain.StockEntry) (*domain.StockEntry, error) {
	if strings.TrimSpace(entry.Name) == "" || entry.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	if entry.MinimumThreshold < 1 {
		entry.MinimumThreshold = domain.DefaultMinimumThreshold
	}

	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO stock_entries (garage_id, name, quantity, minimum_threshold, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, entry.GarageID, entry.Name, entry.Quantity, entry.MinimumThreshold, entry.CreatedAt, entry.UpdatedAt).Scan(&entry.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := entry
	return &created, nil
}

func (s *Store) UpdateStock(ctx context.Context, entry domain.StockEntry) (*domain.StockEntry, error) {
	if strings.TrimSpace(entry.Name) == "" || entry.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE stock_entries
		SET name = $2, quantity = $3, minimum_threshold = $4, updated_at = now()
		WHERE id = $1
	`, entry.ID, entry.Name, entry.Quantity, entry.MinimumThreshold)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetStockByID(ctx, entry.ID)
}

func (s *Store) DeleteStock(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stock_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AdjustStock changes a quantity by delta inside a serializable transaction
// so concurrent adjustments never drive the quantity below zero.
func (s *Store) AdjustStock(ctx context.Context, id int64, delta int) (*domain.StockEntry, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var entry domain.StockEntry
	err = tx.QueryRowContext(ctx, `
		SELECT id, garage_id, name, quantity, minimum_threshold, created_at, updated_at
		FROM stock_entries
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&entry.ID, &entry.GarageID, &entry.Name, &entry.Quantity, &entry.MinimumThreshold, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if entry.Quantity+delta < 0 {
		return nil, store.ErrConflict
	}
	entry.Quantity += delta
	entry.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		UPDATE stock_entries
		SET quantity = $2, updated_at = $3
		WHERE id = $1
	`, entry.ID, entry.Quantity, entry.UpdatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	adjusted := entry
	return &adjusted, nil
}

func (s *Store) GetRevenueReport(ctx context.Context, garageID string, from time.Time, to time.Time) (domain.RevenueReport, error) {
	report := domain.RevenueReport{
		GarageID: garageID,
		From:     from.Format("2006-01-02"),
		To:       to.Format("2006-01-02"),
		ByDay:    make([]domain.RevenueReportDay, 0, 8),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, work_items, created_at
		FROM cards
		WHERE garage_id = $1 AND payment_received = true AND created_at >= $2 AND created_at < $3
		ORDER BY created_at
	`, garageID, from, to)
	if err != nil {
		return report, err
	}
	defer rows.Close()

	byDay := make(map[string]*domain.RevenueReportDay)
	for rows.Next() {
		var (
			id        string
			itemsRaw  []byte
			createdAt time.Time
		)
		if err := rows.Scan(&id, &itemsRaw, &createdAt); err != nil {
			return report, err
		}
		var items []domain.WorkItem
		if len(itemsRaw) > 0 {
			if err := json.Unmarshal(itemsRaw, &items); err != nil {
				return report, err
			}
		}

		var total int64
		for _, item := range items {
			total += item.Total()
		}

		report.Cards++
		report.GrossCents += total

		day := createdAt.UTC().Format("2006-01-02")
		bucket, ok := byDay[day]
		if !ok {
			bucket = &domain.RevenueReportDay{Date: day}
			byDay[day] = bucket
		}
		bucket.Cards++
		bucket.TotalCents += total
	}
	if err := rows.Err(); err != nil {
		return report, err
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		report.ByDay = append(report.ByDay, *byDay[day])
	}

	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, garage_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.GarageID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, nullIfEmpty(entry.EntityID), entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, garageID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, garage_id, actor_username, actor_role, action, entity_type, COALESCE(entity_id, ''), detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR garage_id = $1) AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, garageID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.GarageID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

func (s *Store) GetNotificationSettings(ctx context.Context, username string) (*domain.NotificationSettings, error) {
	var settings domain.NotificationSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT username, low_stock_alerts, daily_summary, updated_at
		FROM notification_settings
		WHERE username = $1
	`, username).Scan(&settings.Username, &settings.LowStockAlerts, &settings.DailySummary, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &settings, nil
}

func (s *Store) SaveNotificationSettings(ctx context.Context, settings domain.NotificationSettings) (*domain.NotificationSettings, error) {
	if strings.TrimSpace(settings.Username) == "" {
		return nil, store.ErrInvalidInput
	}
	settings.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_settings (username, low_stock_alerts, daily_summary, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (username) DO UPDATE
		SET low_stock_alerts = EXCLUDED.low_stock_alerts, daily_summary = EXCLUDED.daily_summary, updated_at = EXCLUDED.updated_at
	`, settings.Username, settings.LowStockAlerts, settings.DailySummary, settings.UpdatedAt)
	if err != nil {
		return nil, err
	}

	saved := settings
	return &saved, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (domain.Quote, error) {
	var (
		quote    domain.Quote
		itemsRaw []byte
	)
	err := row.Scan(&quote.ID, &quote.GarageID, &quote.CustomerName, &quote.Phone, &quote.VehicleMake,
		&quote.VehicleModel, &quote.Plate, &quote.ChassisNo, &quote.ModelYear, &quote.KM,
		&quote.IntakeDate, &quote.Complaint, &itemsRaw, &quote.CreatedBy, &quote.CreatedAt, &quote.UpdatedAt)
	if err != nil {
		return quote, err
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &quote.WorkItems); err != nil {
			return quote, err
		}
	}
	return quote, nil
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		card     domain.Card
		itemsRaw []byte
	)
	err := row.Scan(&card.ID, &card.GarageID, &card.CustomerName, &card.Phone, &card.VehicleMake,
		&card.VehicleModel, &card.Plate, &card.ChassisNo, &card.ModelYear, &card.KM,
		&card.IntakeDate, &card.Complaint, &itemsRaw, &card.PaymentReceived, &card.PeriodicMaintenance,
		&card.CreatedBy, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return card, err
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &card.WorkItems); err != nil {
			return card, err
		}
	}
	return card, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

