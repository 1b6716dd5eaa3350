package domain

import "time"

// WorkItem is one line of work or parts within a quote or card.
// LineTotalCents is derived from UnitCount and UnitPriceCents and is
// recomputed on read; incoming values are never trusted.
type WorkItem struct {
	PartName       string `json:"part_name"`
	UnitCount      int    `json:"unit_count"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
	IsFromStock    bool   `json:"is_from_stock"`
	StockID        int64  `json:"stock_id,omitempty"`
}

// Total returns the derived line total.
func (w WorkItem) Total() int64 {
	return int64(w.UnitCount) * w.UnitPriceCents
}

type Quote struct {
	ID           string     `json:"id"`
	GarageID     string     `json:"garage_id"`
	CustomerName string     `json:"customer_name"`
	Phone        string     `json:"phone"`
	VehicleMake  string     `json:"vehicle_make"`
	VehicleModel string     `json:"vehicle_model"`
	Plate        string     `json:"plate"`
	ChassisNo    string     `json:"chassis_no"`
	ModelYear    int        `json:"model_year"`
	KM           int        `json:"km"`
	IntakeDate   string     `json:"intake_date"`
	Complaint    string     `json:"complaint"`
	WorkItems    []WorkItem `json:"work_items"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Card struct {
	ID                  string     `json:"id"`
	GarageID            string     `json:"garage_id"`
	CustomerName        string     `json:"customer_name"`
	Phone               string     `json:"phone"`
	VehicleMake         string     `json:"vehicle_make"`
	VehicleModel        string     `json:"vehicle_model"`
	Plate               string     `json:"plate"`
	ChassisNo           string     `json:"chassis_no"`
	ModelYear           int        `json:"model_year"`
	KM                  int        `json:"km"`
	IntakeDate          string     `json:"intake_date"`
	Complaint           string     `json:"complaint"`
	WorkItems           []WorkItem `json:"work_items"`
	PaymentReceived     bool       `json:"payment_received"`
	PeriodicMaintenance bool       `json:"periodic_maintenance"`
	CreatedBy           string     `json:"created_by"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// TotalCents sums the derived line totals of all work items.
func (c Card) TotalCents() int64 {
	var total int64
	for _, item := range c.WorkItems {
		total += item.Total()
	}
	return total
}

type StockEntry struct {
	ID               int64     `json:"id"`
	GarageID         string    `json:"garage_id"`
	Name             string    `json:"name"`
	Quantity         int       `json:"quantity"`
	MinimumThreshold int       `json:"minimum_threshold"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type QuoteCreateRequest struct {
	GarageID     string     `json:"garage_id"`
	CustomerName string     `json:"customer_name"`
	Phone        string     `json:"phone"`
	VehicleMake  string     `json:"vehicle_make"`
	VehicleModel string     `json:"vehicle_model"`
	Plate        string     `json:"plate"`
	ChassisNo    string     `json:"chassis_no"`
	ModelYear    int        `json:"model_year"`
	KM           int        `json:"km"`
	IntakeDate   string     `json:"intake_date"`
	Complaint    string     `json:"complaint"`
	WorkItems    []WorkItem `json:"work_items"`
}

type CardCreateRequest struct {
	GarageID            string     `json:"garage_id"`
	CustomerName        string     `json:"customer_name"`
	Phone               string     `json:"phone"`
	VehicleMake         string     `json:"vehicle_make"`
	VehicleModel        string     `json:"vehicle_model"`
	Plate               string     `json:"plate"`
	ChassisNo           string     `json:"chassis_no"`
	ModelYear           int        `json:"model_year"`
	KM                  int        `json:"km"`
	IntakeDate          string     `json:"intake_date"`
	Complaint           string     `json:"complaint"`
	WorkItems           []WorkItem `json:"work_items"`
	PaymentReceived     bool       `json:"payment_received"`
	PeriodicMaintenance bool       `json:"periodic_maintenance"`
}

type StockCreateRequest struct {
	GarageID         string `json:"garage_id"`
	Name             string `json:"name"`
	Quantity         int    `json:"quantity"`
	MinimumThreshold int    `json:"minimum_threshold"`
}

type StockUpdateRequest struct {
	Name             *string `json:"name,omitempty"`
	Quantity         *int    `json:"quantity,omitempty"`
	MinimumThreshold *int    `json:"minimum_threshold,omitempty"`
}

// ConvertRequest selects the batch of quotes for one conversion attempt.
type ConvertRequest struct {
	GarageID string   `json:"garage_id"`
	QuoteIDs []string `json:"quote_ids"`
}

// StockViolation describes one work item that cannot be satisfied by the
// available stock quantity.
type StockViolation struct {
	QuoteID   string `json:"quote_id"`
	LineIndex int    `json:"line_index"`
	PartName  string `json:"part_name"`
	StockID   int64  `json:"stock_id"`
	Available int    `json:"available_quantity"`
	Requested int    `json:"requested_quantity"`
}

type ConvertFailure struct {
	QuoteID string `json:"quote_id"`
	Class   string `json:"class"`
	Message string `json:"message"`
}

// ConvertResponse is the outcome of one conversion attempt. When the batch
// is rejected up front, Violations is non-empty and nothing was mutated.
// Otherwise Succeeded/Failed report the per-quote outcomes; partial success
// is a normal result, not an error.
type ConvertResponse struct {
	Violations []StockViolation `json:"violations,omitempty"`
	Succeeded  []string         `json:"succeeded"`
	Failed     []ConvertFailure `json:"failed"`
}

type LowStockAlert struct {
	StockID          int64  `json:"stock_id"`
	Name             string `json:"name"`
	Quantity         int    `json:"quantity"`
	MinimumThreshold int    `json:"minimum_threshold"`
}

type LowStockAlertResponse struct {
	GarageID string          `json:"garage_id"`
	Alerts   []LowStockAlert `json:"alerts"`
}

type RevenueReportDay struct {
	Date       string `json:"date"`
	Cards      int64  `json:"cards"`
	TotalCents int64  `json:"total_cents"`
}

type RevenueReport struct {
	GarageID    string             `json:"garage_id"`
	From        string             `json:"from"`
	To          string             `json:"to"`
	Cards       int64              `json:"cards"`
	GrossCents  int64              `json:"gross_cents"`
	ByDay       []RevenueReportDay `json:"by_day"`
	GeneratedAt string             `json:"generated_at"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	GarageID      string    `json:"garage_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type NotificationSettings struct {
	Username       string    `json:"username"`
	LowStockAlerts bool      `json:"low_stock_alerts"`
	DailySummary   bool      `json:"daily_summary"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type NotificationSettingsUpdateRequest struct {
	LowStockAlerts *bool `json:"low_stock_alerts,omitempty"`
	DailySummary   *bool `json:"daily_summary,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type MechanicCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type MechanicUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

// Unspecified is the placeholder written into required card fields that
// were left blank on the source quote ("Tanımsız" is the domain convention
// for "unspecified").
const Unspecified = "Tanımsız"

const (
	ConvertFailureCreation = "creation_failed"
	ConvertFailureDeletion = "created_but_not_removed"
)

const (
	ActionQuoteCreate   = "quote_create"
	ActionQuoteUpdate   = "quote_update"
	ActionQuoteDelete   = "quote_delete"
	ActionQuoteConvert  = "quote_convert"
	ActionCardCreate    = "card_create"
	ActionCardUpdate    = "card_update"
	ActionCardDelete    = "card_delete"
	ActionStockCreate   = "stock_create"
	ActionStockUpdate   = "stock_update"
	ActionStockDelete   = "stock_delete"
	ActionStockAdjust   = "stock_adjust"
	ActionSettingsSaved = "notification_settings_update"
)

const DefaultMinimumThreshold = 5
