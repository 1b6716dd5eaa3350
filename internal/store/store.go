package store

import (
	"context"
	"errors"
	"time"

	"github.com/musacelikk/bbsm-garage-sub000/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

type Repository interface {
	ListQuotes(ctx context.Context, garageID string) ([]domain.Quote, error)
	GetQuoteByID(ctx context.Context, id string) (*domain.Quote, error)
	GetQuotesByIDs(ctx context.Context, ids []string) ([]domain.Quote, error)
	CreateQuote(ctx context.Context, quote domain.Quote) (*domain.Quote, error)
	UpdateQuote(ctx context.Context, quote domain.Quote) (*domain.Quote, error)
	DeleteQuote(ctx context.Context, id string) error

	ListCards(ctx context.Context, garageID string) ([]domain.Card, error)
	GetCardByID(ctx context.Context, id string) (*domain.Card, error)
	CreateCard(ctx context.Context, card domain.Card) (*domain.Card, error)
	UpdateCard(ctx context.Context, card domain.Card) (*domain.Card, error)
	DeleteCard(ctx context.Context, id string) error

	ListStock(ctx context.Context, garageID string) ([]domain.StockEntry, error)
	GetStockByID(ctx context.Context, id int64) (*domain.StockEntry, error)
	CreateStock(ctx context.Context, entry domain.StockEntry) (*domain.StockEntry, error)
	UpdateStock(ctx context.Context, entry domain.StockEntry) (*domain.StockEntry, error)
	DeleteStock(ctx context.Context, id int64) error
	// AdjustStock changes quantity by delta (+1/-1 from the ledger's
	// increment/decrement operations). A decrement below zero fails with
	// ErrConflict and leaves the entry unchanged.
	AdjustStock(ctx context.Context, id int64, delta int) (*domain.StockEntry, error)

	GetRevenueReport(ctx context.Context, garageID string, from time.Time, to time.Time) (domain.RevenueReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, garageID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	GetNotificationSettings(ctx context.Context, username string) (*domain.NotificationSettings, error)
	SaveNotificationSettings(ctx context.Context, settings domain.NotificationSettings) (*domain.NotificationSettings, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
