package convert

import (
	"context"
	"log"
	"time"

	"github.com/musacelikk/bbsm-garage-sub000/internal/domain"
	"github.com/musacelikk/bbsm-garage-sub000/internal/xid"
)

// CardCreator submits a card payload to the card store.
type CardCreator interface {
	CreateCard(ctx context.Context, card domain.Card) (*domain.Card, error)
}

// QuoteDeleter removes a quote from the quote store.
type QuoteDeleter interface {
	DeleteQuote(ctx context.Context, id string) error
}

// AuditAppender appends one action record. Failures are observed but never
// affect the conversion outcome.
type AuditAppender interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
}

// Orchestrator drives the quote→card migration for a validator-approved
// batch: for each quote, create the card, delete the quote, append an
// audit entry, and accumulate per-quote outcomes. Quotes are processed
// strictly in order, one full create-then-delete sequence at a time.
type Orchestrator struct {
	cards  CardCreator
	quotes QuoteDeleter
	audit  AuditAppender
}

func NewOrchestrator(cards CardCreator, quotes QuoteDeleter, audit AuditAppender) *Orchestrator {
	return &Orchestrator{cards: cards, quotes: quotes, audit: audit}
}

// Run converts each quote of the batch and reports the outcome. The batch
// is not atomic: a failure on one quote does not undo earlier quotes, and
// later quotes are still attempted. A card-creation failure leaves the
// quote untouched and retryable; a quote-deletion failure after the card
// was created leaves the record duplicated and is reported as its own
// failure class so the caller does not blindly retry it.
func (o *Orchestrator) Run(ctx context.Context, quotes []domain.Quote, actor domain.Actor) domain.ConvertResponse {
	result := domain.ConvertResponse{
		Succeeded: make([]string, 0, len(quotes)),
		Failed:    make([]domain.ConvertFailure, 0),
	}

	for _, quote := range quotes {
		card := CardFromQuote(quote)

		if _, err := o.cards.CreateCard(ctx, card); err != nil {
			result.Failed = append(result.Failed, domain.ConvertFailure{
				QuoteID: quote.ID,
				Class:   domain.ConvertFailureCreation,
				Message: err.Error(),
			})
			continue
		}

		if err := o.quotes.DeleteQuote(ctx, quote.ID); err != nil {
			result.Failed = append(result.Failed, domain.ConvertFailure{
				QuoteID: quote.ID,
				Class:   domain.ConvertFailureDeletion,
				Message: err.Error(),
			})
			continue
		}

		if err := o.audit.CreateAuditLog(ctx, domain.AuditLog{
			ID:            xid.New("audit"),
			GarageID:      quote.GarageID,
			ActorUsername: actor.Username,
			ActorRole:     actor.Role,
			Action:        domain.ActionQuoteConvert,
			EntityType:    "quote",
			EntityID:      quote.ID,
			Detail:        "converted to card",
			CreatedAt:     time.Now().UTC(),
		}); err != nil {
			log.Printf("[convert] WARN: failed to write audit log quote=%s: %v", quote.ID, err)
		}

		result.Succeeded = append(result.Succeeded, quote.ID)
	}

	return result
}
