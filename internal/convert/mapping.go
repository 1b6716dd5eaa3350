package convert

import (
	"strings"

	"github.com/musacelikk/bbsm-garage-sub000/internal/domain"
)

// requiredStringFields is the defaulting policy for the quote→card
// mapping: each required text field and how it is read from the quote and
// written into the card. Blank values become domain.Unspecified. Kept as
// one table so the policy can be audited and tested in isolation.
var requiredStringFields = []struct {
	name string
	get  func(domain.Quote) string
	set  func(*domain.Card, string)
}{
	{"customer_name", func(q domain.Quote) string { return q.CustomerName }, func(c *domain.Card, v string) { c.CustomerName = v }},
	{"vehicle_make", func(q domain.Quote) string { return q.VehicleMake }, func(c *domain.Card, v string) { c.VehicleMake = v }},
	{"vehicle_model", func(q domain.Quote) string { return q.VehicleModel }, func(c *domain.Card, v string) { c.VehicleModel = v }},
	{"plate", func(q domain.Quote) string { return q.Plate }, func(c *domain.Card, v string) { c.Plate = v }},
	{"chassis_no", func(q domain.Quote) string { return q.ChassisNo }, func(c *domain.Card, v string) { c.ChassisNo = v }},
	{"intake_date", func(q domain.Quote) string { return q.IntakeDate }, func(c *domain.Card, v string) { c.IntakeDate = v }},
}

// CardFromQuote maps a quote into the card payload submitted to the card
// store. Required text fields default to the Unspecified placeholder,
// numeric fields default to zero, and work items are carried over
// unchanged including their stock linkage. Payment and maintenance flags
// start false on a freshly converted card.
func CardFromQuote(quote domain.Quote) domain.Card {
	card := domain.Card{
		GarageID:  quote.GarageID,
		Phone:     quote.Phone,
		ModelYear: quote.ModelYear,
		KM:        quote.KM,
		Complaint: quote.Complaint,
		WorkItems: cloneWorkItems(quote.WorkItems),
		CreatedBy: quote.CreatedBy,
	}
	for _, field := range requiredStringFields {
		value := strings.TrimSpace(field.get(quote))
		if value == "" {
			value = domain.Unspecified
		}
		field.set(&card, value)
	}
	return card
}

func cloneWorkItems(items []domain.WorkItem) []domain.WorkItem {
	cloned := make([]domain.WorkItem, len(items))
	copy(cloned, items)
	return cloned
}
