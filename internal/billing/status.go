package billing

import (
	"sort"

	"go-billing-core/internal/models"
)

// Transition is one row of a policy table.
type Transition struct {
	To                  string
	RequiresItems       bool
	RequiresNumber      bool
	RequiresPaymentDate bool
}

// Policy is a fail-closed status table: anything not listed is rejected.
type Policy struct {
	kind  string
	rules map[string][]Transition
}

func newPolicy(kind string, rules map[string][]Transition) Policy {
	return Policy{kind: kind, rules: rules}
}

var QuotePolicy = newPolicy("quote", map[string][]Transition{
	models.QuoteDraft: {
		{To: models.QuoteSent, RequiresItems: true, RequiresNumber: true},
	},
	models.QuoteSent: {
		{To: models.QuoteAccepted},
		{To: models.QuoteDeclined},
	},
	models.QuoteAccepted: {
		{To: models.QuoteDeclined},
	},
	// re-send after rejection keeps the number minted on the first send
	models.QuoteDeclined: {
		{To: models.QuoteSent, RequiresItems: true},
	},
})

var InvoicePolicy = newPolicy("invoice", map[string][]Transition{
	models.InvoiceDraft: {
		{To: models.InvoiceSent, RequiresItems: true, RequiresNumber: true},
	},
	models.InvoiceSent: {
		{To: models.InvoicePaid},
		{To: models.InvoiceOverdue},
	},
	models.InvoiceOverdue: {
		{To: models.InvoicePaid, RequiresPaymentDate: true},
	},
})

// Lookup returns the rule for from→to.
func (p Policy) Lookup(from, to string) (Transition, bool) {
	for _, t := range p.rules[from] {
		if t.To == to {
			return t, true
		}
	}
	return Transition{}, false
}

func (p Policy) IsValid(from, to string) bool {
	_, ok := p.Lookup(from, to)
	return ok
}

func (p Policy) RequiresItems(from, to string) bool {
	t, ok := p.Lookup(from, to)
	return ok && t.RequiresItems
}

func (p Policy) RequiresNumberGeneration(from, to string) bool {
	t, ok := p.Lookup(from, to)
	return ok && t.RequiresNumber
}

func (p Policy) RequiresPaymentDate(from, to string) bool {
	t, ok := p.Lookup(from, to)
	return ok && t.RequiresPaymentDate
}

// Allowed lists the legal next states from, sorted.
func (p Policy) Allowed(from string) []string {
	out := make([]string, 0, len(p.rules[from]))
	for _, t := range p.rules[from] {
		out = append(out, t.To)
	}
	sort.Strings(out)
	return out
}

// Check returns the rule for from→to or a TransitionError naming the legal set.
func (p Policy) Check(from, to string) (Transition, error) {
	t, ok := p.Lookup(from, to)
	if !ok {
		return Transition{}, &TransitionError{Kind: p.kind, From: from, To: to, Allowed: p.Allowed(from)}
	}
	return t, nil
}

// Known reports whether status appears anywhere in the table.
func (p Policy) Known(status string) bool {
	if _, ok := p.rules[status]; ok {
		return true
	}
	for _, ts := range p.rules {
		for _, t := range ts {
			if t.To == status {
				return true
			}
		}
	}
	return false
}
