package billing

// Kind describes where one document type lives and which rules govern it.
// Quotes and invoices share the lifecycle engine and differ only here.
type Kind struct {
	Name      string
	docTable  string
	itemTable string
	seqColumn string
	dateField string
	policy    Policy
}

var (
	QuoteKind = Kind{
		Name:      "quote",
		docTable:  "quotes",
		itemTable: "quote_items",
		seqColumn: "quote_number_seq",
		dateField: "expiry_date",
		policy:    QuotePolicy,
	}
	InvoiceKind = Kind{
		Name:      "invoice",
		docTable:  "invoices",
		itemTable: "invoice_items",
		seqColumn: "invoice_number_seq",
		dateField: "due_date",
		policy:    InvoicePolicy,
	}
)

func (k Kind) Policy() Policy { return k.policy }

func (k Kind) ItemTable() string { return k.itemTable }

// KindByName maps "quote"/"quotes" and "invoice"/"invoices" to a Kind.
func KindByName(name string) (Kind, bool) {
	switch name {
	case "quote", "quotes":
		return QuoteKind, true
	case "invoice", "invoices":
		return InvoiceKind, true
	}
	return Kind{}, false
}
