package invoice

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// MinInvoiceNumberLength is the validity rule applied to uploaded documents.
const MinInvoiceNumberLength = 6

var validate = validator.New()

// Document is the payload a client uploads to the staging store.
type Document struct {
	InvoiceNumber string  `json:"invoiceNumber" validate:"required,min=6"`
	CustomerName  string  `json:"customerName" validate:"required"`
	TotalValue    float64 `json:"totalValue" validate:"gte=0"`
	ProductID     string  `json:"productId" validate:"required"`
	Quantity      int     `json:"quantity" validate:"gte=0"`
}

// Validate checks the document against the import rules. The invoice number
// rule is the one the workflow surfaces as NON_VALID_INVOICE_NUMBER; the
// remaining tags catch malformed documents before they reach the store.
func (d *Document) Validate() error {
	return validate.Struct(d)
}

// Record is a finalized invoice line item, created exactly once when a
// transaction reaches PROCESSED. Never mutated afterwards.
type Record struct {
	CustomerName  string
	InvoiceNumber string
	TotalValue    float64
	ProductID     string
	Quantity      int
	TransactionID string
	CreatedAt     time.Time
}

// NewRecord builds the invoice record for a validated document.
func NewRecord(doc *Document, transactionID string, now time.Time) *Record {
	return &Record{
		CustomerName:  doc.CustomerName,
		InvoiceNumber: doc.InvoiceNumber,
		TotalValue:    doc.TotalValue,
		ProductID:     doc.ProductID,
		Quantity:      doc.Quantity,
		TransactionID: transactionID,
		CreatedAt:     now,
	}
}
