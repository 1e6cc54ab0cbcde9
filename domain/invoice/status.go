package invoice

// TransactionStatus represents the lifecycle state of an import transaction.
// The value is pushed verbatim to the client over the WebSocket channel.
type TransactionStatus string

const (
	// StatusGenerated means an upload URL was issued and nothing else happened yet.
	StatusGenerated TransactionStatus = "GENERATED"

	// StatusReceived means the staged upload notification was observed.
	StatusReceived TransactionStatus = "RECEIVED"

	// StatusProcessed is the terminal success state.
	StatusProcessed TransactionStatus = "PROCESSED"

	// StatusNonValidInvoiceNumber is the terminal state for a rejected document.
	StatusNonValidInvoiceNumber TransactionStatus = "NON_VALID_INVOICE_NUMBER"

	// StatusCancelled is the terminal state for an explicit client cancellation.
	StatusCancelled TransactionStatus = "CANCELLED"

	// StatusNotFound is pushed when a referenced transaction does not exist.
	StatusNotFound TransactionStatus = "NOT_FOUND"

	// StatusTimeout is pushed when a transaction expired before completion.
	StatusTimeout TransactionStatus = "TIMEOUT"
)

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed from s.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusProcessed, StatusNonValidInvoiceNumber, StatusCancelled, StatusNotFound, StatusTimeout:
		return true
	}
	return false
}

// CanReceiveUpload reports whether an upload notification may advance the
// transaction. Only freshly generated transactions accept an upload; any
// other status means cancellation, expiry or a duplicate delivery won the race.
func (s TransactionStatus) CanReceiveUpload() bool {
	return s == StatusGenerated
}

// CanCancel reports whether an explicit cancellation is still permitted.
// Once the upload was observed the import is considered in flight.
func (s TransactionStatus) CanCancel() bool {
	return s == StatusGenerated
}
