package invoice

// StatusMessage is the async push sent to a channel session, both for
// progress updates and for terminal notification.
type StatusMessage struct {
	TransactionID string            `json:"transactionId"`
	Status        TransactionStatus `json:"status"`
}

// UploadAuthorization is the response to a getImportUrl request.
type UploadAuthorization struct {
	URL           string `json:"url"`
	Expires       int64  `json:"expires"`
	TransactionID string `json:"transactionId"`
}

// Audit event detail codes.
const (
	AuditSource            = "app.invoice"
	AuditDetailType        = "invoice"
	FailNoInvoiceNumber    = "FAIL_NO_INVOICE_NUMBER"
	FailTransactionTimeout = "TIMEOUT"
)

// AuditDetail is the payload of an audit event emitted on failure
// conditions. The audit consumer is external; only the shape is fixed here.
type AuditDetail struct {
	ErrorDetail string            `json:"errorDetail"`
	Info        map[string]string `json:"info"`
}
