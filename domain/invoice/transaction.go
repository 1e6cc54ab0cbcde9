package invoice

import (
	"time"
)

// TransactionTTL is how long a transaction record lives before DynamoDB
// purges it. The upload URL outlives the record on purpose: a client that
// uploads after expiry gets its real status pushed back instead of silence.
const TransactionTTL = 2 * time.Minute

// UploadURLExpiry bounds the lifetime of the presigned PUT URL.
const UploadURLExpiry = 5 * time.Minute

// Transaction tracks one invoice-upload attempt from URL issuance to a
// terminal status. The transaction id doubles as the staging object key,
// so the S3 notification alone is enough to locate the record.
type Transaction struct {
	ID           string
	Status       TransactionStatus
	ConnectionID string
	Endpoint     string
	RequestID    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// NewTransaction creates a transaction in the GENERATED state, owned by the
// given channel session. ConnectionID is fixed for the record's lifetime.
func NewTransaction(id, connectionID, endpoint, requestID string, now time.Time) *Transaction {
	return &Transaction{
		ID:           id,
		Status:       StatusGenerated,
		ConnectionID: connectionID,
		Endpoint:     endpoint,
		RequestID:    requestID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(TransactionTTL),
	}
}
