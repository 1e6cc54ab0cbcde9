package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"invoiceflow-backend/application/ports"
	"invoiceflow-backend/domain/invoice"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// AuditPublisher implements ports.AuditPublisher using AWS EventBridge.
// Failure events go to the audit bus; the consumer is an external subsystem.
type AuditPublisher struct {
	client       *eventbridge.Client
	eventBusName string
	logger       *zap.Logger
}

// NewAuditPublisher creates a new EventBridge audit publisher.
func NewAuditPublisher(client *eventbridge.Client, eventBusName string, logger *zap.Logger) ports.AuditPublisher {
	return &AuditPublisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
}

// PublishFailure sends one failure event to the audit bus.
func (p *AuditPublisher) PublishFailure(ctx context.Context, detail invoice.AuditDetail) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal audit detail: %w", err)
	}

	entry := types.PutEventsRequestEntry{
		EventBusName: aws.String(p.eventBusName),
		Source:       aws.String(invoice.AuditSource),
		DetailType:   aws.String(invoice.AuditDetailType),
		Detail:       aws.String(string(payload)),
		Time:         aws.Time(time.Now()),
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{entry},
	})
	if err != nil {
		p.logger.Error("Failed to publish audit event",
			zap.Error(err),
			zap.String("errorDetail", detail.ErrorDetail),
		)
		return fmt.Errorf("failed to publish audit event: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for _, e := range result.Entries {
			if e.ErrorCode != nil {
				p.logger.Error("Audit event entry rejected",
					zap.String("errorCode", aws.ToString(e.ErrorCode)),
					zap.String("errorMessage", aws.ToString(e.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("audit bus rejected %d entries", result.FailedEntryCount)
	}

	p.logger.Debug("Audit event published",
		zap.String("errorDetail", detail.ErrorDetail),
	)
	return nil
}
