package observability

import (
	"context"
	"time"

	"invoiceflow-backend/domain/invoice"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// Metrics records workflow outcomes in CloudWatch. Metric failures are
// logged and swallowed; monitoring must never fail the workflow.
type Metrics struct {
	namespace string
	client    *cloudwatch.Client
	logger    *zap.Logger
}

// NewMetrics creates a new metrics instance.
func NewMetrics(namespace string, client *cloudwatch.Client, logger *zap.Logger) *Metrics {
	return &Metrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

// RecordTransition counts one status transition of the import workflow.
func (m *Metrics) RecordTransition(ctx context.Context, status invoice.TransactionStatus) {
	if m == nil || m.client == nil {
		return
	}

	m.put(ctx, types.MetricDatum{
		MetricName: aws.String("TransactionTransition"),
		Dimensions: []types.Dimension{
			{
				Name:  aws.String("Status"),
				Value: aws.String(status.String()),
			},
		},
		Value:     aws.Float64(1),
		Unit:      types.StandardUnitCount,
		Timestamp: aws.Time(time.Now()),
	})
}

// RecordStepLatency records how long one workflow step took.
func (m *Metrics) RecordStepLatency(ctx context.Context, step string, latency time.Duration) {
	if m == nil || m.client == nil {
		return
	}

	m.put(ctx, types.MetricDatum{
		MetricName: aws.String("WorkflowStepLatency"),
		Dimensions: []types.Dimension{
			{
				Name:  aws.String("Step"),
				Value: aws.String(step),
			},
		},
		Value:     aws.Float64(float64(latency.Milliseconds())),
		Unit:      types.StandardUnitMilliseconds,
		Timestamp: aws.Time(time.Now()),
	})
}

// RecordPartialFailure counts a side effect that failed while its siblings
// succeeded. These indicate possible downstream inconsistency.
func (m *Metrics) RecordPartialFailure(ctx context.Context, effect string) {
	if m == nil || m.client == nil {
		return
	}

	m.put(ctx, types.MetricDatum{
		MetricName: aws.String("PartialEffectFailure"),
		Dimensions: []types.Dimension{
			{
				Name:  aws.String("Effect"),
				Value: aws.String(effect),
			},
		},
		Value:     aws.Float64(1),
		Unit:      types.StandardUnitCount,
		Timestamp: aws.Time(time.Now()),
	})
}

func (m *Metrics) put(ctx context.Context, data ...types.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Warn("Failed to send metrics", zap.Error(err))
	}
}
