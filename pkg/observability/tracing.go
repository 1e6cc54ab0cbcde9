package observability

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer provides distributed tracing for workflow steps via X-Ray.
type Tracer struct {
	serviceName string
}

// NewTracer creates a new tracer instance.
func NewTracer(serviceName string) *Tracer {
	return &Tracer{
		serviceName: serviceName,
	}
}

// StartSegment starts a new trace segment.
func (t *Tracer) StartSegment(ctx context.Context, name string) (context.Context, *xray.Segment) {
	return xray.BeginSegment(ctx, fmt.Sprintf("%s.%s", t.serviceName, name))
}

// CaptureStep wraps one workflow step in a subsegment, annotated with the
// transaction id so traces can be filtered per transaction.
func (t *Tracer) CaptureStep(ctx context.Context, step, transactionID string, fn func(context.Context) error) error {
	ctx, seg := xray.BeginSubsegment(ctx, step)
	defer seg.Close(nil)

	if transactionID != "" {
		seg.AddAnnotation("transactionId", transactionID)
	}

	err := fn(ctx)
	if err != nil {
		seg.AddError(err)
	}

	return err
}

// AddAnnotation adds an indexed annotation to the current segment.
func (t *Tracer) AddAnnotation(ctx context.Context, key string, value string) {
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddAnnotation(key, value)
	}
}

// RecordError records an error in the current segment.
func (t *Tracer) RecordError(ctx context.Context, err error) {
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddError(err)
	}
}
