package s3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"invoiceflow-backend/application/ports"
	"invoiceflow-backend/domain/invoice"
	apperrors "invoiceflow-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// StagingStore implements ports.StagingStore over an S3 bucket. Objects are
// keyed by transaction id and only live until validation finishes; a bucket
// lifecycle rule cleans up anything the workflow leaves behind.
type StagingStore struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	bucketName string
	logger     *zap.Logger
}

// NewStagingStore creates a new StagingStore.
func NewStagingStore(client *s3.Client, bucketName string, logger *zap.Logger) ports.StagingStore {
	return &StagingStore{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucketName: bucketName,
		logger:     logger,
	}
}

// PresignPut returns a time-bounded URL authorizing one PUT under key.
func (s *StagingStore) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		s.logger.Error("Failed to presign upload URL",
			zap.Error(err),
			zap.String("key", key),
		)
		return "", apperrors.NewExternalError("s3 presign", err)
	}

	return req.URL, nil
}

// Fetch reads and decodes a staged invoice document.
func (s *StagingStore) Fetch(ctx context.Context, bucket, key string) (*invoice.Document, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("staged object %s", key))
		}
		s.logger.Error("Failed to fetch staged object",
			zap.Error(err),
			zap.String("bucket", bucket),
			zap.String("key", key),
		)
		return nil, apperrors.NewExternalError("s3 get", err)
	}
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, apperrors.NewExternalError("s3 read", err)
	}

	var doc invoice.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperrors.NewValidationError("staged object is not a valid invoice document").WithCause(err)
	}

	return &doc, nil
}

// Remove deletes a staged object once the workflow is done with it.
func (s *StagingStore) Remove(ctx context.Context, bucket, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		s.logger.Error("Failed to delete staged object",
			zap.Error(err),
			zap.String("bucket", bucket),
			zap.String("key", key),
		)
		return apperrors.NewExternalError("s3 delete", err)
	}

	return nil
}
