// Package export uploads table dumps to S3-compatible object storage.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wallet-portfolio/internal/config"
	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/logging"
	"github.com/wallet-portfolio/internal/models"
)

// ObjectPutter is the part of the S3 client the exporter needs
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter writes table dumps as JSON objects under
// <prefix>/<table>/<timestamp>.json
type S3Exporter struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Exporter builds an S3 client from cfg. A custom endpoint switches to
// path-style addressing for MinIO and R2.
func NewS3Exporter(ctx context.Context, cfg *config.ExportConfig) (*S3Exporter, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("export bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3ExporterWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3ExporterWithClient wraps an existing client
func NewS3ExporterWithClient(client ObjectPutter, bucket, prefix string) *S3Exporter {
	return &S3Exporter{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// Export uploads dump and returns the object key
func (e *S3Exporter) Export(ctx context.Context, dump *models.TableDump) (string, error) {
	if dump == nil || dump.Table == "" {
		return "", apperrors.NewInvalidParameterError("table", "dump has no table name")
	}

	body, err := json.Marshal(dump)
	if err != nil {
		return "", apperrors.NewInternalError("failed to encode table dump", err)
	}

	key := path.Join(e.prefix, dump.Table, e.now().UTC().Format("20060102T150405Z")+".json")
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", apperrors.NewUnavailableError("s3", err)
	}

	logging.FromContext(ctx).WithComponent("export").WithFields(map[string]interface{}{
		"bucket": e.bucket,
		"key":    key,
		"rows":   len(dump.Rows),
	}).Info("Table dump exported")
	return key, nil
}
