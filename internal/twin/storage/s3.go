package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/autopeer-io/cartwin/internal/twin/core"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/pkg/log"
	"github.com/autopeer-io/cartwin/pkg/options"
)

// objectStore is the subset of *minio.Client the archive writer needs.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3 archives each record as a JSON object under
// <prefix>/<vehicle>/<timestamp>.json.
type S3 struct {
	client objectStore
	bucket string
	region string
	prefix string
}

var _ core.TelemetryWriter = (*S3)(nil)

// NewS3 creates a writer against any S3 compatible endpoint.
func NewS3(opts *options.S3Options) (*S3, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return newS3(client, opts), nil
}

func newS3(client objectStore, opts *options.S3Options) *S3 {
	return &S3{
		client: client,
		bucket: opts.BucketName,
		region: opts.Region,
		prefix: opts.Prefix,
	}
}

// CheckBucket creates the bucket if it does not exist yet.
func (s *S3) CheckBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	log.Info("Bucket does not exist, creating...", "bucket", s.bucket)
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

type archivedRecord struct {
	VehicleID  string       `json:"vehicle_id"`
	DeviceID   string       `json:"device_id,omitempty"`
	Data       model.Fields `json:"data"`
	RecordedAt string       `json:"recorded_at"`
}

func (s *S3) InsertTelemetry(ctx context.Context, rec *model.TelemetryRecord) error {
	at := rec.RecordedAt.UTC()
	body, err := json.Marshal(archivedRecord{
		VehicleID:  rec.VehicleID,
		DeviceID:   rec.DeviceID,
		Data:       rec.Fields,
		RecordedAt: at.Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("encode telemetry record: %w", err)
	}

	key := s.objectKey(rec)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3) objectKey(rec *model.TelemetryRecord) string {
	name := rec.RecordedAt.UTC().Format("20060102T150405.000Z") + ".json"
	return path.Join(s.prefix, rec.VehicleID, name)
}
