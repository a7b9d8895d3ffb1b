package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tilsley/treemirror/apps/mirror/internal/mirror"
	"github.com/tilsley/treemirror/pkg/api"
)

// Compile-time checks.
var (
	_ mirror.SnapshotSaver = (*S3Store)(nil)
	_ Reader               = (*S3Store)(nil)
)

// S3Config holds S3 connection settings. Endpoint may point at any
// S3-compatible service such as MinIO.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3Store writes each snapshot to <prefix>/snapshots/<id>.json and keeps a
// copy of the newest one at <prefix>/latest.json.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Client builds an S3 client from cfg using static credentials and
// path-style addressing.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true // Required for MinIO
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	}), nil
}

// NewS3Store creates an S3Store on an existing client.
func NewS3Store(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// Name implements mirror.SnapshotSaver.
func (s *S3Store) Name() string { return "s3" }

// EnsureBucket creates the bucket if it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if _, createErr := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); createErr != nil {
		return fmt.Errorf("bucket %s does not exist and cannot create: %w", s.bucket, createErr)
	}
	return nil
}

// Save uploads snap and replaces latest.json with it.
func (s *S3Store) Save(ctx context.Context, snap *api.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	for _, key := range []string{s.snapshotKey(snap.ID), s.latestKey()} {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return fmt.Errorf("put object %s: %w", key, err)
		}
	}
	return nil
}

// Get retrieves a snapshot by ID, returning nil if not found.
func (s *S3Store) Get(ctx context.Context, id string) (*api.Snapshot, error) {
	return s.read(ctx, s.snapshotKey(id))
}

// Latest returns the most recently saved snapshot, or nil if there is none.
func (s *S3Store) Latest(ctx context.Context) (*api.Snapshot, error) {
	return s.read(ctx, s.latestKey())
}

func (s *S3Store) read(ctx context.Context, key string) (*api.Snapshot, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }() //nolint:errcheck // non-actionable after reading

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	var snap api.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return &snap, nil
}

func (s *S3Store) snapshotKey(id string) string {
	return path.Join(s.prefix, "snapshots", id+".json")
}

func (s *S3Store) latestKey() string {
	return path.Join(s.prefix, "latest.json")
}
