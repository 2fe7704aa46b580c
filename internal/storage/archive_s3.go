package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/JonMunkholm/colsplit/internal/config"
	"github.com/JonMunkholm/colsplit/internal/logging"
)

const s3Scheme = "s3://"

// S3ArchiveStore uploads archives to an S3-compatible bucket.
// Locations have the form s3://bucket/key.
type S3ArchiveStore struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3ArchiveStore builds a client from cfg. Static credentials are used
// when both keys are set; otherwise the default AWS credential chain applies.
func NewS3ArchiveStore(ctx context.Context, cfg config.ArchiveConfig) (*S3ArchiveStore, error) {
	configFuncs := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		configFuncs = append(configFuncs, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configFuncs...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3ArchiveStore{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *S3ArchiveStore) objectKey(name string) string {
	name = filepath.Base(name)
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Publish uploads srcPath and removes the local file once stored.
func (s *S3ArchiveStore) Publish(ctx context.Context, name, srcPath string) (string, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	key := s.objectKey(name)
	logging.FromContext(ctx).Info("uploading archive", slog.String("bucket", s.bucket), slog.String("key", key))

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", s.bucket, key, err)
	}

	f.Close()
	os.Remove(srcPath)
	return s3Scheme + s.bucket + "/" + key, nil
}

// Open streams the object at location.
func (s *S3ArchiveStore) Open(ctx context.Context, location string) (io.ReadCloser, int64, error) {
	bucket, key, err := parseS3Location(location)
	if err != nil {
		return nil, 0, err
	}
	if bucket != s.bucket {
		return nil, 0, fmt.Errorf("archive %s is outside bucket %s", location, s.bucket)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", location, err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

func parseS3Location(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 location: %q", location)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed s3 location: %q", location)
	}
	return bucket, key, nil
}
