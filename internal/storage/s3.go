package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/codebuildervaibhav/convertanything/internal/export"
)

// S3Config selects the bucket artifacts are copied to
type S3Config struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Bucket         string `mapstructure:"bucket" yaml:"bucket" validate:"required_if=Enabled true"`
	Prefix         string `mapstructure:"prefix" yaml:"prefix"`
	Region         string `mapstructure:"region" yaml:"region"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey      string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey      string `mapstructure:"secret_key" yaml:"-"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// S3Storage uploads artifacts to Amazon S3 or an S3-compatible service
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Storage creates an S3 sink. Credentials come from the config when
// both keys are set, otherwise from the default AWS chain.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Name identifies the sink
func (s *S3Storage) Name() string { return "s3" }

// Key returns the object key an artifact saved at t is stored under
func (s *S3Storage) Key(t time.Time, filename string) string {
	key := path.Join(t.Format("2006"), t.Format("01"), t.Format("02"), objectName(t, filename))
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	return key
}

// Save uploads the artifact and returns its s3:// URI. An object that
// already exists under the same key is left untouched.
func (s *S3Storage) Save(ctx context.Context, a *export.Artifact) (string, error) {
	key := s.Key(time.Now(), a.Filename)
	uri := fmt.Sprintf("s3://%s/%s", s.bucket, key)

	exists, err := s.exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("s3 head %s: %w", key, err)
	}
	if exists {
		return uri, nil
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(a.Data),
		ContentType:   aws.String(a.ContentType),
		ContentLength: aws.Int64(int64(len(a.Data))),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return uri, nil
}

func (s *S3Storage) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// isNotFoundError determines if an error from AWS indicates a "not found" condition
func isNotFoundError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return strings.Contains(err.Error(), "NotFound")
}
