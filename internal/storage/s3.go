package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultPresignExpiry = 15 * time.Minute

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	PresignExpiry   time.Duration
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type deleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store uploads archives with the multipart manager and hands out
// presigned GET URLs for download.
type S3Store struct {
	uploader  uploader
	presigner presigner
	deleter   deleter
	cfg       S3Config
	logger    *slog.Logger
}

// NewS3Store builds a client from static credentials when both keys are
// set, otherwise from the default credential chain.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
		if logger != nil {
			logger.Info("S3 store using static credentials", "region", cfg.Region, "bucket", cfg.Bucket)
		}
	} else if logger != nil {
		logger.Warn("S3 store using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	up := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 8 * 1024 * 1024
	})
	return newS3Store(up, s3.NewPresignClient(client), client, cfg, logger), nil
}

func newS3Store(up uploader, ps presigner, del deleter, cfg S3Config, logger *slog.Logger) *S3Store {
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = defaultPresignExpiry
	}
	return &S3Store{uploader: up, presigner: ps, deleter: del, cfg: cfg, logger: logger}
}

func (s *S3Store) Kind() string { return "s3" }

func (s *S3Store) objectKey(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	if s.cfg.Prefix == "" {
		return key, nil
	}
	return path.Join(s.cfg.Prefix, key), nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, data []byte) error {
	objKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	size := int64(len(data))
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(objKey),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: &size,
		ContentDisposition: aws.String(
			fmt.Sprintf(`attachment; filename="%s"`, path.Base(key)),
		),
	})
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("uploaded archive", "bucket", s.cfg.Bucket, "key", objKey, "bytes", size)
	}
	return nil
}

func (s *S3Store) Locate(ctx context.Context, key string) (Location, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return Location{}, err
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(objKey),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.cfg.PresignExpiry
	})
	if err != nil {
		return Location{}, fmt.Errorf("presign get: %w", err)
	}
	return Location{URL: req.URL}, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	objKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
