package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	sc "github.com/dmitrijs2005/ridermanager/internal/server/config"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// S3Store implements Store over an S3-compatible endpoint (MinIO in dev).
type S3Store struct {
	config *sc.Config
}

func NewS3Store(config *sc.Config) *S3Store {
	return &S3Store{config: config}
}

// ObjectName derives a globally unique storage key for a rider document:
// date-partitioned with a random suffix, keeping the original file name as
// the last path element.
func ObjectName(fileName string) string {
	d := time.Now()
	return fmt.Sprintf("riders/%d/%d/%d/%v/%s", d.Year(), d.Month(), d.Day(), uuid.New(), fileName)
}

func (s *S3Store) getClient() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,     // MINIO_ROOT_USER
			s.config.S3RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, nil
}

// Upload stores the document bytes under key in the configured bucket.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}

	bucket := s.config.S3Bucket

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload error: %w", err)
	}

	return nil
}

// PresignedGetURL mints a presigned GET URL for key. The returned expiry is
// the instant the URL stops being valid, computed from the configured TTL.
func (s *S3Store) PresignedGetURL(ctx context.Context, key string) (string, time.Time, error) {
	client, err := s.getClient()
	if err != nil {
		return "", time.Time{}, err
	}

	bucket := s.config.S3Bucket
	ttl := s.config.PresignedURLTTL
	expiry := time.Now().Add(ttl)

	// Presigned GET
	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign error: %w", err)
	}

	return req.URL, expiry, nil
}
