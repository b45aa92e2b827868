package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"product-catalog/internal/config"
	"product-catalog/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// NewS3Client loads the AWS configuration from the environment and optionally
// points the client at an S3-compatible endpoint such as MinIO or LocalStack.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Store keeps images as objects in a bucket. The object key is the image's PublicID.
type S3Store struct {
	client        objectAPI
	bucket        string
	region        string
	keyPrefix     string
	publicBaseURL string
}

func NewS3Store(client objectAPI, cfg config.S3Config) *S3Store {
	return &S3Store{
		client:        client,
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		keyPrefix:     cfg.KeyPrefix,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

func (s *S3Store) Put(ctx context.Context, obj Object) (domain.ImageRef, error) {
	key := s.keyPrefix + uuid.NewString() + extensionFor(obj.ContentType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(obj.Data),
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(int64(len(obj.Data))),
	})
	if err != nil {
		return domain.ImageRef{}, fmt.Errorf("failed to upload image to s3: %w", err)
	}

	return domain.ImageRef{URL: s.objectURL(key), PublicID: key}, nil
}

// Delete removes the object named by ref.PublicID. References without one
// were not stored in a bucket and are ignored.
func (s *S3Store) Delete(ctx context.Context, ref domain.ImageRef) error {
	if ref.PublicID == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.PublicID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image %s from s3: %w", ref.PublicID, err)
	}
	return nil
}

func (s *S3Store) objectURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
