package client

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/epub-counter/api/internal/config"
)

// S3Client mirrors result documents to an S3-compatible bucket.
type S3Client struct {
	s3Client   *s3.Client
	bucketName string
	prefix     string
	publicURL  string
}

// NewS3Client creates a new storage client. An empty endpoint uses AWS defaults.
func NewS3Client(ctx context.Context, cfg *config.StorageConfig) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage configuration incomplete: bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: endpoint}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Endpoint != ""
	})

	return &S3Client{
		s3Client:   s3Client,
		bucketName: cfg.Bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		publicURL:  strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// Publish uploads data under prefix/name and returns its URL.
func (c *S3Client) Publish(ctx context.Context, name string, data []byte) (string, error) {
	key := path.Join(c.prefix, name)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}

	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return c.URL(key), nil
}

// URL returns the public URL for a key when one is configured, else an s3:// URI.
func (c *S3Client) URL(key string) string {
	if c.publicURL != "" {
		return fmt.Sprintf("%s/%s", c.publicURL, key)
	}
	return fmt.Sprintf("s3://%s/%s", c.bucketName, key)
}
