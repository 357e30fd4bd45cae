package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the part of *s3.Client the resolver uses.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Resolver reads s3://bucket/key references.
type S3Resolver struct {
	client  S3Client
	maxSize int64
}

type S3Option func(*s3Options)

type s3Options struct {
	client        S3Client
	httpClient    *http.Client
	configOptions []func(*config.LoadOptions) error
	maxSize       int64
}

// WithS3Client uses a pre-configured client instead of building one.
func WithS3Client(client S3Client) S3Option {
	return func(o *s3Options) {
		o.client = client
	}
}

func WithHTTPClient(client *http.Client) S3Option {
	return func(o *s3Options) {
		o.httpClient = client
	}
}

// WithS3ConfigOption adds an AWS config load option.
func WithS3ConfigOption(option func(*config.LoadOptions) error) S3Option {
	return func(o *s3Options) {
		o.configOptions = append(o.configOptions, option)
	}
}

// WithMaxSize caps the object size. Zero means no limit.
func WithMaxSize(n int64) S3Option {
	return func(o *s3Options) {
		o.maxSize = max(n, 0)
	}
}

// NewS3Resolver builds a resolver from cfg, loading AWS credentials from
// the static keys when given and from the default chain otherwise.
func NewS3Resolver(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Resolver, error) {
	options := &s3Options{}
	for _, opt := range opts {
		opt(options)
	}
	if options.client != nil {
		return &S3Resolver{client: options.client, maxSize: options.maxSize}, nil
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: S3 region is required", ErrInvalidConfig)
	}

	awsOptions := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		awsOptions = append(awsOptions,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")),
		)
	}
	if options.httpClient != nil {
		awsOptions = append(awsOptions, config.WithHTTPClient(options.httpClient))
	}
	awsOptions = append(awsOptions, options.configOptions...)

	awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToLoadConfig, err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return &S3Resolver{client: client, maxSize: options.maxSize}, nil
}

func (r *S3Resolver) Resolve(ctx context.Context, ref *url.URL) (Blob, error) {
	bucket, key := ref.Host, strings.TrimPrefix(ref.Path, "/")
	if bucket == "" || key == "" {
		return Blob{}, fmt.Errorf("%w: %s", ErrInvalidReference, ref)
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Blob{}, classifyS3Error(err, ref.String())
	}
	defer func() { _ = out.Body.Close() }()

	if r.maxSize > 0 && aws.ToInt64(out.ContentLength) > r.maxSize {
		return Blob{}, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, ref, aws.ToInt64(out.ContentLength))
	}

	body := io.Reader(out.Body)
	if r.maxSize > 0 {
		body = io.LimitReader(out.Body, r.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return Blob{}, classifyS3Error(err, ref.String())
	}
	if r.maxSize > 0 && int64(len(data)) > r.maxSize {
		return Blob{}, fmt.Errorf("%w: %s", ErrTooLarge, ref)
	}

	return Blob{Content: data, ContentType: aws.ToString(out.ContentType)}, nil
}

func classifyS3Error(err error, ref string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", ErrOperationTimeout, ref, err)
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("%w: %s: bucket does not exist", ErrNotFound, ref)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied":
			return fmt.Errorf("%w: %s", ErrAccessDenied, ref)
		case "RequestTimeout":
			return fmt.Errorf("%w: %s", ErrOperationTimeout, ref)
		case "SlowDown", "ServiceUnavailable", "InternalError":
			return fmt.Errorf("%w: %s", ErrServiceUnavailable, ref)
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		default:
			return fmt.Errorf("attachment: fetch %s failed (code: %s): %w", ref, apiErr.ErrorCode(), err)
		}
	}
	return fmt.Errorf("attachment: fetch %s failed: %w", ref, err)
}
