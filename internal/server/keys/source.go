package keys

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
)

const s3Scheme = "s3://"

// Source returns raw key material for a location.
type Source interface {
	Read(ctx context.Context, location string) ([]byte, error)
}

// FileSource reads locations as local file paths.
type FileSource struct{}

func (FileSource) Read(_ context.Context, location string) ([]byte, error) {
	return os.ReadFile(location)
}

// objectGetter is the part of *s3.Client we need.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads s3://bucket/key locations from an S3-compatible store.
type S3Source struct {
	client objectGetter
}

// NewS3Source builds a client from the S3 settings in cfg. Static credentials
// are used when both keys are set, the default AWS chain otherwise. A base
// endpoint switches to path-style addressing for MinIO and friends.
func NewS3Source(ctx context.Context, cfg *config.Config) (*S3Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Source{client: client}, nil
}

func (s *S3Source) Read(ctx context.Context, location string) ([]byte, error) {
	bucket, key, err := splitS3(location)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", location, err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// IsS3 reports whether location uses the s3:// scheme.
func IsS3(location string) bool {
	return strings.HasPrefix(location, s3Scheme)
}

func splitS3(location string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, s3Scheme), "/")
	if !IsS3(location) || !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed s3 location %q, want s3://bucket/key", location)
	}
	return bucket, key, nil
}

// schemeSource sends s3:// locations to s3 and everything else to files.
type schemeSource struct {
	files Source
	s3    Source
}

func (m schemeSource) Read(ctx context.Context, location string) ([]byte, error) {
	if IsS3(location) {
		return m.s3.Read(ctx, location)
	}
	return m.files.Read(ctx, location)
}

// NewSource picks the source for the configured key paths. An S3 client is
// created only when one of them lives in S3.
func NewSource(ctx context.Context, cfg *config.Config) (Source, error) {
	if !IsS3(cfg.PrivateKeyPath) && !IsS3(cfg.PublicKeyPath) {
		return FileSource{}, nil
	}
	s3src, err := NewS3Source(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return schemeSource{files: FileSource{}, s3: s3src}, nil
}
