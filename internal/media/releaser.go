// Package media releases stored attachments once the message referencing them is gone.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	errMissingBucket = errors.New("media: bucket is required")
	errEmptyRef      = errors.New("media: empty media reference")
)

// Releaser frees the storage behind a media reference.
type Releaser interface {
	Release(ctx context.Context, mediaRef string) error
}

// NopReleaser is used when no object storage is configured.
type NopReleaser struct{}

// Release does nothing.
func (NopReleaser) Release(context.Context, string) error {
	return nil
}

// objectDeleter is the subset of the S3 client the releaser needs.
type objectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config points the releaser at an S3 compatible bucket.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Releaser deletes objects from an S3 (or MinIO) bucket.
type S3Releaser struct {
	client objectDeleter
	bucket string
}

// NewS3Releaser builds an S3 client from the given settings.
func NewS3Releaser(ctx context.Context, cfg S3Config) (*S3Releaser, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errMissingBucket
	}
	options := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("media: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Releaser{client: client, bucket: cfg.Bucket}, nil
}

// Release deletes the object addressed by mediaRef. References may be bare
// keys, s3://bucket/key URIs or URLs whose path ends with the key.
func (r *S3Releaser) Release(ctx context.Context, mediaRef string) error {
	key := objectKey(mediaRef, r.bucket)
	if key == "" {
		return errEmptyRef
	}
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("media: delete %s: %w", key, err)
	}
	return nil
}

func objectKey(mediaRef, bucket string) string {
	ref := strings.TrimSpace(mediaRef)
	if ref == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(ref, "s3://"); ok {
		ref = rest
	} else if index := strings.Index(ref, "://"); index >= 0 {
		ref = ref[index+3:]
		if slash := strings.Index(ref, "/"); slash >= 0 {
			ref = ref[slash+1:]
		} else {
			return ""
		}
	}
	if query := strings.IndexAny(ref, "?#"); query >= 0 {
		ref = ref[:query]
	}
	ref = strings.TrimPrefix(ref, "/")
	ref = strings.TrimPrefix(ref, bucket+"/")
	return ref
}
