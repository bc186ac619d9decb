package prerender

import (
	"bytes"
	"context"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vango-dev/ssr/internal/errors"
)

// PutObjectAPI is the part of *s3.Client used by S3Sink.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads prerendered files to a bucket, for static hosting from
// S3 or a CDN in front of it.
//
//	client, err := prerender.NewS3Client(ctx, "eu-west-1", "")
//	sink := prerender.NewS3Sink(client, "my-site", "v42/")
type S3Sink struct {
	client PutObjectAPI
	bucket string
	prefix string

	// CacheControl is set on every object when not empty.
	CacheControl string
}

// NewS3Sink creates a sink writing below prefix in bucket.
func NewS3Sink(client PutObjectAPI, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key of a file.
func (s *S3Sink) Key(a Artifact) string {
	if s.prefix == "" {
		return a.Path
	}
	return path.Join(s.prefix, a.Path)
}

// Write implements Sink.
func (s *S3Sink) Write(ctx context.Context, a Artifact) error {
	contentType := mime.TypeByExtension(path.Ext(a.Path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(a)),
		Body:        bytes.NewReader(a.Content),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"url": a.URL,
		},
	}
	if s.CacheControl != "" {
		input.CacheControl = aws.String(s.CacheControl)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return errors.New("E130").
			WithSource("s3://" + s.bucket + "/" + s.Key(a)).
			Wrap(err)
	}
	return nil
}

// NewS3Client creates an S3 client from the default AWS configuration:
// environment, shared config files and profiles, SSO or the instance role.
// A non-empty region overrides the configured one. A non-empty endpoint
// selects an S3-compatible service with path-style addressing.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.New("E120").
			WithSource("aws").
			WithDetail("loading the AWS configuration failed").
			Wrap(err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
