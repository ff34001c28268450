package storage

import (
	"context"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter reads objects from a bucket.
type ObjectGetter interface {
	// Get opens an object. The caller closes the returned reader.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, *FileInfo, error)
}

// S3Store reads attachments from S3-compatible object storage.
type S3Store struct {
	client *s3.Client
	cfg    Config
}

// NewS3 creates an S3Store with static credentials.
func NewS3(cfg Config) (*S3Store, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)
		},
	}

	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	}

	return &S3Store{
		client: s3.New(s3.Options{}, opts...),
		cfg:    cfg,
	}, nil
}

// Get implements ObjectGetter.
func (s *S3Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, *FileInfo, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, nil, wrapS3Error(err, ErrDownloadFailed)
	}

	info := &FileInfo{Name: path.Base(key)}
	if output.ContentType != nil {
		info.ContentType = *output.ContentType
	}
	if output.ContentLength != nil {
		info.Size = *output.ContentLength
	}
	return output.Body, info, nil
}

var _ ObjectGetter = (*S3Store)(nil)
