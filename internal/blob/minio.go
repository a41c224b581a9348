package blob

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	bucket          string
	accessKey       string
	secretAccessKey string
	useSSL          bool
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

func WithBucket(bucket string) MinioOpts {
	return func(c *minioConfig) {
		c.bucket = bucket
	}
}

func WithCredentials(accessKey, secretAccessKey string) MinioOpts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
		c.secretAccessKey = secretAccessKey
	}
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}

type MinioStore struct {
	cfg    *minioConfig
	client *minio.Client
}

var _ Store = (*MinioStore)(nil)

func NewMinioStore(opts ...MinioOpts) (*MinioStore, error) {
	cfg := &minioConfig{}
	for _, o := range opts {
		o(cfg)
	}

	minioClient, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinioStore{cfg: cfg, client: minioClient}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.cfg.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	return err
}

func (s *MinioStore) Get(ctx context.Context, key string, dst io.Writer) error {
	object, err := s.client.GetObject(ctx, s.cfg.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer object.Close()

	if _, err := io.Copy(dst, object); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return ErrObjectNotFound
		}
		return err
	}
	return nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.cfg.bucket, key, minio.RemoveObjectOptions{})
}
