package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrNotFound = errors.New("blob not found")

// FileSource reads blobs from a directory. Addresses are relative paths.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) Fetch(_ context.Context, address string) ([]byte, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(address))
	data, err := os.ReadFile(filepath.Join(s.dir, clean))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	return data, err
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// MinioSource reads blobs from an S3-compatible bucket. Addresses are
// object keys.
type MinioSource struct {
	client *minio.Client
	bucket string
}

func NewMinioSource(cfg MinioConfig) (*MinioSource, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}
	return &MinioSource{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioSource) Fetch(ctx context.Context, address string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, strings.TrimPrefix(address, "/"), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, s.bucket, address)
		}
		return nil, err
	}
	return data, nil
}
