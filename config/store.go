package config

import (
	"context"
	"fmt"
	"os"

	"github.com/hupe1980/vecrag/blobstore"
	"github.com/hupe1980/vecrag/blobstore/minio"
	"github.com/hupe1980/vecrag/blobstore/s3"
)

// Store types.
const (
	StoreLocal = "local"
	StoreMinio = "minio"
	StoreS3    = "s3"
)

// Store selects where the index is published.
type Store struct {
	Type     string `yaml:"type"`
	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Secure   bool   `yaml:"secure,omitempty"`

	// AccessKeyEnv and SecretKeyEnv name the MinIO credential variables.
	AccessKeyEnv string `yaml:"access_key_env,omitempty"`
	SecretKeyEnv string `yaml:"secret_key_env,omitempty"`

	// DDBTable enables conditional publishing through DynamoDB for s3.
	DDBTable string `yaml:"ddb_table,omitempty"`
}

// Validate checks the store section.
func (s Store) Validate() error {
	switch s.Type {
	case StoreLocal:
		return nil
	case StoreMinio:
		if s.Endpoint == "" || s.Bucket == "" {
			return fmt.Errorf("%w: minio store needs endpoint and bucket", ErrInvalid)
		}
		return nil
	case StoreS3:
		if s.Bucket == "" {
			return fmt.Errorf("%w: s3 store needs a bucket", ErrInvalid)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown store type %q", ErrInvalid, s.Type)
	}
}

// Open connects the configured store. A local store is rooted at dir.
func (s Store) Open(ctx context.Context, dir string) (blobstore.BlobStore, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	switch s.Type {
	case StoreMinio:
		store, err := minio.Dial(ctx, s.Endpoint, s.Bucket, func(o *minio.Options) {
			o.AccessKey = getenv(s.AccessKeyEnv, "MINIO_ACCESS_KEY")
			o.SecretKey = getenv(s.SecretKeyEnv, "MINIO_SECRET_KEY")
			o.Secure = s.Secure
			o.Region = s.Region
			o.Prefix = s.Prefix
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoreS3:
		store, err := s3.New(ctx, s.Bucket, func(o *s3.Options) {
			o.Prefix = s.Prefix
			o.Region = s.Region
			o.Endpoint = s.Endpoint
		})
		if err != nil {
			return nil, err
		}
		if s.DDBTable == "" {
			return store, nil
		}
		commit, err := store.CommitStore(s.DDBTable)
		if err != nil {
			return nil, err
		}
		return commit, nil
	default:
		return blobstore.NewLocalStore(dir), nil
	}
}

func getenv(name, fallback string) string {
	if name == "" {
		name = fallback
	}
	return os.Getenv(name)
}
