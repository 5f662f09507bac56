package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArchiveBackend selects where verified fixtures are archived.
type ArchiveBackend string

const (
	BackendNone ArchiveBackend = "none"
	BackendFS   ArchiveBackend = "fs"
	BackendS3   ArchiveBackend = "s3"
	BackendGCS  ArchiveBackend = "gcs"
)

// defaultObjectPrefix keeps fixtures apart from other objects in a shared bucket.
const defaultObjectPrefix = "fixtures/"

// ArchiveConfig describes a fixture archive.
type ArchiveConfig struct {
	Backend ArchiveBackend
	// DataDir roots the fs backend; fixtures go to DataDir/fixtures.
	DataDir string
	// Bucket, Prefix apply to s3 and gcs. Region, Endpoint to s3 only.
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// ArchiveConfigFromEnv reads the archive settings:
//
//	ARTIFACT_STORAGE_TYPE  fs (default), s3, gcs or none
//	DATA_DIR               fs root (default "data")
//	ARTIFACT_S3_BUCKET, ARTIFACT_S3_PREFIX, ARTIFACT_S3_ENDPOINT,
//	ARTIFACT_S3_REGION (falls back to AWS_REGION, then us-east-1)
//	ARTIFACT_GCS_BUCKET, ARTIFACT_GCS_PREFIX
//
// Object-store prefixes default to "fixtures/".
func ArchiveConfigFromEnv() ArchiveConfig {
	cfg := ArchiveConfig{
		Backend: ArchiveBackend(strings.ToLower(os.Getenv("ARTIFACT_STORAGE_TYPE"))),
		DataDir: os.Getenv("DATA_DIR"),
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendFS
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	switch cfg.Backend {
	case BackendS3:
		cfg.Bucket = os.Getenv("ARTIFACT_S3_BUCKET")
		cfg.Prefix = os.Getenv("ARTIFACT_S3_PREFIX")
		cfg.Endpoint = os.Getenv("ARTIFACT_S3_ENDPOINT")
		cfg.Region = firstNonEmpty(os.Getenv("ARTIFACT_S3_REGION"), os.Getenv("AWS_REGION"), "us-east-1")
	case BackendGCS:
		cfg.Bucket = os.Getenv("ARTIFACT_GCS_BUCKET")
		cfg.Prefix = os.Getenv("ARTIFACT_GCS_PREFIX")
	}
	if cfg.Prefix == "" && (cfg.Backend == BackendS3 || cfg.Backend == BackendGCS) {
		cfg.Prefix = defaultObjectPrefix
	}
	return cfg
}

// OpenArchive opens the fixture archive cfg describes. BackendNone returns a
// nil Store: the guardian then skips archiving.
func OpenArchive(ctx context.Context, cfg ArchiveConfig) (Store, error) {
	switch cfg.Backend {
	case BackendNone:
		return nil, nil
	case BackendFS:
		return NewFileStore(filepath.Join(cfg.DataDir, "fixtures"))
	case BackendS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("ARTIFACT_S3_BUCKET is required for the s3 fixture archive")
		}
		return NewS3Store(ctx, S3StoreConfig{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Prefix:   cfg.Prefix,
		})
	case BackendGCS:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("ARTIFACT_GCS_BUCKET is required for the gcs fixture archive")
		}
		return openGCSArchive(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported fixture archive backend: %s", cfg.Backend)
	}
}

// NewStoreFromEnv opens the fixture archive configured in the environment.
func NewStoreFromEnv(ctx context.Context) (Store, error) {
	return OpenArchive(ctx, ArchiveConfigFromEnv())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
