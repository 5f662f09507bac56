//go:build gcp

package artifacts

import "context"

func openGCSArchive(ctx context.Context, cfg ArchiveConfig) (Store, error) {
	return NewGCSStore(ctx, GCSStoreConfig{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
}
