//go:build !gcp

package artifacts

import (
	"context"
	"fmt"
)

func openGCSArchive(context.Context, ArchiveConfig) (Store, error) {
	return nil, fmt.Errorf("gcs fixture archive is not enabled in this build (use -tags gcp)")
}
