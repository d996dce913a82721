package archive

import (
	"context"
	"fmt"
	"os"

	"collab-go/internal/collab"
	"collab-go/internal/config"
)

// NewArchiveFromConfig creates an Archive based on the archive config type.
// S3 static credentials are read from COLLAB_S3_ACCESS_KEY_ID and
// COLLAB_S3_SECRET_ACCESS_KEY when set.
func NewArchiveFromConfig(ctx context.Context, cfg config.ArchiveConfig) (collab.Archive, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryArchive(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem archive requires fs_root to be set")
		}
		return NewFileSystemArchive(cfg.FSRoot)
	case "s3":
		return NewS3Archive(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     os.Getenv("COLLAB_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("COLLAB_S3_SECRET_ACCESS_KEY"),
		})
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
