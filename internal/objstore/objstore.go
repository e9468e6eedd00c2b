// Package objstore wraps object storage behind a small client interface.
// The minio-backed implementation serves S3-compatible sources; a directory
// backend serves type=file sources through the same interface so extractors
// never know which one they talk to.
package objstore

import (
	"context"
	"path"
	"sort"

	"golang.org/x/time/rate"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

// Client lists and fetches objects for one source.
type Client interface {
	// List returns metadata for every object under prefix whose key matches
	// the glob pattern, sorted ascending by key.
	List(ctx context.Context, prefix, pattern string) ([]models.FileMetadata, error)
	// Download streams one object into destDir and returns the local path.
	// The caller owns the file.
	Download(ctx context.Context, key, destDir string) (string, error)
	Close() error
}

// SizeCheck enforces the per-file size ceiling. A ceiling of zero disables
// the check; a file exactly at the ceiling passes.
func SizeCheck(meta models.FileMetadata, ceiling int64) error {
	if ceiling > 0 && meta.Size > ceiling {
		return etlerr.New(etlerr.KindFileTooLarge, "object %s is %d bytes, ceiling %d", meta.Key, meta.Size, ceiling)
	}
	return nil
}

// matchKey matches a key against the glob pattern. Patterns are matched on
// the full key, so * never crosses a path separator.
func matchKey(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}

func sortByKey(metas []models.FileMetadata) {
	sort.Slice(metas, func(i, j int) bool { return metas[i].Key < metas[j].Key })
}

// wait blocks on the limiter when one is configured.
func wait(ctx context.Context, lim *rate.Limiter) error {
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}
