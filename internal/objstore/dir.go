package objstore

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

// dirClient serves a local drop directory through the Client interface.
// Keys are slash-separated paths relative to the root.
type dirClient struct {
	root string
}

// NewDir builds a client over a type=file source's drop directory.
func NewDir(src *config.Source) (Client, error) {
	info, err := os.Stat(src.FilePath)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindConfig, err, "source %s: file.path", src.Name)
	}
	if !info.IsDir() {
		return nil, etlerr.New(etlerr.KindConfig, "source %s: file.path %s is not a directory", src.Name, src.FilePath)
	}
	return &dirClient{root: src.FilePath}, nil
}

func (c *dirClient) List(ctx context.Context, prefix, pattern string) ([]models.FileMetadata, error) {
	var metas []models.FileMetadata
	err := filepath.WalkDir(c.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(c.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) || !matchKey(pattern, key) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		metas = append(metas, models.FileMetadata{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindDownload, err, "list %s under %s", prefix, c.root)
	}
	sortByKey(metas)
	return metas, nil
}

func (c *dirClient) Download(ctx context.Context, key, destDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", etlerr.Wrap(etlerr.KindCancel, err, "download %s", key)
	}

	src, err := os.Open(filepath.Join(c.root, filepath.FromSlash(key)))
	if err != nil {
		return "", etlerr.Wrap(etlerr.KindDownload, err, "open %s", key)
	}
	defer src.Close()

	local := filepath.Join(destDir, filepath.Base(key))
	dst, err := os.Create(local)
	if err != nil {
		return "", etlerr.Wrap(etlerr.KindDownload, err, "create %s", local)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(local)
		return "", etlerr.Wrap(etlerr.KindDownload, err, "copy %s", key)
	}
	return local, nil
}

func (c *dirClient) Close() error { return nil }
