package objstore

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

// minioClient serves S3-compatible object stores.
type minioClient struct {
	mc      *minio.Client
	bucket  string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewMinio builds a client from an objectstore source config. Both secret
// components present selects static V4 signing; both absent selects
// anonymous access. Partial credentials are rejected by config validation
// before this runs.
func NewMinio(src *config.Source) (Client, error) {
	var creds *credentials.Credentials
	if src.Anonymous() {
		creds = credentials.NewStatic("", "", "", credentials.SignatureAnonymous)
	} else {
		creds = credentials.NewStaticV4(src.SecretID, src.SecretKey, "")
	}

	endpoint := src.Endpoint
	secure := true
	if strings.HasPrefix(endpoint, "http://") {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		secure = false
	} else {
		endpoint = strings.TrimPrefix(endpoint, "https://")
	}

	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: src.Region,
	})
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindConfig, err, "object store client for %s", src.Name)
	}

	var limiter *rate.Limiter
	if src.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(src.RequestsPerSecond), 1)
	}

	return &minioClient{
		mc:      mc,
		bucket:  src.Bucket,
		timeout: time.Duration(src.DownloadTimeoutSec) * time.Second,
		limiter: limiter,
	}, nil
}

func (c *minioClient) List(ctx context.Context, prefix, pattern string) ([]models.FileMetadata, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return nil, etlerr.Wrap(etlerr.KindDownload, err, "list %s", prefix)
	}

	var metas []models.FileMetadata
	for obj := range c.mc.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, etlerr.Wrap(etlerr.KindDownload, obj.Err, "list %s/%s", c.bucket, prefix)
		}
		if !matchKey(pattern, obj.Key) {
			continue
		}
		metas = append(metas, models.FileMetadata{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
		})
	}
	sortByKey(metas)

	log.WithFields(log.Fields{"bucket": c.bucket, "prefix": prefix, "matched": len(metas)}).
		Debug("listed objects")
	return metas, nil
}

func (c *minioClient) Download(ctx context.Context, key, destDir string) (string, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return "", etlerr.Wrap(etlerr.KindDownload, err, "download %s", key)
	}

	dctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	local := filepath.Join(destDir, filepath.Base(key))
	if err := c.mc.FGetObject(dctx, c.bucket, key, local, minio.GetObjectOptions{}); err != nil {
		return "", etlerr.Wrap(etlerr.KindDownload, err, "download %s/%s", c.bucket, key)
	}
	return local, nil
}

func (c *minioClient) Close() error { return nil }
