package minio

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/pkg/errors"
)

// ReportArchive stores rendered analysis reports under a key prefix.
type ReportArchive struct {
	client *Client
	prefix string
	logger logging.Logger
}

// NewReportArchive returns an archive writing below prefix ("reports/" when
// empty).
func NewReportArchive(client *Client, prefix string, log logging.Logger) *ReportArchive {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if prefix == "" {
		prefix = "reports/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ReportArchive{client: client, prefix: prefix, logger: log}
}

func (a *ReportArchive) objectName(key string) (string, error) {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	if key == "" || key == "." {
		return "", errors.InvalidParam("report key is required")
	}
	return a.prefix + key, nil
}

// Put uploads body and returns an s3:// location for it.  Existing objects
// are overwritten.
func (a *ReportArchive) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	name, err := a.objectName(key)
	if err != nil {
		return "", err
	}
	api, err := a.client.get()
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := api.PutObject(ctx, a.client.bucket, name, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeStorageFailed, "failed to upload %s", name)
	}
	a.logger.Debug("report archived",
		logging.String("object", name),
		logging.Int64("size", info.Size),
		logging.String("etag", info.ETag))
	return fmt.Sprintf("s3://%s/%s", a.client.bucket, name), nil
}

// Exists reports whether a report is stored under key.
func (a *ReportArchive) Exists(ctx context.Context, key string) (bool, error) {
	name, err := a.objectName(key)
	if err != nil {
		return false, err
	}
	api, err := a.client.get()
	if err != nil {
		return false, err
	}
	if _, err := api.StatObject(ctx, a.client.bucket, name, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorageFailed, "failed to stat report")
	}
	return true, nil
}

// PresignedURL returns a time-limited download URL for key.  The object must
// exist.
func (a *ReportArchive) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	ok, err := a.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.Newf(errors.ErrCodeStorageNotFound, "report %s not found", key)
	}
	if expiry <= 0 {
		expiry = time.Hour
	}
	name, _ := a.objectName(key)
	u, err := a.client.api.PresignedGetObject(ctx, a.client.bucket, name, expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageFailed, "failed to presign report url")
	}
	return u.String(), nil
}

// Delete removes the report stored under key.
func (a *ReportArchive) Delete(ctx context.Context, key string) error {
	name, err := a.objectName(key)
	if err != nil {
		return err
	}
	api, err := a.client.get()
	if err != nil {
		return err
	}
	if err := api.RemoveObject(ctx, a.client.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageFailed, "failed to delete report")
	}
	return nil
}
