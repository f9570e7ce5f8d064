package manager

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"maintenance-panel-backend/internal/blob"
	"maintenance-panel-backend/internal/model"
	"maintenance-panel-backend/internal/store"
)

// Upload is one file submitted for a report.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Attachments uploads report files to the bucket and records them on the
// report through the report manager.
type Attachments struct {
	reports *Manager[model.Report]
	bucket  blob.Bucket
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

// NewAttachments creates the attachment flow for reports.
func NewAttachments(reports *Manager[model.Report], bucket blob.Bucket, logger *zap.Logger) *Attachments {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Attachments{reports: reports, bucket: bucket, logger: logger, now: time.Now, newID: uuid.NewString}
}

// Attach stores the upload under the report's namespace and appends it to
// the report's attachment list.
func (a *Attachments) Attach(ctx context.Context, reportID string, up Upload) (*model.Attachment, error) {
	report, err := a.reports.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}

	uploadedAt := a.now().UTC()
	key := blob.AttachmentKey(reportID, uploadedAt, a.newID(), up.Filename)
	size, err := a.bucket.Put(ctx, key, up.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to store attachment for report %s: %w", reportID, err)
	}

	att := model.Attachment{
		Name:        filepath.Base(up.Filename),
		URL:         a.bucket.URL(key),
		Path:        key,
		ContentType: up.ContentType,
		Size:        size,
		UploadedAt:  uploadedAt,
	}
	list := append(report.Attachments, att)
	if _, err := a.reports.Update(ctx, reportID, store.Document{"attachments": list}); err != nil {
		if derr := a.bucket.Delete(context.WithoutCancel(ctx), key); derr != nil {
			a.logger.Warn("failed to remove orphaned attachment", zap.String("key", key), zap.Error(derr))
		}
		return nil, err
	}

	a.logger.Info("attachment stored",
		zap.String("report", reportID),
		zap.String("key", key),
		zap.Int64("size", size))
	return &att, nil
}

// Open streams a stored attachment.
func (a *Attachments) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return a.bucket.Open(ctx, key)
}
