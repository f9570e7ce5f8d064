package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("blob: object not found")
	ErrInvalidKey = errors.New("blob: invalid object key")
	ErrExists     = errors.New("blob: object already exists")
)

// Bucket stores attachment objects under slash-separated keys.
type Bucket interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// FileBucket keeps objects as files below a root directory.
type FileBucket struct {
	root    string
	urlBase string
}

// NewFileBucket creates the root directory if needed. URLs are urlBase + "/" + key.
func NewFileBucket(root, urlBase string) (*FileBucket, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", root, err)
	}
	return &FileBucket{root: root, urlBase: strings.TrimRight(urlBase, "/")}, nil
}

func (b *FileBucket) path(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if key == "" || clean != key || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(b.root, filepath.FromSlash(clean)), nil
}

// Put writes r to key and returns the byte count. Objects are immutable: a
// key that already holds an object is refused with ErrExists.
func (b *FileBucket) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	p, err := b.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return 0, fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create object: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write object %s: %w", key, err)
	}
	// Link fails when p exists, unlike Rename.
	if err := os.Link(tmp.Name(), p); err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("%w: %s", ErrExists, key)
		}
		return 0, fmt.Errorf("failed to commit object %s: %w", key, err)
	}
	return n, nil
}

// Open returns a reader for key.
func (b *FileBucket) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return f, nil
}

// Delete removes key.
func (b *FileBucket) Delete(_ context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return err
	}
	return nil
}

// URL returns the address the panel serves key from.
func (b *FileBucket) URL(key string) string {
	return b.urlBase + "/" + key
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// AttachmentKey namespaces an upload by parent report and upload time. id
// keeps keys unique between uploads of the same name in the same millisecond.
func AttachmentKey(reportID string, uploadedAt time.Time, id, filename string) string {
	name := unsafeName.ReplaceAllString(filepath.Base(filename), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("reports/%s/%d_%s_%s", reportID, uploadedAt.UnixMilli(), id, name)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
