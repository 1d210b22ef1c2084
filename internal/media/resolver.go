// Package media validates uploaded photos and hands them to an object store.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"patrimonio-api/pkg/uid"
)

var (
	// ErrUnsupportedType is returned for files that are not JPEG or PNG images.
	ErrUnsupportedType = errors.New("media: unsupported file type")

	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("media: file too large")

	// ErrUploadFailed wraps a failure of the backing store.
	ErrUploadFailed = errors.New("media: upload failed")
)

var allowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

// AllowedExtension reports whether filename ends in jpg, jpeg or png.
func AllowedExtension(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	return allowedExtensions[ext]
}

// Store persists an object and returns a durable URL for it.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Upload is a photo received from a client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Options tunes a Resolver.
type Options struct {
	MaxBytes     int64
	MaxDimension int
	KeyPrefix    string
}

// Resolver turns an upload into a stored URL.
type Resolver struct {
	store Store
	opts  Options
	now   func() time.Time
}

// NewResolver creates a resolver writing to store.
func NewResolver(store Store, opts Options) *Resolver {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 5 << 20
	}
	return &Resolver{store: store, opts: opts, now: time.Now}
}

// Resolve checks the filename suffix, then the actual content, decodes the
// image, downsizes it past MaxDimension and stores the re-encoded result.
func (r *Resolver) Resolve(ctx context.Context, up Upload) (string, error) {
	if !AllowedExtension(up.Filename) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, up.Filename)
	}

	data, err := io.ReadAll(io.LimitReader(up.Body, r.opts.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("media: read upload: %w", err)
	}
	if int64(len(data)) > r.opts.MaxBytes {
		return "", ErrTooLarge
	}

	var (
		format      imaging.Format
		ext         string
		contentType = http.DetectContentType(data)
	)
	switch contentType {
	case "image/jpeg":
		format, ext = imaging.JPEG, "jpg"
	case "image/png":
		format, ext = imaging.PNG, "png"
	default:
		return "", fmt.Errorf("%w: content is %s", ErrUnsupportedType, contentType)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	img = r.fit(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("media: encode: %w", err)
	}

	key := r.key(ext)
	url, err := r.store.Put(ctx, key, contentType, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	return url, nil
}

func (r *Resolver) fit(img image.Image) image.Image {
	limit := r.opts.MaxDimension
	if limit <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= limit && b.Dy() <= limit {
		return img
	}
	return imaging.Fit(img, limit, limit, imaging.Lanczos)
}

func (r *Resolver) key(ext string) string {
	name := uid.New() + "." + ext
	return path.Join(r.opts.KeyPrefix, r.now().UTC().Format("2006/01/02"), name)
}
