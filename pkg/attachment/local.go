package attachment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalResolver reads file:// references confined to a base directory.
// Both file:///reports/a.pdf and file://reports/a.pdf name
// <base>/reports/a.pdf.
type LocalResolver struct {
	baseDir string
	maxSize int64
}

// NewLocalResolver creates a resolver rooted at baseDir. maxSize of zero means no limit.
func NewLocalResolver(baseDir string, maxSize int64) (*LocalResolver, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("%w: base directory is required", ErrInvalidConfig)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &LocalResolver{baseDir: abs, maxSize: max(maxSize, 0)}, nil
}

func (r *LocalResolver) Resolve(ctx context.Context, ref *url.URL) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}

	full, err := r.path(ref)
	if err != nil {
		return Blob{}, err
	}

	info, err := os.Stat(full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Blob{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case err != nil:
		return Blob{}, fmt.Errorf("attachment: stat %s: %w", ref, err)
	case info.IsDir():
		return Blob{}, fmt.Errorf("%w: %s is a directory", ErrInvalidReference, ref)
	case r.maxSize > 0 && info.Size() > r.maxSize:
		return Blob{}, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, ref, info.Size())
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return Blob{}, fmt.Errorf("attachment: read %s: %w", ref, err)
	}
	return Blob{Content: data, ContentType: mime.TypeByExtension(filepath.Ext(full))}, nil
}

func (r *LocalResolver) path(ref *url.URL) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(ref.Host+ref.Path, "/"))
	if rel == "" || strings.Contains(ref.Host+ref.Path, "..") {
		return "", fmt.Errorf("%w: %s", ErrInvalidReference, ref)
	}

	full := filepath.Join(r.baseDir, rel)
	if full != r.baseDir && !strings.HasPrefix(full, r.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes the attachment directory", ErrInvalidReference, ref)
	}
	return full, nil
}
