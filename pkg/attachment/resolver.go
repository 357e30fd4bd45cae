package attachment

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/dmitrymomot/mailqueue/pkg/email"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

// Blob is the content behind a reference.
type Blob struct {
	Content     []byte
	ContentType string
}

// Resolver fetches the content of references with one URL scheme.
type Resolver interface {
	Resolve(ctx context.Context, ref *url.URL) (Blob, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, ref *url.URL) (Blob, error)

func (f ResolverFunc) Resolve(ctx context.Context, ref *url.URL) (Blob, error) {
	return f(ctx, ref)
}

// Loader turns queued attachments into inline message attachments,
// resolving references by scheme.
type Loader struct {
	resolvers map[string]Resolver
}

// NewLoader creates a loader. Register resolvers with Handle.
func NewLoader() *Loader {
	return &Loader{resolvers: make(map[string]Resolver)}
}

// Handle registers r for references with the given scheme ("s3", "file").
func (l *Loader) Handle(scheme string, r Resolver) *Loader {
	l.resolvers[strings.ToLower(scheme)] = r
	return l
}

// Load returns the message attachments for list. Inline content is used as is.
func (l *Loader) Load(ctx context.Context, list []queue.Attachment) ([]email.Attachment, error) {
	if len(list) == 0 {
		return nil, nil
	}

	out := make([]email.Attachment, 0, len(list))
	for _, a := range list {
		loaded, err := l.load(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("attachment %q: %w", a.Filename, err)
		}
		out = append(out, loaded)
	}
	return out, nil
}

func (l *Loader) load(ctx context.Context, a queue.Attachment) (email.Attachment, error) {
	att := email.Attachment{Filename: a.Filename, ContentType: a.ContentType, Content: a.Content}
	if len(a.Content) == 0 {
		ref, err := url.Parse(a.Reference)
		if err != nil || ref.Scheme == "" {
			return email.Attachment{}, fmt.Errorf("%w: %q", ErrInvalidReference, a.Reference)
		}
		r, ok := l.resolvers[strings.ToLower(ref.Scheme)]
		if !ok {
			return email.Attachment{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, ref.Scheme)
		}
		blob, err := r.Resolve(ctx, ref)
		if err != nil {
			return email.Attachment{}, err
		}
		att.Content = blob.Content
		if att.ContentType == "" {
			att.ContentType = blob.ContentType
		}
	}

	if att.ContentType == "" {
		att.ContentType = mime.TypeByExtension(path.Ext(a.Filename))
	}
	if att.ContentType == "" {
		att.ContentType = "application/octet-stream"
	}
	return att, nil
}
