package attachment_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/attachment"
	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	memory := attachment.ResolverFunc(func(_ context.Context, ref *url.URL) (attachment.Blob, error) {
		switch ref.Host + ref.Path {
		case "bucket/agenda.pdf":
			return attachment.Blob{Content: []byte("%PDF"), ContentType: "application/pdf"}, nil
		case "bucket/notes":
			return attachment.Blob{Content: []byte("notes")}, nil
		}
		return attachment.Blob{}, attachment.ErrNotFound
	})
	loader := attachment.NewLoader().Handle("MEM", memory)

	t.Run("empty list", func(t *testing.T) {
		t.Parallel()
		got, err := loader.Load(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("inline and referenced", func(t *testing.T) {
		t.Parallel()
		got, err := loader.Load(context.Background(), []queue.Attachment{
			{Filename: "results.json", Content: []byte(`{}`)},
			{Filename: "agenda.pdf", Reference: "mem://bucket/agenda.pdf"},
			{Filename: "notes", Reference: "mem://bucket/notes"},
			{Filename: "logo", ContentType: "image/png", Content: []byte{0x89}},
		})
		require.NoError(t, err)
		require.Len(t, got, 4)

		assert.Equal(t, []byte(`{}`), got[0].Content)
		assert.Equal(t, "application/json", got[0].ContentType)
		assert.Equal(t, "application/pdf", got[1].ContentType)
		assert.Equal(t, []byte("%PDF"), got[1].Content)
		assert.Equal(t, "application/octet-stream", got[2].ContentType)
		assert.Equal(t, "image/png", got[3].ContentType)
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name string
			ref  string
			want error
		}{
			{"no scheme", "bucket/file.pdf", attachment.ErrInvalidReference},
			{"unknown scheme", "ftp://host/file.pdf", attachment.ErrUnsupportedScheme},
			{"missing object", "mem://bucket/missing", attachment.ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				_, err := loader.Load(context.Background(), []queue.Attachment{{Filename: "f", Reference: tt.ref}})
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.want), "got %v", err)
				assert.Contains(t, err.Error(), `attachment "f"`)
			})
		}
	})
}
