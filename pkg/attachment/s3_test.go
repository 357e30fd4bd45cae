package attachment_test

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/attachment"
)

type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func object(body string, contentType string) *s3.GetObjectOutput {
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewBufferString(body)),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	}
}

func getInput(bucket, key string) any {
	return mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Bucket) == bucket && aws.ToString(in.Key) == key
	})
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNewS3Resolver(t *testing.T) {
	t.Parallel()

	t.Run("region required", func(t *testing.T) {
		t.Parallel()
		_, err := attachment.NewS3Resolver(context.Background(), attachment.S3Config{})
		assert.ErrorIs(t, err, attachment.ErrInvalidConfig)
	})

	t.Run("injected client skips config", func(t *testing.T) {
		t.Parallel()
		r, err := attachment.NewS3Resolver(context.Background(), attachment.S3Config{},
			attachment.WithS3Client(&MockS3Client{}))
		require.NoError(t, err)
		assert.NotNil(t, r)
	})
}

func TestS3Resolver_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("reads object", func(t *testing.T) {
		t.Parallel()
		client := &MockS3Client{}
		client.On("GetObject", mock.Anything, getInput("club-files", "events/2025/agenda.pdf")).
			Return(object("%PDF-1.7", "application/pdf"), nil).Once()

		r, err := attachment.NewS3Resolver(context.Background(), attachment.S3Config{},
			attachment.WithS3Client(client), attachment.WithMaxSize(1024))
		require.NoError(t, err)

		blob, err := r.Resolve(context.Background(), mustParse(t, "s3://club-files/events/2025/agenda.pdf"))
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.7"), blob.Content)
		assert.Equal(t, "application/pdf", blob.ContentType)
		client.AssertExpectations(t)
	})

	t.Run("rejects oversized object", func(t *testing.T) {
		t.Parallel()
		client := &MockS3Client{}
		client.On("GetObject", mock.Anything, getInput("b", "big")).
			Return(object("0123456789", "text/plain"), nil).Once()

		r, err := attachment.NewS3Resolver(context.Background(), attachment.S3Config{},
			attachment.WithS3Client(client), attachment.WithMaxSize(4))
		require.NoError(t, err)

		_, err = r.Resolve(context.Background(), mustParse(t, "s3://b/big"))
		assert.ErrorIs(t, err, attachment.ErrTooLarge)
	})

	t.Run("rejects body longer than declared", func(t *testing.T) {
		t.Parallel()
		out := object("0123456789", "text/plain")
		out.ContentLength = nil
		client := &MockS3Client{}
		client.On("GetObject", mock.Anything, getInput("b", "big")).Return(out, nil).Once()

		r, err := attachment.NewS3Resolver(context.Background(), attachment.S3Config{},
			attachment.WithS3Client(client), attachment.WithMaxSize(4))
		require.NoError(t, err)

		_, err = r.Resolve(context.Background(), mustParse(t, "s3://b/big"))
		assert.ErrorIs(t, err, attachment.ErrTooLarge)
	})

	t.Run("invalid reference", func(t *testing.T) {
		t.Parallel()
		r, err := attachment.NewS3Resolver(context.Background(), attachment.S3Config{},
			attachment.WithS3Client(&MockS3Client{}))
		require.NoError(t, err)

		_, err = r.Resolve(context.Background(), mustParse(t, "s3://bucket-only"))
		assert.ErrorIs(t, err, attachment.ErrInvalidReference)
	})

	errs := []struct {
		name string
		err  error
		want error
	}{
		{"no such key", &types.NoSuchKey{}, attachment.ErrNotFound},
		{"no such bucket", &types.NoSuchBucket{}, attachment.ErrNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, attachment.ErrAccessDenied},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, attachment.ErrServiceUnavailable},
		{"request timeout", &smithy.GenericAPIError{Code: "RequestTimeout"}, attachment.ErrOperationTimeout},
		{"deadline", context.DeadlineExceeded, attachment.ErrOperationTimeout},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := &MockS3Client{}
			client.On("GetObject", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			r, err := attachment.NewS3Resolver(context.Background(), attachment.S3Config{},
				attachment.WithS3Client(client))
			require.NoError(t, err)

			_, err = r.Resolve(context.Background(), mustParse(t, "s3://bucket/key"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
