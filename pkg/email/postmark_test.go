package email_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mrz1836/postmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/email"
)

type mockPostmark struct {
	mock.Mock
}

func (m *mockPostmark) SendEmail(ctx context.Context, e postmark.Email) (postmark.EmailResponse, error) {
	args := m.Called(ctx, e)
	return args.Get(0).(postmark.EmailResponse), args.Error(1)
}

func postmarkConfig() email.Config {
	return email.Config{
		SenderEmail:  "events@club.org",
		SupportEmail: "support@club.org",
		Postmark: email.PostmarkConfig{
			ServerToken: "server-token",
			TrackOpens:  true,
			TrackLinks:  "HtmlOnly",
		},
	}
}

func TestNewPostmarkSender_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := postmarkConfig()
	cfg.Postmark.ServerToken = ""
	_, err := email.NewPostmarkSender(cfg)
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	cfg = postmarkConfig()
	cfg.SenderEmail = ""
	_, err = email.NewPostmarkSender(cfg)
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	assert.Panics(t, func() { email.MustNewPostmarkSender(email.Config{}) })
}

func TestPostmarkSender_Send(t *testing.T) {
	t.Parallel()

	t.Run("maps message and returns id", func(t *testing.T) {
		t.Parallel()

		api := &mockPostmark{}
		api.On("SendEmail", mock.Anything, mock.MatchedBy(func(e postmark.Email) bool {
			return e.From == "events@club.org" &&
				e.ReplyTo == "support@club.org" &&
				e.To == "a@example.com,b@example.com" &&
				e.Cc == "c@example.com" &&
				e.TrackLinks == "HtmlOnly" &&
				len(e.Attachments) == 1 &&
				e.Attachments[0].Content == "aGk=" &&
				e.Metadata["email_id"] == "42"
		})).Return(postmark.EmailResponse{MessageID: "pm-1"}, nil)

		s, err := email.NewPostmarkSender(postmarkConfig(), email.WithPostmarkAPI(api))
		require.NoError(t, err)

		id, err := s.Send(context.Background(), &email.Message{
			To:          []string{"a@example.com", "b@example.com"},
			CC:          []string{"c@example.com"},
			Subject:     "Approved",
			HTMLBody:    "<p>ok</p>",
			Attachments: []email.Attachment{{Filename: "a.txt", ContentType: "text/plain", Content: []byte("hi")}},
			Metadata:    map[string]string{"email_id": "42"},
		})
		require.NoError(t, err)
		assert.Equal(t, "pm-1", id)
		api.AssertExpectations(t)
	})

	tests := []struct {
		name      string
		resp      postmark.EmailResponse
		err       error
		retryable bool
	}{
		{name: "network error", err: errors.New("connection reset"), retryable: true},
		{name: "throttled", resp: postmark.EmailResponse{ErrorCode: 429, Message: "rate limit"}, retryable: true},
		{name: "inactive recipient", resp: postmark.EmailResponse{ErrorCode: 406, Message: "inactive"}, retryable: false},
		{name: "invalid email", resp: postmark.EmailResponse{ErrorCode: 300, Message: "invalid"}, retryable: false},
		{name: "api error maintenance", err: postmark.APIError{ErrorCode: 100, Message: "maintenance"}, retryable: true},
		{name: "api error inactive", err: postmark.APIError{ErrorCode: 406, Message: "inactive"}, retryable: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := &mockPostmark{}
			api.On("SendEmail", mock.Anything, mock.Anything).Return(tt.resp, tt.err)

			s, err := email.NewPostmarkSender(postmarkConfig(), email.WithPostmarkAPI(api))
			require.NoError(t, err)

			id, err := s.Send(context.Background(), validMessage())
			require.Error(t, err)
			assert.Empty(t, id)
			assert.ErrorIs(t, err, email.ErrTransport)
			assert.Equal(t, tt.retryable, email.IsRetryable(err))
		})
	}

	t.Run("invalid message is not sent", func(t *testing.T) {
		t.Parallel()

		api := &mockPostmark{}
		s, err := email.NewPostmarkSender(postmarkConfig(), email.WithPostmarkAPI(api))
		require.NoError(t, err)

		_, err = s.Send(context.Background(), &email.Message{Subject: "x", TextBody: "x"})
		assert.ErrorIs(t, err, email.ErrInvalidMessage)
		api.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	})
}
