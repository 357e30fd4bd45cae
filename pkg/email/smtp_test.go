package email_test

import (
	"context"
	"net"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/email"
)

// fakeRelay speaks just enough SMTP for net/smtp and answers RCPT with rcptCode.
func fakeRelay(conn net.Conn, rcptCode int, data chan<- string) {
	defer conn.Close()

	tc := textproto.NewConn(conn)
	_ = tc.PrintfLine("220 relay.local ESMTP")
	for {
		line, err := tc.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			_ = tc.PrintfLine("250-relay.local")
			_ = tc.PrintfLine("250 SIZE 10485760")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			_ = tc.PrintfLine("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO"):
			if rcptCode != 250 {
				_ = tc.PrintfLine("%d mailbox unavailable", rcptCode)
				continue
			}
			_ = tc.PrintfLine("250 OK")
		case cmd == "DATA":
			_ = tc.PrintfLine("354 go ahead")
			lines, err := tc.ReadDotLines()
			if err != nil {
				return
			}
			data <- strings.Join(lines, "\n")
			_ = tc.PrintfLine("250 queued")
		case cmd == "QUIT":
			_ = tc.PrintfLine("221 bye")
			return
		default:
			_ = tc.PrintfLine("250 OK")
		}
	}
}

func pipeDialer(rcptCode int, data chan<- string) func(context.Context, string, string) (net.Conn, error) {
	return func(context.Context, string, string) (net.Conn, error) {
		client, server := net.Pipe()
		go fakeRelay(server, rcptCode, data)
		return client, nil
	}
}

func TestSMTPSender_Send(t *testing.T) {
	t.Parallel()

	data := make(chan string, 1)
	s, err := email.NewSMTPSender(
		email.SMTPConfig{Host: "relay.local", Port: 25},
		"events@club.org",
		email.WithDialer(pipeDialer(250, data)),
	)
	require.NoError(t, err)

	msg := validMessage()
	msg.From = ""
	id, err := s.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	body := <-data
	assert.Contains(t, body, "Subject: Your event request")
	assert.Contains(t, body, "events@club.org")
	assert.Contains(t, body, id)
	assert.Empty(t, msg.From, "caller message must not be modified")
}

func TestSMTPSender_RecipientRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		code      int
		retryable bool
	}{
		{name: "temporary", code: 450, retryable: true},
		{name: "permanent", code: 550, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := email.NewSMTPSender(
				email.SMTPConfig{Host: "relay.local"},
				"events@club.org",
				email.WithDialer(pipeDialer(tt.code, make(chan string, 1))),
			)
			require.NoError(t, err)

			_, err = s.Send(context.Background(), validMessage())
			require.Error(t, err)
			assert.ErrorIs(t, err, email.ErrTransport)
			assert.Equal(t, tt.retryable, email.IsRetryable(err))

			var se *email.SendError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code)
		})
	}
}

func TestNewSMTPSender_RequiresHost(t *testing.T) {
	t.Parallel()

	_, err := email.NewSMTPSender(email.SMTPConfig{}, "events@club.org")
	assert.ErrorIs(t, err, email.ErrInvalidConfig)
}
