package email

import (
	"context"

	"github.com/google/uuid"
)

// Sender delivers a message through a transport and returns the
// provider's message id.
type Sender interface {
	Send(ctx context.Context, msg *Message) (string, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg *Message) (string, error)

func (f SenderFunc) Send(ctx context.Context, msg *Message) (string, error) {
	return f(ctx, msg)
}

// SimulateSender accepts every valid message without delivering it.
// It stands in for a transport when none is configured.
type SimulateSender struct{}

// NewSimulateSender returns a Sender that only validates and acknowledges messages.
func NewSimulateSender() SimulateSender {
	return SimulateSender{}
}

func (SimulateSender) Send(ctx context.Context, msg *Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}
	return "simulated-" + uuid.NewString(), nil
}
