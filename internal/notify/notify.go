// AngelaMos | 2026
// notify.go

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrClosed    = errors.New("notification dispatcher closed")
)

// Message is one outbound email. Sinks that hand off to a broker publish
// it as JSON for a separate mail worker to render and deliver.
type Message struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
	// Kind is a stable label such as "verify-email", for logs and routing.
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

func (m Message) Validate() error {
	if m.To == "" {
		return fmt.Errorf("notify: message has no recipient")
	}
	if m.Subject == "" {
		return fmt.Errorf("notify: message has no subject")
	}
	return nil
}

func (m Message) encode() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return body, nil
}

type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// LogSink is the development sink. It never logs bodies because they
// carry single-use tokens.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "email delivered to log sink",
		"to", msg.To,
		"subject", msg.Subject,
		"kind", msg.Kind,
		"html_bytes", len(msg.HTML),
	)

	return nil
}

func (s *LogSink) Close() error { return nil }
