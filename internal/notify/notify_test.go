// AngelaMos | 2026
// notify_test.go

package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	mu       sync.Mutex
	sent     []Message
	err      error
	released chan struct{}
}

func (s *recordingSink) Send(ctx context.Context, msg Message) error {
	if s.released != nil {
		select {
		case <-s.released:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func testMessage(to string) Message {
	return Message{To: to, Subject: "hello", Text: "body", Kind: KindVerifyEmail}
}

func TestDispatcher_DeliversAndDrains(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, DispatcherConfig{QueueSize: 16, Workers: 3}, discardLogger())
	d.Start()

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Submit(testMessage("a@b.co")))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	assert.Equal(t, 10, sink.count())
	assert.Equal(t, int64(10), d.Stats().Sent)
	assert.ErrorIs(t, d.Submit(testMessage("a@b.co")), ErrClosed)
}

func TestDispatcher_QueueFullDrops(t *testing.T) {
	sink := &recordingSink{released: make(chan struct{})}
	d := NewDispatcher(sink, DispatcherConfig{QueueSize: 1, Workers: 1}, discardLogger())

	require.NoError(t, d.Submit(testMessage("one@b.co")))
	assert.ErrorIs(t, d.Submit(testMessage("two@b.co")), ErrQueueFull)
	assert.Equal(t, int64(1), d.Stats().Dropped)
	assert.Equal(t, 1, d.Stats().Queued)

	d.Start()
	close(sink.released)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	assert.Equal(t, 1, sink.count())
}

func TestDispatcher_FailuresAreCountedNotReturned(t *testing.T) {
	sink := &recordingSink{err: errors.New("smtp down")}
	d := NewDispatcher(sink, DispatcherConfig{QueueSize: 4, Workers: 1}, discardLogger())
	d.Start()

	require.NoError(t, d.Submit(testMessage("a@b.co")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	assert.Equal(t, int64(1), d.Stats().Failed)
	assert.Zero(t, d.Stats().Sent)
}

func TestDispatcher_RejectsInvalidMessage(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, DispatcherConfig{}, discardLogger())
	assert.Error(t, d.Submit(Message{Subject: "no recipient"}))
}

func TestComposer_VerificationEmail(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Composer{AppName: "Marketplace", From: "no-reply@m.co", Now: func() time.Time { return fixed }}

	link := "https://m.co/v1/auth/users/verify-email/abc123"
	msg, err := c.VerificationEmail("jane@m.co", "Jane <script>", link, 20*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "jane@m.co", msg.To)
	assert.Equal(t, KindVerifyEmail, msg.Kind)
	assert.Equal(t, fixed, msg.CreatedAt)
	assert.Contains(t, msg.HTML, link)
	assert.Contains(t, msg.Text, link)
	assert.Contains(t, msg.Text, "20 minutes")
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestComposer_ResetEmail(t *testing.T) {
	msg, err := Composer{AppName: "Marketplace"}.ResetEmail(
		"jane@m.co", "Jane", "https://m.co/reset/xyz", 5*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, KindResetPassword, msg.Kind)
	assert.True(t, strings.Contains(msg.Text, "5 minutes"))
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
}

type fakeKafkaWriter struct {
	msgs []kafka.Message
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error { return nil }

func TestKafkaSink_KeysByRecipient(t *testing.T) {
	w := &fakeKafkaWriter{}
	sink := &KafkaSink{writer: w}

	require.NoError(t, sink.Send(context.Background(), testMessage("jane@m.co")))
	require.Len(t, w.msgs, 1)

	assert.Equal(t, "jane@m.co", string(w.msgs[0].Key))
	assert.Contains(t, string(w.msgs[0].Value), `"subject":"hello"`)
	assert.Equal(t, "kind", w.msgs[0].Headers[0].Key)
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink(discardLogger())
	assert.NoError(t, sink.Send(context.Background(), testMessage("a@b.co")))
	assert.Error(t, sink.Send(context.Background(), Message{}))
}

type fakeAMQPChannel struct {
	key string
	pub amqp.Publishing
}

func (f *fakeAMQPChannel) PublishWithContext(
	_ context.Context,
	_, key string,
	_, _ bool,
	msg amqp.Publishing,
) error {
	f.key = key
	f.pub = msg
	return nil
}

func (f *fakeAMQPChannel) Close() error { return nil }

func TestAMQPSink_PublishesPersistent(t *testing.T) {
	ch := &fakeAMQPChannel{}
	sink := &AMQPSink{ch: ch, queue: "mail_outbound"}

	require.NoError(t, sink.Send(context.Background(), testMessage("jane@m.co")))

	assert.Equal(t, "mail_outbound", ch.key)
	assert.Equal(t, amqp.Persistent, ch.pub.DeliveryMode)
	assert.Equal(t, "application/json", ch.pub.ContentType)
	assert.Equal(t, KindVerifyEmail, ch.pub.Type)
	assert.NoError(t, sink.Close())
}
