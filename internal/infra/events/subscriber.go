package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsmap/internal/handler/http/requestid"

	"github.com/nats-io/nats.go"
)

// handleTimeout bounds the work done for one message, including the
// notification burst.
const handleTimeout = 30 * time.Second

// Connect dials NATS with reconnects that never give up.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("newsmap-worker"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.Any("error", err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("Connect: %w", err)
	}
	return nc, nil
}

// Subscriber feeds NATS content-change events into a Processor.
type Subscriber struct {
	nc        *nats.Conn
	processor *Processor
	logger    *slog.Logger
	sub       *nats.Subscription
}

// NewSubscriber creates a Subscriber. Call Start to begin receiving.
func NewSubscriber(nc *nats.Conn, processor *Processor, logger *slog.Logger) *Subscriber {
	return &Subscriber{nc: nc, processor: processor, logger: logger}
}

// Start joins the worker queue group on Subject.
func (s *Subscriber) Start() error {
	sub, err := s.nc.QueueSubscribe(Subject, QueueGroup, s.handleMessage)
	if err != nil {
		return fmt.Errorf("Start: %w", err)
	}
	s.sub = sub
	s.logger.Info("subscribed to content changes",
		slog.String("subject", Subject),
		slog.String("queue", QueueGroup))
	return nil
}

// Close drains the subscription so in-flight messages finish.
func (s *Subscriber) Close() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Drain()
}

func (s *Subscriber) handleMessage(msg *nats.Msg) {
	ev, err := Decode(msg.Data)
	if err != nil {
		RecordRejected()
		s.logger.Warn("dropping malformed content event",
			slog.String("subject", msg.Subject),
			slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	ctx = requestid.Ensure(ctx)

	s.processor.Process(ctx, ev)
}
