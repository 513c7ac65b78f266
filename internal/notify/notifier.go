package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolops/staff-leave-api/pkg/config"
	"github.com/schoolops/staff-leave-api/pkg/jobs"
)

// Notifier is the gateway to the surrounding system's delivery channels.
// Delivery is best-effort; callers log failures and never propagate them.
type Notifier interface {
	Notify(ctx context.Context, recipientID, message string) error
}

// message is the payload carried through the dispatch queue.
type message struct {
	RecipientID string
	Body        string
}

// QueueNotifier dispatches notifications asynchronously through an in-memory
// job queue so leave and substitution operations never block on delivery.
type QueueNotifier struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewQueueNotifier builds the dispatcher. The handler hands the message to
// the delivery channel; here that is the structured log, with email/SMS/push
// being the surrounding system's concern.
func NewQueueNotifier(cfg config.NotificationConfig, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &QueueNotifier{logger: logger}
	n.queue = jobs.NewQueue("notifications", n.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return n
}

// Start begins queue consumption.
func (n *QueueNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the dispatcher.
func (n *QueueNotifier) Stop() {
	n.queue.Stop()
}

// Notify enqueues a message for delivery.
func (n *QueueNotifier) Notify(ctx context.Context, recipientID, body string) error {
	return n.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "notification",
		Payload: message{RecipientID: recipientID, Body: body},
	})
}

func (n *QueueNotifier) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(message)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	n.logger.Sugar().Infow("notification delivered", "recipient_id", msg.RecipientID, "message", msg.Body)
	return nil
}

// LogNotifier delivers synchronously to the log. Used in tests and when the
// dispatcher is disabled.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify writes the message to the log.
func (n *LogNotifier) Notify(ctx context.Context, recipientID, body string) error {
	n.logger.Sugar().Infow("notification delivered", "recipient_id", recipientID, "message", body)
	return nil
}
