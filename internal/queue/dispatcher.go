package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/petertzy/molthub/backend/internal/models"
)

// DispatchOption customizes a single dispatch
type DispatchOption func(*dispatchOptions)

type dispatchOptions struct {
	priority int
}

// WithPriority overrides the job priority; lower value is served first
func WithPriority(priority int) DispatchOption {
	return func(o *dispatchOptions) {
		o.priority = priority
	}
}

func applyOptions(opts []DispatchOption) dispatchOptions {
	resolved := dispatchOptions{priority: DefaultPriority}
	for _, opt := range opts {
		opt(&resolved)
	}
	return resolved
}

// Dispatcher hands notification work to the delivery pipeline. The queued
// implementation is selected at startup when the broker is reachable; the
// direct one is the synchronous fallback, so the original request never
// fails just because the broker is down.
type Dispatcher interface {
	DispatchCreate(ctx context.Context, req *models.CreateNotificationRequest, opts ...DispatchOption) error
	DispatchCreateBatch(ctx context.Context, reqs []*models.CreateNotificationRequest, opts ...DispatchOption) error
	DispatchSend(ctx context.Context, notification *models.Notification, opts ...DispatchOption) error
}

// QueuedDispatcher enqueues jobs onto the durable broker-backed queue
type QueuedDispatcher struct {
	client *asynq.Client
	logger *zap.Logger
}

// NewQueuedDispatcher creates a dispatcher backed by the durable queue
func NewQueuedDispatcher(redisOpt asynq.RedisClientOpt, logger *zap.Logger) *QueuedDispatcher {
	return &QueuedDispatcher{
		client: asynq.NewClient(redisOpt),
		logger: logger,
	}
}

func (d *QueuedDispatcher) DispatchCreate(ctx context.Context, req *models.CreateNotificationRequest, opts ...DispatchOption) error {
	resolved := applyOptions(opts)

	// Assign the notification id before the job is enqueued so that retried
	// attempts cannot insert duplicates.
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	task, err := newCreateTask(req, resolved.priority)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return err
	}
	return nil
}

// DispatchCreateBatch enqueues one job per request. A failing enqueue does
// not block the rest of the batch; the joined error reports every failure.
func (d *QueuedDispatcher) DispatchCreateBatch(ctx context.Context, reqs []*models.CreateNotificationRequest, opts ...DispatchOption) error {
	var errs []error
	for _, req := range reqs {
		if err := d.DispatchCreate(ctx, req, opts...); err != nil {
			d.logger.Error("failed to enqueue notification",
				zap.String("recipient_id", req.RecipientID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *QueuedDispatcher) DispatchSend(ctx context.Context, notification *models.Notification, opts ...DispatchOption) error {
	resolved := applyOptions(opts)
	task, err := newSendTask(notification, resolved.priority)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return err
	}
	return nil
}

// Close releases the underlying broker connection
func (d *QueuedDispatcher) Close() error {
	return d.client.Close()
}

// DirectDispatcher performs creation and delivery synchronously, without the
// broker. Slower for the caller but behaviorally identical.
type DirectDispatcher struct {
	deliverer *Deliverer
	logger    *zap.Logger
}

// NewDirectDispatcher creates the synchronous fallback dispatcher
func NewDirectDispatcher(deliverer *Deliverer, logger *zap.Logger) *DirectDispatcher {
	return &DirectDispatcher{deliverer: deliverer, logger: logger}
}

func (d *DirectDispatcher) DispatchCreate(ctx context.Context, req *models.CreateNotificationRequest, _ ...DispatchOption) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	_, err := d.deliverer.Create(ctx, req)
	return err
}

func (d *DirectDispatcher) DispatchCreateBatch(ctx context.Context, reqs []*models.CreateNotificationRequest, opts ...DispatchOption) error {
	var errs []error
	for _, req := range reqs {
		if err := d.DispatchCreate(ctx, req, opts...); err != nil {
			d.logger.Error("failed to create notification",
				zap.String("recipient_id", req.RecipientID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *DirectDispatcher) DispatchSend(ctx context.Context, notification *models.Notification, _ ...DispatchOption) error {
	d.deliverer.Deliver(ctx, notification)
	return nil
}
