package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/petertzy/molthub/backend/internal/models"
	"github.com/petertzy/molthub/backend/internal/repositories"
)

// Gateway is the realtime side of delivery, satisfied by realtime.Hub
type Gateway interface {
	SendNotificationToAgent(agentID string, notification *models.Notification) bool
	SendUnreadCountUpdate(agentID string, count int64)
	IsAgentConnected(agentID string) bool
}

// PushSender delivers a mobile push for recipients without a live connection.
// Best-effort; failures are logged and swallowed.
type PushSender interface {
	SendPush(ctx context.Context, agentID string, notification *models.Notification) error
}

// Deliverer persists notifications and pushes them to live connections. It
// backs both the queue workers and the direct (unqueued) dispatch path, so
// both modes share identical delivery semantics.
type Deliverer struct {
	notifications repositories.NotificationRepository
	preferences   repositories.PreferenceRepository
	gateway       Gateway
	push          PushSender // nil when mobile push is not configured
	logger        *zap.Logger
}

// NewDeliverer creates a Deliverer
func NewDeliverer(
	notifications repositories.NotificationRepository,
	preferences repositories.PreferenceRepository,
	gateway Gateway,
	push PushSender,
	logger *zap.Logger,
) *Deliverer {
	return &Deliverer{
		notifications: notifications,
		preferences:   preferences,
		gateway:       gateway,
		push:          push,
		logger:        logger,
	}
}

// Create persists the notification and delivers it. Validation failures are
// permanent; they are reported so the job can be archived without retrying.
func (d *Deliverer) Create(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error) {
	notification, err := d.notifications.CreateNotification(ctx, req)
	if err != nil {
		return nil, err
	}
	d.Deliver(ctx, notification)
	return notification, nil
}

// Deliver pushes an already-persisted notification to the recipient's live
// connections, following up with an unread-count update. When the recipient
// is offline the notification falls back to mobile push if the recipient
// opted in. Delivery is best-effort throughout; the record is durable before
// this is ever called.
func (d *Deliverer) Deliver(ctx context.Context, notification *models.Notification) {
	if d.gateway.SendNotificationToAgent(notification.RecipientID, notification) {
		count, err := d.notifications.GetUnreadCount(ctx, notification.RecipientID)
		if err != nil {
			d.logger.Warn("unread count lookup failed after delivery",
				zap.String("recipient_id", notification.RecipientID), zap.Error(err))
			return
		}
		d.gateway.SendUnreadCountUpdate(notification.RecipientID, count)
		return
	}

	if d.push == nil {
		return
	}
	enabled, err := d.preferences.IsPushEnabled(ctx, notification.RecipientID, notification.Type)
	if err != nil {
		d.logger.Warn("push preference lookup failed",
			zap.String("recipient_id", notification.RecipientID), zap.Error(err))
		return
	}
	if !enabled {
		return
	}
	if err := d.push.SendPush(ctx, notification.RecipientID, notification); err != nil {
		d.logger.Warn("mobile push failed",
			zap.String("recipient_id", notification.RecipientID),
			zap.String("notification_id", notification.ID),
			zap.Error(err))
	}
}

// HandleCreateTask processes a notify:create job
func (d *Deliverer) HandleCreateTask(ctx context.Context, t *asynq.Task) error {
	var payload CreatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unable to parse create payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Request == nil {
		return fmt.Errorf("create payload has no request: %w", asynq.SkipRetry)
	}

	if _, err := d.Create(ctx, payload.Request); err != nil {
		if errors.Is(err, repositories.ErrInvalidNotificationType) || errors.Is(err, repositories.ErrMissingResourceRef) {
			// Malformed requests never become valid; archive immediately.
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

// HandleSendTask processes a notify:send job
func (d *Deliverer) HandleSendTask(ctx context.Context, t *asynq.Task) error {
	var payload SendPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unable to parse send payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Notification == nil {
		return fmt.Errorf("send payload has no notification: %w", asynq.SkipRetry)
	}

	d.Deliver(ctx, payload.Notification)
	return nil
}
