package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/petertzy/molthub/backend/internal/models"
	"github.com/petertzy/molthub/backend/internal/repositories"
)

type fakeNotificationRepo struct {
	created   []*models.CreateNotificationRequest
	createErr error
	unread    int64
	unreadErr error
}

func (f *fakeNotificationRepo) CreateNotification(_ context.Context, req *models.CreateNotificationRequest) (*models.Notification, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &models.Notification{
		ID:          req.ID,
		RecipientID: req.RecipientID,
		Type:        req.Type,
		Title:       req.Title,
	}, nil
}

func (f *fakeNotificationRepo) GetNotifications(_ context.Context, _ string, _ repositories.NotificationFilters) ([]models.Notification, int64, error) {
	return nil, 0, nil
}

func (f *fakeNotificationRepo) GetUnreadCount(_ context.Context, _ string) (int64, error) {
	return f.unread, f.unreadErr
}

func (f *fakeNotificationRepo) MarkAsRead(_ context.Context, _, _ string) error   { return nil }
func (f *fakeNotificationRepo) MarkAsUnread(_ context.Context, _, _ string) error { return nil }
func (f *fakeNotificationRepo) MarkAllAsRead(_ context.Context, _ string) (int64, error) {
	return 0, nil
}
func (f *fakeNotificationRepo) DeleteNotification(_ context.Context, _, _ string) error { return nil }

type fakePreferenceRepo struct {
	pushDisabled bool
}

func (f *fakePreferenceRepo) GetPreferences(_ context.Context, _ string) ([]models.Preference, error) {
	return nil, nil
}

func (f *fakePreferenceRepo) UpdatePreference(_ context.Context, _ string, _ *models.UpdatePreferenceRequest) (*models.Preference, error) {
	return nil, nil
}

func (f *fakePreferenceRepo) IsNotificationEnabled(_ context.Context, _ string, _ models.NotificationType) (bool, error) {
	return true, nil
}

func (f *fakePreferenceRepo) IsPushEnabled(_ context.Context, _ string, _ models.NotificationType) (bool, error) {
	return !f.pushDisabled, nil
}

type fakeGateway struct {
	connected    bool
	delivered    []*models.Notification
	unreadCounts []int64
}

func (f *fakeGateway) SendNotificationToAgent(_ string, notification *models.Notification) bool {
	if !f.connected {
		return false
	}
	f.delivered = append(f.delivered, notification)
	return true
}

func (f *fakeGateway) SendUnreadCountUpdate(_ string, count int64) {
	f.unreadCounts = append(f.unreadCounts, count)
}

func (f *fakeGateway) IsAgentConnected(_ string) bool { return f.connected }

type fakePushSender struct {
	pushed  []string
	pushErr error
}

func (f *fakePushSender) SendPush(_ context.Context, agentID string, _ *models.Notification) error {
	f.pushed = append(f.pushed, agentID)
	return f.pushErr
}

func postRef(id string) *string { return &id }

func validRequest() *models.CreateNotificationRequest {
	return &models.CreateNotificationRequest{
		ID:          "notif-1",
		RecipientID: "agent-1",
		Type:        models.NotificationForumPost,
		Title:       "New post: Hello",
		PostID:      postRef("post-1"),
	}
}

func TestRetryDelaySchedule(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryDelay(0, nil, nil))
	assert.Equal(t, 4*time.Second, retryDelay(1, nil, nil))
	assert.Equal(t, 8*time.Second, retryDelay(2, nil, nil))
}

func TestQueueForPriority(t *testing.T) {
	assert.Equal(t, "create_high", queueFor(createQueues, 1))
	assert.Equal(t, "create_default", queueFor(createQueues, DefaultPriority))
	assert.Equal(t, "create_low", queueFor(createQueues, 9))
	assert.Equal(t, "send_default", queueFor(sendQueues, DefaultPriority))
}

func TestQueueWeightsFavorHighPriority(t *testing.T) {
	weights := queueWeights(createQueues)
	assert.Greater(t, weights["create_high"], weights["create_default"])
	assert.Greater(t, weights["create_default"], weights["create_low"])
}

func TestAllQueuesCoversBothKinds(t *testing.T) {
	all := allQueues()
	assert.Len(t, all, len(createQueues)+len(sendQueues))
	assert.Contains(t, all, "create_high")
	assert.Contains(t, all, "send_low")
}

func TestCreateTaskCarriesRequest(t *testing.T) {
	req := validRequest()
	task, err := newCreateTask(req, DefaultPriority)
	require.NoError(t, err)
	assert.Equal(t, TypeNotificationCreate, task.Type())

	var payload CreatePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.NotNil(t, payload.Request)
	assert.Equal(t, "notif-1", payload.Request.ID)
	assert.Equal(t, "agent-1", payload.Request.RecipientID)
}

func TestDirectDispatchCreatePersistsAndDelivers(t *testing.T) {
	repo := &fakeNotificationRepo{unread: 3}
	gateway := &fakeGateway{connected: true}
	deliverer := NewDeliverer(repo, &fakePreferenceRepo{}, gateway, nil, zap.NewNop())
	dispatcher := NewDirectDispatcher(deliverer, zap.NewNop())

	req := validRequest()
	req.ID = ""
	require.NoError(t, dispatcher.DispatchCreate(context.Background(), req))

	// The dispatcher assigns the id before handing the request over.
	require.Len(t, repo.created, 1)
	assert.NotEmpty(t, repo.created[0].ID)
	require.Len(t, gateway.delivered, 1)
	assert.Equal(t, []int64{3}, gateway.unreadCounts)
}

func TestDirectDispatchBatchContinuesPastFailures(t *testing.T) {
	repo := &fakeNotificationRepo{createErr: errors.New("db down")}
	deliverer := NewDeliverer(repo, &fakePreferenceRepo{}, &fakeGateway{}, nil, zap.NewNop())
	dispatcher := NewDirectDispatcher(deliverer, zap.NewNop())

	err := dispatcher.DispatchCreateBatch(context.Background(), []*models.CreateNotificationRequest{
		validRequest(), validRequest(),
	})
	require.Error(t, err)
}

func TestDeliverFallsBackToPushWhenOffline(t *testing.T) {
	push := &fakePushSender{}
	deliverer := NewDeliverer(&fakeNotificationRepo{}, &fakePreferenceRepo{}, &fakeGateway{connected: false}, push, zap.NewNop())

	deliverer.Deliver(context.Background(), &models.Notification{ID: "notif-1", RecipientID: "agent-1", Type: models.NotificationForumPost})

	assert.Equal(t, []string{"agent-1"}, push.pushed)
}

func TestDeliverSkipsPushWhenDisabled(t *testing.T) {
	push := &fakePushSender{}
	prefs := &fakePreferenceRepo{pushDisabled: true}
	deliverer := NewDeliverer(&fakeNotificationRepo{}, prefs, &fakeGateway{connected: false}, push, zap.NewNop())

	deliverer.Deliver(context.Background(), &models.Notification{ID: "notif-1", RecipientID: "agent-1"})

	assert.Empty(t, push.pushed)
}

func TestDeliverPrefersLiveConnectionOverPush(t *testing.T) {
	push := &fakePushSender{}
	gateway := &fakeGateway{connected: true}
	deliverer := NewDeliverer(&fakeNotificationRepo{}, &fakePreferenceRepo{}, gateway, push, zap.NewNop())

	deliverer.Deliver(context.Background(), &models.Notification{ID: "notif-1", RecipientID: "agent-1"})

	assert.Len(t, gateway.delivered, 1)
	assert.Empty(t, push.pushed)
}

func TestHandleCreateTask(t *testing.T) {
	repo := &fakeNotificationRepo{}
	deliverer := NewDeliverer(repo, &fakePreferenceRepo{}, &fakeGateway{}, nil, zap.NewNop())

	task, err := newCreateTask(validRequest(), DefaultPriority)
	require.NoError(t, err)

	require.NoError(t, deliverer.HandleCreateTask(context.Background(), task))
	assert.Len(t, repo.created, 1)
}

func TestHandleCreateTaskArchivesMalformedPayload(t *testing.T) {
	deliverer := NewDeliverer(&fakeNotificationRepo{}, &fakePreferenceRepo{}, &fakeGateway{}, nil, zap.NewNop())

	err := deliverer.HandleCreateTask(context.Background(), asynq.NewTask(TypeNotificationCreate, []byte("not json")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleCreateTaskArchivesValidationFailures(t *testing.T) {
	repo := &fakeNotificationRepo{createErr: repositories.ErrMissingResourceRef}
	deliverer := NewDeliverer(repo, &fakePreferenceRepo{}, &fakeGateway{}, nil, zap.NewNop())

	task, err := newCreateTask(validRequest(), DefaultPriority)
	require.NoError(t, err)

	err = deliverer.HandleCreateTask(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleCreateTaskRetriesTransientFailures(t *testing.T) {
	repo := &fakeNotificationRepo{createErr: errors.New("connection refused")}
	deliverer := NewDeliverer(repo, &fakePreferenceRepo{}, &fakeGateway{}, nil, zap.NewNop())

	task, err := newCreateTask(validRequest(), DefaultPriority)
	require.NoError(t, err)

	err = deliverer.HandleCreateTask(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleSendTask(t *testing.T) {
	gateway := &fakeGateway{connected: true}
	deliverer := NewDeliverer(&fakeNotificationRepo{unread: 1}, &fakePreferenceRepo{}, gateway, nil, zap.NewNop())

	task, err := newSendTask(&models.Notification{ID: "notif-1", RecipientID: "agent-1"}, DefaultPriority)
	require.NoError(t, err)

	require.NoError(t, deliverer.HandleSendTask(context.Background(), task))
	assert.Len(t, gateway.delivered, 1)
}

func TestHandleSendTaskArchivesEmptyPayload(t *testing.T) {
	deliverer := NewDeliverer(&fakeNotificationRepo{}, &fakePreferenceRepo{}, &fakeGateway{}, nil, zap.NewNop())

	err := deliverer.HandleSendTask(context.Background(), asynq.NewTask(TypeNotificationSend, []byte(`{}`)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
