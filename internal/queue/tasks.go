package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/petertzy/molthub/backend/internal/models"
)

// Task types for the two delivery job kinds
const (
	TypeNotificationCreate = "notify:create"
	TypeNotificationSend   = "notify:send"
)

// Retry policy: up to maxAttempts tries with exponential backoff starting at
// backoffBase. Jobs that exhaust their attempts are archived for operator
// inspection; completed jobs are retained briefly, then pruned.
const (
	maxAttempts        = 3
	backoffBase        = 2 * time.Second
	completedRetention = time.Hour
)

// Worker pool sizes per job kind. Send jobs are push-only and cheaper, hence
// the larger pool.
const (
	CreateConcurrency = 5
	SendConcurrency   = 10
)

// DefaultPriority is the mid-range default so explicitly prioritized callers
// can be served first. Lower value means higher priority.
const DefaultPriority = 5

// Queue names per job kind, in strict priority order
var (
	createQueues = []string{"create_high", "create_default", "create_low"}
	sendQueues   = []string{"send_high", "send_default", "send_low"}
)

// queueFor maps a numeric priority onto one of a kind's three queues
func queueFor(queues []string, priority int) string {
	switch {
	case priority < DefaultPriority:
		return queues[0]
	case priority > DefaultPriority:
		return queues[2]
	default:
		return queues[1]
	}
}

// queueWeights builds the consumption weights for a kind's queue set
func queueWeights(queues []string) map[string]int {
	return map[string]int{queues[0]: 3, queues[1]: 2, queues[2]: 1}
}

// allQueues lists every queue the pipeline uses, for stats and admin sweeps
func allQueues() []string {
	all := make([]string, 0, len(createQueues)+len(sendQueues))
	all = append(all, createQueues...)
	all = append(all, sendQueues...)
	return all
}

// retryDelay implements the exponential backoff schedule: 2s, 4s, 8s, ...
func retryDelay(attempt int, _ error, _ *asynq.Task) time.Duration {
	return backoffBase << attempt
}

// CreatePayload is the body of a notify:create job
type CreatePayload struct {
	Request *models.CreateNotificationRequest `json:"request"`
}

// SendPayload is the body of a notify:send job; the notification is already
// persisted and only needs to be pushed.
type SendPayload struct {
	Notification *models.Notification `json:"notification"`
}

func newCreateTask(req *models.CreateNotificationRequest, priority int) (*asynq.Task, error) {
	payload, err := json.Marshal(CreatePayload{Request: req})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotificationCreate, payload,
		asynq.Queue(queueFor(createQueues, priority)),
		asynq.MaxRetry(maxAttempts-1),
		asynq.Retention(completedRetention),
	), nil
}

func newSendTask(notification *models.Notification, priority int) (*asynq.Task, error) {
	payload, err := json.Marshal(SendPayload{Notification: notification})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotificationSend, payload,
		asynq.Queue(queueFor(sendQueues, priority)),
		asynq.MaxRetry(maxAttempts-1),
		asynq.Retention(completedRetention),
	), nil
}
