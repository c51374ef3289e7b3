package queue

import (
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Workers hosts the background consumers for the delivery queue: one bounded
// pool per job kind. The two servers consume disjoint queue sets so a create
// worker never picks up a send job.
type Workers struct {
	createServer *asynq.Server
	sendServer   *asynq.Server
	deliverer    *Deliverer
	logger       *zap.Logger
}

// NewWorkers builds both worker pools. The broker owns job state transitions
// and lease expiry: a worker that stops heartbeating loses its lease and the
// job is handed to another worker.
func NewWorkers(redisOpt asynq.RedisClientOpt, deliverer *Deliverer, logger *zap.Logger) *Workers {
	asynqLogger := &zapAsynqLogger{logger: logger.Sugar()}

	createServer := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:    CreateConcurrency,
		Queues:         queueWeights(createQueues),
		StrictPriority: true,
		RetryDelayFunc: retryDelay,
		Logger:         asynqLogger,
	})
	sendServer := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:    SendConcurrency,
		Queues:         queueWeights(sendQueues),
		StrictPriority: true,
		RetryDelayFunc: retryDelay,
		Logger:         asynqLogger,
	})

	return &Workers{
		createServer: createServer,
		sendServer:   sendServer,
		deliverer:    deliverer,
		logger:       logger,
	}
}

// Start launches both worker pools without blocking
func (w *Workers) Start() error {
	createMux := asynq.NewServeMux()
	createMux.HandleFunc(TypeNotificationCreate, w.deliverer.HandleCreateTask)
	if err := w.createServer.Start(createMux); err != nil {
		return err
	}

	sendMux := asynq.NewServeMux()
	sendMux.HandleFunc(TypeNotificationSend, w.deliverer.HandleSendTask)
	if err := w.sendServer.Start(sendMux); err != nil {
		w.createServer.Shutdown()
		return err
	}

	w.logger.Info("delivery queue workers started",
		zap.Int("create_concurrency", CreateConcurrency),
		zap.Int("send_concurrency", SendConcurrency))
	return nil
}

// Shutdown waits for in-flight jobs to finish, then stops both pools
func (w *Workers) Shutdown() {
	w.createServer.Shutdown()
	w.sendServer.Shutdown()
	w.logger.Info("delivery queue workers stopped")
}

// zapAsynqLogger adapts zap to asynq's logging interface
type zapAsynqLogger struct {
	logger *zap.SugaredLogger
}

func (l *zapAsynqLogger) Debug(args ...interface{}) { l.logger.Debug(args...) }
func (l *zapAsynqLogger) Info(args ...interface{})  { l.logger.Info(args...) }
func (l *zapAsynqLogger) Warn(args ...interface{})  { l.logger.Warn(args...) }
func (l *zapAsynqLogger) Error(args ...interface{}) { l.logger.Error(args...) }
func (l *zapAsynqLogger) Fatal(args ...interface{}) { l.logger.Fatal(args...) }
