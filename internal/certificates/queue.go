// Package certificates generates the clearance certificate of a completed
// application. The engine hands work to an asynq queue; a worker renders the
// document, stores it in object storage and reports the outcome back.
package certificates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/localnerve/nodues/internal/config"
	"github.com/localnerve/nodues/internal/metrics"
	"github.com/rs/zerolog"
)

// GenerateTask is scheduled whenever a certificate becomes pending.
const GenerateTask = "certificate:generate"

const maxRetry = 5

// Payload identifies the application to certify.
type Payload struct {
	ApplicationID string `json:"application_id"`
}

// RedisOpt builds the asynq connection options from the configuration.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

type taskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type taskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

// Enqueuer schedules certificate generation. The task id is the application
// id, so at most one generation per application is queued at a time.
type Enqueuer struct {
	client    taskClient
	inspector taskInspector
	queue     string
	log       zerolog.Logger
}

// NewEnqueuer creates an Enqueuer over an asynq client and inspector.
func NewEnqueuer(client *asynq.Client, inspector *asynq.Inspector, queue string, log zerolog.Logger) *Enqueuer {
	e := &Enqueuer{client: client, queue: queue, log: log.With().Str("component", "certificates").Logger()}
	if inspector != nil {
		e.inspector = inspector
	}
	return e
}

func newTask(applicationID string) (*asynq.Task, error) {
	data, err := json.Marshal(Payload{ApplicationID: applicationID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(GenerateTask, data), nil
}

// Trigger enqueues generation for applicationID. A task that is already
// queued for the application counts as success. An archived task left over
// from an exhausted earlier attempt is replaced.
func (e *Enqueuer) Trigger(ctx context.Context, applicationID string) error {
	task, err := newTask(applicationID)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.TaskID(applicationID), asynq.Queue(e.queue), asynq.MaxRetry(maxRetry)}

	_, err = e.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) && e.replaceArchived(applicationID) {
		_, err = e.client.EnqueueContext(ctx, task, opts...)
	}
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		e.log.Debug().Str("application_id", applicationID).Msg("certificate task already queued")
		return nil
	case err != nil:
		return fmt.Errorf("enqueue certificate task: %w", err)
	}

	metrics.CertificatesEnqueued.Inc()
	e.log.Info().Str("application_id", applicationID).Str("queue", e.queue).Msg("certificate task enqueued")
	return nil
}

func (e *Enqueuer) replaceArchived(applicationID string) bool {
	if e.inspector == nil {
		return false
	}
	info, err := e.inspector.GetTaskInfo(e.queue, applicationID)
	if err != nil || info.State != asynq.TaskStateArchived {
		return false
	}
	if err := e.inspector.DeleteTask(e.queue, applicationID); err != nil {
		e.log.Warn().Err(err).Str("application_id", applicationID).Msg("could not remove archived certificate task")
		return false
	}
	return true
}
