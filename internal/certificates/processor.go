package certificates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/workflow"
	"github.com/rs/zerolog"
)

// Engine is the part of the workflow engine the worker reports to.
type Engine interface {
	GetApplicationState(ctx context.Context, applicationID string) (*workflow.ApplicationState, error)
	RecordCertificate(ctx context.Context, in workflow.CertificateInput) (*workflow.ApplicationState, error)
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	engine   Engine
	store    ObjectStore
	renderer *Renderer
	log      zerolog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(engine Engine, store ObjectStore, renderer *Renderer, log zerolog.Logger) *Processor {
	return &Processor{
		engine:   engine,
		store:    store,
		renderer: renderer,
		log:      log.With().Str("component", "certificate-worker").Logger(),
	}
}

// Handler registers the generate job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(GenerateTask, p.handleGenerate)
	return mux
}

func (p *Processor) handleGenerate(ctx context.Context, task *asynq.Task) error {
	var payload Payload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ApplicationID == "" {
		return fmt.Errorf("payload without application id: %w", asynq.SkipRetry)
	}
	log := p.log.With().Str("application_id", payload.ApplicationID).Logger()

	state, err := p.engine.GetApplicationState(ctx, payload.ApplicationID)
	if err != nil {
		return fmt.Errorf("load application: %w", err)
	}
	if state.CertificateState != models.CertificatePending {
		log.Info().Str("certificate_state", string(state.CertificateState)).Msg("certificate not pending, skipping")
		return nil
	}

	key, err := p.generate(ctx, state)
	if err != nil {
		if finalAttempt(ctx) {
			p.fail(ctx, log, payload.ApplicationID, err)
		}
		return err
	}

	if _, err := p.engine.RecordCertificate(ctx, workflow.CertificateInput{
		ApplicationID: payload.ApplicationID,
		Outcome:       models.CertificateGenerated,
		Reference:     key,
		Actor:         workflow.SystemActor,
	}); err != nil {
		if errors.Is(err, workflow.ErrInvalidTransition) {
			log.Warn().Err(err).Msg("certificate state moved while generating, dropping result")
			return nil
		}
		return fmt.Errorf("record certificate: %w", err)
	}
	log.Info().Str("object_key", key).Msg("certificate generated")
	return nil
}

func (p *Processor) generate(ctx context.Context, state *workflow.ApplicationState) (string, error) {
	doc, err := p.renderer.Render(state)
	if err != nil {
		return "", fmt.Errorf("render certificate: %w", err)
	}
	key := ObjectKey(state.RegistrationNo)
	if err := p.store.Put(ctx, key, doc); err != nil {
		return "", err
	}
	return key, nil
}

func (p *Processor) fail(ctx context.Context, log zerolog.Logger, applicationID string, cause error) {
	_, err := p.engine.RecordCertificate(ctx, workflow.CertificateInput{
		ApplicationID: applicationID,
		Outcome:       models.CertificateFailed,
		Detail:        cause.Error(),
		Actor:         workflow.SystemActor,
	})
	if err != nil {
		log.Error().Err(err).Msg("could not mark certificate failed")
		return
	}
	log.Error().Err(cause).Msg("certificate generation failed, retry required")
}

// finalAttempt reports whether the running task has no retries left. Outside
// an asynq worker every attempt is final.
func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	max, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= max
}
