package evaluator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"backend-eval/domain"
)

// Task is one unit of background evaluation work, serialized onto the queue.
type Task struct {
	JobID string `json:"job_id"`
	Model string `json:"model"`
}

// Message is a single chat message sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions tune a single provider call.
type ChatOptions struct {
	Temperature   float64
	MaxTokens     int
	Retries       int
	BackoffFactor float64
}

// ChatClient talks to the LLM provider. It always returns a structured
// mapping unless every retry attempt has been exhausted.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (map[string]interface{}, error)
}

// JobStore persists Jobs. ClaimProcessing and Complete enforce the
// forward-only status machine.
type JobStore interface {
	Create(job *domain.Job) error
	Get(id string) (*domain.Job, error)
	// ClaimProcessing moves the job from queued to processing. Returns false
	// when the job is no longer queued, which lets a duplicate background
	// unit bail out instead of racing the first one.
	ClaimProcessing(id string) (bool, error)
	// Complete writes the terminal result and the completed status together.
	Complete(id string, resultJSON string) error
}

// TextExtractor resolves an upload ref to plain text. An absent or unreadable
// document yields "" rather than an error.
type TextExtractor interface {
	Extract(ref string) string
}

// Dispatcher hands a task to a background worker without blocking the caller.
type Dispatcher interface {
	Enqueue(task Task) error
}

// Service owns the Job lifecycle: it is the only writer of status and result.
type Service struct {
	store   JobStore
	llm     ChatClient
	extract TextExtractor
	queue   Dispatcher
	jobDesc string
	log     *logrus.Logger
}

func NewService(store JobStore, llm ChatClient, extract TextExtractor, queue Dispatcher, jobDesc string, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:   store,
		llm:     llm,
		extract: extract,
		queue:   queue,
		jobDesc: jobDesc,
		log:     log,
	}
}

// Submit creates a queued Job for the two uploaded documents. No LLM
// interaction happens here.
func (s *Service) Submit(cvRef, reportRef string) (*domain.Job, error) {
	job := &domain.Job{
		ID:            uuid.NewString(),
		Status:        domain.StatusQueued,
		CVFileRef:     cvRef,
		ReportFileRef: reportRef,
	}
	if err := s.store.Create(job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// Evaluate schedules background evaluation of an existing job and returns
// immediately. domain.ErrNotFound when the id is unknown.
func (s *Service) Evaluate(jobID, model string) error {
	if _, err := s.store.Get(jobID); err != nil {
		return err
	}
	return s.queue.Enqueue(Task{JobID: jobID, Model: model})
}

// Get is a pure read of the current job state.
func (s *Service) Get(jobID string) (*domain.Job, error) {
	return s.store.Get(jobID)
}

// ProcessTask runs one background evaluation to its terminal state. Every
// failure mode except a vanished job ends in status completed with an error
// payload in result, so the status endpoint never hangs on an LLM problem.
func (s *Service) ProcessTask(ctx context.Context, task Task) {
	log := s.log.WithField("job_id", task.JobID)

	job, err := s.store.Get(task.JobID)
	if err != nil {
		log.WithError(err).Error("job vanished between scheduling and execution")
		return
	}

	claimed, err := s.store.ClaimProcessing(job.ID)
	if err != nil {
		log.WithError(err).Error("failed to claim job")
		return
	}
	if !claimed {
		log.Warn("job is no longer queued, skipping duplicate evaluation")
		return
	}

	cvText := s.extract.Extract(job.CVFileRef)
	reportText := s.extract.Extract(job.ReportFileRef)

	messages := []Message{
		{Role: "system", Content: SystemInstruction},
		{Role: "user", Content: BuildPrompt(s.jobDesc, cvText, reportText, Rubric)},
	}

	out, err := s.llm.Chat(ctx, task.Model, messages, ChatOptions{
		Temperature:   0.0, // deterministic scoring
		MaxTokens:     1200,
		Retries:       3,
		BackoffFactor: 2,
	})

	var outcome domain.Outcome
	switch {
	case err != nil:
		log.WithError(err).Error("provider call exhausted")
		outcome = domain.ProviderFailedOutcome(err.Error(),
			fmt.Sprintf("chat call for job %s with model %s: %v", job.ID, task.Model, err))
	default:
		if verr := ValidateEvaluationResult(out); verr != nil {
			log.WithField("reason", verr.Error()).Warn("payload failed schema validation")
			outcome = domain.ValidationFailedOutcome(verr.Error(), out)
		} else if result, derr := domain.EvaluationResultFromMap(out); derr != nil {
			// Validation passed but a field carries the wrong type, such as
			// numeric feedback.
			log.WithError(derr).Warn("payload does not fit the result schema")
			outcome = domain.ValidationFailedOutcome(derr.Error(), out)
		} else {
			outcome = domain.SuccessOutcome(result)
		}
	}

	payload, err := outcome.JSON()
	if err != nil {
		// The provider handed back something json.Marshal chokes on.
		payload, _ = domain.ProviderFailedOutcome("result serialization failed: "+err.Error(), "").JSON()
	}

	if err := s.store.Complete(job.ID, payload); err != nil {
		log.WithError(err).Error("failed to persist terminal result")
		return
	}
	log.Info("✅ evaluation completed")
}
