// Package orchestration runs the fan-out evaluation of a transcript:
// every pending criterion task is dispatched to the backend in
// parallel, results are checkpointed as they arrive, and a complete
// run is assembled into a scorecard.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"

	"github.com/callscale/callscore/internal/checkpoint"
	"github.com/callscale/callscore/internal/criteria"
	"github.com/callscale/callscore/internal/evaluator"
	"github.com/callscale/callscore/internal/models"
	"github.com/callscale/callscore/internal/scorecard"
	"github.com/callscale/callscore/internal/transcript"
)

const (
	defaultTaskTimeout = 2 * time.Minute
	defaultMaxRetries  = 2
	defaultRetryBase   = 500 * time.Millisecond
)

// FailedCriterion pairs a criterion id with the error that exhausted it.
type FailedCriterion struct {
	CriterionID string
	Err         error
}

// PartialEvaluationError reports a run where at least one criterion
// could not be scored. Completed results are already checkpointed, so
// rerunning with the same run id retries only the failures.
type PartialEvaluationError struct {
	RunID     string
	Completed map[string]models.CriterionResult
	Failed    []FailedCriterion
}

func (e *PartialEvaluationError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.CriterionID)
	}
	return fmt.Sprintf("run %s: %d of %d criteria failed: %s",
		e.RunID, len(e.Failed), len(e.Failed)+len(e.Completed), strings.Join(ids, ", "))
}

// FeedbackParseError marks a run whose feedback output was unusable.
// Unlike a scalar failure this poisons the whole run: the scorecard
// cannot be assembled without the feedback payload.
type FeedbackParseError struct {
	RunID string
	Err   error
}

func (e *FeedbackParseError) Error() string {
	return fmt.Sprintf("run %s: feedback output unusable: %v", e.RunID, e.Err)
}

func (e *FeedbackParseError) Unwrap() error {
	return e.Err
}

// ProgressEventType identifies a progress notification.
type ProgressEventType string

const (
	EventRunStarted         ProgressEventType = "run_started"
	EventRunResumed         ProgressEventType = "run_resumed"
	EventCriterionStarted   ProgressEventType = "criterion_started"
	EventCriterionRetried   ProgressEventType = "criterion_retried"
	EventCriterionCompleted ProgressEventType = "criterion_completed"
	EventCriterionFailed    ProgressEventType = "criterion_failed"
	EventRunCompleted       ProgressEventType = "run_completed"
)

// ProgressEvent is a point-in-time notification about a run. Total is
// the profile's criterion count; Completed counts results recorded so
// far, including those restored from the checkpoint.
type ProgressEvent struct {
	Type        ProgressEventType
	RunID       string
	CriterionID string
	Attempt     int
	Completed   int
	Total       int
	Err         error
}

// ProgressListener receives progress events. Listeners are invoked
// serially and must not block.
type ProgressListener func(ProgressEvent)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkerLimit caps concurrent backend calls. Zero means one worker
// per pending criterion.
func WithWorkerLimit(n int) Option {
	return func(o *Orchestrator) { o.workerLimit = n }
}

// WithTaskTimeout bounds each backend call attempt.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.taskTimeout = d }
}

// WithMaxRetries sets how many times a transient backend failure is
// retried after the initial attempt.
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) { o.maxRetries = n }
}

// WithRetryBase sets the first backoff interval for retries.
func WithRetryBase(d time.Duration) Option {
	return func(o *Orchestrator) { o.retryBase = d }
}

// WithProgressListener registers a listener for run progress events.
func WithProgressListener(l ProgressListener) Option {
	return func(o *Orchestrator) { o.listeners = append(o.listeners, l) }
}

// Orchestrator coordinates evaluation runs. It is safe for concurrent
// use as long as distinct run ids are used.
type Orchestrator struct {
	registry *criteria.Registry
	client   evaluator.Client
	store    checkpoint.Store

	workerLimit int
	taskTimeout time.Duration
	maxRetries  int
	retryBase   time.Duration

	listenerMu sync.Mutex
	listeners  []ProgressListener
}

// New builds an orchestrator over a task registry, a backend client,
// and a checkpoint store.
func New(registry *criteria.Registry, client evaluator.Client, store checkpoint.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:    registry,
		client:      client,
		store:       store,
		taskTimeout: defaultTaskTimeout,
		maxRetries:  defaultMaxRetries,
		retryBase:   defaultRetryBase,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) notify(event ProgressEvent) {
	o.listenerMu.Lock()
	defer o.listenerMu.Unlock()
	for _, l := range o.listeners {
		l(event)
	}
}

type taskResult struct {
	criterionID string
	result      models.CriterionResult
	err         error
}

// Run evaluates the transcript under the given profile. Reusing a run
// id resumes from its checkpoint: completed criteria are never
// re-evaluated, and a terminal complete run returns its scorecard
// without any backend calls.
func (o *Orchestrator) Run(ctx context.Context, tr transcript.Transcript, profile models.Profile, runID string) (*scorecard.Scorecard, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, errors.New("run id is required")
	}
	if err := tr.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transcript: %w", err)
	}

	tasks, err := o.registry.Tasks(profile)
	if err != nil {
		return nil, err
	}
	ids, err := o.registry.IDs(profile)
	if err != nil {
		return nil, err
	}

	cp, err := o.store.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	resumed := cp != nil
	if cp == nil {
		cp = checkpoint.New(runID, profile, ids)
		if err := o.store.Save(ctx, cp); err != nil {
			return nil, fmt.Errorf("saving initial checkpoint: %w", err)
		}
	} else if cp.Profile != profile {
		return nil, fmt.Errorf("run %s was started with profile %s, not %s", runID, cp.Profile, profile)
	}

	total := len(tasks)

	if cp.Complete() {
		log.Debug().Str("run_id", runID).Msg("checkpoint already complete, skipping evaluation")
		return o.finalize(ctx, cp, ids)
	}

	pending := pendingTasks(tasks, cp)
	eventType := EventRunStarted
	if resumed {
		eventType = EventRunResumed
	}
	o.notify(ProgressEvent{Type: eventType, RunID: runID, Completed: len(cp.Completed), Total: total})

	log.Debug().
		Str("run_id", runID).
		Str("profile", profile.String()).
		Int("pending", len(pending)).
		Int("completed", len(cp.Completed)).
		Msg("dispatching criterion tasks")

	results := make(chan taskResult)
	limit := o.workerLimit
	if limit <= 0 {
		limit = len(pending)
	}
	sem := semaphore.NewWeighted(int64(limit))

	for _, task := range pending {
		go func(task criteria.Task) {
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- taskResult{criterionID: task.ID, err: &evaluator.BackendError{Transient: true, Err: err}}
				return
			}
			defer sem.Release(1)

			o.notify(ProgressEvent{Type: EventCriterionStarted, RunID: runID, CriterionID: task.ID, Total: total})
			result, err := o.evaluateTask(ctx, tr, runID, task)
			results <- taskResult{criterionID: task.ID, result: result, err: err}
		}(task)
	}

	// Single collector loop: the only writer to the checkpoint. Every
	// result is saved before completeness is decided, so a crash after
	// this loop never loses recorded work.
	var failed []FailedCriterion
	var saveErr error
	for range pending {
		res := <-results
		if res.err != nil {
			failed = append(failed, FailedCriterion{CriterionID: res.criterionID, Err: res.err})
			o.notify(ProgressEvent{
				Type: EventCriterionFailed, RunID: runID, CriterionID: res.criterionID,
				Completed: len(cp.Completed), Total: total, Err: res.err,
			})
			continue
		}

		if err := cp.MarkCompleted(res.result); err != nil {
			saveErr = err
			continue
		}
		if err := o.store.Save(ctx, cp); err != nil {
			saveErr = fmt.Errorf("saving checkpoint: %w", err)
			continue
		}
		o.notify(ProgressEvent{
			Type: EventCriterionCompleted, RunID: runID, CriterionID: res.criterionID,
			Completed: len(cp.Completed), Total: total,
		})
	}

	if saveErr != nil {
		return nil, saveErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run %s interrupted: %w", runID, err)
	}

	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool {
			return failed[i].CriterionID < failed[j].CriterionID
		})
		if err := feedbackFailure(runID, failed); err != nil {
			return nil, err
		}
		return nil, &PartialEvaluationError{
			RunID:     runID,
			Completed: cp.Clone().Completed,
			Failed:    failed,
		}
	}

	return o.finalize(ctx, cp, ids)
}

// finalize marks the run terminal, persists it, and assembles the
// scorecard.
func (o *Orchestrator) finalize(ctx context.Context, cp *checkpoint.RunCheckpoint, ids []string) (*scorecard.Scorecard, error) {
	if !cp.Terminal {
		cp.Terminal = true
		cp.UpdatedAt = time.Now().UTC()
		if err := o.store.Save(ctx, cp); err != nil {
			return nil, fmt.Errorf("saving terminal checkpoint: %w", err)
		}
	}

	sc, err := scorecard.Assemble(cp.RunID, cp.Profile, ids, cp.Completed)
	if err != nil {
		return nil, err
	}

	o.notify(ProgressEvent{
		Type: EventRunCompleted, RunID: cp.RunID,
		Completed: len(cp.Completed), Total: len(ids),
	})
	log.Debug().Str("run_id", cp.RunID).Msg("run complete")
	return sc, nil
}

// evaluateTask calls the backend for one criterion, retrying transient
// failures with exponential backoff, then parses the output. Parse
// failures are never retried.
func (o *Orchestrator) evaluateTask(ctx context.Context, tr transcript.Transcript, runID string, task criteria.Task) (models.CriterionResult, error) {
	prompt := task.Build(tr)

	attempt := 0
	var raw string
	backoff := retry.WithMaxRetries(uint64(o.maxRetries), retry.NewExponential(o.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			o.notify(ProgressEvent{
				Type: EventCriterionRetried, RunID: runID,
				CriterionID: task.ID, Attempt: attempt,
			})
		}

		callCtx := ctx
		if o.taskTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.taskTimeout)
			defer cancel()
		}

		out, err := o.client.Evaluate(callCtx, prompt)
		if err != nil {
			if evaluator.IsTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return models.CriterionResult{}, fmt.Errorf("criterion %s: %w", task.ID, err)
	}

	return task.Parse(raw)
}

func pendingTasks(tasks []criteria.Task, cp *checkpoint.RunCheckpoint) []criteria.Task {
	pending := make([]criteria.Task, 0, len(cp.Pending))
	for _, task := range tasks {
		if _, ok := cp.Pending[task.ID]; ok {
			pending = append(pending, task)
		}
	}
	return pending
}

// feedbackFailure returns the run-fatal error when the feedback
// criterion failed to parse. Backend failures on feedback stay part of
// the normal partial surface since a rerun can still succeed.
func feedbackFailure(runID string, failed []FailedCriterion) error {
	for _, f := range failed {
		if f.CriterionID != criteria.FeedbackCriterionID {
			continue
		}
		var parseErr *criteria.ParseError
		if errors.As(f.Err, &parseErr) {
			return &FeedbackParseError{RunID: runID, Err: f.Err}
		}
	}
	return nil
}
