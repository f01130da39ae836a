package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callscale/callscore/internal/checkpoint"
	"github.com/callscale/callscore/internal/criteria"
	"github.com/callscale/callscore/internal/evaluator"
	"github.com/callscale/callscore/internal/models"
	"github.com/callscale/callscore/internal/transcript"
)

const feedbackJSON = `{"summary": "good call", "short_feedback": "clear and calm", "long_feedback": "the agent resolved the double charge and confirmed the refund timeline"}`

func testTranscript() transcript.Transcript {
	return transcript.Transcript{
		{Role: transcript.RoleSystem, Content: "Billing dispute call."},
		{Role: transcript.RoleUser, Content: "I was charged twice."},
		{Role: transcript.RoleAssistant, Content: "Let me fix that for you."},
	}
}

// scoreOrFeedback answers every scalar prompt with a score and the
// feedback prompt with a valid payload.
func scoreOrFeedback(prompt string) (string, error) {
	if strings.Contains(prompt, "short_feedback") {
		return feedbackJSON, nil
	}
	return "7", nil
}

func newTestOrchestrator(t *testing.T, mock *evaluator.MockClient, store checkpoint.Store, opts ...Option) *Orchestrator {
	t.Helper()
	base := []Option{WithRetryBase(time.Millisecond), WithTaskTimeout(time.Second)}
	return New(criteria.NewRegistry(), mock, store, append(base, opts...)...)
}

func TestRunCompletesAllCriteria(t *testing.T) {
	mock := evaluator.NewMockClient(evaluator.MockArgs{})
	mock.Script = scoreOrFeedback
	store := checkpoint.NewMemoryStore()

	var events []ProgressEvent
	o := newTestOrchestrator(t, mock, store, WithProgressListener(func(e ProgressEvent) {
		events = append(events, e)
	}))

	sc, err := o.Run(context.Background(), testTranscript(), models.ProfileCustomer, "run-1")
	require.NoError(t, err)

	assert.Equal(t, 16, mock.Calls())
	require.NotNil(t, sc.CommunicationAndDelivery.EmpathyScore)
	assert.Equal(t, "7", *sc.CommunicationAndDelivery.EmpathyScore)
	require.NotNil(t, sc.Feedback)
	assert.Equal(t, "good call", sc.Feedback.Summary)
	assert.Nil(t, sc.SalesAndPersuasion.ProductKnowledgeScore)

	cp, err := store.Load(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.Terminal)
	assert.True(t, cp.Complete())

	assert.Equal(t, EventRunStarted, events[0].Type)
	assert.Equal(t, EventRunCompleted, events[len(events)-1].Type)
	assert.Equal(t, 16, events[len(events)-1].Completed)
}

func TestRunIdempotentByRunID(t *testing.T) {
	mock := evaluator.NewMockClient(evaluator.MockArgs{})
	mock.Script = scoreOrFeedback
	store := checkpoint.NewMemoryStore()
	o := newTestOrchestrator(t, mock, store)

	first, err := o.Run(context.Background(), testTranscript(), models.ProfileSales, "run-same")
	require.NoError(t, err)
	assert.Equal(t, 14, mock.Calls())

	second, err := o.Run(context.Background(), testTranscript(), models.ProfileSales, "run-same")
	require.NoError(t, err)
	assert.Equal(t, 14, mock.Calls(), "a complete run must not call the backend again")
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, *first.SalesAndPersuasion.ProductKnowledgeScore, *second.SalesAndPersuasion.ProductKnowledgeScore)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	registry := criteria.NewRegistry()
	ids, err := registry.IDs(models.ProfileCustomer)
	require.NoError(t, err)

	store := checkpoint.NewMemoryStore()
	cp := checkpoint.New("run-resume", models.ProfileCustomer, ids)
	for _, id := range ids[:10] {
		require.NoError(t, cp.MarkCompleted(models.CriterionResult{CriterionID: id, Value: "5", Raw: "5"}))
	}
	require.NoError(t, store.Save(context.Background(), cp))

	mock := evaluator.NewMockClient(evaluator.MockArgs{})
	mock.Script = scoreOrFeedback

	var resumed bool
	o := newTestOrchestrator(t, mock, store, WithProgressListener(func(e ProgressEvent) {
		if e.Type == EventRunResumed {
			resumed = true
		}
	}))

	sc, err := o.Run(context.Background(), testTranscript(), models.ProfileCustomer, "run-resume")
	require.NoError(t, err)

	assert.Equal(t, 6, mock.Calls(), "only pending criteria may be dispatched")
	assert.True(t, resumed)

	// Restored results keep their original values.
	require.NotNil(t, sc.CommunicationAndDelivery.EmpathyScore)
	assert.Equal(t, "5", *sc.CommunicationAndDelivery.EmpathyScore)
}

func TestPartialFailureKeepsCompletedResults(t *testing.T) {
	mock := evaluator.NewMockClient(evaluator.MockArgs{})
	mock.Script = func(prompt string) (string, error) {
		if strings.Contains(prompt, "Criterion: Empathy\n") {
			return "", &evaluator.BackendError{Err: errors.New("bad request")}
		}
		return scoreOrFeedback(prompt)
	}
	store := checkpoint.NewMemoryStore()
	o := newTestOrchestrator(t, mock, store)

	_, err := o.Run(context.Background(), testTranscript(), models.ProfileCustomer, "run-partial")
	require.Error(t, err)

	var partial *PartialEvaluationError
	require.True(t, errors.As(err, &partial))
	require.Len(t, partial.Failed, 1)
	assert.Equal(t, "empathy_score", partial.Failed[0].CriterionID)
	assert.Len(t, partial.Completed, 15)

	cp, err := store.Load(context.Background(), "run-partial")
	require.NoError(t, err)
	assert.Len(t, cp.Completed, 15)
	assert.Equal(t, []string{"empathy_score"}, cp.PendingIDs())
	assert.False(t, cp.Terminal)

	// A rerun with a healthy backend touches only the failed criterion.
	callsBefore := mock.Calls()
	mock.Script = scoreOrFeedback

	sc, err := o.Run(context.Background(), testTranscript(), models.ProfileCustomer, "run-partial")
	require.NoError(t, err)
	assert.Equal(t, callsBefore+1, mock.Calls())
	require.NotNil(t, sc.CommunicationAndDelivery.EmpathyScore)
}

func TestTransientFailuresAreRetried(t *testing.T) {
	var mu sync.Mutex
	empathyAttempts := 0

	mock := evaluator.NewMockClient(evaluator.MockArgs{})
	mock.Script = func(prompt string) (string, error) {
		if strings.Contains(prompt, "Criterion: Empathy\n") {
			mu.Lock()
			empathyAttempts++
			attempt := empathyAttempts
			mu.Unlock()
			if attempt == 1 {
				return "", &evaluator.BackendError{Transient: true, Err: errors.New("rate limited")}
			}
		}
		return scoreOrFeedback(prompt)
	}
	store := checkpoint.NewMemoryStore()

	var retries int
	o := newTestOrchestrator(t, mock, store, WithProgressListener(func(e ProgressEvent) {
		if e.Type == EventCriterionRetried {
			retries++
		}
	}))

	_, err := o.Run(context.Background(), testTranscript(), models.ProfileCustomer, "run-retry")
	require.NoError(t, err)
	assert.Equal(t, 2, empathyAttempts)
	assert.Equal(t, 1, retries)
}

func TestPermanentFailuresAreNotRetried(t *testing.T) {
	var mu sync.Mutex
	empathyAttempts := 0

	mock := evaluator.NewMockClient(evaluator.MockArgs{})
	mock.Script = func(prompt string) (string, error) {
		if strings.Contains(prompt, "Criterion: Empathy\n") {
			mu.Lock()
			empathyAttempts++
			mu.Unlock()
			return "", &evaluator.BackendError{Err: errors.New("invalid api key")}
		}
		return scoreOrFeedback(prompt)
	}
	o := newTestOrchestrator(t, mock, checkpoint.NewMemoryStore())

	_, err := o.Run(context.Background(), testTranscript(), models.ProfileCustomer, "run-perm")
	require.Error(t, err)
	assert.Equal(t, 1, empathyAttempts)
}

func TestParseErrorsAreNotRetried(t *testing.T) {
	var mu sync.Mutex
	empathyAttempts := 0

	mock := evaluator.NewMockClient(evaluator.MockArgs{})
	mock.Script = func(prompt string) (string, error) {
		if strings.Contains(prompt, "Criterion: Empathy\n") {
			mu.Lock()
			empathyAttempts++
			mu.Unlock()
			return "   ", nil
		}
		return scoreOrFeedback(prompt)
	}
	o := newTestOrchestrator(t, mock, checkpoint.NewMemoryStore())

	_, err := o.Run(context.Background(), testTranscript(), models.ProfileCustomer, "run-parse")
	require.Error(t, err)

	var partial *PartialEvaluationError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, 1, empathyAttempts)

	var parseErr *criteria.ParseError
	assert.True(t, errors.As(partial.Failed[0].Err, &parseErr))
}

func TestFeedbackParseFailureIsRunFatal(t *testing.T) {
	mock := evaluator.NewMockClient(evaluator.MockArgs{})
	mock.Script = func(prompt string) (string, error) {
		if strings.Contains(prompt, "short_feedback") {
			return "I refuse to answer in JSON.", nil
		}
		return "7", nil
	}
	o := newTestOrchestrator(t, mock, checkpoint.NewMemoryStore())

	_, err := o.Run(context.Background(), testTranscript(), models.ProfileCustomer, "run-feedback")
	require.Error(t, err)

	var fatal *FeedbackParseError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, "run-feedback", fatal.RunID)

	var partial *PartialEvaluationError
	assert.False(t, errors.As(err, &partial))
}

func TestWorkerLimitBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	current, peak := 0, 0

	mock := evaluator.NewMockClient(evaluator.MockArgs{})
	mock.Script = func(prompt string) (string, error) {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		current--
		mu.Unlock()
		return scoreOrFeedback(prompt)
	}
	o := newTestOrchestrator(t, mock, checkpoint.NewMemoryStore(), WithWorkerLimit(1))

	_, err := o.Run(context.Background(), testTranscript(), models.ProfileSales, "run-serial")
	require.NoError(t, err)
	assert.Equal(t, 1, peak)
	assert.Equal(t, 14, mock.Calls())
}

func TestRunRejectsBadInput(t *testing.T) {
	o := newTestOrchestrator(t, evaluator.NewMockClient(evaluator.MockArgs{}), checkpoint.NewMemoryStore())
	ctx := context.Background()

	_, err := o.Run(ctx, testTranscript(), models.ProfileCustomer, "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run id")

	_, err = o.Run(ctx, transcript.Transcript{}, models.ProfileCustomer, "run-x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transcript")

	_, err = o.Run(ctx, testTranscript(), models.Profile("manager"), "run-x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown profile")
}

func TestRunRejectsProfileMismatch(t *testing.T) {
	mock := evaluator.NewMockClient(evaluator.MockArgs{})
	mock.Script = scoreOrFeedback
	store := checkpoint.NewMemoryStore()
	o := newTestOrchestrator(t, mock, store)

	_, err := o.Run(context.Background(), testTranscript(), models.ProfileSales, "run-mix")
	require.NoError(t, err)

	_, err = o.Run(context.Background(), testTranscript(), models.ProfileCustomer, "run-mix")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile")
}

func TestRunHonorsCancellation(t *testing.T) {
	mock := evaluator.NewMockClient(evaluator.MockArgs{Delay: 50 * time.Millisecond})
	mock.Script = scoreOrFeedback
	store := checkpoint.NewMemoryStore()
	o := newTestOrchestrator(t, mock, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, testTranscript(), models.ProfileCustomer, "run-cancel")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The run remains resumable.
	cp, loadErr := store.Load(context.Background(), "run-cancel")
	require.NoError(t, loadErr)
	require.NotNil(t, cp)
	assert.False(t, cp.Terminal)
}

func TestResumedPayloadSurvivesRoundTrip(t *testing.T) {
	registry := criteria.NewRegistry()
	ids, err := registry.IDs(models.ProfileCustomer)
	require.NoError(t, err)

	store := checkpoint.NewMemoryStore()
	cp := checkpoint.New("run-payload", models.ProfileCustomer, ids)
	for _, id := range ids {
		result := models.CriterionResult{CriterionID: id, Value: "6", Raw: "6"}
		if id == criteria.FeedbackCriterionID {
			result = models.CriterionResult{
				CriterionID: id,
				Payload:     json.RawMessage(feedbackJSON),
				Raw:         feedbackJSON,
			}
		}
		require.NoError(t, cp.MarkCompleted(result))
	}
	require.NoError(t, store.Save(context.Background(), cp))

	mock := evaluator.NewMockClient(evaluator.MockArgs{})
	o := newTestOrchestrator(t, mock, store)

	sc, err := o.Run(context.Background(), testTranscript(), models.ProfileCustomer, "run-payload")
	require.NoError(t, err)
	assert.Equal(t, 0, mock.Calls())
	require.NotNil(t, sc.Feedback)
	assert.Equal(t, "good call", sc.Feedback.Summary)
}

func TestConcurrencyLevels(t *testing.T) {
	for _, workers := range []int{1, 5, 14} {
		t.Run(fmt.Sprintf("workers_%d", workers), func(t *testing.T) {
			mock := evaluator.NewMockClient(evaluator.MockArgs{Delay: time.Millisecond})
			mock.Script = scoreOrFeedback
			o := newTestOrchestrator(t, mock, checkpoint.NewMemoryStore(), WithWorkerLimit(workers))

			sc, err := o.Run(context.Background(), testTranscript(), models.ProfileSales, fmt.Sprintf("run-w%d", workers))
			require.NoError(t, err)
			assert.Equal(t, 14, mock.Calls())
			require.NotNil(t, sc.Feedback)
		})
	}
}
