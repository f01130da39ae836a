package criteria

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callscale/callscore/internal/models"
	"github.com/callscale/callscore/internal/transcript"
)

func sampleTranscript() transcript.Transcript {
	return transcript.Transcript{
		{Role: transcript.RoleSystem, Content: "Customer is calling about a billing dispute."},
		{Role: transcript.RoleUser, Content: "I was charged twice this month."},
		{Role: transcript.RoleAssistant, Content: "I'm sorry about that, let me check your account."},
	}
}

func TestRegistryTaskSets(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		profile models.Profile
		count   int
	}{
		{models.ProfileSales, 14},
		{models.ProfileCustomer, 16},
	}

	for _, tt := range tests {
		t.Run(tt.profile.String(), func(t *testing.T) {
			tasks, err := r.Tasks(tt.profile)
			require.NoError(t, err)
			assert.Len(t, tasks, tt.count)

			seen := make(map[string]bool)
			for _, task := range tasks {
				assert.False(t, seen[task.ID], "duplicate criterion %s", task.ID)
				seen[task.ID] = true
				assert.NotNil(t, task.Build)
				assert.NotNil(t, task.Parse)
			}
			assert.True(t, seen[FeedbackCriterionID])
		})
	}
}

func TestRegistryUnknownProfile(t *testing.T) {
	r := NewRegistry()
	_, err := r.Tasks(models.Profile("manager"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown profile")
}

func TestRegistryIDsMatchTasks(t *testing.T) {
	r := NewRegistry()
	ids, err := r.IDs(models.ProfileCustomer)
	require.NoError(t, err)
	assert.Contains(t, ids, "customer_satisfaction_score")
	assert.Contains(t, ids, "empathy_score")
	assert.NotContains(t, ids, "pitch_quality")
}

func TestScalarPromptEmbedsTranscript(t *testing.T) {
	r := NewRegistry()
	tasks, err := r.Tasks(models.ProfileCustomer)
	require.NoError(t, err)

	prompt := tasks[0].Build(sampleTranscript())
	assert.Contains(t, prompt, "Context:\nCustomer is calling about a billing dispute.")
	assert.Contains(t, prompt, "user: I was charged twice this month.")
	assert.Contains(t, prompt, "Respond with only the score")
}

func TestFeedbackPromptAsksForJSON(t *testing.T) {
	prompt := buildFeedbackPrompt(sampleTranscript())
	assert.Contains(t, prompt, `"short_feedback"`)
	assert.Contains(t, prompt, `"long_feedback"`)
	assert.Contains(t, prompt, "Conversation:")
}

func TestScalarParser(t *testing.T) {
	parse := newScalarParser("empathy_score")

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "bare number", raw: "8", want: "8"},
		{name: "padded", raw: "  8/10 \n", want: "8/10"},
		{name: "labeled with id", raw: "empathy_score: 8", want: "8"},
		{name: "labeled with score", raw: "Score: 7", want: "7"},
		{name: "equals label", raw: "= 6", want: "6"},
		{name: "empty", raw: "", wantErr: true},
		{name: "whitespace only", raw: "   \n\t", wantErr: true},
		{name: "label with no value", raw: "empathy_score:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parse(tt.raw)
			if tt.wantErr {
				var parseErr *ParseError
				require.Error(t, err)
				require.True(t, errors.As(err, &parseErr))
				assert.Equal(t, "empathy_score", parseErr.CriterionID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Value)
			assert.Equal(t, tt.raw, result.Raw)
			assert.Nil(t, result.Payload)
		})
	}
}

func TestFeedbackParser(t *testing.T) {
	parse := newFeedbackParser(FeedbackCriterionID)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "bare object",
			raw:  `{"summary": "solid call", "short_feedback": "good", "long_feedback": "detailed"}`,
		},
		{
			name: "fenced block",
			raw:  "```json\n{\"summary\": \"ok\", \"short_feedback\": \"s\", \"long_feedback\": \"l\"}\n```",
		},
		{
			name: "surrounding prose",
			raw:  "Here is the feedback you asked for:\n{\"summary\": \"ok\", \"short_feedback\": \"s\", \"long_feedback\": \"l\"}\nHope that helps!",
		},
		{
			name: "braces inside strings",
			raw:  `{"summary": "used {placeholders} well", "short_feedback": "s", "long_feedback": "l"}`,
		},
		{name: "no json", raw: "I cannot provide feedback.", wantErr: true},
		{name: "truncated object", raw: `{"summary": "cut off`, wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parse(tt.raw)
			if tt.wantErr {
				var parseErr *ParseError
				require.Error(t, err)
				require.True(t, errors.As(err, &parseErr))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, result.Payload)

			var payload map[string]any
			require.NoError(t, json.Unmarshal(result.Payload, &payload))
			assert.Contains(t, payload, "summary")
		})
	}
}
