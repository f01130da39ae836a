package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callscale/callscore/internal/models"
	"github.com/callscale/callscore/internal/scorecard"
)

func TestPrintScorecardCustomer(t *testing.T) {
	eight := "8"
	sc := &scorecard.Scorecard{
		RunID:   "run-1",
		Profile: models.ProfileCustomer,
		Feedback: &scorecard.FeedbackPayload{
			Summary:       "solid call",
			ShortFeedback: "clear and calm",
			LongFeedback:  "resolved the dispute with specifics",
		},
	}
	sc.CommunicationAndDelivery.EmpathyScore = &eight

	var sb strings.Builder
	printScorecard(&sb, sc)
	out := sb.String()

	assert.Contains(t, out, "Scorecard for run run-1 (profile: customer)")
	assert.Contains(t, out, "empathy_score")
	assert.Contains(t, out, " 8\n")
	// Fields of the other profile render as n/a.
	assert.Contains(t, out, "pitch_quality")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "summary: solid call")
}

func TestPrintScorecardWithoutFeedback(t *testing.T) {
	sc := &scorecard.Scorecard{RunID: "run-2", Profile: models.ProfileSales}

	var sb strings.Builder
	printScorecard(&sb, sc)

	assert.NotContains(t, sb.String(), "Feedback")
}

func TestValueOrNA(t *testing.T) {
	v := "7"
	assert.Equal(t, "7", valueOrNA(&v))
	assert.Equal(t, "n/a", valueOrNA(nil))
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"evaluate", "criteria", "runs", "summarize", "init"} {
		assert.Contains(t, names, want)
	}

	evaluate, _, err := root.Find([]string{"evaluate"})
	require.NoError(t, err)
	assert.NotNil(t, evaluate.Flags().Lookup("profile"))
	assert.NotNil(t, evaluate.Flags().Lookup("run-id"))
	assert.NotNil(t, evaluate.Flags().Lookup("output"))
}
