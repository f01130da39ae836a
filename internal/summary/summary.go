// Package summary condenses the feedback of several past runs into
// actionable coaching tips with a single backend call.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/callscale/callscore/internal/evaluator"
	"github.com/callscale/callscore/internal/scorecard"
)

// Tips is the parsed summarizer output.
type Tips struct {
	PositiveTips    []string `json:"positive_tips"`
	ImprovementTips []string `json:"improvement_tips"`
}

type envelope struct {
	Summary *Tips `json:"summary"`
}

// BuildPrompt renders the summarization prompt over the collected
// feedback payloads, oldest first.
func BuildPrompt(feedbacks []scorecard.FeedbackPayload) string {
	var sb strings.Builder
	sb.WriteString("You are a conversation coach reviewing feedback from a series of evaluated calls.\n\n")

	for i, fb := range feedbacks {
		fmt.Fprintf(&sb, "Call %d feedback:\n", i+1)
		fmt.Fprintf(&sb, "- summary: %s\n", fb.Summary)
		fmt.Fprintf(&sb, "- details: %s\n\n", fb.LongFeedback)
	}

	sb.WriteString(`Based on all the feedback above, identify the three strongest recurring positives and the three most important areas to improve.
Respond with only a JSON object of this exact shape:
{"summary": {"positive_tips": ["...", "...", "..."], "improvement_tips": ["...", "...", "..."]}}`)
	return sb.String()
}

// Summarize asks the backend for tips over the given feedback history.
func Summarize(ctx context.Context, client evaluator.Client, feedbacks []scorecard.FeedbackPayload) (*Tips, error) {
	if len(feedbacks) == 0 {
		return nil, errors.New("no feedback to summarize")
	}

	raw, err := client.Evaluate(ctx, BuildPrompt(feedbacks))
	if err != nil {
		return nil, fmt.Errorf("summarizing feedback: %w", err)
	}

	return ParseTips(raw)
}

// ParseTips extracts the tips envelope from raw backend output,
// tolerating fenced code blocks and surrounding prose.
func ParseTips(raw string) (*Tips, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("summary output contains no JSON object")
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw[start:end+1]), &env); err != nil {
		return nil, fmt.Errorf("parsing summary output: %w", err)
	}
	if env.Summary == nil {
		return nil, fmt.Errorf("summary output is missing the summary object")
	}
	if len(env.Summary.PositiveTips) == 0 && len(env.Summary.ImprovementTips) == 0 {
		return nil, fmt.Errorf("summary output contains no tips")
	}

	return env.Summary, nil
}
