package scorecard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const feedbackCriterionID = "feedback"

// FeedbackPayload is the structured feedback attached to a scorecard.
type FeedbackPayload struct {
	Summary       string `json:"summary"`
	ShortFeedback string `json:"short_feedback"`
	LongFeedback  string `json:"long_feedback"`
}

const feedbackSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "short_feedback": {"type": "string", "minLength": 1},
    "long_feedback": {"type": "string", "minLength": 1}
  },
  "required": ["summary", "short_feedback", "long_feedback"],
  "additionalProperties": true
}`

var feedbackSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(feedbackSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing feedback schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("feedback.json", doc); err != nil {
		return nil, fmt.Errorf("registering feedback schema: %w", err)
	}
	schema, err := compiler.Compile("feedback.json")
	if err != nil {
		return nil, fmt.Errorf("compiling feedback schema: %w", err)
	}
	return schema, nil
})

// ParseFeedbackPayload validates the stored feedback JSON against the
// schema and decodes it. A payload that fails validation is a hard
// error; the run record keeps the raw output for inspection.
func ParseFeedbackPayload(payload json.RawMessage) (*FeedbackPayload, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("feedback result has no payload")
	}

	schema, err := feedbackSchema()
	if err != nil {
		return nil, err
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("feedback payload is not valid JSON: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("feedback payload failed schema validation: %w", err)
	}

	var fp FeedbackPayload
	if err := json.Unmarshal(payload, &fp); err != nil {
		return nil, fmt.Errorf("decoding feedback payload: %w", err)
	}
	return &fp, nil
}
