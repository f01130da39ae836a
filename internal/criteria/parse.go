package criteria

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/callscale/callscore/internal/models"
)

// ParseError reports backend output that could not be interpreted as a
// result for the criterion. It is never transient: the same output
// parses the same way every time.
type ParseError struct {
	CriterionID string
	Raw         string
	Reason      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("criterion %s: cannot parse result: %s", e.CriterionID, e.Reason)
}

// newScalarParser parses score-style output. Backends are told to
// answer with a bare value, but models routinely prepend labels such as
// "empathy_score:" or "score =", so the parser strips one leading
// label before taking the remainder verbatim.
func newScalarParser(id string) ResultParser {
	label := regexp.MustCompile(`(?i)^(?:` + regexp.QuoteMeta(id) + `|score)?\s*[:=]\s*`)
	return func(raw string) (models.CriterionResult, error) {
		value := strings.TrimSpace(raw)
		value = strings.TrimSpace(label.ReplaceAllString(value, ""))
		if value == "" {
			return models.CriterionResult{}, &ParseError{
				CriterionID: id,
				Raw:         raw,
				Reason:      "empty response",
			}
		}
		return models.CriterionResult{
			CriterionID: id,
			Value:       value,
			Raw:         raw,
		}, nil
	}
}

// newFeedbackParser extracts the JSON object from the backend output,
// tolerating fenced code blocks and surrounding prose. The object is
// stored verbatim as the result payload; schema validation happens at
// assembly time.
func newFeedbackParser(id string) ResultParser {
	return func(raw string) (models.CriterionResult, error) {
		obj, ok := extractJSONObject(raw)
		if !ok {
			return models.CriterionResult{}, &ParseError{
				CriterionID: id,
				Raw:         raw,
				Reason:      "no JSON object in response",
			}
		}
		return models.CriterionResult{
			CriterionID: id,
			Payload:     json.RawMessage(obj),
			Raw:         raw,
		}, nil
	}
}

// extractJSONObject returns the first syntactically valid JSON object
// found in s. It scans from each opening brace to the matching close,
// so prose before or after the object (including ``` fences) is
// ignored.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := s[start : i+1]
					if json.Valid([]byte(candidate)) {
						return candidate, true
					}
					i = len(s)
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start = start + 1 + next
	}
	return "", false
}
