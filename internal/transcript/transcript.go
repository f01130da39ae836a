// Package transcript models the conversation transcript an evaluation
// run scores: an ordered sequence of role-tagged turns, where the first
// system turn supplies scenario context and the remaining turns form
// the conversation body.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Turn is a single utterance in the conversation.
type Turn struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Transcript is an ordered sequence of turns. It is treated as
// immutable once handed to the orchestrator.
type Transcript []Turn

// Validate checks the structural constraints required before a run:
// the transcript must be non-empty, every role must be known, and at
// least one turn must be a non-system conversation turn.
func (t Transcript) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("transcript is empty")
	}

	conversational := 0
	for i, turn := range t {
		if !turn.Role.Valid() {
			return fmt.Errorf("turn %d: unknown role %q", i, turn.Role)
		}
		if turn.Role != RoleSystem {
			conversational++
		}
	}
	if conversational == 0 {
		return fmt.Errorf("transcript has no conversation turns (system turns only)")
	}

	return nil
}

// Context returns the content of the first system turn, or empty when
// the transcript carries no system context.
func (t Transcript) Context() string {
	for _, turn := range t {
		if turn.Role == RoleSystem {
			return turn.Content
		}
	}
	return ""
}

// Render formats the transcript into the text block embedded in every
// criterion prompt: a Context section from the first system turn
// followed by the conversation as "role: content" lines. System turns
// beyond the first are ignored.
func (t Transcript) Render() string {
	var sb strings.Builder

	sb.WriteString("Context:\n")
	sb.WriteString(t.Context())
	sb.WriteString("\n\nConversation:\n")

	lines := make([]string, 0, len(t))
	for _, turn := range t {
		if turn.Role == RoleSystem {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Content))
	}
	sb.WriteString(strings.Join(lines, "\n"))

	return sb.String()
}

// Load reads a transcript from a JSON or YAML file. The format is
// chosen by extension; anything that is not .yaml/.yml is parsed as
// JSON.
func Load(path string) (Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var t Transcript
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse transcript %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse transcript %s: %w", path, err)
		}
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transcript %s: %w", path, err)
	}

	return t, nil
}
