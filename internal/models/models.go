// Package models holds the core types shared across the evaluation
// pipeline: profiles, per-criterion results, and run provenance.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Profile selects which fixed set of criterion tasks applies to a run
// and which scorecard sections the results populate.
type Profile string

const (
	ProfileCustomer Profile = "customer"
	ProfileSales    Profile = "sales"
)

func (p Profile) String() string {
	return string(p)
}

// Valid reports whether p is one of the known profiles.
func (p Profile) Valid() bool {
	return p == ProfileCustomer || p == ProfileSales
}

// ParseProfile converts a string flag value to a Profile.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer":
		return ProfileCustomer, nil
	case "sales":
		return ProfileSales, nil
	default:
		return "", fmt.Errorf("invalid profile %q: must be customer or sales", s)
	}
}

// CriterionResult is the parsed output of a single criterion task.
// Value holds the scalar text for score-style criteria. Payload is set
// only for criteria that produce a structured JSON object (feedback).
// Raw preserves the unmodified backend output for traceability.
type CriterionResult struct {
	CriterionID string          `json:"criterion_id"`
	Value       string          `json:"value"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Raw         string          `json:"raw"`
}

// Provenance carries metadata the caller attaches to a finished
// scorecard. The evaluation core never fills it in.
type Provenance struct {
	UserID     string    `json:"user_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
}
