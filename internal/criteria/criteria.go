// Package criteria defines the fixed criterion task sets evaluated for
// each profile. A task pairs a criterion id with a prompt builder and a
// result parser; the full set for a profile is known at construction
// time and never changes during a run.
package criteria

import (
	"fmt"

	"github.com/callscale/callscore/internal/models"
	"github.com/callscale/callscore/internal/transcript"
)

// FeedbackCriterionID is the one criterion whose result is a structured
// JSON payload rather than a scalar score.
const FeedbackCriterionID = "feedback"

// PromptBuilder renders the evaluation prompt for one criterion. It is
// a pure function of the transcript.
type PromptBuilder func(t transcript.Transcript) string

// ResultParser interprets raw backend output into a CriterionResult.
// It fails with *ParseError when the expected value cannot be located.
type ResultParser func(raw string) (models.CriterionResult, error)

// Task binds a criterion id to its prompt builder and result parser.
type Task struct {
	ID    string
	Build PromptBuilder
	Parse ResultParser
}

// salesCriteria is the fixed task order for the sales profile.
var salesCriteria = []string{
	"product_knowledge_score",
	"persuasion_and_negotiation_skills",
	"objection_handling",
	"confidence_score",
	"value_proposition",
	"pitch_quality",
	"call_to_action_effectiveness",
	"questioning_technique",
	"rapport_building",
	"active_listening_skills",
	"upselling_success_rate",
	"engagement",
	"stuttering_words",
	FeedbackCriterionID,
}

// customerCriteria is the fixed task order for the customer profile.
var customerCriteria = []string{
	"empathy_score",
	"clarity_and_conciseness",
	"grammar_and_language",
	"listening_score",
	"positive_sentiment_score",
	"structure_and_flow",
	"stuttering_words",
	"active_listening_skills",
	"problem_resolution_effectiveness",
	"personalisation_index",
	"conflict_management",
	"response_time",
	"customer_satisfaction_score",
	"rapport_building",
	"engagement",
	FeedbackCriterionID,
}

// Registry holds the immutable per-profile task sets. Construct it once
// and share it read-only across concurrent runs.
type Registry struct {
	tasks map[models.Profile][]Task
}

// NewRegistry builds the task sets for every known profile.
func NewRegistry() *Registry {
	r := &Registry{tasks: make(map[models.Profile][]Task)}
	r.tasks[models.ProfileSales] = buildTasks(salesCriteria)
	r.tasks[models.ProfileCustomer] = buildTasks(customerCriteria)
	return r
}

func buildTasks(ids []string) []Task {
	tasks := make([]Task, 0, len(ids))
	for _, id := range ids {
		def, ok := definitions[id]
		if !ok {
			panic(fmt.Sprintf("criteria: no definition for %q", id))
		}

		if id == FeedbackCriterionID {
			tasks = append(tasks, Task{
				ID:    id,
				Build: buildFeedbackPrompt,
				Parse: newFeedbackParser(id),
			})
			continue
		}

		tasks = append(tasks, Task{
			ID:    id,
			Build: newScalarPromptBuilder(def),
			Parse: newScalarParser(id),
		})
	}
	return tasks
}

// Tasks returns the fixed, ordered task set for a profile.
func (r *Registry) Tasks(p models.Profile) ([]Task, error) {
	tasks, ok := r.tasks[p]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", p)
	}
	return tasks, nil
}

// IDs returns the criterion id set for a profile, in task order.
func (r *Registry) IDs(p models.Profile) ([]string, error) {
	tasks, err := r.Tasks(p)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids, nil
}
