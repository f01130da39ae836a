// Package scorecard assembles the profile-invariant scorecard from a
// complete set of criterion results. The schema never changes with the
// profile: fields outside the evaluated profile stay null, which is
// the explicit "not applicable" marker for consumers.
package scorecard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/callscale/callscore/internal/models"
)

// CommunicationAndDelivery holds the conversational delivery scores.
// Populated for the customer profile only.
type CommunicationAndDelivery struct {
	EmpathyScore           *string `json:"empathy_score"`
	ClarityAndConciseness  *string `json:"clarity_and_conciseness"`
	GrammarAndLanguage     *string `json:"grammar_and_language"`
	ListeningScore         *string `json:"listening_score"`
	PositiveSentimentScore *string `json:"positive_sentiment_score"`
	StructureAndFlow       *string `json:"structure_and_flow"`
	StutteringWords        *string `json:"stuttering_words"`
	ActiveListeningSkills  *string `json:"active_listening_skills"`
}

// CustomerInteractionAndResolution holds the service-outcome scores.
// Populated for the customer profile only.
type CustomerInteractionAndResolution struct {
	ProblemResolutionEffectiveness *string `json:"problem_resolution_effectiveness"`
	PersonalisationIndex           *string `json:"personalisation_index"`
	ConflictManagement             *string `json:"conflict_management"`
	ResponseTime                   *string `json:"response_time"`
	CustomerSatisfactionScore      *string `json:"customer_satisfaction_score"`
	RapportBuilding                *string `json:"rapport_building"`
	Engagement                     *string `json:"engagement"`
}

// SalesAndPersuasion holds the selling-skill scores. Populated for the
// sales profile only.
type SalesAndPersuasion struct {
	ProductKnowledgeScore          *string `json:"product_knowledge_score"`
	PersuasionAndNegotiationSkills *string `json:"persuasion_and_negotiation_skills"`
	ObjectionHandling              *string `json:"objection_handling"`
	UpsellingSuccessRate           *string `json:"upselling_success_rate"`
	CallToActionEffectiveness      *string `json:"call_to_action_effectiveness"`
	QuestioningTechnique           *string `json:"questioning_technique"`
}

// ProfessionalismAndPresentation holds the presentation scores.
// Populated for the sales profile only.
type ProfessionalismAndPresentation struct {
	ConfidenceScore  *string `json:"confidence_score"`
	ValueProposition *string `json:"value_proposition"`
	PitchQuality     *string `json:"pitch_quality"`
}

// Scorecard is the assembled result of one evaluation run.
type Scorecard struct {
	RunID   string         `json:"run_id"`
	Profile models.Profile `json:"profile"`

	CommunicationAndDelivery         CommunicationAndDelivery         `json:"communication_and_delivery"`
	CustomerInteractionAndResolution CustomerInteractionAndResolution `json:"customer_interaction_and_resolution"`
	SalesAndPersuasion               SalesAndPersuasion               `json:"sales_and_persuasion"`
	ProfessionalismAndPresentation   ProfessionalismAndPresentation   `json:"professionalism_and_presentation"`

	Feedback *FeedbackPayload `json:"feedback"`

	Provenance *models.Provenance `json:"provenance,omitempty"`
}

// IncompleteAggregateError reports an assembly attempt over a result
// set that does not exactly cover the profile's criterion set. It
// signals a caller bug, never a condition to retry.
type IncompleteAggregateError struct {
	Profile    models.Profile
	Missing    []string
	Unexpected []string
}

func (e *IncompleteAggregateError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected: %s", strings.Join(e.Unexpected, ", ")))
	}
	return fmt.Sprintf("incomplete aggregate for profile %s (%s)", e.Profile, strings.Join(parts, "; "))
}

// Assemble builds the scorecard for a run. The completed set must
// exactly match the expected criterion ids. The sales profile scores
// rapport_building, active_listening_skills, engagement and
// stuttering_words for the run record, but their destination fields
// belong to customer sections and stay null under sales.
func Assemble(runID string, profile models.Profile, expected []string, completed map[string]models.CriterionResult) (*Scorecard, error) {
	if err := checkCoverage(profile, expected, completed); err != nil {
		return nil, err
	}

	sc := &Scorecard{RunID: runID, Profile: profile}

	for id, result := range completed {
		if id == feedbackCriterionID {
			payload, err := ParseFeedbackPayload(result.Payload)
			if err != nil {
				return nil, fmt.Errorf("run %s: %w", runID, err)
			}
			sc.Feedback = payload
			continue
		}
		assignField(sc, profile, id, result.Value)
	}

	return sc, nil
}

func checkCoverage(profile models.Profile, expected []string, completed map[string]models.CriterionResult) error {
	expectedSet := make(map[string]struct{}, len(expected))
	for _, id := range expected {
		expectedSet[id] = struct{}{}
	}

	var missing, unexpected []string
	for id := range expectedSet {
		if _, ok := completed[id]; !ok {
			missing = append(missing, id)
		}
	}
	for id := range completed {
		if _, ok := expectedSet[id]; !ok {
			unexpected = append(unexpected, id)
		}
	}

	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Strings(missing)
		sort.Strings(unexpected)
		return &IncompleteAggregateError{Profile: profile, Missing: missing, Unexpected: unexpected}
	}
	return nil
}

// assignField routes a scalar value to its scorecard field. Criteria
// whose destination section belongs to the other profile are left
// unassigned.
func assignField(sc *Scorecard, profile models.Profile, id, value string) {
	v := &value

	switch profile {
	case models.ProfileCustomer:
		switch id {
		case "empathy_score":
			sc.CommunicationAndDelivery.EmpathyScore = v
		case "clarity_and_conciseness":
			sc.CommunicationAndDelivery.ClarityAndConciseness = v
		case "grammar_and_language":
			sc.CommunicationAndDelivery.GrammarAndLanguage = v
		case "listening_score":
			sc.CommunicationAndDelivery.ListeningScore = v
		case "positive_sentiment_score":
			sc.CommunicationAndDelivery.PositiveSentimentScore = v
		case "structure_and_flow":
			sc.CommunicationAndDelivery.StructureAndFlow = v
		case "stuttering_words":
			sc.CommunicationAndDelivery.StutteringWords = v
		case "active_listening_skills":
			sc.CommunicationAndDelivery.ActiveListeningSkills = v
		case "problem_resolution_effectiveness":
			sc.CustomerInteractionAndResolution.ProblemResolutionEffectiveness = v
		case "personalisation_index":
			sc.CustomerInteractionAndResolution.PersonalisationIndex = v
		case "conflict_management":
			sc.CustomerInteractionAndResolution.ConflictManagement = v
		case "response_time":
			sc.CustomerInteractionAndResolution.ResponseTime = v
		case "customer_satisfaction_score":
			sc.CustomerInteractionAndResolution.CustomerSatisfactionScore = v
		case "rapport_building":
			sc.CustomerInteractionAndResolution.RapportBuilding = v
		case "engagement":
			sc.CustomerInteractionAndResolution.Engagement = v
		}
	case models.ProfileSales:
		switch id {
		case "product_knowledge_score":
			sc.SalesAndPersuasion.ProductKnowledgeScore = v
		case "persuasion_and_negotiation_skills":
			sc.SalesAndPersuasion.PersuasionAndNegotiationSkills = v
		case "objection_handling":
			sc.SalesAndPersuasion.ObjectionHandling = v
		case "upselling_success_rate":
			sc.SalesAndPersuasion.UpsellingSuccessRate = v
		case "call_to_action_effectiveness":
			sc.SalesAndPersuasion.CallToActionEffectiveness = v
		case "questioning_technique":
			sc.SalesAndPersuasion.QuestioningTechnique = v
		case "confidence_score":
			sc.ProfessionalismAndPresentation.ConfidenceScore = v
		case "value_proposition":
			sc.ProfessionalismAndPresentation.ValueProposition = v
		case "pitch_quality":
			sc.ProfessionalismAndPresentation.PitchQuality = v
		}
	}
}
