package main

import (
	"fmt"
	"io"

	"github.com/callscale/callscore/internal/scorecard"
)

// valueOrNA renders a scorecard field, using "n/a" for fields outside
// the evaluated profile.
func valueOrNA(v *string) string {
	if v == nil {
		return "n/a"
	}
	return *v
}

type reportField struct {
	label string
	value *string
}

func printSection(w io.Writer, title string, fields []reportField) {
	fmt.Fprintf(w, "\n%s\n", title)
	for _, f := range fields {
		fmt.Fprintf(w, "  %-36s %s\n", f.label, valueOrNA(f.value))
	}
}

// printScorecard renders the full scorecard in a fixed section order.
func printScorecard(w io.Writer, sc *scorecard.Scorecard) {
	fmt.Fprintf(w, "\nScorecard for run %s (profile: %s)\n", sc.RunID, sc.Profile)

	comms := sc.CommunicationAndDelivery
	printSection(w, "Communication and Delivery", []reportField{
		{"empathy_score", comms.EmpathyScore},
		{"clarity_and_conciseness", comms.ClarityAndConciseness},
		{"grammar_and_language", comms.GrammarAndLanguage},
		{"listening_score", comms.ListeningScore},
		{"positive_sentiment_score", comms.PositiveSentimentScore},
		{"structure_and_flow", comms.StructureAndFlow},
		{"stuttering_words", comms.StutteringWords},
		{"active_listening_skills", comms.ActiveListeningSkills},
	})

	interaction := sc.CustomerInteractionAndResolution
	printSection(w, "Customer Interaction and Resolution", []reportField{
		{"problem_resolution_effectiveness", interaction.ProblemResolutionEffectiveness},
		{"personalisation_index", interaction.PersonalisationIndex},
		{"conflict_management", interaction.ConflictManagement},
		{"response_time", interaction.ResponseTime},
		{"customer_satisfaction_score", interaction.CustomerSatisfactionScore},
		{"rapport_building", interaction.RapportBuilding},
		{"engagement", interaction.Engagement},
	})

	sales := sc.SalesAndPersuasion
	printSection(w, "Sales and Persuasion", []reportField{
		{"product_knowledge_score", sales.ProductKnowledgeScore},
		{"persuasion_and_negotiation_skills", sales.PersuasionAndNegotiationSkills},
		{"objection_handling", sales.ObjectionHandling},
		{"upselling_success_rate", sales.UpsellingSuccessRate},
		{"call_to_action_effectiveness", sales.CallToActionEffectiveness},
		{"questioning_technique", sales.QuestioningTechnique},
	})

	presentation := sc.ProfessionalismAndPresentation
	printSection(w, "Professionalism and Presentation", []reportField{
		{"confidence_score", presentation.ConfidenceScore},
		{"value_proposition", presentation.ValueProposition},
		{"pitch_quality", presentation.PitchQuality},
	})

	if sc.Feedback != nil {
		fmt.Fprintf(w, "\nFeedback\n")
		fmt.Fprintf(w, "  summary: %s\n", sc.Feedback.Summary)
		fmt.Fprintf(w, "  short:   %s\n", sc.Feedback.ShortFeedback)
		fmt.Fprintf(w, "  long:    %s\n", sc.Feedback.LongFeedback)
	}
}
