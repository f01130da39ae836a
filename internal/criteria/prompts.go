package criteria

import (
	"fmt"
	"strings"

	"github.com/callscale/callscore/internal/transcript"
)

// definition is the static rubric text behind a scalar criterion. The
// title and rubric are embedded verbatim into the evaluation prompt.
type definition struct {
	title  string
	rubric string
}

var definitions = map[string]definition{
	// Sales-focused criteria.
	"product_knowledge_score": {
		title:  "Product Knowledge",
		rubric: "How accurately and thoroughly the agent explains the product, its features, and its limitations. Penalize vague, evasive, or incorrect product claims.",
	},
	"persuasion_and_negotiation_skills": {
		title:  "Persuasion and Negotiation Skills",
		rubric: "How effectively the agent influences the customer's position and negotiates terms without being pushy or dishonest.",
	},
	"objection_handling": {
		title:  "Objection Handling",
		rubric: "How well the agent acknowledges, addresses, and resolves customer objections instead of ignoring or dismissing them.",
	},
	"confidence_score": {
		title:  "Confidence",
		rubric: "How assured and composed the agent sounds. Hedging, excessive apology, and self-undermining statements lower the score.",
	},
	"value_proposition": {
		title:  "Value Proposition",
		rubric: "How clearly the agent articulates the concrete value the customer gets, tied to the customer's stated needs.",
	},
	"pitch_quality": {
		title:  "Pitch Quality",
		rubric: "The overall structure, relevance, and delivery of the sales pitch across the conversation.",
	},
	"call_to_action_effectiveness": {
		title:  "Call To Action Effectiveness",
		rubric: "Whether the agent drives the conversation toward a clear, appropriate next step and secures commitment to it.",
	},
	"questioning_technique": {
		title:  "Questioning Technique",
		rubric: "The quality of discovery questions: open-ended, relevant, well-timed, and building on earlier answers.",
	},
	"upselling_success_rate": {
		title:  "Upselling Success",
		rubric: "How naturally and successfully the agent surfaces relevant upgrades or add-ons without derailing the customer's goal.",
	},

	// Customer-service criteria.
	"empathy_score": {
		title:  "Empathy",
		rubric: "How well the agent recognizes and responds to the customer's emotional state, with genuine acknowledgement rather than scripted sympathy.",
	},
	"clarity_and_conciseness": {
		title:  "Clarity and Conciseness",
		rubric: "Whether the agent's replies are easy to follow and free of filler, repetition, and unnecessary jargon.",
	},
	"grammar_and_language": {
		title:  "Grammar and Language",
		rubric: "Grammatical correctness and appropriateness of the language used, including tone register for the situation.",
	},
	"listening_score": {
		title:  "Listening",
		rubric: "Whether the agent's responses show they absorbed what the customer actually said, rather than answering a different question.",
	},
	"positive_sentiment_score": {
		title:  "Positive Sentiment",
		rubric: "The overall positivity of the agent's tone while staying credible. Forced or hollow positivity does not score well.",
	},
	"structure_and_flow": {
		title:  "Structure and Flow",
		rubric: "Whether the conversation progresses logically: greeting, understanding the issue, resolution, close.",
	},
	"problem_resolution_effectiveness": {
		title:  "Problem Resolution Effectiveness",
		rubric: "Whether the customer's underlying problem was actually resolved or credibly put on a path to resolution.",
	},
	"personalisation_index": {
		title:  "Personalisation",
		rubric: "How much the agent tailors responses to this specific customer and situation rather than reciting generic lines.",
	},
	"conflict_management": {
		title:  "Conflict Management",
		rubric: "How well the agent de-escalates friction or frustration and keeps the exchange constructive.",
	},
	"response_time": {
		title:  "Response Time",
		rubric: "Judged from the conversation flow: whether the agent's replies come promptly and acknowledge any delays.",
	},
	"customer_satisfaction_score": {
		title:  "Customer Satisfaction",
		rubric: "An estimate of how satisfied the customer is by the end of the conversation, based on their own words and tone.",
	},

	// Shared criteria.
	"rapport_building": {
		title:  "Rapport Building",
		rubric: "How well the agent establishes a natural, trusting connection with the customer over the conversation.",
	},
	"active_listening_skills": {
		title:  "Active Listening Skills",
		rubric: "Use of paraphrasing, confirmation, and follow-up that proves the agent is tracking the customer's statements.",
	},
	"engagement": {
		title:  "Engagement",
		rubric: "How engaged both sides are: the agent keeps the customer involved and responsive throughout.",
	},
	"stuttering_words": {
		title:  "Speech Fluency",
		rubric: "Frequency of stuttering, filler words, and false starts in the agent's speech. Fewer disfluencies score higher.",
	},

	FeedbackCriterionID: {
		title: "Feedback",
	},
}

const scalarInstruction = "Respond with only the score as a number from 1 to 10. Do not add any explanation."

// newScalarPromptBuilder returns a builder embedding the criterion's
// rubric above the rendered transcript.
func newScalarPromptBuilder(def definition) PromptBuilder {
	return func(t transcript.Transcript) string {
		var sb strings.Builder
		sb.WriteString("You are an expert conversation evaluator scoring a recorded call.\n\n")
		fmt.Fprintf(&sb, "Criterion: %s\n", def.title)
		fmt.Fprintf(&sb, "Rubric: %s\n\n", def.rubric)
		sb.WriteString(t.Render())
		sb.WriteString("\n\n")
		sb.WriteString(scalarInstruction)
		return sb.String()
	}
}

const feedbackInstruction = `Provide feedback on the agent's performance in this conversation.
Respond with only a JSON object of this exact shape:
{"summary": "<one sentence overall assessment>", "short_feedback": "<2-3 sentence summary of strengths and weaknesses>", "long_feedback": "<detailed paragraph with specific examples from the conversation>"}`

func buildFeedbackPrompt(t transcript.Transcript) string {
	var sb strings.Builder
	sb.WriteString("You are an expert conversation evaluator reviewing a recorded call.\n\n")
	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(feedbackInstruction)
	return sb.String()
}
