package ai

import (
	"fmt"

	"feedback-triage/models"
)

// Artifact names one of the three generated texts.
type Artifact string

const (
	ArtifactUserResponse       Artifact = "user_response"
	ArtifactAdminSummary       Artifact = "admin_summary"
	ArtifactRecommendedActions Artifact = "recommended_actions"
)

// Budget is the sampling temperature and response-length cap of one call.
type Budget struct {
	Temperature float64
	MaxTokens   int64
}

// DefaultBudget applies to artifacts without a dedicated budget.
var DefaultBudget = Budget{Temperature: 0.7, MaxTokens: 300}

var budgets = map[Artifact]Budget{
	ArtifactUserResponse:       {Temperature: 0.7, MaxTokens: 200},
	ArtifactAdminSummary:       {Temperature: 0.3, MaxTokens: 150},
	ArtifactRecommendedActions: {Temperature: 0.4, MaxTokens: 250},
}

// BudgetFor returns the budget used when generating a.
func BudgetFor(a Artifact) Budget {
	if b, ok := budgets[a]; ok {
		return b
	}
	return DefaultBudget
}

// Prompt builds the artifact-specific prompt. rating and review are embedded verbatim.
func Prompt(a Artifact, rating int, review string) string {
	switch a {
	case ArtifactUserResponse:
		return fmt.Sprintf(`You are a friendly customer service representative for a business.
A customer left a %d-star review with this feedback:

"%s"

Write a warm, empathetic and professional reply that:
1. Thanks them for the feedback
2. Acknowledges the specific points they raised, positive or negative
3. For negative reviews, apologizes and commits to improving
4. For positive reviews, expresses gratitude and invites them back
5. Is at most 2-3 sentences

Sound genuine and avoid generic corporate language.

Reply:`, rating, review)

	case ArtifactAdminSummary:
		return fmt.Sprintf(`Summarize this %d-star customer review in 1-2 sentences for a manager's dashboard.
Focus on the key points and the overall sentiment.

Review: "%s"

Summary:`, rating, review)

	case ArtifactRecommendedActions:
		return fmt.Sprintf(`Based on this %d-star customer review, suggest 2-3 specific, actionable steps
the business should take. Format them as bullet points.

Review: "%s"

This is a %s rating: %s

Recommended actions:`, rating, review, models.BandOf(rating), bandGuidance(models.BandOf(rating)))
	}
	return fmt.Sprintf("Customer rating: %d stars.\nReview: %q", rating, review)
}

func bandGuidance(b models.RatingBand) string {
	switch b {
	case models.BandLow:
		return "focus on immediate damage control and concrete fixes."
	case models.BandMedium:
		return "identify the areas that need improvement."
	default:
		return "reinforce what is working and suggest small enhancements."
	}
}

// Fallback is the deterministic text used when the remote call for a fails.
func Fallback(a Artifact, rating int) string {
	band := models.BandOf(rating)
	switch a {
	case ArtifactAdminSummary:
		switch band {
		case models.BandLow:
			return fmt.Sprintf("Customer expressed dissatisfaction (%d stars). Review requires attention.", rating)
		case models.BandMedium:
			return fmt.Sprintf("Mixed review (%d stars). Customer had both positive and negative experiences.", rating)
		default:
			return fmt.Sprintf("Positive review (%d stars). Customer had a good experience.", rating)
		}

	case ArtifactRecommendedActions:
		switch band {
		case models.BandLow:
			return "• Contact the customer directly to address their concerns\n• Review and fix the issues mentioned\n• Put quality control checks in place"
		case models.BandMedium:
			return "• Analyze the feedback for improvement areas\n• Follow up with the customer about their experience\n• Refresh staff training on customer service"
		default:
			return "• Thank the customer for the positive feedback\n• Keep the current practices going\n• Share the praise with the team"
		}
	}
	return fmt.Sprintf("Thank you for your %d-star review! We appreciate your feedback and will use it to improve our service.", rating)
}
