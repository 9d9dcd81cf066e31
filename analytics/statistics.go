// Package analytics holds pure functions over snapshots of feedback records.
package analytics

import (
	"time"
	"unicode/utf8"

	"feedback-triage/models"

	"github.com/shopspring/decimal"
)

// RecentWindow is the look-back used for RecentSubmissions24h.
const RecentWindow = 24 * time.Hour

// Thresholds drive the sentiment buckets of the admin overview.
type Thresholds struct {
	// PositiveMin: ratings >= PositiveMin count as positive.
	PositiveMin int
	// NegativeMax: ratings <= NegativeMax count as negative.
	NegativeMax int
	// Neutral is the reference point for DeltaVsNeutral.
	Neutral float64
}

// DefaultThresholds matches the cut-offs operators have been using.
var DefaultThresholds = Thresholds{PositiveMin: 4, NegativeMax: 2, Neutral: 3}

// ComputeStatistics derives a snapshot from records as seen at now. A record
// exactly RecentWindow old still counts as recent.
func ComputeStatistics(records []models.FeedbackRecord, now time.Time) models.StatisticsSnapshot {
	stats := models.StatisticsSnapshot{
		RatingDistribution: make(map[int]int),
	}
	if len(records) == 0 {
		return stats
	}

	cutoff := now.Add(-RecentWindow)
	sum := 0
	for _, r := range records {
		stats.TotalSubmissions++
		sum += r.Rating
		stats.RatingDistribution[r.Rating]++
		if !r.Timestamp.Before(cutoff) {
			stats.RecentSubmissions24h++
		}
	}
	stats.AverageRating = Round2(float64(sum) / float64(stats.TotalSubmissions))
	return stats
}

// Overview computes the sentiment overview shown to operators.
func Overview(records []models.FeedbackRecord, th Thresholds) models.SentimentOverview {
	ov := models.SentimentOverview{
		RatingPercentages: make(map[int]float64),
	}
	if len(records) == 0 {
		return ov
	}

	counts := make(map[int]int)
	sum, textLen := 0, 0
	for _, r := range records {
		ov.Total++
		sum += r.Rating
		textLen += utf8.RuneCountInString(r.ReviewText)
		counts[r.Rating]++
		switch {
		case r.Rating >= th.PositiveMin:
			ov.PositiveCount++
		case r.Rating <= th.NegativeMax:
			ov.NegativeCount++
		default:
			ov.NeutralCount++
		}
	}

	total := float64(ov.Total)
	ov.PositivePercent = round1(float64(ov.PositiveCount) / total * 100)
	ov.NegativePercent = round1(float64(ov.NegativeCount) / total * 100)
	ov.AverageRating = Round2(float64(sum) / total)
	ov.DeltaVsNeutral = Round2(ov.AverageRating - th.Neutral)
	ov.AverageReviewLength = round1(float64(textLen) / total)
	for rating, n := range counts {
		ov.RatingPercentages[rating] = round1(float64(n) / total * 100)
	}
	ov.MostCommonRating = mostCommon(counts)
	return ov
}

// mostCommon returns the rating with the highest count; ties go to the lower rating.
func mostCommon(counts map[int]int) int {
	best, bestN := 0, 0
	for rating, n := range counts {
		if n > bestN || (n == bestN && rating < best) {
			best, bestN = rating, n
		}
	}
	return best
}

// Round2 rounds half away from zero to two decimal places, on the shortest
// decimal form of v (2.675 becomes 2.68).
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func round1(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}
