// Package service sequences validation, generation and persistence of a submission.
package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"feedback-triage/ai"
	"feedback-triage/logging"
	"feedback-triage/models"
	"feedback-triage/monitoring"

	"github.com/sirupsen/logrus"
)

// ValidationError describes input the submitter has to correct.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Generator produces the three artifacts; it never fails.
type Generator interface {
	Process(ctx context.Context, rating int, review string) ai.Outcome
}

// Store persists a fully populated record.
type Store interface {
	Insert(ctx context.Context, rating int, reviewText, userResponse, adminSummary, recommendedActions string) (int64, error)
}

type Orchestrator struct {
	gen   Generator
	store Store
}

func NewOrchestrator(gen Generator, store Store) *Orchestrator {
	return &Orchestrator{gen: gen, store: store}
}

// Validate checks a submission and returns the trimmed review text.
func Validate(rating int, review string) (string, error) {
	if !models.ValidRating(rating) {
		return "", &ValidationError{
			Field:  "rating",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", models.MinRating, models.MaxRating, rating),
		}
	}
	trimmed := strings.TrimSpace(review)
	if trimmed == "" {
		return "", &ValidationError{Field: "review_text", Reason: "please write a review before submitting"}
	}
	if utf8.RuneCountInString(trimmed) < models.MinReviewLength {
		return "", &ValidationError{
			Field:  "review_text",
			Reason: fmt.Sprintf("please provide a more detailed review (at least %d characters)", models.MinReviewLength),
		}
	}
	return trimmed, nil
}

// Submit validates, generates and persists one submission. Storage failures are
// returned as-is (a *database.StorageError); the generated text is discarded.
func (o *Orchestrator) Submit(ctx context.Context, rating int, review string) (models.Receipt, error) {
	text, err := Validate(rating, review)
	if err != nil {
		monitoring.SubmissionsTotal.WithLabelValues("invalid").Inc()
		return models.Receipt{}, err
	}

	// 提示词使用原文，入库使用去除首尾空白后的文本
	out := o.gen.Process(ctx, rating, review)
	if out.Degraded() {
		logging.Warn("Submission processed in degraded mode", logrus.Fields{
			"rating":              rating,
			"user_response":       reason(out.UserResponse),
			"admin_summary":       reason(out.AdminSummary),
			"recommended_actions": reason(out.RecommendedActions),
		})
	}

	arts := out.Artifacts()
	id, err := o.store.Insert(ctx, rating, text, arts.UserResponse, arts.AdminSummary, arts.RecommendedActions)
	if err != nil {
		monitoring.SubmissionsTotal.WithLabelValues("storage_error").Inc()
		logging.Error("Failed to persist submission", logrus.Fields{"error": err, "rating": rating})
		return models.Receipt{}, err
	}

	result := "ok"
	if out.Degraded() {
		result = "degraded"
	}
	monitoring.SubmissionsTotal.WithLabelValues(result).Inc()
	logging.Info("Submission stored", logrus.Fields{"id": id, "rating": rating, "degraded": out.Degraded()})

	return models.Receipt{
		ID:           id,
		Rating:       rating,
		ReviewText:   text,
		UserResponse: arts.UserResponse,
	}, nil
}

func reason(r ai.Result) string {
	if !r.Degraded || r.Reason == nil {
		return "ok"
	}
	return r.Reason.Error()
}
