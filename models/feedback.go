package models

import "time"

// 评分区间
const (
	MinRating = 1
	MaxRating = 5

	// MinReviewLength is the minimum number of characters a trimmed review must carry.
	MinReviewLength = 10
)

// FeedbackRecord 一条用户提交及其AI生成的衍生内容
type FeedbackRecord struct {
	ID                 int64     `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Rating             int       `json:"rating"`
	ReviewText         string    `json:"review_text"`
	UserResponse       string    `json:"user_response"`
	AdminSummary       string    `json:"admin_summary"`
	RecommendedActions string    `json:"recommended_actions"`
}

// StatisticsSnapshot is derived on demand from the stored records and never persisted.
type StatisticsSnapshot struct {
	TotalSubmissions     int         `json:"total_submissions"`
	AverageRating        float64     `json:"average_rating"`
	RatingDistribution   map[int]int `json:"rating_distribution"`
	RecentSubmissions24h int         `json:"recent_submissions_24h"`
}

// SentimentOverview 管理后台的情感概览
type SentimentOverview struct {
	Total               int             `json:"total"`
	PositiveCount       int             `json:"positive_count"`
	PositivePercent     float64         `json:"positive_percent"`
	NegativeCount       int             `json:"negative_count"`
	NegativePercent     float64         `json:"negative_percent"`
	NeutralCount        int             `json:"neutral_count"`
	AverageRating       float64         `json:"average_rating"`
	DeltaVsNeutral      float64         `json:"delta_vs_neutral"`
	RatingPercentages   map[int]float64 `json:"rating_percentages"`
	AverageReviewLength float64         `json:"average_review_length"`
	// MostCommonRating 出现次数最多的评分，并列时取较低者；无记录时为 0
	MostCommonRating int `json:"most_common_rating"`
}

// Artifacts 三个AI生成的文本
type Artifacts struct {
	UserResponse       string `json:"user_response"`
	AdminSummary       string `json:"admin_summary"`
	RecommendedActions string `json:"recommended_actions"`
}

// Receipt is handed back to the submitter once the record is persisted.
type Receipt struct {
	ID           int64  `json:"id"`
	Rating       int    `json:"rating"`
	ReviewText   string `json:"review_text"`
	UserResponse string `json:"user_response"`
}

// SubmitRequest 用户提交评价请求
type SubmitRequest struct {
	Rating     int    `json:"rating"`
	ReviewText string `json:"review_text"`
}

// RatingBand classifies a rating for prompt framing and fallback selection.
type RatingBand int

const (
	BandLow RatingBand = iota
	BandMedium
	BandHigh
)

// BandOf 根据评分返回评分区间: <=2 低, =3 中, >=4 高
func BandOf(rating int) RatingBand {
	switch {
	case rating <= 2:
		return BandLow
	case rating == 3:
		return BandMedium
	default:
		return BandHigh
	}
}

func (b RatingBand) String() string {
	switch b {
	case BandLow:
		return "low"
	case BandMedium:
		return "medium"
	default:
		return "high"
	}
}

// ValidRating reports whether r lies in [MinRating, MaxRating].
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}
