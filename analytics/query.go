package analytics

import (
	"fmt"
	"sort"
	"strings"

	"feedback-triage/models"
)

// SortOrder mirrors the orderings offered on the admin dashboard.
type SortOrder string

const (
	SortNewest  SortOrder = "newest"
	SortOldest  SortOrder = "oldest"
	SortHighest SortOrder = "highest"
	SortLowest  SortOrder = "lowest"
)

// ParseSortOrder accepts an empty string as SortNewest.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortHighest, SortLowest:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}

// Query selects and orders a subset of records. Zero value means all records, newest first.
type Query struct {
	// Ratings keeps only these ratings when non-empty.
	Ratings []int
	Sort    SortOrder
	// Limit truncates the result when > 0.
	Limit int
}

// Apply returns a new slice; records is not modified.
func Apply(records []models.FeedbackRecord, q Query) []models.FeedbackRecord {
	out := Filter(records, q.Ratings...)
	SortRecords(out, q.Sort)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Filter keeps records whose rating is in ratings. No ratings keeps everything.
func Filter(records []models.FeedbackRecord, ratings ...int) []models.FeedbackRecord {
	out := make([]models.FeedbackRecord, 0, len(records))
	if len(ratings) == 0 {
		return append(out, records...)
	}
	keep := make(map[int]bool, len(ratings))
	for _, r := range ratings {
		keep[r] = true
	}
	for _, rec := range records {
		if keep[rec.Rating] {
			out = append(out, rec)
		}
	}
	return out
}

// SortRecords sorts in place. Ties on rating fall back to newest first; ties on
// timestamp fall back to id.
func SortRecords(records []models.FeedbackRecord, order SortOrder) {
	newer := func(a, b models.FeedbackRecord) bool {
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch order {
		case SortOldest:
			return newer(b, a)
		case SortHighest:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
			return newer(a, b)
		case SortLowest:
			if a.Rating != b.Rating {
				return a.Rating < b.Rating
			}
			return newer(a, b)
		default:
			return newer(a, b)
		}
	})
}
