package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"feedback-triage/analytics"
	"feedback-triage/database"
	"feedback-triage/logging"
	"feedback-triage/models"
	"feedback-triage/response"
	"feedback-triage/service"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 64 << 10

// Submitter accepts customer submissions.
type Submitter interface {
	Submit(ctx context.Context, rating int, review string) (models.Receipt, error)
}

// FeedbackStore is the read/admin side of the store used by the operator endpoints.
type FeedbackStore interface {
	GetAll(ctx context.Context) ([]models.FeedbackRecord, error)
	GetByID(ctx context.Context, id int64) (models.FeedbackRecord, bool, error)
	Statistics(ctx context.Context) (models.StatisticsSnapshot, error)
	Delete(ctx context.Context, id int64) (bool, error)
	ClearAll(ctx context.Context) error
	ExportAs(ctx context.Context, w io.Writer, format database.ExportFormat) (int, error)
}

// HandleSubmitFeedback 用户提交评价: POST /api/feedback
func HandleSubmitFeedback(sub Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.SubmitRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			response.BadRequest(w, "request body must be JSON {rating, review_text}", err.Error())
			return
		}

		receipt, err := sub.Submit(r.Context(), req.Rating, req.ReviewText)
		if err != nil {
			var ve *service.ValidationError
			if errors.As(err, &ve) {
				response.ValidationError(w, ve.Reason, ve.Field)
				return
			}
			logging.Error("评价提交失败", logrus.Fields{"error": err, "request_id": response.GetRequestID(r)})
			if database.IsStorageError(err) {
				response.StorageError(w, err)
				return
			}
			response.ServerError(w, err)
			return
		}
		response.Created(w, receipt, "thank you for your feedback")
	}
}

// HandleListFeedback 管理端查询: GET /api/admin/feedback?rating=1,2&sort=newest&limit=10
func HandleListFeedback(store FeedbackStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseListQuery(r)
		if err != nil {
			response.BadRequest(w, "invalid query parameters", err.Error())
			return
		}

		all, err := store.GetAll(r.Context())
		if err != nil {
			response.StorageError(w, err)
			return
		}
		items := analytics.Apply(all, q)
		response.Success(w, map[string]interface{}{
			"total": len(all),
			"count": len(items),
			"items": items,
		}, "ok")
	}
}

func parseListQuery(r *http.Request) (analytics.Query, error) {
	var q analytics.Query
	values := r.URL.Query()

	if raw := values.Get("rating"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || !models.ValidRating(n) {
				return q, fmt.Errorf("rating %q must be an integer between %d and %d", part, models.MinRating, models.MaxRating)
			}
			q.Ratings = append(q.Ratings, n)
		}
	}

	order, err := analytics.ParseSortOrder(values.Get("sort"))
	if err != nil {
		return q, err
	}
	q.Sort = order

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, fmt.Errorf("limit %q must be a non-negative integer", raw)
		}
		q.Limit = n
	}
	return q, nil
}

// HandleGetFeedback GET /api/admin/feedback/{id}
func HandleGetFeedback(store FeedbackStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		rec, found, err := store.GetByID(r.Context(), id)
		if err != nil {
			response.StorageError(w, err)
			return
		}
		if !found {
			response.NotFound(w, fmt.Sprintf("feedback %d not found", id))
			return
		}
		response.Success(w, rec, "ok")
	}
}

// HandleDeleteFeedback DELETE /api/admin/feedback/{id}
func HandleDeleteFeedback(store FeedbackStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		deleted, err := store.Delete(r.Context(), id)
		if err != nil {
			response.StorageError(w, err)
			return
		}
		if !deleted {
			response.NotFound(w, fmt.Sprintf("feedback %d not found", id))
			return
		}
		response.Success(w, map[string]int64{"id": id}, "feedback deleted")
	}
}

// HandleClearFeedback DELETE /api/admin/feedback?confirm=true
func HandleClearFeedback(store FeedbackStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("confirm") != "true" {
			response.BadRequest(w, "clearing all feedback is irreversible; repeat with confirm=true", nil)
			return
		}
		if err := store.ClearAll(r.Context()); err != nil {
			response.StorageError(w, err)
			return
		}
		response.Success(w, nil, "all feedback cleared")
	}
}

// HandleStatistics GET /api/admin/statistics
func HandleStatistics(store FeedbackStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.Statistics(r.Context())
		if err != nil {
			response.StorageError(w, err)
			return
		}
		response.Success(w, stats, "ok")
	}
}

// HandleOverview GET /api/admin/overview
func HandleOverview(store FeedbackStore, th analytics.Thresholds) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := store.GetAll(r.Context())
		if err != nil {
			response.StorageError(w, err)
			return
		}
		response.Success(w, analytics.Overview(all, th), "ok")
	}
}

// HandleExport GET /api/admin/export?format=csv|xlsx
func HandleExport(store FeedbackStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := database.ParseExportFormat(r.URL.Query().Get("format"))
		if err != nil {
			response.BadRequest(w, "invalid export format", err.Error())
			return
		}

		var buf bytes.Buffer
		n, err := store.ExportAs(r.Context(), &buf, format)
		if err != nil {
			response.StorageError(w, err)
			return
		}

		filename := fmt.Sprintf("feedback_export_%s.%s", time.Now().UTC().Format("20060102_150405"), format)
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.Header().Set("X-Export-Rows", strconv.Itoa(n))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "id must be a positive integer", raw)
		return 0, false
	}
	return id, true
}
