package handlers

import (
	"net/http"

	"feedback-triage/analytics"
	"feedback-triage/monitoring"
	"feedback-triage/response"
)

// Deps are the collaborators the HTTP API calls into.
type Deps struct {
	Submitter  Submitter
	Store      FeedbackStore
	Thresholds analytics.Thresholds
}

func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, LoggingMiddleware(monitoring.PrometheusMiddleware(h)))
	}

	// 暴露 /metrics 接口
	mux.Handle("GET /metrics", LoggingMiddleware(monitoring.MetricsHandler()))

	// 用户端
	handle("POST /api/feedback", HandleSubmitFeedback(d.Submitter))

	// 管理端
	handle("GET /api/admin/feedback", HandleListFeedback(d.Store))
	handle("DELETE /api/admin/feedback", HandleClearFeedback(d.Store))
	handle("GET /api/admin/feedback/{id}", HandleGetFeedback(d.Store))
	handle("DELETE /api/admin/feedback/{id}", HandleDeleteFeedback(d.Store))
	handle("GET /api/admin/statistics", HandleStatistics(d.Store))
	handle("GET /api/admin/overview", HandleOverview(d.Store, d.Thresholds))
	handle("GET /api/admin/export", HandleExport(d.Store))

	return response.ResponseMiddleware(response.CORSMiddleware(response.RecoverMiddleware(mux)))
}
