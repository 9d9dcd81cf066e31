package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"feedback-triage/ai"
	"feedback-triage/analytics"
	"feedback-triage/database"
	"feedback-triage/models"
	"feedback-triage/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubGenerator struct{}

func (stubGenerator) Process(_ context.Context, rating int, _ string) ai.Outcome {
	return ai.Outcome{
		UserResponse:       ai.Result{Text: "thanks!"},
		AdminSummary:       ai.Result{Text: ai.Fallback(ai.ArtifactAdminSummary, rating), Degraded: true},
		RecommendedActions: ai.Result{Text: "• follow up"},
	}
}

type envelope struct {
	Code  int             `json:"code"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Type    string          `json:"type"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type testAPI struct {
	t      *testing.T
	store  *database.Store
	server *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "feedback.db"), database.WithRetries(1))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	router := NewRouter(Deps{
		Submitter:  service.NewOrchestrator(stubGenerator{}, store),
		Store:      store,
		Thresholds: analytics.DefaultThresholds,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testAPI{t: t, store: store, server: srv}
}

func (a *testAPI) do(method, path, body string) (*http.Response, envelope) {
	a.t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, strings.NewReader(body))
	require.NoError(a.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func (a *testAPI) submit(rating int, text string) models.Receipt {
	a.t.Helper()
	body, _ := json.Marshal(models.SubmitRequest{Rating: rating, ReviewText: text})
	resp, env := a.do(http.MethodPost, "/api/feedback", string(body))
	require.Equal(a.t, http.StatusCreated, resp.StatusCode)
	var receipt models.Receipt
	require.NoError(a.t, json.Unmarshal(env.Data, &receipt))
	return receipt
}

func TestSubmitFeedback(t *testing.T) {
	api := newTestAPI(t)
	receipt := api.submit(4, "  lovely staff and quick service ")
	assert.Equal(t, 4, receipt.Rating)
	assert.Equal(t, "lovely staff and quick service", receipt.ReviewText)
	assert.Equal(t, "thanks!", receipt.UserResponse)
	assert.Positive(t, receipt.ID)
}

func TestSubmitFeedbackValidation(t *testing.T) {
	api := newTestAPI(t)

	resp, env := api.do(http.MethodPost, "/api/feedback", `{"rating": 7, "review_text": "long enough review"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Type)
	assert.Contains(t, string(env.Error.Details), `"field":"rating"`)

	resp, env = api.do(http.MethodPost, "/api/feedback", `{"rating": 3, "review_text": "short"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(env.Error.Details), `"field":"review_text"`)

	resp, _ = api.do(http.MethodPost, "/api/feedback", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(http.MethodGet, "/api/feedback", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	stats, err := api.store.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalSubmissions)
}

func TestAdminEndpoints(t *testing.T) {
	api := newTestAPI(t)
	var receipts []models.Receipt
	for _, r := range []int{5, 5, 4, 1, 3} {
		receipts = append(receipts, api.submit(r, "review text for the admin test"))
	}

	// statistics
	resp, env := api.do(http.MethodGet, "/api/admin/statistics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats models.StatisticsSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 5, stats.TotalSubmissions)
	assert.Equal(t, 3.6, stats.AverageRating)
	assert.Equal(t, map[int]int{5: 2, 4: 1, 1: 1, 3: 1}, stats.RatingDistribution)

	// list with filter
	resp, env = api.do(http.MethodGet, "/api/admin/feedback?rating=5&limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Total int                     `json:"total"`
		Count int                     `json:"count"`
		Items []models.FeedbackRecord `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 5, list.Total)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, receipts[1].ID, list.Items[0].ID)
	assert.Equal(t, receipts[0].ID, list.Items[1].ID)

	resp, _ = api.do(http.MethodGet, "/api/admin/feedback?rating=9", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = api.do(http.MethodGet, "/api/admin/feedback?sort=sideways", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// overview
	resp, env = api.do(http.MethodGet, "/api/admin/overview", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ov models.SentimentOverview
	require.NoError(t, json.Unmarshal(env.Data, &ov))
	assert.Equal(t, 3, ov.PositiveCount)
	assert.Equal(t, 1, ov.NegativeCount)
	assert.Equal(t, 5, ov.MostCommonRating)

	// get by id
	resp, env = api.do(http.MethodGet, "/api/admin/feedback/"+itoa(receipts[3].ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec models.FeedbackRecord
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, 1, rec.Rating)
	assert.Equal(t, ai.Fallback(ai.ArtifactAdminSummary, 1), rec.AdminSummary)

	resp, _ = api.do(http.MethodGet, "/api/admin/feedback/999999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = api.do(http.MethodGet, "/api/admin/feedback/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// delete once, then 404
	resp, _ = api.do(http.MethodDelete, "/api/admin/feedback/"+itoa(receipts[2].ID), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = api.do(http.MethodDelete, "/api/admin/feedback/"+itoa(receipts[2].ID), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// export
	resp, _ = api.do(http.MethodGet, "/api/admin/export", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "4", resp.Header.Get("X-Export-Rows"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "feedback_export_")

	// clear requires confirmation
	resp, _ = api.do(http.MethodDelete, "/api/admin/feedback", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = api.do(http.MethodDelete, "/api/admin/feedback?confirm=true", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stats, err := api.store.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalSubmissions)
}

func TestExportBody(t *testing.T) {
	api := newTestAPI(t)
	api.submit(2, "cold food, slow \"service\"")
	api.submit(5, "excellent, will come back")

	resp, err := http.Get(api.server.URL + "/api/admin/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, database.ExportHeader, rows[0])
	assert.Equal(t, "excellent, will come back", rows[1][3])
}

func TestExportXLSXAndBadFormat(t *testing.T) {
	api := newTestAPI(t)
	api.submit(4, "good coffee, friendly barista")

	resp, err := http.Get(api.server.URL + "/api/admin/export?format=xlsx")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Feedback")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "good coffee, friendly barista", rows[1][3])

	bad, _ := api.do(http.MethodGet, "/api/admin/export?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.submit(3, "average experience overall")

	resp, err := http.Get(api.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
