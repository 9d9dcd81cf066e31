package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completionRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int64   `json:"max_tokens"`
}

func artifactForTemperature(temp float64) Artifact {
	for a, b := range budgets {
		if b.Temperature == temp {
			return a
		}
	}
	return ""
}

// fakeCompletions answers every call with "<artifact> text" padded with whitespace.
func fakeCompletions(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req completionRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "test-model", req.Model)
		assert.Contains(t, string(body), "the soup was cold")

		a := artifactForTemperature(req.Temperature)
		assert.Equal(t, BudgetFor(a).MaxTokens, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"test-model",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  %s text \n"}}]}`, a)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGenerator(t *testing.T, baseURL string, opts ...Option) *Generator {
	t.Helper()
	g, err := NewGenerator(Config{APIKey: "sk-test", Model: "test-model", BaseURL: baseURL, Timeout: 2 * time.Second}, opts...)
	require.NoError(t, err)
	return g
}

func TestNewGeneratorConfigurationErrors(t *testing.T) {
	for _, key := range []string{"", "   ", "sk-with space", "sk-\nnewline"} {
		_, err := NewGenerator(Config{APIKey: key})
		var ce *ConfigurationError
		require.True(t, errors.As(err, &ce), "key %q", key)
		assert.Equal(t, "OPENROUTER_API_KEY", ce.Field)
	}

	g, err := NewGenerator(Config{APIKey: "sk-ok"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, g.Model())
	assert.Equal(t, DefaultTimeout, g.timeout)
}

func TestProcessSuccess(t *testing.T) {
	var calls int32
	srv := fakeCompletions(t, &calls)
	g := newTestGenerator(t, srv.URL)

	out := g.Process(context.Background(), 2, "the soup was cold and late")

	assert.False(t, out.Degraded())
	assert.Equal(t, "user_response text", out.UserResponse.Text)
	assert.Equal(t, "admin_summary text", out.AdminSummary.Text)
	assert.Equal(t, "recommended_actions text", out.RecommendedActions.Text)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	arts := out.Artifacts()
	assert.Equal(t, out.AdminSummary.Text, arts.AdminSummary)
}

func TestProcessFallsBackOnServerError(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusTooManyRequests, http.StatusUnauthorized} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				io.WriteString(w, `{"error":{"message":"nope"}}`)
			}))
			defer srv.Close()
			g := newTestGenerator(t, srv.URL)

			out := g.Process(context.Background(), 1, "the soup was cold")
			assert.True(t, out.Degraded())
			assert.Equal(t, Fallback(ArtifactUserResponse, 1), out.UserResponse.Text)
			assert.Equal(t, Fallback(ArtifactAdminSummary, 1), out.AdminSummary.Text)
			assert.Equal(t, Fallback(ArtifactRecommendedActions, 1), out.RecommendedActions.Text)

			var ge *GenerationError
			require.True(t, errors.As(out.AdminSummary.Reason, &ge))
			assert.Equal(t, ArtifactAdminSummary, ge.Artifact)
		})
	}
}

func TestProcessFallsBackOnMalformedResponses(t *testing.T) {
	bodies := map[string]string{
		"not json":      `<html>gateway</html>`,
		"no choices":    `{"id":"x","choices":[]}`,
		"blank content": `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"   "}}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, body)
			}))
			defer srv.Close()
			g := newTestGenerator(t, srv.URL)

			res := g.Generate(context.Background(), ArtifactAdminSummary, 3, "the soup was cold")
			assert.True(t, res.Degraded)
			assert.Error(t, res.Reason)
			assert.Equal(t, Fallback(ArtifactAdminSummary, 3), res.Text)
		})
	}
}

func TestProcessFallsBackWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := newTestGenerator(t, url)
	out := g.Process(context.Background(), 5, "the soup was great")
	assert.True(t, out.UserResponse.Degraded)
	assert.True(t, out.AdminSummary.Degraded)
	assert.True(t, out.RecommendedActions.Degraded)
	assert.Contains(t, out.UserResponse.Text, "5")
}

func TestGenerateTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	g, err := NewGenerator(Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	res := g.Generate(context.Background(), ArtifactUserResponse, 4, "the soup was fine")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, res.Degraded)
	assert.Equal(t, Fallback(ArtifactUserResponse, 4), res.Text)
}

type mapCache struct {
	mu   sync.Mutex
	m    map[string]string
	fail bool
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return "", false, errors.New("cache down")
	}
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	c.m[key] = value
	return nil
}

func TestCacheServesRepeatedSubmissions(t *testing.T) {
	var calls int32
	srv := fakeCompletions(t, &calls)
	cache := &mapCache{m: map[string]string{}}
	g := newTestGenerator(t, srv.URL, WithCache(cache))

	first := g.Process(context.Background(), 2, "the soup was cold and late")
	second := g.Process(context.Background(), 2, "the soup was cold and late")

	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, first.Artifacts(), second.Artifacts())
	assert.True(t, second.UserResponse.Cached)
	assert.Len(t, cache.m, 3)
}

func TestCacheFailureIsIgnored(t *testing.T) {
	var calls int32
	srv := fakeCompletions(t, &calls)
	g := newTestGenerator(t, srv.URL, WithCache(&mapCache{fail: true}))

	res := g.Generate(context.Background(), ArtifactUserResponse, 2, "the soup was cold")
	assert.False(t, res.Degraded)
	assert.Equal(t, "user_response text", res.Text)
}

func TestDegradedResultsAreNotCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	cache := &mapCache{m: map[string]string{}}
	g := newTestGenerator(t, srv.URL, WithCache(cache))

	res := g.Generate(context.Background(), ArtifactAdminSummary, 2, "the soup was cold")
	assert.True(t, res.Degraded)
	assert.Empty(t, cache.m)
}

type countingTransport struct {
	n int32
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.n, 1)
	return http.DefaultTransport.RoundTrip(r)
}

func TestWithHTTPClientCarriesCompletionCalls(t *testing.T) {
	var calls int32
	srv := fakeCompletions(t, &calls)
	tr := &countingTransport{}
	g := newTestGenerator(t, srv.URL, WithHTTPClient(&http.Client{Transport: tr}))

	out := g.Process(context.Background(), 2, "the soup was cold")
	assert.False(t, out.Degraded())
	assert.EqualValues(t, 3, atomic.LoadInt32(&tr.n))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}
