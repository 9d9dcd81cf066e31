// Package ai turns a rating and review into the three generated artifacts,
// substituting deterministic fallbacks whenever the remote model fails.
package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"feedback-triage/logging"
	"feedback-triage/models"
	"feedback-triage/monitoring"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultModel   = "mistralai/mistral-7b-instruct:free"
	DefaultBaseURL = "https://openrouter.ai/api/v1/"
	DefaultTimeout = 30 * time.Second
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// Timeout bounds each remote call.
	Timeout time.Duration
}

// ConfigurationError is returned by NewGenerator when the credential is unusable.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// GenerationError records why an artifact fell back. It never leaves Process
// as an error; it is carried in Result.Reason.
type GenerationError struct {
	Artifact Artifact
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.Artifact, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Cache stores successful generations. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Result is one artifact: either model text or a fallback with the reason.
type Result struct {
	Text     string
	Degraded bool
	Cached   bool
	Reason   error
}

// Outcome holds the three results of Process.
type Outcome struct {
	UserResponse       Result
	AdminSummary       Result
	RecommendedActions Result
}

func (o Outcome) Artifacts() models.Artifacts {
	return models.Artifacts{
		UserResponse:       o.UserResponse.Text,
		AdminSummary:       o.AdminSummary.Text,
		RecommendedActions: o.RecommendedActions.Text,
	}
}

// Degraded reports whether any artifact used its fallback.
func (o Outcome) Degraded() bool {
	return o.UserResponse.Degraded || o.AdminSummary.Degraded || o.RecommendedActions.Degraded
}

type Option func(*Generator)

// WithCache enables the response cache.
func WithCache(c Cache) Option {
	return func(g *Generator) { g.cache = c }
}

// WithHTTPClient replaces the transport used for completion calls.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Generator) { g.httpClient = c }
}

// Generator is safe for concurrent use; its configuration is fixed at construction.
type Generator struct {
	client     openai.Client
	model      string
	timeout    time.Duration
	cache      Cache
	httpClient *http.Client
}

func NewGenerator(cfg Config, opts ...Option) (*Generator, error) {
	key := cfg.APIKey
	if strings.TrimSpace(key) == "" {
		return nil, &ConfigurationError{Field: "OPENROUTER_API_KEY", Reason: "is not set"}
	}
	if strings.IndexFunc(key, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return nil, &ConfigurationError{Field: "OPENROUTER_API_KEY", Reason: "contains whitespace or control characters"}
	}

	g := &Generator{
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
	if g.model == "" {
		g.model = DefaultModel
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(g)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	clientOpts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(key),
		// 失败直接降级，不重试
		option.WithMaxRetries(0),
	}
	if g.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(g.httpClient))
	}
	g.client = openai.NewClient(clientOpts...)

	logging.Info("LLM generator initialized", logrus.Fields{"model": g.model, "base_url": baseURL})
	return g, nil
}

func (g *Generator) Model() string {
	return g.model
}

// Process generates the three artifacts concurrently. It always returns a complete
// Outcome; failures are absorbed per artifact.
func (g *Generator) Process(ctx context.Context, rating int, review string) Outcome {
	var (
		out Outcome
		wg  sync.WaitGroup
	)
	targets := []struct {
		artifact Artifact
		dst      *Result
	}{
		{ArtifactUserResponse, &out.UserResponse},
		{ArtifactAdminSummary, &out.AdminSummary},
		{ArtifactRecommendedActions, &out.RecommendedActions},
	}
	for _, t := range targets {
		wg.Add(1)
		go func(a Artifact, dst *Result) {
			defer wg.Done()
			*dst = g.Generate(ctx, a, rating, review)
		}(t.artifact, t.dst)
	}
	wg.Wait()
	return out
}

// Generate produces a single artifact with fallback.
func (g *Generator) Generate(ctx context.Context, a Artifact, rating int, review string) Result {
	key := g.cacheKey(a, rating, review)
	if g.cache != nil {
		if text, ok, err := g.cache.Get(ctx, key); err != nil {
			logging.Warn("Generation cache read failed", logrus.Fields{"artifact": a, "error": err})
		} else if ok {
			monitoring.GenerationTotal.WithLabelValues(string(a), "cached").Inc()
			return Result{Text: text, Cached: true}
		}
	}

	var text string
	err := monitoring.RecordGenerationTime(string(a), func() error {
		var err error
		text, err = g.complete(ctx, Prompt(a, rating, review), BudgetFor(a))
		return err
	})
	if err != nil {
		genErr := &GenerationError{Artifact: a, Err: err}
		monitoring.GenerationTotal.WithLabelValues(string(a), "degraded").Inc()
		logging.Warn("Generation failed, using fallback text", logrus.Fields{
			"artifact": a,
			"rating":   rating,
			"error":    err,
		})
		return Result{Text: Fallback(a, rating), Degraded: true, Reason: genErr}
	}

	monitoring.GenerationTotal.WithLabelValues(string(a), "ok").Inc()
	if g.cache != nil {
		if err := g.cache.Set(ctx, key, text); err != nil {
			logging.Warn("Generation cache write failed", logrus.Fields{"artifact": a, "error": err})
		}
	}
	return Result{Text: text}
}

// complete calls the chat completion endpoint and returns the trimmed text.
func (g *Generator) complete(ctx context.Context, prompt string, b Budget) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       g.model,
		Temperature: openai.Float(b.Temperature),
		MaxTokens:   openai.Int(b.MaxTokens),
	})
	if err != nil {
		return "", errors.Wrap(err, "completion request failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion response has no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("completion response has empty content")
	}
	return text, nil
}

func (g *Generator) cacheKey(a Artifact, rating int, review string) string {
	h := sha256.New()
	for _, part := range []string{g.model, string(a), strconv.Itoa(rating), review} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
