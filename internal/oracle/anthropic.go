// Package oracle turns rendered prompts into text using Anthropic models.
package oracle

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/cost"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/resilience"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/pkg/anthropic"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 1024
)

var tracer = otel.Tracer("github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/oracle")

// Anthropic generates text for prompts with temperature 0.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *adaptiveLimiter
	breaker   *resilience.CircuitBreaker
	costs     *cost.Calculator
}

// Option configures the oracle.
type Option func(*Anthropic)

// WithModel overrides the default model.
func WithModel(m string) Option {
	return func(a *Anthropic) {
		if m != "" {
			a.model = m
		}
	}
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int64) Option {
	return func(a *Anthropic) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithRateLimit paces requests to rps per second. Zero disables pacing.
func WithRateLimit(rps float64) Option {
	return func(a *Anthropic) {
		if rps > 0 {
			a.limiter = newAdaptiveLimiter(rps)
		}
	}
}

// WithBreaker routes every call through cb.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(a *Anthropic) {
		a.breaker = cb
	}
}

// WithCost logs per-call cost attribution.
func WithCost(calc *cost.Calculator) Option {
	return func(a *Anthropic) {
		a.costs = calc
	}
}

// New creates an Anthropic-backed oracle.
func New(client anthropic.Client, opts ...Option) *Anthropic {
	a := &Anthropic{
		client:    client,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.breaker == nil {
		a.breaker = resilience.NewCircuitBreaker(resilience.FromSettings(0, 0))
	}
	return a
}

// Generate renders the prompt with vars and returns the trimmed response
// text. Failures are returned once; nothing is retried.
func (a *Anthropic) Generate(ctx context.Context, prompt model.Prompt, vars map[string]string) (string, error) {
	ctx, span := tracer.Start(ctx, "oracle.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("oracle.prompt", prompt.Name),
		attribute.String("oracle.model", a.model),
	)

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return "", eris.Wrapf(err, "oracle: %s: wait for rate limit", prompt.Name)
		}
	}

	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt.Render(vars)}},
		Temperature: &temp,
	}

	resp, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		if a.limiter != nil && isRateLimited(err) {
			a.limiter.onRateLimited()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", eris.Wrapf(err, "oracle: %s", prompt.Name)
	}
	if a.limiter != nil {
		a.limiter.onSuccess()
	}

	span.SetAttributes(
		attribute.Int64("oracle.input_tokens", resp.Usage.InputTokens),
		attribute.Int64("oracle.output_tokens", resp.Usage.OutputTokens),
	)
	if a.costs != nil {
		a.costs.Log(a.model, prompt.Name, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}

	return strings.TrimSpace(resp.Text()), nil
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}
