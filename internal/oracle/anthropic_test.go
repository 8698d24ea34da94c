package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/cost"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/resilience"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 4},
	}
}

var classifyPrompt = model.Prompt{Name: "classify", Template: "Current query: {query}"}

func TestGenerate_RendersPromptAndTrims(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-5-20250929" &&
			req.MaxTokens == 256 &&
			len(req.Messages) == 1 &&
			req.Messages[0].Role == "user" &&
			req.Messages[0].Content == "Current query: average age?" &&
			req.Temperature != nil && *req.Temperature == 0
	})).Return(textResponse("  sql_tool\n"), nil)

	o := New(client,
		WithModel("claude-sonnet-4-5-20250929"),
		WithMaxTokens(256),
		WithCost(cost.NewCalculator(cost.DefaultRates())),
	)
	out, err := o.Generate(context.Background(), classifyPrompt, map[string]string{"query": "average age?"})
	require.NoError(t, err)
	assert.Equal(t, "sql_tool", out)
	client.AssertExpectations(t)
}

func TestGenerate_ErrorIsWrappedAndNotRetried(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

	o := New(client)
	_, err := o.Generate(context.Background(), classifyPrompt, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle: classify")
	assert.Contains(t, err.Error(), "connection reset")
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestGenerate_OpenBreakerRejects(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("503")).Once()

	o := New(client, WithBreaker(resilience.NewCircuitBreaker(resilience.FromSettings(1, 60))))

	_, err := o.Generate(context.Background(), classifyPrompt, nil)
	require.Error(t, err)

	_, err = o.Generate(context.Background(), classifyPrompt, nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, resilience.ErrCircuitOpen))
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestGenerate_CancelledWhileWaitingForRate(t *testing.T) {
	client := &mockClient{}
	o := New(client, WithRateLimit(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Generate(ctx, classifyPrompt, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wait for rate limit")
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestGenerate_RateLimitedSlowsDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	o := New(anthropic.NewClient("test-key", option.WithBaseURL(ts.URL)), WithRateLimit(8))
	_, err := o.Generate(context.Background(), classifyPrompt, nil)
	require.Error(t, err)
	assert.InDelta(t, 4.0, float64(o.limiter.current()), 0.001)
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	l := newAdaptiveLimiter(4)
	for i := 0; i < 10; i++ {
		l.onSuccess()
	}
	assert.InDelta(t, 8.0, float64(l.current()), 0.001)

	for i := 0; i < 10; i++ {
		l.onRateLimited()
	}
	assert.InDelta(t, 1.0, float64(l.current()), 0.001)
}
