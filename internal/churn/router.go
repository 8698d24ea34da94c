package churn

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/events"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/scoring"
)

// Deps are the collaborators a Router is built from.
type Deps struct {
	Oracle    TextOracle
	Store     Store
	Model     scoring.Model
	Pool      *InferencePool
	Budgeter  *Budgeter
	Publisher events.Publisher
	// ReadOnlySQL restricts generated SQL to a single query.
	ReadOnlySQL bool
}

// Router answers one query end to end: detect language, budget history,
// classify, dispatch, log.
type Router struct {
	budgeter    *Budgeter
	classifier  *Classifier
	extractor   *Extractor
	predictor   *Predictor
	recommender *Recommender
	sql         *SQLTool
	filter      *FilterTool
	store       Store
	publisher   events.Publisher
	now         func() time.Time
}

// NewRouter wires the tools around d.
func NewRouter(d Deps) *Router {
	if d.Budgeter == nil {
		d.Budgeter = NewBudgeter()
	}
	if d.Publisher == nil {
		d.Publisher = events.Noop{}
	}
	sqlTool := NewSQLTool(d.Oracle, d.Store, d.ReadOnlySQL)
	return &Router{
		budgeter:    d.Budgeter,
		classifier:  NewClassifier(d.Oracle),
		extractor:   NewExtractor(d.Oracle, d.Store),
		predictor:   NewPredictor(d.Oracle, d.Store, d.Model, d.Pool),
		recommender: NewRecommender(d.Oracle),
		sql:         sqlTool,
		filter:      NewFilterTool(sqlTool, d.Store, d.Model, d.Pool),
		store:       d.Store,
		publisher:   d.Publisher,
		now:         time.Now,
	}
}

// Route answers query given the chat history (oldest first). It always
// returns text; failures come back as localized messages.
func (r *Router) Route(ctx context.Context, query string, history []model.Turn) (answer string) {
	requestID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "churn.route")
	defer span.End()

	lang := DetectLanguage(query)
	log := zap.L().With(zap.String("request_id", requestID), zap.String("language", lang))
	span.SetAttributes(
		attribute.String("churn.request_id", requestID),
		attribute.String("churn.language", lang),
	)

	defer func() {
		if rec := recover(); rec != nil {
			err := eris.Errorf("churn: route: %v", rec)
			log.Error("churn: route panicked", zap.Error(err))
			span.SetStatus(codes.Error, err.Error())
			answer = errorText(lang, err)
		}
	}()

	budget := r.budgeter.Truncate(history, query)
	log.Info("churn: token budget",
		zap.Int("query_tokens", budget.QueryTokens),
		zap.Int("history_tokens", budget.HistoryTokens),
		zap.Int("total_tokens", budget.Total),
		zap.Int("kept_turns", len(budget.Kept)),
		zap.Int("history_turns", len(history)),
	)
	if budget.Oversized {
		span.SetAttributes(attribute.Bool("churn.oversized", true))
		return message(lang, msgTooLarge)
	}

	tool, err := r.classifier.Classify(ctx, budget.HistoryText(), query)
	if err != nil {
		return r.fail(span, log, lang, eris.Wrap(err, "churn: classify"))
	}
	span.SetAttributes(attribute.String("churn.tool", string(tool)))
	log = log.With(zap.String("tool", string(tool)))

	result, dispatched, err := r.dispatch(ctx, tool, query, budget.Kept, lang)
	if err != nil {
		return r.fail(span, log, lang, err)
	}
	if !dispatched {
		return result
	}

	if err := ctx.Err(); err != nil {
		return r.fail(span, log, lang, eris.Wrap(err, "churn: route cancelled"))
	}

	entry := model.Interaction{Query: query, Response: result, Timestamp: r.now().UTC()}
	if err := r.store.InsertInteraction(ctx, entry); err != nil {
		return r.fail(span, log, lang, eris.Wrap(err, "churn: log interaction"))
	}
	r.publish(ctx, log, events.Interaction{
		RequestID: requestID,
		Tool:      string(tool),
		Language:  lang,
		Query:     query,
		Response:  result,
		Timestamp: entry.Timestamp,
	})

	log.Info("churn: query answered", zap.Int("response_len", len(result)))
	return result
}

// dispatch runs the selected tool. The bool is false when no tool ran
// (invalid tool or no customer); the text is then the localized message and
// nothing is logged.
func (r *Router) dispatch(ctx context.Context, tool model.Tool, query string, kept []model.Turn, lang string) (string, bool, error) {
	switch tool {
	case model.ToolPrediction, model.ToolRecommendation:
		f, err := r.extractor.Extract(ctx, query, kept)
		if err != nil {
			return "", false, eris.Wrap(err, "churn: extract features")
		}
		if f == nil {
			return message(lang, msgNotFound), false, nil
		}
		if tool == model.ToolPrediction {
			return r.predictor.Run(ctx, *f, lang), true, nil
		}
		return r.recommender.Run(ctx, *f, lang), true, nil
	case model.ToolSQL:
		return r.sql.Run(ctx, query, lang), true, nil
	case model.ToolProbabilityFilter:
		return r.filter.Run(ctx, query, lang), true, nil
	default:
		return message(lang, msgInvalidTool), false, nil
	}
}

func (r *Router) fail(span trace.Span, log *zap.Logger, lang string, err error) string {
	log.Error("churn: route failed", zap.Error(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return errorText(lang, err)
}

func (r *Router) publish(ctx context.Context, log *zap.Logger, ev events.Interaction) {
	if err := r.publisher.Publish(ctx, ev.RequestID, ev); err != nil {
		log.Warn("churn: publish interaction", zap.Error(err))
	}
}
