package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/monitoring"
)

const defaultStatsHours = 24

// StatsCollector produces the activity snapshot behind GET /api/stats.
type StatsCollector interface {
	Collect(ctx context.Context, lookbackHours int) (*monitoring.MetricsSnapshot, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type sendRequest struct {
	Message string `json:"message"`
	ChatID  int64  `json:"chat_id"`
}

type sendResponse struct {
	Response string `json:"response"`
	ChatID   int64  `json:"chat_id"`
}

type handler struct {
	svc    *Service
	stats  StatsCollector
	health Pinger
}

// NewHandler builds the chat API. An empty allowedOrigins list allows every
// origin. stats and health may be nil.
func NewHandler(svc *Service, stats StatsCollector, health Pinger, allowedOrigins []string) http.Handler {
	h := &handler{svc: svc, stats: stats, health: health}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.handleSend)
		r.Get("/chats", h.handleList)
		r.Delete("/chats", h.handleDeleteAll)
		r.Get("/chats/{id}", h.handleGet)
		r.Delete("/chats/{id}", h.handleDelete)
		r.Get("/stats", h.handleStats)
	})

	return otelhttp.NewHandler(r, "churn-chat")
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			zap.L().Warn("chat: health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	zap.L().Info("chat: received message",
		zap.Int64("chat_id", req.ChatID),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)
	response, chatID, err := h.svc.Send(r.Context(), req.ChatID, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{Response: response, ChatID: chatID})
}

func (h *handler) handleList(w http.ResponseWriter, r *http.Request) {
	chats, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted successfully"})
}

func (h *handler) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAll(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "All chats deleted successfully"})
}

func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusNotFound, "stats are not enabled")
		return
	}
	hours := defaultStatsHours
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = n
	}
	snap, err := h.stats.Collect(r.Context(), hours)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if eris.Is(err, ErrChatNotFound) {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	zap.L().Error("chat: request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func chatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "chat id must be an integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError responds with {"detail": "..."}, the shape the web client reads.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
