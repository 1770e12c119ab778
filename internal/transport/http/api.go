package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 100
)

// APIHandler serves the read-only JSON endpoints around the quiz.
type APIHandler struct {
	engine *app.Engine
	logger *zap.Logger
}

func NewAPIHandler(engine *app.Engine, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{engine: engine, logger: logger}
}

type categoryView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type categoriesResponse struct {
	Categories   []categoryView `json:"categories"`
	Difficulties []string       `json:"difficulties"`
	Amount       amountRange    `json:"amount"`
}

type amountRange struct {
	Default int `json:"default"`
	Min     int `json:"min"`
	Max     int `json:"max"`
}

func (h *APIHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	resp := categoriesResponse{
		Difficulties: domain.Difficulties(),
		Amount:       amountRange{Default: domain.DefaultAmount, Min: domain.MinAmount, Max: domain.MaxAmount},
	}
	for _, c := range domain.Categories() {
		resp.Categories = append(resp.Categories, categoryView{ID: c, Title: domain.CategoryTitle(c)})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	limit := defaultResultsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > maxResultsLimit {
		limit = maxResultsLimit
	}

	records, err := h.engine.RecentScores(r.Context(), limit)
	if err != nil {
		h.logger.Error("list results failed", zap.Error(err))
		http.Error(w, "results unavailable", http.StatusServiceUnavailable)
		return
	}
	if records == nil {
		records = []domain.ScoreRecord{}
	}
	h.writeJSON(w, http.StatusOK, records)
}

// GetSession returns the current snapshot of an active session. Finished
// sessions stay visible until their player disconnects.
func (h *APIHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.engine.Session(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, session.Snapshot())
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("write response failed", zap.Error(err))
	}
}
