// Package handler contains the HTTP layer: request parsing, response
// shaping, and nothing else. Business rules live in the service.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rahin/codelab/internal/sandbox"
	"github.com/rahin/codelab/internal/service"
)

// ExecuteHandler handles code execution requests and execution history.
type ExecuteHandler struct {
	service *service.ExecutionService
	logger  *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(svc *service.ExecutionService, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		service: svc,
		logger:  logger,
	}
}

// HandleExecute processes an incoming code execution request.
//
// HTTP: POST /api/execute
//
// The response is always a sandbox result document — success or typed
// failure — with HTTP 200. Only malformed requests (bad JSON, validation
// failures) get non-200 statuses: a submission that times out or trips the
// validator is a perfectly well-handled request.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req sandbox.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "request body is not valid JSON",
		})
		return
	}

	h.logger.Info("executing submission",
		slog.Int("codeBytes", len(req.Code)),
		slog.Int("testCases", len(req.TestCases)),
	)

	result, err := h.service.Run(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleListExecutions returns recent execution records.
//
// HTTP: GET /api/executions?limit=N&offset=M
func (h *ExecuteHandler) HandleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	executions, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list executions", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, executions)
}

// HandleGetExecution returns a single execution record by ID.
//
// HTTP: GET /api/executions/{id}
func (h *ExecuteHandler) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	execution, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, execution)
}
