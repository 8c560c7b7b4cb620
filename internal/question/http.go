package question

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/dsa-logbook/internal/logging"
	httperrors "github.com/gokatarajesh/dsa-logbook/pkg/http/errors"
)

const maxBodyBytes = 1 << 20

// HTTPHandler exposes the question endpoints.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs a question HTTP handler.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "question_http").Logger(),
	}
}

// HandleQuestions dispatches GET/POST/PUT /questions.
func (h *HTTPHandler) HandleQuestions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.List(w, r)
	case http.MethodPost:
		h.Add(w, r)
	case http.MethodPut:
		h.UpdateStatus(w, r)
	default:
		httperrors.RespondMethodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodPut)
	}
}

// List handles GET /questions?status=&search=&page=&limit=
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := ListParams{
		Page:     atoiOrZero(q.Get("page")),
		PageSize: atoiOrZero(q.Get("limit")),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" && raw != "all" {
		status, err := ParseStatus(raw)
		if err != nil {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "Unknown status", "status")
			return
		}
		params.Status = &status
	}
	if q.Has("search") {
		search := q.Get("search")
		params.Search = &search
	}

	result, err := h.svc.List(r.Context(), params)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch questions")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type addRequest struct {
	QuestionNumber flexInt `json:"questionNumber"`
	Title          string  `json:"title"`
	Status         *string `json:"status"`
}

// Add handles POST /questions
func (h *HTTPHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeBody(w, r, &req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if !req.QuestionNumber.set {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "Question number is required", "questionNumber")
		return
	}

	params := AddParams{
		QuestionNumber: req.QuestionNumber.value,
		Title:          req.Title,
	}
	if req.Status != nil && strings.TrimSpace(*req.Status) != "" {
		status, err := ParseStatus(*req.Status)
		if err != nil {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "Unknown status", "status")
			return
		}
		params.Status = &status
	}

	created, err := h.svc.Add(r.Context(), params)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			httperrors.RespondErrorWithDetails(w, http.StatusConflict, httperrors.ErrCodeAlreadyExists, "Question already exists", map[string]interface{}{
				"questionNumber": params.QuestionNumber,
			})
			return
		}
		h.respondServiceError(w, r, err, "Failed to add question")
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

type updateRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// UpdateStatus handles PUT /questions
func (h *HTTPHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeBody(w, r, &req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "Question id is required", "id")
		return
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "Unknown status", "status")
		return
	}

	updated, err := h.svc.UpdateStatus(r.Context(), req.ID, status)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to update question")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"question": updated,
	})
}

type fetchTitleRequest struct {
	QuestionNumber flexInt `json:"questionNumber"`
}

// FetchTitle handles POST /fetch-title
func (h *HTTPHandler) FetchTitle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req fetchTitleRequest
	if err := decodeBody(w, r, &req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if !req.QuestionNumber.set || req.QuestionNumber.value == 0 {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "Question number is required", "questionNumber")
		return
	}

	title, err := h.svc.LookupTitle(r.Context(), req.QuestionNumber.value)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch problem title")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"title": title})
}

// respondServiceError maps service sentinels to status codes. Internal details are only logged.
func (h *HTTPHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	logger := logging.FromContextOr(r.Context(), h.logger)
	switch {
	case errors.Is(err, ErrInvalidInput):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "))
	case errors.Is(err, ErrNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Question not found")
	case errors.Is(err, ErrConflict):
		httperrors.RespondConflict(w, httperrors.ErrCodeAlreadyExists, "Question already exists")
	case errors.Is(err, ErrLookupFailed):
		logger.Warn().Err(err).Msg("title lookup failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeUpstreamError, fallback)
	default:
		logger.Error().Err(err).Msg(fallback)
		httperrors.RespondInternalError(w, fallback)
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func atoiOrZero(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

// flexInt accepts a JSON number or a numeric string, as browser forms send either.
type flexInt struct {
	value int
	set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: questionNumber %q is not an integer", ErrInvalidInput, s)
		}
		return f.setValue(n)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	i, err := n.Int64()
	if err != nil {
		return fmt.Errorf("%w: questionNumber %s is not an integer", ErrInvalidInput, n)
	}
	return f.setValue(i)
}

func (f *flexInt) setValue(n int64) error {
	if n > MaxQuestionNumber || n < -MaxQuestionNumber {
		return fmt.Errorf("%w: questionNumber %d is out of range", ErrInvalidInput, n)
	}
	f.value, f.set = int(n), true
	return nil
}
