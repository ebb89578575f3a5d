package audithttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pocketledger/pocketledger/internal/audit"
	"github.com/pocketledger/pocketledger/internal/platform/httpx"
	"github.com/pocketledger/pocketledger/internal/shared"
)

const (
	defaultDateRange = 30 * 24 * time.Hour
	maxDateRange     = 366 * 24 * time.Hour
	dateLayout       = "2006-01-02"
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves the caller's activity timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	now     func() time.Time
}

// NewHandler creates an activity handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "load activity timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "export activity timeline", err)
		return
	}
	csvBytes, err := audit.WriteCSV(rows)
	if err != nil {
		h.handleServerError(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"activity.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilters reads from/to as inclusive calendar days. The window
// defaults to the last 30 days and may span at most a year.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	userID, ok := shared.UserFromContext(r.Context())
	if !ok || userID == "" {
		return audit.TimelineFilters{}, errUnauthenticated
	}
	query := r.URL.Query()
	today := h.now().UTC().Truncate(24 * time.Hour)

	toDay := today
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return audit.TimelineFilters{}, validationError{field: "to"}
		}
		toDay = parsed
	}
	fromDay := toDay.Add(-defaultDateRange)
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return audit.TimelineFilters{}, validationError{field: "from"}
		}
		fromDay = parsed
	}
	if fromDay.After(toDay) || toDay.Sub(fromDay) > maxDateRange {
		return audit.TimelineFilters{}, validationError{field: "range"}
	}

	page, err := positiveInt(query.Get("page"), 1, "page")
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	pageSize, err := positiveInt(query.Get("page_size"), 0, "page_size")
	if err != nil {
		return audit.TimelineFilters{}, err
	}

	return audit.TimelineFilters{
		From:     fromDay,
		To:       toDay.Add(24 * time.Hour),
		ActorID:  userID,
		Entity:   strings.TrimSpace(query.Get("entity")),
		Action:   strings.TrimSpace(query.Get("action")),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func positiveInt(raw string, fallback int, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, validationError{field: field}
	}
	return parsed, nil
}

func (h *Handler) handleFilterError(w http.ResponseWriter, err error) {
	var v validationError
	switch {
	case errors.As(err, &v):
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Errors: map[string]string{v.field: "invalid"},
		})
	case errors.Is(err, errUnauthenticated):
		httpx.RespondError(w, fmt.Errorf("%w: missing user", httpx.ErrUnauthorized))
	default:
		h.handleServerError(w, "validate filters", err)
	}
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
}

var errUnauthenticated = errors.New("audit: unauthenticated")

type validationError struct {
	field string
}

func (e validationError) Error() string {
	return "invalid " + e.field
}
