package audithttp

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/audit"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

const maxDateRange = 90 * 24 * time.Hour

// TimelineService defines the read side of the audit trail.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.Filters) (audit.Result, error)
	Export(ctx context.Context, filters audit.Filters) ([]audit.Entry, error)
}

// Handler serves the audit trail to administrators.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	now     func() time.Time
}

// NewHandler builds an audit Handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not load audit trail")
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit export", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not export audit trail")
		return
	}
	filename := fmt.Sprintf("authz-audit-%s.csv", h.now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := WriteCSV(w, rows); err != nil {
		h.logger.WarnContext(r.Context(), "audit export write", slog.Any("error", err))
	}
}

var csvHeader = []string{"at", "request_id", "principal_id", "role", "entity", "operation", "record_id", "effect", "reason"}

// WriteCSV renders entries as CSV with a header row.
func WriteCSV(w io.Writer, rows []audit.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range rows {
		record := []string{
			e.At.UTC().Format(time.RFC3339),
			e.RequestID, e.PrincipalID, e.Role, e.Entity, e.Operation, e.RecordID, e.Effect, e.Reason,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (h *Handler) parseFilters(r *http.Request) (audit.Filters, error) {
	q := r.URL.Query()
	f := audit.Filters{
		PrincipalID: strings.TrimSpace(q.Get("principal")),
		Entity:      strings.TrimSpace(q.Get("entity")),
		Effect:      strings.TrimSpace(q.Get("effect")),
		Reason:      strings.TrimSpace(q.Get("reason")),
	}
	if f.Effect != "" && f.Effect != "allow" && f.Effect != "deny" {
		return f, fmt.Errorf("effect must be allow or deny")
	}
	var err error
	if f.From, err = parseDate(q.Get("from")); err != nil {
		return f, fmt.Errorf("invalid from date")
	}
	if f.To, err = parseDate(q.Get("to")); err != nil {
		return f, fmt.Errorf("invalid to date")
	}
	if !f.To.IsZero() {
		// inclusive end date
		f.To = f.To.Add(24 * time.Hour)
	}
	if !f.From.IsZero() && !f.To.IsZero() {
		if !f.From.Before(f.To) {
			return f, fmt.Errorf("from must be before to")
		}
		if f.To.Sub(f.From) > maxDateRange {
			return f, fmt.Errorf("date range exceeds 90 days")
		}
	}
	if f.Page, err = parseInt(q.Get("page")); err != nil {
		return f, fmt.Errorf("invalid page")
	}
	if f.PageSize, err = parseInt(q.Get("page_size")); err != nil {
		return f, fmt.Errorf("invalid page_size")
	}
	return f, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}

func parseInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return n, nil
}
