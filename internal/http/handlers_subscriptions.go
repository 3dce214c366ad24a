package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"subtrackr/internal/core"
	"subtrackr/internal/export"
	"subtrackr/internal/log"
)

// viewOptionsFromQuery maps the list query parameters onto the engine's
// filter options. Unknown values pass through; the engine treats them as
// non-matching filters.
func viewOptionsFromQuery(r *http.Request) core.ViewOptions {
	q := r.URL.Query()
	return core.ViewOptions{
		Search:        q.Get("q"),
		Category:      q.Get("category"),
		Type:          q.Get("type"),
		Status:        q.Get("status"),
		PaymentMethod: q.Get("payment"),
		Sort:          q.Get("sort"),
	}
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subscriptions.List(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List subscriptions failed", log.FieldError, err)
		respondServiceError(w, err)
		return
	}
	subs = core.View(subs, viewOptionsFromQuery(r))
	respondJSON(w, http.StatusOK, toSubscriptionList(subs))
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeSubscriptionPayload(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := payload.toSubscription()
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.subscriptions.Create(r.Context(), sub)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Create subscription rejected",
			log.FieldName, sub.Name, log.FieldError, err)
		respondServiceError(w, err)
		return
	}

	s.invalidateStats()
	respondJSON(w, http.StatusCreated, toSubscriptionJSON(created))
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subscriptions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSubscriptionJSON(sub))
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeSubscriptionPayload(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := payload.toSubscription()
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	sub.ID = r.PathValue("id")

	updated, err := s.subscriptions.Update(r.Context(), sub)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Update subscription failed",
			log.FieldSubscription, sub.ID, log.FieldError, err)
		respondServiceError(w, err)
		return
	}

	s.invalidateStats()
	respondJSON(w, http.StatusOK, toSubscriptionJSON(updated))
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.subscriptions.Delete(r.Context(), id); err != nil {
		s.logger.WarnContext(r.Context(), "Delete subscription failed",
			log.FieldSubscription, id, log.FieldError, err)
		respondServiceError(w, err)
		return
	}
	s.invalidateStats()
	w.WriteHeader(http.StatusNoContent)
}

// handleExport streams the full record set as CSV or XLSX. The view filters
// apply here too, so a filtered list can be exported as displayed.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	subs, err := s.subscriptions.List(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Export list failed", log.FieldError, err)
		respondServiceError(w, err)
		return
	}
	subs = core.View(subs, viewOptionsFromQuery(r))

	var buf bytes.Buffer
	stamp := time.Now().Format("2006-01-02")

	switch format {
	case "csv":
		if err := export.WriteCSV(&buf, subs); err != nil {
			s.exportError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="subscriptions-%s.csv"`, stamp))
	case "xlsx":
		if err := export.WriteXLSX(&buf, subs); err != nil {
			s.exportError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="subscriptions-%s.xlsx"`, stamp))
	default:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported export format %q", format))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) exportError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, export.ErrNoRecords) {
		respondError(w, http.StatusNotFound, "no records to export")
		return
	}
	s.logger.ErrorContext(r.Context(), "Export failed", log.FieldError, err)
	respondError(w, http.StatusInternalServerError, "export failed")
}
