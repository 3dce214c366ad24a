package http

import (
	"errors"
	"net/http"

	"subtrackr/internal/log"
	"subtrackr/internal/services"
)

// maxReceiptBytes caps uploaded receipt files at 10 MiB.
const maxReceiptBytes = 10 << 20

// receiptsEnabled guards the receipt routes. The service is nil when no
// extraction webhook is configured.
func (s *Server) receiptsEnabled(w http.ResponseWriter) bool {
	if s.receipts == nil {
		respondError(w, http.StatusServiceUnavailable, "receipt processing is not configured")
		return false
	}
	return true
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	if !s.receiptsEnabled(w) {
		return
	}
	receipts, err := s.receipts.List(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List receipts failed", log.FieldError, err)
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toReceiptList(receipts))
}

func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	if !s.receiptsEnabled(w) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes)
	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	receipt, err := s.receipts.Upload(r.Context(), header.Filename, contentType, file)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Receipt upload failed",
			log.FieldName, header.Filename, log.FieldError, err)
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, toReceiptJSON(receipt))
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	if !s.receiptsEnabled(w) {
		return
	}
	receipt, err := s.receipts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toReceiptJSON(receipt))
}

// handleConfirmReceipt turns a reviewed draft into a subscription. The body
// carries the user-edited fields in the same shape as a create request.
func (s *Server) handleConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	if !s.receiptsEnabled(w) {
		return
	}
	id := r.PathValue("id")

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

	created, err := s.receipts.Confirm(r.Context(), id, sub)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Receipt confirm failed",
			log.FieldReceipt, id, log.FieldError, err)
		respondReceiptStateError(w, err)
		return
	}

	s.invalidateStats()
	respondJSON(w, http.StatusCreated, toSubscriptionJSON(created))
}

func (s *Server) handleRejectReceipt(w http.ResponseWriter, r *http.Request) {
	if !s.receiptsEnabled(w) {
		return
	}
	id := r.PathValue("id")
	if err := s.receipts.Reject(r.Context(), id); err != nil {
		s.logger.WarnContext(r.Context(), "Receipt reject failed",
			log.FieldReceipt, id, log.FieldError, err)
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRetryReceipt(w http.ResponseWriter, r *http.Request) {
	if !s.receiptsEnabled(w) {
		return
	}
	id := r.PathValue("id")
	receipt, err := s.receipts.Retry(r.Context(), id)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Receipt retry failed",
			log.FieldReceipt, id, log.FieldError, err)
		respondReceiptStateError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, toReceiptJSON(receipt))
}

// respondReceiptStateError distinguishes wrong-state transitions (409) from
// the usual error mapping.
func respondReceiptStateError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrReceiptState) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondServiceError(w, err)
}
