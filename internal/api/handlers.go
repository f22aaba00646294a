package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/memote-webservice/internal/metrics"
	"github.com/JakeFAU/memote-webservice/internal/retrieval"
	"github.com/JakeFAU/memote-webservice/internal/submission"
)

const modelField = "model"

// Submission outcomes recorded in memote_submissions_total.
const (
	outcomeAccepted     = "accepted"
	outcomeTooLarge     = "too_large"
	outcomeBadRequest   = "bad_request"
	outcomeUnsupported  = "unsupported"
	outcomeInvalidModel = "invalid_model"
	outcomeError        = "error"
	outcomeRateLimited  = "rate_limited"
)

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Server.MaxContentLength
	if limit > 0 {
		if r.ContentLength > limit {
			s.rejectTooLarge(w, limit)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	file, header, err := r.FormFile(modelField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.rejectTooLarge(w, limit)
			return
		}
		metrics.ObserveSubmission(outcomeBadRequest)
		writeError(w, http.StatusBadRequest, "a model file must be uploaded in the 'model' field")
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	jobID, err := s.submitter.Submit(r.Context(), submission.Upload{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Body:     file,
	})
	if err != nil {
		s.writeSubmitError(w, r, err)
		return
	}
	metrics.ObserveSubmission(outcomeAccepted)
	s.logger.Debug("submitted job", zap.String("job_id", jobID), zap.String("filename", header.Filename))
	writeJSON(w, http.StatusAccepted, map[string]string{"uuid": jobID})
}

func (s *Server) rejectTooLarge(w http.ResponseWriter, limit int64) {
	metrics.ObserveSubmission(outcomeTooLarge)
	writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
		"error":     "the uploaded model exceeds the size limit",
		"max_bytes": limit,
	})
}

func (s *Server) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		decompressErr  *submission.DecompressionError
		unsupportedErr *submission.UnsupportedFormatError
		parseErr       *submission.ParseError
		sbmlErr        *submission.SBMLValidationError
	)
	switch {
	case errors.As(err, &decompressErr):
		metrics.ObserveSubmission(outcomeBadRequest)
		writeError(w, http.StatusBadRequest, "Failed to decompress file: "+decompressErr.Err.Error())
	case errors.As(err, &unsupportedErr):
		metrics.ObserveSubmission(outcomeUnsupported)
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]any{
			"error":      unsupportedErr.Error(),
			"mime_types": unsupportedErr.Accepted,
		})
	case errors.As(err, &parseErr):
		metrics.ObserveSubmission(outcomeInvalidModel)
		writeError(w, http.StatusBadRequest, "Failed to parse model: "+parseErr.Err.Error())
	case errors.As(err, &sbmlErr):
		metrics.ObserveSubmission(outcomeInvalidModel)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "The SBML document failed validation.",
			"version":  sbmlErr.Version,
			"warnings": nonNil(sbmlErr.Warnings),
			"errors":   nonNil(sbmlErr.Errors),
		})
	default:
		metrics.ObserveSubmission(outcomeError)
		s.internalError(w, r, "submission failed", err)
	}
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "uuid")
	res, err := s.resolver.Resolve(r.Context(), jobID)
	if err != nil {
		metrics.ObserveReport("error")
		s.internalError(w, r, "resolve job", err)
		return
	}
	metrics.ObserveReport(res.State.String())

	accept := r.Header.Get("Accept")
	switch res.State {
	case retrieval.StateFailed:
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "FAILURE",
			"exception": res.Exception.Type,
			"message":   res.Exception.Message,
		})
	case retrieval.StateSucceeded:
		contentType, body, err := retrieval.Render(accept, res.Report)
		if err != nil {
			s.internalError(w, r, "render report", err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			s.logger.Warn("write report failed", zap.String("job_id", jobID), zap.Error(err))
		}
	default:
		s.notFound(w, accept, jobID)
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
