package api

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/JakeFAU/memote-webservice/internal/retrieval"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// internalError logs err, reports it to Sentry when a hub is bound to the
// request and answers 500.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(msg, zap.String("request_id", RequestID(r.Context())), zap.Error(err))
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	}
	writeError(w, http.StatusInternalServerError, "internal server error")
}

var notFoundPage = template.Must(template.New("404").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Report not found</title>
</head>
<body>
<h1>Report not found</h1>
<p>The report <code>{{.}}</code> is not available. It may still be running,
or it has expired. Please try again later or submit the model again.</p>
</body>
</html>
`))

// notFound answers a pending or unknown report in the representation the
// client prefers.
func (s *Server) notFound(w http.ResponseWriter, accept, jobID string) {
	s.logger.Debug("report not available", zap.String("job_id", jobID))
	if retrieval.Negotiate(accept) != retrieval.ContentTypeHTML {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "report not found",
			"uuid":  jobID,
		})
		return
	}
	var buf bytes.Buffer
	if err := notFoundPage.Execute(&buf, jobID); err != nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write(buf.Bytes())
}
