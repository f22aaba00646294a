package retrieval

import (
	"strings"

	"github.com/munnerz/goautoneg"

	"github.com/JakeFAU/memote-webservice/internal/snapshot"
)

// Representations a report can be rendered as.
const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html"
)

// JSON is offered first so wildcards resolve to it.
var offers = []string{ContentTypeJSON, ContentTypeHTML}

// Negotiate returns ContentTypeHTML when the Accept header prefers HTML and
// ContentTypeJSON otherwise. Each offer takes the quality of the most
// specific clause matching it, so "text/html;q=0" refuses HTML even next to
// "*/*". Ties go to JSON.
func Negotiate(accept string) string {
	if strings.TrimSpace(accept) == "" {
		return ContentTypeJSON
	}
	clauses := goautoneg.ParseAccept(accept)
	best, bestQ := ContentTypeJSON, 0.0
	for _, offer := range offers {
		if q := quality(clauses, offer); q > bestQ {
			best, bestQ = offer, q
		}
	}
	return best
}

func quality(clauses []goautoneg.Accept, offer string) float64 {
	typ, sub, _ := strings.Cut(offer, "/")
	q, specificity := 0.0, -1
	for _, c := range clauses {
		s := -1
		switch {
		case c.Type == typ && c.SubType == sub:
			s = 2
		case c.Type == typ && c.SubType == "*":
			s = 1
		case c.Type == "*" && c.SubType == "*":
			s = 0
		}
		if s > specificity {
			q, specificity = c.Q, s
		}
	}
	return q
}

// Render serialises the report for the Accept header and returns the
// response Content-Type with the body.
func Render(accept string, report *snapshot.Report) (string, []byte, error) {
	if Negotiate(accept) == ContentTypeHTML {
		body, err := report.RenderHTML()
		return ContentTypeHTML + "; charset=utf-8", body, err
	}
	body, err := report.RenderJSON()
	return ContentTypeJSON, body, err
}
