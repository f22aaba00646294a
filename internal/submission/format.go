package submission

import (
	"mime"
	"slices"
	"strings"
)

// Format identifies which parser handles an upload.
type Format int

// Recognised model formats.
const (
	FormatUnknown Format = iota
	FormatJSON
	FormatSBML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatSBML:
		return "sbml"
	default:
		return "unknown"
	}
}

var (
	jsonMimeTypes = []string{"application/json", "text/json"}
	xmlMimeTypes  = []string{"application/xml", "text/xml"}
)

// RecognizedMimeTypes lists the accepted MIME types, JSON types first.
func RecognizedMimeTypes() []string {
	return slices.Concat(jsonMimeTypes, xmlMimeTypes)
}

// Classify picks the model format from the declared MIME type or the
// filename suffix; either signal is enough. JSON is checked before SBML and
// the first match wins.
func Classify(filename, mimeType string) (Format, error) {
	mt := normalizeMimeType(mimeType)
	name := strings.ToLower(filename)
	switch {
	case slices.Contains(jsonMimeTypes, mt) || strings.HasSuffix(name, "json"):
		return FormatJSON, nil
	case slices.Contains(xmlMimeTypes, mt) || strings.HasSuffix(name, "xml") || strings.HasSuffix(name, "sbml"):
		return FormatSBML, nil
	}
	return FormatUnknown, &UnsupportedFormatError{MimeType: mt, Accepted: RecognizedMimeTypes()}
}

// normalizeMimeType drops parameters such as charset and lower-cases the type.
func normalizeMimeType(s string) string {
	mt, _, err := mime.ParseMediaType(s)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return mt
}
