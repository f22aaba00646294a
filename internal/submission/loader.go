package submission

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kennygrant/sanitize"
	"go.uber.org/zap"

	"github.com/JakeFAU/memote-webservice/internal/metabolic"
	"github.com/JakeFAU/memote-webservice/internal/metrics"
	"github.com/JakeFAU/memote-webservice/internal/snapshot"
)

// Loader turns buffered uploads into parsed models. Rejected and crashing
// uploads are dumped to a blob store for offline debugging.
type Loader struct {
	dumps  snapshot.BlobStore
	ids    snapshot.IDGenerator
	logger *zap.Logger

	parseJSON    func(io.Reader) (*metabolic.Model, error)
	validateSBML func(io.Reader) (*metabolic.Model, string, metabolic.Notifications)
}

// NewLoader constructs a Loader that writes dumps through dumps.
func NewLoader(dumps snapshot.BlobStore, ids snapshot.IDGenerator, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		dumps:        dumps,
		ids:          ids,
		logger:       logger,
		parseJSON:    metabolic.ParseJSON,
		validateSBML: metabolic.ValidateSBML,
	}
}

// Load parses content in the given format. Content is closed before Load
// returns or panics.
//
// A parser rejection yields *ParseError and a rejected SBML document yields
// *SBMLValidationError. Any other failure is returned as is, and a panic is
// re-raised after the content has been dumped.
func (l *Loader) Load(ctx context.Context, format Format, filename string, content *Content) (model *metabolic.Model, err error) {
	defer func() { _ = content.Close() }()
	defer func() {
		if rec := recover(); rec != nil {
			l.dump(ctx, filename, content)
			panic(rec)
		}
	}()

	switch format {
	case FormatJSON:
		l.logger.Debug("loading model from JSON", zap.String("filename", filename))
		model, err = l.parseJSON(content.Reader())
		if err != nil {
			var perr *metabolic.ParseError
			if errors.As(err, &perr) {
				l.logger.Error("failed to parse model", zap.String("filename", filename), zap.Error(err))
				l.dump(ctx, filename, content)
				return nil, &ParseError{Err: err}
			}
			l.dump(ctx, filename, content)
			return nil, fmt.Errorf("load JSON model: %w", err)
		}
		return model, nil
	case FormatSBML:
		l.logger.Debug("loading model from SBML", zap.String("filename", filename))
		parsed, version, notes := l.validateSBML(content.Reader())
		for _, warning := range notes.Warnings {
			l.logger.Debug(warning, zap.String("filename", filename))
		}
		if parsed == nil {
			l.logger.Info("SBML document rejected",
				zap.String("filename", filename),
				zap.String("sbml_version", version),
				zap.Int("errors", len(notes.Errors)),
				zap.Int("warnings", len(notes.Warnings)))
			return nil, &SBMLValidationError{Version: version, Warnings: notes.Warnings, Errors: notes.Errors}
		}
		return parsed, nil
	default:
		l.dump(ctx, filename, content)
		return nil, fmt.Errorf("load model: no parser for format %s", format)
	}
}

// dump stores the raw upload under a fresh id and the sanitised filename.
// Failures are logged; they never mask the error being reported.
func (l *Loader) dump(ctx context.Context, filename string, content *Content) {
	ctx = context.WithoutCancel(ctx)
	id, err := l.ids.NewID()
	if err != nil {
		l.logger.Error("dump id generation failed", zap.Error(err))
		metrics.ObserveDump(err)
		return
	}
	name := fmt.Sprintf("%s_%s", id, sanitize.Name(filename))
	l.logger.Warn("dumping uploaded model", zap.String("dump", name))
	uri, err := l.dumps.PutObject(ctx, name, "application/octet-stream", content.Reader())
	metrics.ObserveDump(err)
	if err != nil {
		l.logger.Error("dump uploaded model failed", zap.String("dump", name), zap.Error(err))
		return
	}
	l.logger.Debug("uploaded model dumped", zap.String("uri", uri))
}
