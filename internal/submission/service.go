// Package submission turns uploaded model files into queued snapshot jobs:
// decompression, format detection, parsing and enqueueing.
package submission

import (
	"context"
	"io"

	"go.uber.org/zap"
)

// Upload is a model file received from a client. Body is read once and
// closed by Service.Submit.
type Upload struct {
	Filename string
	MimeType string
	Body     io.ReadCloser
}

// Service runs the submission pipeline.
type Service struct {
	loader          *Loader
	submitter       *Submitter
	maxDecompressed int64
	logger          *zap.Logger
}

// NewService constructs a Service. maxDecompressed caps the decoded size of
// compressed uploads; zero leaves it unbounded.
func NewService(loader *Loader, submitter *Submitter, maxDecompressed int64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{loader: loader, submitter: submitter, maxDecompressed: maxDecompressed, logger: logger}
}

// Submit decompresses, classifies and loads the upload, then enqueues it.
// It returns the job id, or one of the typed errors of this package.
func (s *Service) Submit(ctx context.Context, up Upload) (string, error) {
	defer func() { _ = up.Body.Close() }()

	filename, content, err := Decompress(up.Filename, up.Body, s.maxDecompressed)
	if err != nil {
		s.logger.Error("failed to decompress file", zap.String("filename", up.Filename), zap.Error(err))
		return "", err
	}
	format, err := Classify(filename, up.MimeType)
	if err != nil {
		_ = content.Close()
		s.logger.Warn(err.Error())
		return "", err
	}
	model, err := s.loader.Load(ctx, format, filename, content)
	if err != nil {
		return "", err
	}
	return s.submitter.Submit(ctx, model, filename)
}
