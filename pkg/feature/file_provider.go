package feature

import (
	"context"
	"errors"
	"log/slog"

	"github.com/togetheros/rollout/pkg/logger"
	"github.com/togetheros/rollout/pkg/statefile"
)

// DefaultFlagsFile is the document file name used when none is configured.
const DefaultFlagsFile = "feature-flags.json"

// FileProvider stores the flag document as JSON on local disk. Writes are
// atomic, so a crash never leaves a half-written file behind.
type FileProvider struct {
	path   string
	logger *slog.Logger
}

// NewFileProvider returns a provider backed by path.
func NewFileProvider(path string, log *slog.Logger) *FileProvider {
	if path == "" {
		path = DefaultFlagsFile
	}
	if log == nil {
		log = slog.Default()
	}
	return &FileProvider{path: path, logger: log}
}

// Load reads the document. A missing or corrupt file yields an empty
// document; corruption is logged, since flags failing closed is preferable
// to the control plane refusing to start.
func (p *FileProvider) Load(ctx context.Context) (Document, error) {
	doc := NewDocument()
	found, err := statefile.Read(p.path, &doc)
	switch {
	case errors.Is(err, statefile.ErrCorrupt):
		p.logger.WarnContext(ctx, "feature flag file is corrupt, starting empty",
			logger.Path(p.path), logger.Error(err))
		return NewDocument(), nil
	case err != nil:
		return Document{}, errors.Join(ErrLoadFailed, err)
	case !found:
		return NewDocument(), nil
	}
	if doc.Flags == nil {
		doc.Flags = make(map[string]*Flag)
	}
	return doc, nil
}

// Save writes doc atomically.
func (p *FileProvider) Save(_ context.Context, doc Document) error {
	if err := statefile.Write(p.path, doc); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	return nil
}

// Close is a no-op.
func (p *FileProvider) Close() error {
	return nil
}
