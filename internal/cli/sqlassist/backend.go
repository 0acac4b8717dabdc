package sqlassist

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sqlassist/sqlassist/internal/apperr"
	"github.com/sqlassist/sqlassist/internal/assist"
	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/schema"
)

// Backend answers questions either in process or through the HTTP API.
type Backend interface {
	Ask(ctx context.Context, question string) (assist.Envelope, error)
	Schema(ctx context.Context) (schema.Descriptor, error)
}

type localBackend struct {
	pipeline *assist.Pipeline
	warning  string
}

func (l *localBackend) Ask(ctx context.Context, question string) (assist.Envelope, error) {
	return l.pipeline.Ask(ctx, question)
}

func (l *localBackend) Schema(context.Context) (schema.Descriptor, error) {
	return l.pipeline.Schema(), nil
}

func (l *localBackend) Warning() string {
	return l.warning
}

// DefaultConnect uses the API at flags.APIURL when set and otherwise builds
// the pipeline from SQLASSIST_* configuration.
func DefaultConnect(_ context.Context, flags Flags, logOut io.Writer) (Backend, error) {
	if flags.APIURL != "" {
		return NewClient(flags.APIURL, flags.APIKey, flags.Timeout, nil), nil
	}

	cfg, err := config.LoadFromEnv("sqlassist")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if !flags.Verbose && cfg.Observability.LogLevel < slog.LevelWarn {
		cfg.Observability.LogLevel = slog.LevelWarn
	}
	cfg.Observability.LogJSON = false
	logger := observability.NewLogger(cfg, logOut)

	assembly, err := assist.Assemble(cfg, logger)
	if err != nil {
		return nil, err
	}
	backend := &localBackend{pipeline: assembly.Pipeline}
	if assembly.CompleterErr != nil {
		backend.warning = fmt.Sprintf("warning: %s; questions will fail until it is fixed", apperr.MessageOf(assembly.CompleterErr))
	}
	return backend, nil
}
