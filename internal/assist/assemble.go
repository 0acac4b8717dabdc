package assist

import (
	"fmt"
	"log/slog"

	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/nl2sql"
	"github.com/sqlassist/sqlassist/internal/schema"
	"github.com/sqlassist/sqlassist/internal/sqlguard"
	"github.com/sqlassist/sqlassist/internal/sqlstore"
)

type Assembly struct {
	Pipeline *Pipeline
	Executor *sqlstore.Executor
	// CompleterErr is set when the completion client could not be built.
	// Pipeline is still usable and fails every Ask with this error.
	CompleterErr error
}

// Assemble builds the executor, completion client and pipeline described by
// cfg. Only store misconfiguration is fatal.
func Assemble(cfg config.Config, logger *slog.Logger) (Assembly, error) {
	executor, err := sqlstore.NewExecutor(sqlstore.Config{
		Driver:   cfg.Store.Driver,
		Path:     cfg.Store.Path,
		RowLimit: cfg.Store.RowLimit,
	})
	if err != nil {
		return Assembly{}, fmt.Errorf("build executor: %w", err)
	}

	var assembly Assembly
	assembly.Executor = executor
	completer, err := nl2sql.New(nl2sql.Config{
		Provider:    cfg.AI.Provider,
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		assembly.CompleterErr = err
		completer = nl2sql.Unconfigured(err)
	}

	assembly.Pipeline, err = NewPipeline(Options{
		Schema:      schema.Default,
		Completer:   completer,
		Executor:    executor,
		Logger:      logger,
		RetryOnce:   cfg.AI.RetryOnce,
		ExplainMode: ExplainMode(cfg.AI.ExplainMode),
		Dialect:     sqlguard.Dialect(executor.Driver()),
	})
	if err != nil {
		return Assembly{}, fmt.Errorf("build pipeline: %w", err)
	}
	return assembly, nil
}
