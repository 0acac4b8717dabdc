// Package assist answers natural-language questions about the customer
// store: it prompts the completion service for SQL, guards the statement,
// runs it read-only and shapes the rows into an Envelope.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sqlassist/sqlassist/internal/apperr"
	"github.com/sqlassist/sqlassist/internal/nl2sql"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/schema"
	"github.com/sqlassist/sqlassist/internal/sqlguard"
	"github.com/sqlassist/sqlassist/internal/sqlstore"
)

type ExplainMode string

const (
	ExplainModel     ExplainMode = "model"
	ExplainHeuristic ExplainMode = "heuristic"
	ExplainOff       ExplainMode = "off"
)

var ErrEmptyQuestion = errors.New("question is required")

type Executor interface {
	Execute(ctx context.Context, sqlText string) (sqlstore.ResultSet, error)
}

type Options struct {
	Schema    schema.Descriptor
	Completer nl2sql.Completer
	Executor  Executor
	Logger    *slog.Logger
	// RetryOnce repeats the SQL completion call once after a ServiceUnavailable
	// failure. The explanation call is never repeated.
	RetryOnce   bool
	ExplainMode ExplainMode
	// Dialect selects the guard's quoting rules. Empty uses the executor's
	// driver when it reports one, else SQLite.
	Dialect sqlguard.Dialect
}

// Pipeline holds no per-request state; concurrent Ask calls are safe when the
// completer and executor are.
type Pipeline struct {
	schema      schema.Descriptor
	completer   nl2sql.Completer
	executor    Executor
	logger      *slog.Logger
	retryOnce   bool
	explainMode ExplainMode
	dialect     sqlguard.Dialect
}

func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if len(opts.Schema.Tables) == 0 {
		opts.Schema = schema.Default
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	mode := opts.ExplainMode
	switch mode {
	case "":
		mode = ExplainModel
	case ExplainModel, ExplainHeuristic, ExplainOff:
	default:
		return nil, fmt.Errorf("unknown explain mode %q", mode)
	}
	dialect := opts.Dialect
	if dialect == "" {
		dialect = sqlguard.DialectSQLite
		if driver, ok := opts.Executor.(interface{ Driver() string }); ok {
			dialect = sqlguard.Dialect(driver.Driver())
		}
	}
	if !dialect.Valid() {
		return nil, fmt.Errorf("unknown sql dialect %q", dialect)
	}
	return &Pipeline{
		schema:      opts.Schema,
		completer:   opts.Completer,
		executor:    opts.Executor,
		logger:      logger,
		retryOnce:   opts.RetryOnce,
		explainMode: mode,
		dialect:     dialect,
	}, nil
}

func (p *Pipeline) Schema() schema.Descriptor {
	return p.schema
}

// Ask turns question into guarded SQL, runs it and returns the shaped rows.
// Every returned error other than ErrEmptyQuestion carries an apperr.Kind.
func (p *Pipeline) Ask(ctx context.Context, question string) (Envelope, error) {
	envelope, err := p.ask(ctx, question)
	outcome := observability.OutcomeSuccess
	if err != nil {
		if kind, ok := apperr.KindOf(err); ok {
			outcome = string(kind)
		} else {
			outcome = "invalid_request"
		}
	}
	observability.ObservePipelineRequest(outcome)
	return envelope, err
}

func (p *Pipeline) ask(ctx context.Context, question string) (Envelope, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Envelope{}, ErrEmptyQuestion
	}

	prompt := nl2sql.BuildSQLPrompt(p.schema, question)
	completion, err := p.completeSQL(ctx, prompt)
	if err != nil {
		p.logger.WarnContext(ctx, "sql completion failed",
			slog.String("error", err.Error()),
		)
		return Envelope{}, err
	}
	p.logger.DebugContext(ctx, "sql completion received",
		slog.String("provider", completion.Provider),
		slog.String("model", completion.Model),
	)

	sqlText, err := sqlguard.SanitizeDialect(completion.Text, p.dialect)
	if err != nil {
		observability.IncrementGuardRejection()
		p.logger.WarnContext(ctx, "generated statement rejected",
			slog.String("completion", completion.Text),
			slog.String("error", err.Error()),
		)
		return Envelope{}, err
	}

	start := time.Now()
	result, err := p.executor.Execute(ctx, sqlText)
	observability.ObserveQueryLatency(time.Since(start))
	if err != nil {
		if _, ok := apperr.KindOf(err); !ok {
			err = apperr.WithSQL(apperr.StoreUnavailable, "execute query", sqlText, err)
		}
		p.logger.WarnContext(ctx, "query execution failed",
			slog.String("sql", sqlText),
			slog.String("error", err.Error()),
		)
		return Envelope{}, err
	}
	p.logger.DebugContext(ctx, "query executed",
		slog.Int("rows", len(result.Rows)),
		slog.Duration("duration", time.Since(start)),
	)

	return shapeEnvelope(sqlText, result, p.explain(ctx, sqlText)), nil
}

func (p *Pipeline) completeSQL(ctx context.Context, prompt string) (nl2sql.Completion, error) {
	attempts := 1
	if p.retryOnce {
		attempts = 2
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		completion, callErr := p.completer.Complete(ctx, prompt)
		observability.ObserveCompletionLatency(observability.CompletionCallSQL, time.Since(start))
		if callErr == nil {
			return completion, nil
		}
		err = completionError(callErr)
		if !apperr.Retryable(err) || ctx.Err() != nil || attempt == attempts {
			break
		}
		p.logger.InfoContext(ctx, "retrying sql completion",
			slog.String("error", err.Error()),
		)
	}
	return nl2sql.Completion{}, err
}

// explain is best effort: a failure is logged and counted and the
// explanation is left empty.
func (p *Pipeline) explain(ctx context.Context, sqlText string) string {
	switch p.explainMode {
	case ExplainOff:
		return ""
	case ExplainHeuristic:
		return DescribeSQL(sqlText)
	}

	start := time.Now()
	completion, err := p.completer.Complete(ctx, nl2sql.BuildExplainPrompt(p.schema, sqlText))
	observability.ObserveCompletionLatency(observability.CompletionCallExplain, time.Since(start))
	if err != nil {
		observability.IncrementExplanationFailure()
		p.logger.WarnContext(ctx, "explanation failed",
			slog.String("error", err.Error()),
		)
		return ""
	}
	return strings.TrimSpace(completion.Text)
}

func completionError(err error) error {
	if _, ok := apperr.KindOf(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.ServiceUnavailable, "completion request interrupted", err)
	}
	return apperr.Wrap(apperr.ServiceUnavailable, "completion request failed", err)
}
