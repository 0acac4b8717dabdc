package assist

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/sqlassist/sqlassist/internal/apperr"
	"github.com/sqlassist/sqlassist/internal/nl2sql"
	"github.com/sqlassist/sqlassist/internal/schema"
	"github.com/sqlassist/sqlassist/internal/sqlguard"
	"github.com/sqlassist/sqlassist/internal/sqlstore"
)

const julyQuestion = "How many customers signed up in July?"

func TestAskReturnsShapedEnvelope(t *testing.T) {
	completer := &fakeCompleter{responses: []fakeResponse{
		{text: "```sql\nSELECT COUNT(*) FROM customers WHERE signup_date LIKE '2025-07%';\n```"},
		{text: "  Counts customers who signed up in July.  "},
	}}
	executor := &fakeExecutor{result: sqlstore.ResultSet{
		Columns: []string{"COUNT(*)"},
		Rows:    [][]any{{int64(3)}},
	}}
	pipeline := newTestPipeline(t, completer, executor, Options{})

	envelope, err := pipeline.Ask(context.Background(), julyQuestion)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	wantSQL := "SELECT COUNT(*) FROM customers WHERE signup_date LIKE '2025-07%'"
	if envelope.SQL != wantSQL {
		t.Fatalf("SQL = %q", envelope.SQL)
	}
	if executor.calls() != 1 || executor.lastSQL() != wantSQL {
		t.Fatalf("executor saw %d calls, last %q", executor.calls(), executor.lastSQL())
	}
	if envelope.RowCount != 1 || len(envelope.Data) != 1 {
		t.Fatalf("RowCount = %d, Data = %#v", envelope.RowCount, envelope.Data)
	}
	if value, _ := envelope.Data[0].Get("COUNT(*)"); value != int64(3) {
		t.Fatalf("count = %#v", value)
	}
	if envelope.Explanation != "Counts customers who signed up in July." {
		t.Fatalf("Explanation = %q", envelope.Explanation)
	}

	prompts := completer.prompts()
	if len(prompts) != 2 {
		t.Fatalf("completion calls = %d", len(prompts))
	}
	if prompts[0] != nl2sql.BuildSQLPrompt(schema.Default, julyQuestion) {
		t.Fatalf("sql prompt = %q", prompts[0])
	}
	if prompts[1] != nl2sql.BuildExplainPrompt(schema.Default, wantSQL) {
		t.Fatalf("explain prompt = %q", prompts[1])
	}
}

func TestAskIsIdempotentForDeterministicCollaborators(t *testing.T) {
	completer := &fakeCompleter{fixed: &fakeResponse{text: "SELECT name FROM customers ORDER BY name"}}
	executor := &fakeExecutor{result: sqlstore.ResultSet{
		Columns: []string{"name"},
		Rows:    [][]any{{"Alice Johnson"}, {"Bob Smith"}},
	}}
	pipeline := newTestPipeline(t, completer, executor, Options{})

	first, err := pipeline.Ask(context.Background(), "List customer names")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	second, err := pipeline.Ask(context.Background(), "List customer names")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Ask() not idempotent:\n%#v\n%#v", first, second)
	}
	prompts := completer.prompts()
	if prompts[0] != prompts[2] || prompts[1] != prompts[3] {
		t.Fatal("prompts differ between identical questions")
	}
}

func TestAskPrimaryFailureReturnsServiceUnavailable(t *testing.T) {
	completer := &fakeCompleter{fixed: &fakeResponse{err: apperr.New(apperr.ServiceUnavailable, "quota exceeded")}}
	executor := &fakeExecutor{}
	pipeline := newTestPipeline(t, completer, executor, Options{RetryOnce: true})

	envelope, err := pipeline.Ask(context.Background(), julyQuestion)
	if !apperr.Is(err, apperr.ServiceUnavailable) {
		t.Fatalf("Ask() error = %v", err)
	}
	if !apperr.Retryable(err) {
		t.Fatal("ServiceUnavailable should be retryable")
	}
	if !reflect.DeepEqual(envelope, Envelope{}) {
		t.Fatalf("envelope = %#v, want zero value", envelope)
	}
	if got := len(completer.prompts()); got != 2 {
		t.Fatalf("completion calls = %d, want one retry", got)
	}
	if executor.calls() != 0 {
		t.Fatal("executor must not run after a completion failure")
	}
}

func TestAskWithoutRetryCallsCompleterOnce(t *testing.T) {
	completer := &fakeCompleter{fixed: &fakeResponse{err: errors.New("connection reset")}}
	pipeline := newTestPipeline(t, completer, &fakeExecutor{}, Options{})

	_, err := pipeline.Ask(context.Background(), julyQuestion)
	if !apperr.Is(err, apperr.ServiceUnavailable) {
		t.Fatalf("Ask() error = %v", err)
	}
	if got := len(completer.prompts()); got != 1 {
		t.Fatalf("completion calls = %d", got)
	}
}

func TestAskRetrySucceeds(t *testing.T) {
	completer := &fakeCompleter{responses: []fakeResponse{
		{err: apperr.New(apperr.ServiceUnavailable, "timeout")},
		{text: "SELECT AVG(amount) FROM orders"},
	}}
	executor := &fakeExecutor{result: sqlstore.ResultSet{Columns: []string{"AVG(amount)"}, Rows: [][]any{{float64(120.5)}}}}
	pipeline := newTestPipeline(t, completer, executor, Options{RetryOnce: true, ExplainMode: ExplainHeuristic})

	envelope, err := pipeline.Ask(context.Background(), "What's the average order amount?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if envelope.Explanation != "This query calculates the average." {
		t.Fatalf("Explanation = %q", envelope.Explanation)
	}
	if got := len(completer.prompts()); got != 2 {
		t.Fatalf("completion calls = %d", got)
	}
}

func TestAskDoesNotRetryConfigurationError(t *testing.T) {
	completer := &fakeCompleter{fixed: &fakeResponse{err: apperr.New(apperr.ConfigurationError, "gemini api key is required")}}
	pipeline := newTestPipeline(t, completer, &fakeExecutor{}, Options{RetryOnce: true})

	_, err := pipeline.Ask(context.Background(), julyQuestion)
	if !apperr.Is(err, apperr.ConfigurationError) {
		t.Fatalf("Ask() error = %v", err)
	}
	if apperr.Retryable(err) {
		t.Fatal("ConfigurationError must not be retryable")
	}
	if got := len(completer.prompts()); got != 1 {
		t.Fatalf("completion calls = %d", got)
	}
}

func TestAskRejectsMutatingCompletion(t *testing.T) {
	for _, text := range []string{
		"DROP TABLE customers",
		"SELECT * FROM customers; DELETE FROM customers",
		"```sql\nUPDATE orders SET amount = 0\n```",
	} {
		completer := &fakeCompleter{fixed: &fakeResponse{text: text}}
		executor := &fakeExecutor{}
		pipeline := newTestPipeline(t, completer, executor, Options{})

		_, err := pipeline.Ask(context.Background(), "please")
		if !apperr.Is(err, apperr.DisallowedOperation) {
			t.Fatalf("Ask(%q) error = %v", text, err)
		}
		if apperr.MessageOf(err) != "I can only answer with read-only queries" {
			t.Fatalf("message = %q", apperr.MessageOf(err))
		}
		if executor.calls() != 0 {
			t.Fatalf("executor ran for %q", text)
		}
	}
}

func TestAskGuardsWithExecutorDialect(t *testing.T) {
	completer := &fakeCompleter{fixed: &fakeResponse{text: "SELECT ['a]', 'b'] ; DROP TABLE customers"}}
	executor := &duckExecutor{}
	executor.result = sqlstore.ResultSet{Columns: []string{"tags"}, Rows: [][]any{{"a]"}}}
	pipeline := newTestPipeline(t, completer, executor, Options{ExplainMode: ExplainOff})

	_, err := pipeline.Ask(context.Background(), "list please")
	if !errors.Is(err, sqlguard.ErrStackedStatement) {
		t.Fatalf("Ask() error = %v", err)
	}
	if executor.calls() != 0 {
		t.Fatal("executor ran a stacked statement")
	}

	completer.fixed = &fakeResponse{text: "SELECT ['a]', 'b'] AS tags"}
	if _, err := pipeline.Ask(context.Background(), "list please"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if executor.lastSQL() != "SELECT ['a]', 'b'] AS tags" {
		t.Fatalf("sql = %q", executor.lastSQL())
	}
}

func TestAskExplanationFailureKeepsEnvelope(t *testing.T) {
	completer := &fakeCompleter{responses: []fakeResponse{
		{text: "SELECT id, name FROM customers WHERE id = 1"},
		{err: apperr.New(apperr.ServiceUnavailable, "explanation timed out")},
	}}
	executor := &fakeExecutor{result: sqlstore.ResultSet{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{int64(1), "Alice Johnson"}},
	}}
	pipeline := newTestPipeline(t, completer, executor, Options{RetryOnce: true})

	envelope, err := pipeline.Ask(context.Background(), "Who is customer 1?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if envelope.Explanation != "" {
		t.Fatalf("Explanation = %q", envelope.Explanation)
	}
	if envelope.SQL == "" || envelope.RowCount != 1 {
		t.Fatalf("envelope = %#v", envelope)
	}
	if got := len(completer.prompts()); got != 2 {
		t.Fatalf("completion calls = %d, explanation must not be retried", got)
	}
}

func TestAskZeroRowsIsSuccess(t *testing.T) {
	completer := &fakeCompleter{fixed: &fakeResponse{text: "SELECT * FROM orders WHERE amount > 1000"}}
	executor := &fakeExecutor{result: sqlstore.ResultSet{
		Columns: []string{"id", "customer_id", "amount", "order_date"},
		Rows:    [][]any{},
	}}
	pipeline := newTestPipeline(t, completer, executor, Options{ExplainMode: ExplainOff})

	envelope, err := pipeline.Ask(context.Background(), "Show me all orders above $1000")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if envelope.RowCount != 0 || envelope.Data == nil {
		t.Fatalf("envelope = %#v", envelope)
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if !strings.Contains(string(body), `"data":[]`) || !strings.Contains(string(body), `"row_count":0`) {
		t.Fatalf("body = %s", body)
	}
	if got := len(completer.prompts()); got != 1 {
		t.Fatalf("completion calls = %d with explanations off", got)
	}
}

func TestAskExecutorErrorsKeepKind(t *testing.T) {
	completer := &fakeCompleter{fixed: &fakeResponse{text: "SELECT nope FROM customers"}}
	executor := &fakeExecutor{err: apperr.WithSQL(apperr.QuerySyntaxError, "execute query", "SELECT nope FROM customers", errors.New("no such column: nope"))}
	pipeline := newTestPipeline(t, completer, executor, Options{})

	_, err := pipeline.Ask(context.Background(), "nope")
	if !apperr.Is(err, apperr.QuerySyntaxError) || apperr.SQLOf(err) != "SELECT nope FROM customers" {
		t.Fatalf("Ask() error = %v", err)
	}

	executor.err = errors.New("disk gone")
	_, err = pipeline.Ask(context.Background(), "nope")
	if !apperr.Is(err, apperr.StoreUnavailable) {
		t.Fatalf("Ask() error = %v", err)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	completer := &fakeCompleter{}
	pipeline := newTestPipeline(t, completer, &fakeExecutor{}, Options{})

	_, err := pipeline.Ask(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(completer.prompts()) != 0 {
		t.Fatal("completer must not be called for an empty question")
	}
}

func TestNewPipelineValidatesOptions(t *testing.T) {
	if _, err := NewPipeline(Options{Executor: &fakeExecutor{}}); err == nil {
		t.Fatal("expected missing completer error")
	}
	if _, err := NewPipeline(Options{Completer: &fakeCompleter{}}); err == nil {
		t.Fatal("expected missing executor error")
	}
	if _, err := NewPipeline(Options{Completer: &fakeCompleter{}, Executor: &fakeExecutor{}, ExplainMode: "loud"}); err == nil {
		t.Fatal("expected unknown explain mode error")
	}
	if _, err := NewPipeline(Options{Completer: &fakeCompleter{}, Executor: &fakeExecutor{}, Dialect: "mysql"}); err == nil {
		t.Fatal("expected unknown dialect error")
	}
	pipeline, err := NewPipeline(Options{Completer: &fakeCompleter{}, Executor: &fakeExecutor{}})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if pipeline.Schema().Render() != schema.Default.Render() {
		t.Fatal("empty schema should default to schema.Default")
	}
}

func newTestPipeline(t *testing.T, completer nl2sql.Completer, executor Executor, opts Options) *Pipeline {
	t.Helper()
	opts.Completer = completer
	opts.Executor = executor
	pipeline, err := NewPipeline(opts)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return pipeline
}

type fakeResponse struct {
	text string
	err  error
}

// fakeCompleter replays responses in order, or returns fixed for every call.
type fakeCompleter struct {
	mu        sync.Mutex
	responses []fakeResponse
	fixed     *fakeResponse
	seen      []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (nl2sql.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, prompt)

	response := fakeResponse{err: errors.New("unexpected completion call")}
	switch {
	case f.fixed != nil:
		response = *f.fixed
	case len(f.responses) > 0:
		response = f.responses[0]
		f.responses = f.responses[1:]
	}
	if response.err != nil {
		return nl2sql.Completion{}, response.err
	}
	return nl2sql.Completion{Text: response.text, Provider: "fake", Model: "fake-1"}, nil
}

func (f *fakeCompleter) prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

type fakeExecutor struct {
	mu     sync.Mutex
	result sqlstore.ResultSet
	err    error
	seen   []string
}

func (f *fakeExecutor) Execute(_ context.Context, sqlText string) (sqlstore.ResultSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, sqlText)
	if f.err != nil {
		return sqlstore.ResultSet{}, f.err
	}
	return f.result, nil
}

func (f *fakeExecutor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func (f *fakeExecutor) lastSQL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seen) == 0 {
		return ""
	}
	return f.seen[len(f.seen)-1]
}

// duckExecutor reports the duckdb driver like sqlstore.Executor does.
type duckExecutor struct {
	fakeExecutor
}

func (d *duckExecutor) Driver() string { return "duckdb" }
