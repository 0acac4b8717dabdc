package sqlassist

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/sqlassist/sqlassist/internal/apperr"
	"github.com/sqlassist/sqlassist/internal/assist"
	"github.com/sqlassist/sqlassist/internal/schema"
	"github.com/sqlassist/sqlassist/internal/sqlguard"
)

func TestRenderSchemaGolden(t *testing.T) {
	var out bytes.Buffer
	NewRenderer(&out, false).Schema(schema.Default)

	g := goldie.New(t)
	g.Assert(t, t.Name(), out.Bytes())
}

func TestRenderHelpGolden(t *testing.T) {
	var out bytes.Buffer
	NewRenderer(&out, false).Help()

	g := goldie.New(t)
	g.Assert(t, t.Name(), out.Bytes())
}

func TestRenderErrorsGolden(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, false)
	r.Error(apperr.Wrap(apperr.DisallowedOperation, sqlguard.ReadOnlyMessage, sqlguard.ErrNotSelect))
	r.Error(apperr.WithSQL(apperr.QuerySyntaxError, "no such column: nme", "SELECT nme FROM customers", nil))
	r.Error(apperr.New(apperr.ServiceUnavailable, "completion service returned 503"))
	r.Error(errors.New("boom"))

	g := goldie.New(t)
	g.Assert(t, t.Name(), out.Bytes())
}

func TestRenderEmptyEnvelopeGolden(t *testing.T) {
	var out bytes.Buffer
	NewRenderer(&out, false).Envelope(assist.Envelope{
		SQL:         "SELECT name FROM customers WHERE 1 = 0",
		Explanation: "Lists customer names.",
		Columns:     []string{"name"},
		Data:        []assist.Record{},
	})

	g := goldie.New(t)
	g.Assert(t, t.Name(), out.Bytes())
}

func TestRenderEnvelopeTable(t *testing.T) {
	var out bytes.Buffer
	columns := []string{"name", "total", "last_order"}
	NewRenderer(&out, false).Envelope(assist.Envelope{
		SQL:     "SELECT name, total, last_order FROM totals",
		Columns: columns,
		Data: []assist.Record{
			{Columns: columns, Values: []any{"John Smith", float64(525.5), "2025-11-10"}},
			{Columns: columns, Values: []any{"Jane Doe", float64(1285), nil}},
		},
		RowCount: 2,
	})

	got := out.String()
	for _, want := range []string{"Generated SQL: SELECT name, total, last_order FROM totals", "name", "John Smith", "525.5", "1285", "NULL", "(2 rows)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "No data found.") || strings.Contains(got, "Explanation:") {
		t.Fatalf("unexpected output:\n%s", got)
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"x", "x"},
		{float64(75.5), "75.5"},
		{float64(1200), "1200"},
		{int64(3), "3"},
		{true, "true"},
	}
	for _, tc := range cases {
		if got := formatValue(tc.in); got != tc.want {
			t.Fatalf("formatValue(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
