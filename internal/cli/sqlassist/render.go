package sqlassist

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/sqlassist/sqlassist/internal/apperr"
	"github.com/sqlassist/sqlassist/internal/assist"
	"github.com/sqlassist/sqlassist/internal/schema"
)

// Renderer writes answers and errors for a terminal. With color disabled the
// output is plain text.
type Renderer struct {
	out   io.Writer
	color bool
}

func NewRenderer(out io.Writer, color bool) *Renderer {
	return &Renderer{out: out, color: color}
}

var (
	labelStyle = pterm.NewStyle(pterm.FgLightCyan, pterm.Bold)
	sqlStyle   = pterm.NewStyle(pterm.FgYellow)
	errorStyle = pterm.NewStyle(pterm.FgLightRed, pterm.Bold)
	mutedStyle = pterm.NewStyle(pterm.FgGray)
)

func (r *Renderer) style(style *pterm.Style, text string) string {
	if !r.color {
		return text
	}
	return style.Sprint(text)
}

func (r *Renderer) println(parts ...string) {
	_, _ = fmt.Fprintln(r.out, strings.Join(parts, ""))
}

func (r *Renderer) Envelope(envelope assist.Envelope) {
	r.println(r.style(labelStyle, "Generated SQL: "), r.style(sqlStyle, envelope.SQL))
	r.println()
	if len(envelope.Data) == 0 {
		r.println("No data found.")
	} else {
		r.println(r.table(envelope))
		noun := "rows"
		if envelope.RowCount == 1 {
			noun = "row"
		}
		r.println(r.style(mutedStyle, fmt.Sprintf("(%d %s)", envelope.RowCount, noun)))
	}
	if envelope.Explanation != "" {
		r.println()
		r.println(r.style(labelStyle, "Explanation: "), envelope.Explanation)
	}
}

func (r *Renderer) table(envelope assist.Envelope) string {
	data := make(pterm.TableData, 0, len(envelope.Data)+1)
	data = append(data, envelope.Columns)
	for _, record := range envelope.Data {
		row := make([]string, len(envelope.Columns))
		for i := range envelope.Columns {
			if i < len(record.Values) {
				row[i] = formatValue(record.Values[i])
			}
		}
		data = append(data, row)
	}

	printer := pterm.DefaultTable.WithHasHeader().WithData(data)
	if !r.color {
		plain := pterm.NewStyle()
		printer = printer.WithStyle(plain).WithHeaderStyle(plain).WithSeparatorStyle(plain)
	}
	rendered, err := printer.Srender()
	if err != nil {
		return fmt.Sprintf("render table: %v", err)
	}
	return strings.TrimRight(rendered, "\n")
}

// Error prints "kind: message" and, for rejected SQL, the statement itself.
func (r *Renderer) Error(err error) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		r.println(r.style(errorStyle, "error: "), err.Error())
		return
	}
	r.println(r.style(errorStyle, string(kind)+": "), apperr.DetailOf(err))
	if kind == apperr.QuerySyntaxError {
		if sqlText := apperr.SQLOf(err); sqlText != "" {
			r.println(r.style(labelStyle, "SQL: "), sqlText)
		}
	}
}

func (r *Renderer) Schema(descriptor schema.Descriptor) {
	r.println(r.style(labelStyle, "Database schema:"))
	for _, table := range descriptor.Tables {
		r.println("  Table: ", table.Name)
		r.println("    Columns: ", strings.Join(table.Columns, ", "))
	}
}

func (r *Renderer) Examples(examples []assist.Example) {
	r.println(r.style(labelStyle, "Example questions:"))
	for i, example := range examples {
		r.println(fmt.Sprintf("  %d. %s", i+1, example.Query))
		r.println("     ", r.style(mutedStyle, example.Description))
	}
}

func (r *Renderer) Help() {
	r.println(r.style(labelStyle, "Commands:"))
	r.println("  help     show this help")
	r.println("  schema   show the database schema")
	r.println("  quit     leave the assistant (also: exit, q)")
	r.println("Anything else is sent to the assistant as a question.")
	r.println()
	r.Examples(assist.Examples)
}

func (r *Renderer) Notice(text string) {
	r.println(r.style(mutedStyle, text))
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
