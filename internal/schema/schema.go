// Package schema holds the static description of the store the assistant
// answers questions about.
package schema

import "strings"

type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

type Descriptor struct {
	Tables []Table
}

// Default must stay in sync with the seeded store; a mismatch is a
// deployment error and is not detected at runtime.
var Default = Descriptor{
	Tables: []Table{
		{Name: "customers", Columns: []string{"id", "name", "signup_date"}},
		{Name: "orders", Columns: []string{"id", "customer_id", "amount", "order_date"}},
	},
}

func (d Descriptor) Render() string {
	lines := make([]string, 0, len(d.Tables))
	for _, table := range d.Tables {
		lines = append(lines, "Table: "+table.Signature())
	}
	return strings.Join(lines, "\n")
}

func (t Table) Signature() string {
	return t.Name + "(" + strings.Join(t.Columns, ", ") + ")"
}

func (d Descriptor) Lookup(name string) (Table, bool) {
	for _, table := range d.Tables {
		if strings.EqualFold(table.Name, name) {
			return table, true
		}
	}
	return Table{}, false
}

func (d Descriptor) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, table := range d.Tables {
		names = append(names, table.Name)
	}
	return names
}

// ColumnsByTable returns a copy keyed by table name for JSON responses.
func (d Descriptor) ColumnsByTable() map[string][]string {
	out := make(map[string][]string, len(d.Tables))
	for _, table := range d.Tables {
		out[table.Name] = append([]string(nil), table.Columns...)
	}
	return out
}
