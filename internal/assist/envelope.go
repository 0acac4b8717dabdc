package assist

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/sqlassist/sqlassist/internal/sqlstore"
)

// Envelope is the answer to one question.
type Envelope struct {
	SQL         string   `json:"sql"`
	Explanation string   `json:"explanation"`
	Columns     []string `json:"columns"`
	Data        []Record `json:"data"`
	RowCount    int      `json:"row_count"`
}

// Record is one result row. It marshals to a JSON object whose keys follow
// the column order of the query.
type Record struct {
	Columns []string
	Values  []any
}

func (r Record) Get(column string) (any, bool) {
	for i, name := range r.Columns {
		if name == column && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, column := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var value any
		if i < len(r.Values) {
			value = jsonSafe(r.Values[i])
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func jsonSafe(value any) any {
	if f, ok := value.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return value
}

func shapeEnvelope(sqlText string, result sqlstore.ResultSet, explanation string) Envelope {
	columns := uniqueColumns(result.Columns)
	data := make([]Record, 0, len(result.Rows))
	for _, row := range result.Rows {
		data = append(data, Record{Columns: columns, Values: row})
	}
	return Envelope{
		SQL:         sqlText,
		Explanation: explanation,
		Columns:     columns,
		Data:        data,
		RowCount:    len(data),
	}
}

// RecordsFrom converts a result set without building a full envelope.
func RecordsFrom(result sqlstore.ResultSet) []Record {
	return shapeEnvelope("", result, "").Data
}

// uniqueColumns suffixes repeated names (id, id_2) so every record key is
// distinct, as happens with SELECT c.id, o.id.
func uniqueColumns(columns []string) []string {
	seen := make(map[string]int, len(columns))
	unique := make([]string, len(columns))
	for i, column := range columns {
		seen[column]++
		name := column
		for n := seen[column]; n > 1; n++ {
			candidate := column + "_" + strconv.Itoa(n)
			if _, taken := seen[candidate]; !taken {
				name = candidate
				seen[candidate] = 1
				break
			}
		}
		unique[i] = name
	}
	return unique
}
