package assist

import (
	"context"
	"fmt"

	"github.com/sqlassist/sqlassist/internal/schema"
	"github.com/sqlassist/sqlassist/internal/sqlstore"
)

type Inspector interface {
	Sample(ctx context.Context, table string, limit int) (sqlstore.ResultSet, error)
	CountRows(ctx context.Context, table string) (int64, error)
}

type DatabaseInfo struct {
	Schema     map[string][]string `json:"schema"`
	SampleData map[string][]Record `json:"sample_data"`
	RowCounts  map[string]int64    `json:"row_counts"`
}

// DescribeDatabase reads the leading rows and row count of every table in
// the descriptor.
func DescribeDatabase(ctx context.Context, descriptor schema.Descriptor, inspector Inspector, sampleRows int) (DatabaseInfo, error) {
	info := DatabaseInfo{
		Schema:     descriptor.ColumnsByTable(),
		SampleData: make(map[string][]Record, len(descriptor.Tables)),
		RowCounts:  make(map[string]int64, len(descriptor.Tables)),
	}
	for _, table := range descriptor.Tables {
		sample, err := inspector.Sample(ctx, table.Name, sampleRows)
		if err != nil {
			return DatabaseInfo{}, fmt.Errorf("sample table %q: %w", table.Name, err)
		}
		info.SampleData[table.Name] = RecordsFrom(sample)

		count, err := inspector.CountRows(ctx, table.Name)
		if err != nil {
			return DatabaseInfo{}, fmt.Errorf("count table %q: %w", table.Name, err)
		}
		info.RowCounts[table.Name] = count
	}
	return info, nil
}
