package assist

import "strings"

// DescribeSQL gives a one-sentence summary of a statement from keywords
// alone. It never calls the completion service.
func DescribeSQL(sqlText string) string {
	upper := strings.ToUpper(sqlText)

	var b strings.Builder
	b.WriteString("This query ")
	switch {
	case strings.Contains(upper, "COUNT(*)"):
		b.WriteString("counts the total number of records")
	case strings.Contains(upper, "AVG("):
		b.WriteString("calculates the average")
	case strings.Contains(upper, "SUM("):
		b.WriteString("calculates the sum")
	case strings.Contains(upper, "MAX("):
		b.WriteString("finds the maximum value")
	case strings.Contains(upper, "MIN("):
		b.WriteString("finds the minimum value")
	default:
		b.WriteString("retrieves data")
	}
	if strings.Contains(upper, "WHERE") {
		b.WriteString(" that match specific conditions")
	}
	if strings.Contains(upper, "ORDER BY") {
		b.WriteString(" and sorts the results")
	}
	if strings.Contains(upper, "GROUP BY") {
		b.WriteString(" and groups the results")
	}
	b.WriteString(".")
	return b.String()
}
