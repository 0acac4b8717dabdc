package nl2sql

import (
	"strconv"
	"strings"

	"github.com/sqlassist/sqlassist/internal/schema"
)

var sqlGuidelines = []string{
	"Only generate SQL queries",
	"Do not include explanations in the SQL",
	"Use proper SQL syntax",
	"Use JOIN when querying across tables",
	"Handle date comparisons appropriately",
	"Return only the SQL query, no markdown formatting",
}

// BuildSQLPrompt renders the generation prompt. The question is appended
// verbatim; injection defense happens in sqlguard, not here.
func BuildSQLPrompt(descriptor schema.Descriptor, question string) string {
	var b strings.Builder
	b.WriteString("You are a helpful SQL assistant. Convert the user's natural language query into a valid SQL query based on this schema:\n\n")
	b.WriteString(descriptor.Render())
	b.WriteString("\n\nImportant guidelines:\n")
	for i, guideline := range sqlGuidelines {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(guideline)
		b.WriteString("\n")
	}
	b.WriteString("\nUser query: ")
	b.WriteString(question)
	return b.String()
}

func BuildExplainPrompt(descriptor schema.Descriptor, sqlText string) string {
	var b strings.Builder
	b.WriteString("You explain SQL queries to non-technical readers. In one or two plain sentences, describe what the following query returns. Do not repeat the SQL and do not use markdown.\n\n")
	b.WriteString(descriptor.Render())
	b.WriteString("\n\nSQL: ")
	b.WriteString(sqlText)
	return b.String()
}
