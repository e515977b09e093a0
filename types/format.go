package types

import (
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

// FormatTranscript renders a turn history as a markdown table, suitable for
// logs and end-of-session summaries.
func FormatTranscript(turns []*Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var buf strings.Builder
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Role", "Content")
	for _, turn := range turns {
		if turn == nil {
			continue
		}
		_ = table.Append(string(turn.Role), turn.Content)
	}
	_ = table.Render()
	return buf.String()
}

// FormatFields renders the form's field list as a markdown table.
func FormatFields(fields []FieldDescriptor) string {
	if len(fields) == 0 {
		return ""
	}
	var buf strings.Builder
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Order")
	for _, field := range fields {
		_ = table.Append(field.Name, strconv.Itoa(field.Order))
	}
	_ = table.Render()
	return buf.String()
}
