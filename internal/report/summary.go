package report

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// SummaryTable renders the per-section counts of a report as a terminal table.
func SummaryTable(r *Report) string {
	rows := [][]string{}
	if r.CFCheck != nil {
		rows = append(rows, countRow("cfcheck", r.CFCheck.Counts))
	}
	if r.GetCap != nil {
		rows = append(rows, countRow("getcap", r.GetCap.Counts))
	}
	for _, layer := range r.GetMap {
		rows = append(rows, countRow("getmap "+layer.ReportName, layer.Counts))
	}
	rows = append(rows, countRow("total", r.Counts))
	return CountsTable(rows)
}

// CountsTable renders rows of {name, errors, warnings, info}.
func CountsTable(rows [][]string) string {
	return Table([]string{"SECTION", "ERRORS", "WARNINGS", "INFO"}, rows)
}

// Table renders rows under bold headers with a normal border.
func Table(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

func countRow(name string, c Counts) []string {
	return []string{name, strconv.Itoa(c.Errors), strconv.Itoa(c.Warnings), strconv.Itoa(c.Info)}
}
