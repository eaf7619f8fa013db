package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const unknown = "unknown"

// Presenter renders a ranked result.
type Presenter interface {
	Present(w io.Writer, res *Result) error
}

// NewPresenter returns the presenter for format: "table" or "json".
func NewPresenter(format string) (Presenter, error) {
	switch format {
	case "", "table":
		return TablePresenter{}, nil
	case "json":
		return JSONPresenter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table or json)", format)
	}
}

// TablePresenter renders a bordered table. Colors are only emitted when w
// is a terminal.
type TablePresenter struct{}

var tableHeaders = []string{"#", "UPTIME", "NAME", "SERIAL", "USERNAME", "EMAIL", "LAST BOOT", "ID"}

func (TablePresenter) Present(w io.Writer, res *Result) error {
	r := lipgloss.NewRenderer(w)
	headerStyle := r.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := r.NewStyle().Padding(0, 1)
	uptimeStyle := cellStyle.Foreground(lipgloss.Color("214"))
	borderStyle := r.NewStyle().Foreground(lipgloss.Color("240"))

	rows := make([][]string, 0, len(res.Records))
	for i, rec := range res.Records {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			rec.Display,
			rec.Name,
			rec.Serial,
			orUnknown(rec.Username),
			orUnknown(rec.Email),
			rec.BootText,
			rec.DeviceID,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(tableHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 1:
				return uptimeStyle
			default:
				return cellStyle
			}
		})

	_, err := fmt.Fprintf(w, "%s\n%s\n", summary(res), t.Render())
	return err
}

// JSONPresenter writes the result as indented JSON.
type JSONPresenter struct{}

func (JSONPresenter) Present(w io.Writer, res *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func summary(res *Result) string {
	s := fmt.Sprintf("Top %d of %d devices by uptime (%s scan of %d",
		len(res.Records), res.Valid, res.Mode, res.Candidates)
	if res.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", res.Skipped)
	}
	return s + ")"
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
