// Package report prints statements for terminals.
package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"expense-tracker/internal/core"
)

const dateLayout = "2006-01-02"

// WriteStatement renders st as a table with one row per transaction and a totals footer.
func WriteStatement(w io.Writer, st core.Statement) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Date", "Description", "Credit", "Debit", "Balance"})
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})

	table.Append([]string{"", "Opening balance", "", "", money(st.OpeningBalance)})
	for _, line := range st.Lines {
		credit, debit := "", ""
		switch line.Type {
		case core.Credit:
			credit = money(line.Amount)
		case core.Debit:
			debit = money(line.Amount)
		}
		table.Append([]string{
			line.CreatedAt.UTC().Format(dateLayout),
			line.DescriptionValue(),
			credit,
			debit,
			money(line.Balance),
		})
	}

	table.SetFooter([]string{"", "Totals", money(st.Totals.Credit), money(st.Totals.Debit), money(st.ClosingBalance)})
	table.Render()
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
