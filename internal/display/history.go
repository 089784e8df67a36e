package display

import (
	"fmt"

	"tabletrace/internal/models"
)

func (p *Printer) History(records []models.ChangeRecord) {
	if len(records) == 0 {
		p.println()
		p.println(dim("No changes recorded yet. Make some changes to your database!"))
		return
	}

	p.println()
	p.println(cyanBold("═══ Change History ═══"))
	for i := range records {
		p.historyLine(&records[i])
	}
	p.println()
	p.println(dim("Type a number to see details (e.g., '1')"))
}

func (p *Printer) historyLine(record *models.ChangeRecord) {
	ev := record.Event
	hint := ""
	if len(record.Diffs) > 0 {
		hint = dim(fmt.Sprintf(" [%d row diff]", len(record.Diffs)))
	}
	p.printf("  %s [%s] %s %s (%d row%s)%s\n", cyanBold(fmt.Sprintf("#%d", ev.ID)),
		dim(ev.Timestamp.Format(timeLayout)), colorType(ev.ChangeType), ev.Table,
		ev.RowCount, rowSuffix(ev.RowCount), hint)
}

// Details prints the full diff of one change inside a box.
func (p *Printer) Details(record *models.ChangeRecord) {
	ev := record.Event
	ct := ev.ChangeType
	switch ct {
	case "INSERT":
		ct = greenBold(ct)
	case "UPDATE":
		ct = yellowB(ct)
	case "DELETE":
		ct = redBold(ct)
	}

	p.println()
	p.println(cyan("╔══════════════════════════════════════════════════════════╗"))
	p.printf("║  %s #%s: %s on %s\n", cyanBold("Change"), cyan(fmt.Sprint(ev.ID)), ct, ev.Table)
	p.printf("║  %s: %s   %s: %d row(s)\n", dim("Time"), ev.Timestamp.Format(timeLayout), dim("Affected"), ev.RowCount)
	p.println(cyan("╠══════════════════════════════════════════════════════════╣"))

	if len(record.Diffs) == 0 {
		p.printf("║  %s\n", dim("No detailed diff available."))
	} else {
		p.detailDiffs(record.Diffs)
	}

	p.println(cyan("╚══════════════════════════════════════════════════════════╝"))
	p.println()
}

func (p *Printer) detailDiffs(diffs []models.RowDiff) {
	current := ""
	for _, d := range diffs {
		if table := d.Table.String(); table != current {
			if current != "" {
				p.println("║")
				p.println(dim("╠───────────────────────────────────────────────────────────╣"))
			}
			p.printf("║  %s\n", cyanBold("📋 "+table))
			p.println(dim("╠───────────────────────────────────────────────────────────╣"))
			current = table
		}

		p.println("║")
		p.printf("║  %s %s = %s\n", diffSymbol(d.Kind), cyan(d.KeyColumn), cyanBold(d.KeyValue))

		switch d.Kind {
		case models.Added:
			p.rowValues(d.New, d.KeyColumn, green)
		case models.Removed:
			p.rowValues(d.Old, d.KeyColumn, redStrike)
		case models.Modified:
			for _, col := range d.ChangedColumns {
				p.printf("║      %s: %s → %s\n", col, white(valueOf(d.Old, col)), yellow(valueOf(d.New, col)))
			}
		}
	}
}

func (p *Printer) rowValues(row *models.Row, keyColumn string, paint func(a ...interface{}) string) {
	if row == nil {
		return
	}
	for _, col := range row.Columns() {
		if col != keyColumn {
			p.printf("║      %s: %s\n", dim(col), paint(row.Value(col)))
		}
	}
}
