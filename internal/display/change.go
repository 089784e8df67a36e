package display

import (
	"fmt"
	"strings"

	"tabletrace/internal/models"
)

// Change prints a change notification. Interactive sessions also get the
// inline diff, printed over the pending prompt.
func (p *Printer) Change(record *models.ChangeRecord, interactive bool) {
	ev := record.Event
	icon, ct := changeIcon(ev.ChangeType)
	ts := dim(ev.Timestamp.Format(timeLayout))

	if !interactive {
		p.printf("%s [%s] %s %s (%d row%s)\n", icon, ts, ct, ev.Table, ev.RowCount, rowSuffix(ev.RowCount))
		return
	}

	p.printf("\r%s\n", strings.Repeat(" ", promptClearWidth))
	p.printf("%s %s [%s] %s %s (%d row%s)\n", icon, cyanBold(fmt.Sprintf("#%d", ev.ID)), ts, ct,
		ev.Table, ev.RowCount, rowSuffix(ev.RowCount))
	p.InlineDiff(record.Diffs)
}

// InlineDiff prints up to the inline limit of diffs, grouped by table.
func (p *Printer) InlineDiff(diffs []models.RowDiff) {
	current := ""
	for i, d := range diffs {
		if i >= p.inlineLimit {
			break
		}
		if table := d.Table.String(); table != current {
			if current != "" {
				p.println()
			}
			p.printf("  %s\n", dim(fmt.Sprintf("── %s ──", table)))
			current = table
		}

		values := inlineValues(d)
		if len(values) == 0 {
			continue
		}
		p.printf("    %s %s { %s }\n", diffSymbol(d.Kind),
			cyan(fmt.Sprintf("%s=%s", d.KeyColumn, d.KeyValue)), strings.Join(values, ", "))
	}

	if len(diffs) > p.inlineLimit {
		p.printf("    %s\n", dim(fmt.Sprintf("...and %d more rows", len(diffs)-p.inlineLimit)))
	}
}

func inlineValues(d models.RowDiff) []string {
	var values []string
	switch d.Kind {
	case models.Added:
		if d.New == nil {
			return nil
		}
		for _, col := range d.New.Columns() {
			if col != d.KeyColumn {
				values = append(values, fmt.Sprintf("%s=%s", dim(col), green(d.New.Value(col))))
			}
		}
	case models.Removed:
		if d.Old == nil {
			return nil
		}
		for _, col := range d.Old.Columns() {
			if col != d.KeyColumn {
				values = append(values, fmt.Sprintf("%s=%s", dim(col), red(d.Old.Value(col))))
			}
		}
	case models.Modified:
		for _, col := range d.ChangedColumns {
			values = append(values, fmt.Sprintf("%s: %s → %s", col, white(valueOf(d.Old, col)), yellow(valueOf(d.New, col))))
		}
	}
	return values
}
