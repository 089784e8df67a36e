package watcher

import (
	"context"
	"fmt"
	"strings"

	"tabletrace/internal/console"
	"tabletrace/internal/models"
)

// ProcessInput handles every line queued since the last call without
// blocking. It reports whether the user asked to quit.
func (w *Watcher) ProcessInput(ctx context.Context) bool {
	for {
		select {
		case line, ok := <-w.input:
			if !ok {
				w.input = nil
				return false
			}
			if w.HandleLine(ctx, line) {
				return true
			}
		default:
			return false
		}
	}
}

// HandleLine applies one line of user input. While a reselection is pending
// the line is read as a table selection.
func (w *Watcher) HandleLine(ctx context.Context, line string) bool {
	if w.state.Selecting() {
		w.reselect(ctx, line)
		w.display.Prompt(w.state.ChangeCount())
		return false
	}

	cmd := console.ParseCommand(line)
	switch cmd.Kind {
	case console.CommandNone:
	case console.CommandQuit:
		return true
	case console.CommandHelp:
		w.display.Help()
	case console.CommandList:
		w.display.History(w.history.List())
	case console.CommandClear:
		w.history.Clear()
		w.state.ResetChanges()
		w.display.Success("✓ History cleared.")
	case console.CommandReselect:
		w.state.SetSelecting(true)
		w.display.TableChoices(w.available)
	case console.CommandWatching:
		w.display.Watching(w.tables, "👁 Watching")
	case console.CommandDetail:
		record, ok := w.history.Find(cmd.ID)
		if !ok {
			w.display.NotFound(cmd.ID)
			break
		}
		w.display.Details(&record)
	default:
		w.display.Unknown(cmd.Text)
	}

	w.display.Prompt(w.state.ChangeCount())
	return false
}

// reselect replaces the watched tables and restarts the session state.
func (w *Watcher) reselect(ctx context.Context, input string) {
	w.state.SetSelecting(false)

	tables, ok := w.selectTables(input)
	if !ok {
		w.display.Warning("Selection cancelled. Continuing with current tables.")
		return
	}
	if len(tables) == 0 {
		w.display.Warning("No valid tables selected. Continuing with current tables.")
		return
	}

	w.snapshots.Clear()
	w.history.Clear()
	w.state.Restart()
	w.tables = tables
	w.takeSnapshots(ctx)

	prev, err := w.counters.FetchCounters(ctx, tables)
	if err != nil {
		w.logger.Warnf("Failed to refresh counters after reselection: %v", err)
	} else {
		w.prev = prev
	}

	w.display.Watching(w.tables, "✓ Now watching")
}

// selectTables resolves a selection expression against the available
// tables. An empty expression reports false.
func (w *Watcher) selectTables(input string) ([]models.TableID, bool) {
	return SelectTables(input, w.available, func(n int) {
		w.display.Warning(fmt.Sprintf("⚠ Invalid number: %d", n))
	})
}

// SelectTables resolves a selection expression such as "1,3-5" or "all"
// against tables. An empty expression reports false.
func SelectTables(input string, tables []models.TableID, warn func(n int)) ([]models.TableID, bool) {
	if strings.TrimSpace(input) == "" {
		return nil, false
	}
	if console.IsAll(input) {
		out := make([]models.TableID, len(tables))
		copy(out, tables)
		return out, true
	}

	indices := console.ParseSelection(input, len(tables), warn)
	out := make([]models.TableID, 0, len(indices))
	for _, i := range indices {
		out = append(out, tables[i])
	}
	return out, true
}

// ChooseTables returns the tables to watch at startup. Non-interactive
// sessions watch everything; interactive sessions ask on the input channel.
func ChooseTables(ctx context.Context, display Display, input <-chan string, tables []models.TableID, interactive bool) ([]models.TableID, error) {
	if !interactive {
		return tables, nil
	}

	display.TableChoices(tables)

	var line string
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case l, ok := <-input:
		if !ok {
			return nil, nil
		}
		line = l
	}

	selected, _ := SelectTables(line, tables, func(n int) {
		display.Warning(fmt.Sprintf("⚠ Invalid number: %d", n))
	})
	return selected, nil
}
