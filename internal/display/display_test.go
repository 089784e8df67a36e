package display_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"tabletrace/internal/display"
	"tabletrace/internal/models"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

var (
	users  = models.TableID{Schema: "public", Table: "users"}
	orders = models.TableID{Schema: "public", Table: "orders"}
	at     = time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC)
)

func rowPtr(r models.Row) *models.Row { return &r }

func sampleRecord() *models.ChangeRecord {
	return &models.ChangeRecord{
		Event: models.ChangeEvent{ID: 3, Timestamp: at, Table: "2 tables", ChangeType: "INSERT+UPDATE", RowCount: 2},
		Diffs: []models.RowDiff{
			{
				Table: users, KeyColumn: "id", KeyValue: "2", Kind: models.Added,
				New:            rowPtr(models.RowOf("id", "2", "name", "Bob")),
				ChangedColumns: []string{"id", "name"},
			},
			{
				Table: orders, KeyColumn: "id", KeyValue: "9", Kind: models.Modified,
				Old:            rowPtr(models.RowOf("id", "9", "total", "1.00")),
				New:            rowPtr(models.RowOf("id", "9", "total", "2.50")),
				ChangedColumns: []string{"total"},
			},
		},
	}
}

func TestChange(t *testing.T) {
	t.Run("interactive with inline diff", func(t *testing.T) {
		var buf bytes.Buffer
		display.NewPrinter(&buf).Change(sampleRecord(), true)

		out := buf.String()
		require.Contains(t, out, "± #3 [09:30:15] INSERT+UPDATE 2 tables (2 rows)")
		require.Contains(t, out, "── public.users ──")
		require.Contains(t, out, "+ id=2 { name=Bob }")
		require.Contains(t, out, "── public.orders ──")
		require.Contains(t, out, "~ id=9 { total: 1.00 → 2.50 }")
	})

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		record := &models.ChangeRecord{Event: models.ChangeEvent{
			ID: 1, Timestamp: at, Table: "public.users", ChangeType: "DELETE", RowCount: 1,
		}}
		display.NewPrinter(&buf).Change(record, false)
		require.Equal(t, "- [09:30:15] DELETE public.users (1 row)\n", buf.String())
	})
}

func TestInlineDiffLimit(t *testing.T) {
	var diffs []models.RowDiff
	for i := 0; i < display.InlineDiffLimit+4; i++ {
		id := fmt.Sprint(i)
		diffs = append(diffs, models.RowDiff{
			Table: users, KeyColumn: "id", KeyValue: id, Kind: models.Removed,
			Old: rowPtr(models.RowOf("id", id, "name", "x")),
		})
	}

	var buf bytes.Buffer
	display.NewPrinter(&buf).InlineDiff(diffs)

	out := buf.String()
	require.Equal(t, display.InlineDiffLimit, strings.Count(out, "- id="))
	require.Contains(t, out, "...and 4 more rows")
	require.Equal(t, 1, strings.Count(out, "── public.users ──"))
}

func TestHistory(t *testing.T) {
	var buf bytes.Buffer
	p := display.NewPrinter(&buf)

	p.History(nil)
	require.Contains(t, buf.String(), "No changes recorded yet.")

	buf.Reset()
	p.History([]models.ChangeRecord{*sampleRecord()})
	require.Contains(t, buf.String(), "#3 [09:30:15] INSERT+UPDATE 2 tables (2 rows) [2 row diff]")
}

func TestDetails(t *testing.T) {
	var buf bytes.Buffer
	display.NewPrinter(&buf).Details(sampleRecord())

	out := buf.String()
	require.Contains(t, out, "Change #3: INSERT+UPDATE on 2 tables")
	require.Contains(t, out, "Affected: 2 row(s)")
	require.Contains(t, out, "📋 public.users")
	require.Contains(t, out, "+ id = 2")
	require.Contains(t, out, "name: Bob")
	require.Contains(t, out, "total: 1.00 → 2.50")

	buf.Reset()
	display.NewPrinter(&buf).Details(&models.ChangeRecord{Event: models.ChangeEvent{ID: 1, Timestamp: at}})
	require.Contains(t, buf.String(), "No detailed diff available.")
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	p := display.NewPrinter(&buf)

	p.Prompt(0)
	require.Contains(t, buf.String(), "Waiting for changes...")

	buf.Reset()
	p.Prompt(4)
	require.Contains(t, buf.String(), "[4 changes]")

	buf.Reset()
	p.Watching([]models.TableID{users}, "👁 Watching")
	require.Contains(t, buf.String(), "👁 Watching (1 table)")
	require.Contains(t, buf.String(), "[1] public.users")

	buf.Reset()
	p.Unknown("xyz")
	p.NotFound(7)
	p.ConnectionError(errors.New("server closed the connection"))
	out := buf.String()
	require.Contains(t, out, "Unknown command 'xyz'")
	require.Contains(t, out, "Change #7 not found.")
	require.Contains(t, out, "Connection error: server closed the connection")
}
