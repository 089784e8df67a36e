package processor_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"tabletrace/internal/config"
	"tabletrace/internal/models"
	"tabletrace/internal/processor"
)

var users = models.TableID{Schema: "public", Table: "users"}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func rowPtr(r models.Row) *models.Row { return &r }

func writeScript(t *testing.T, src string) string {
	path := filepath.Join(t.TempDir(), "transform.js")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func sampleRecord() *models.ChangeRecord {
	return &models.ChangeRecord{
		Event: models.ChangeEvent{
			ID: 4, Timestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Table: "public.users", ChangeType: "UPDATE", RowCount: 1,
		},
		Diffs: []models.RowDiff{{
			Table: users, KeyColumn: "id", KeyValue: "1", Kind: models.Modified,
			Old:            rowPtr(models.RowOf("id", "1", "name", "Alice", "updated_at", "t1")),
			New:            rowPtr(models.RowOf("id", "1", "name", "Alicia", "updated_at", "t2")),
			ChangedColumns: []string{"name", "updated_at"},
		}},
	}
}

func TestFilterDiffs(t *testing.T) {
	t.Run("exclude drops ignored columns", func(t *testing.T) {
		tr, err := processor.NewTransformer(&config.ProcessorConfig{
			Enabled: true,
			Rules:   []config.Rule{{Table: "USERS", Exclude: []string{"Updated_At"}}},
		}, quietLogger(), nil)
		require.NoError(t, err)

		diffs := tr.FilterDiffs(users, sampleRecord().Diffs)
		require.Len(t, diffs, 1)
		require.Equal(t, []string{"name"}, diffs[0].ChangedColumns)
		require.Equal(t, []string{"id", "name"}, diffs[0].New.Columns())
	})

	t.Run("modified diff with only ignored changes is dropped", func(t *testing.T) {
		tr, err := processor.NewTransformer(&config.ProcessorConfig{
			Enabled: true,
			Rules:   []config.Rule{{Schema: "public", Include: []string{"email"}}},
		}, quietLogger(), nil)
		require.NoError(t, err)

		require.Empty(t, tr.FilterDiffs(users, sampleRecord().Diffs))

		added := models.RowDiff{
			Table: users, KeyColumn: "id", KeyValue: "2", Kind: models.Added,
			New:            rowPtr(models.RowOf("id", "2", "name", "Bob", "email", "b@x")),
			ChangedColumns: []string{"id", "name", "email"},
		}
		diffs := tr.FilterDiffs(users, []models.RowDiff{added})
		require.Len(t, diffs, 1)
		require.Equal(t, []string{"email"}, diffs[0].ChangedColumns)
		require.Equal(t, []string{"id", "email"}, diffs[0].New.Columns())
	})

	t.Run("non matching table and disabled processor pass through", func(t *testing.T) {
		tr, err := processor.NewTransformer(&config.ProcessorConfig{
			Enabled: true,
			Rules:   []config.Rule{{Table: "orders", Exclude: []string{"name"}}},
		}, quietLogger(), nil)
		require.NoError(t, err)
		require.Equal(t, sampleRecord().Diffs, tr.FilterDiffs(users, sampleRecord().Diffs))

		off, err := processor.NewTransformer(&config.ProcessorConfig{
			Rules: []config.Rule{{Exclude: []string{"name"}}},
		}, quietLogger(), nil)
		require.NoError(t, err)
		require.Equal(t, sampleRecord().Diffs, off.FilterDiffs(users, sampleRecord().Diffs))
	})
}

func TestEncode(t *testing.T) {
	t.Run("plain payload", func(t *testing.T) {
		tr, err := processor.NewTransformer(nil, quietLogger(), nil)
		require.NoError(t, err)

		data, err := tr.Encode(sampleRecord())
		require.NoError(t, err)

		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &payload))
		require.Equal(t, tr.SessionID(), payload["session_id"])
		require.NotEmpty(t, payload["session_id"])

		event := payload["event"].(map[string]interface{})
		require.Equal(t, float64(4), event["id"])
		require.Equal(t, "UPDATE", event["change_type"])

		diffs := payload["diffs"].([]interface{})
		require.Len(t, diffs, 1)
		diff := diffs[0].(map[string]interface{})
		require.Equal(t, "modified", diff["kind"])
		require.Equal(t, "Alicia", diff["new"].(map[string]interface{})["name"])
	})

	t.Run("empty diffs encode as a list", func(t *testing.T) {
		tr, err := processor.NewTransformer(nil, quietLogger(), nil)
		require.NoError(t, err)
		data, err := tr.Encode(&models.ChangeRecord{})
		require.NoError(t, err)
		require.Contains(t, string(data), `"diffs":[]`)
	})

	t.Run("anonymous function script", func(t *testing.T) {
		script := writeScript(t, `(function(e) { return { table: e.event.table, rows: e.diffs.length }; })`)
		tr, err := processor.NewTransformer(&config.ProcessorConfig{Enabled: true, Script: script}, quietLogger(), nil)
		require.NoError(t, err)

		data, err := tr.Encode(sampleRecord())
		require.NoError(t, err)
		require.JSONEq(t, `{"table":"public.users","rows":1}`, string(data))
	})

	t.Run("named transform rejects", func(t *testing.T) {
		script := writeScript(t, `function transform(e) { if (e.event.change_type === "UPDATE") { return null; } return e; }`)
		tr, err := processor.NewTransformer(&config.ProcessorConfig{Enabled: true, Script: script}, quietLogger(), nil)
		require.NoError(t, err)

		_, err = tr.Encode(sampleRecord())
		require.ErrorIs(t, err, processor.ErrEventRejected)
	})

	t.Run("script without a function", func(t *testing.T) {
		script := writeScript(t, `var x = 1;`)
		_, err := processor.NewTransformer(&config.ProcessorConfig{Enabled: true, Script: script}, quietLogger(), nil)
		require.Error(t, err)
	})
}

func TestValidateRules(t *testing.T) {
	require.NoError(t, processor.ValidateRules(nil))
	require.NoError(t, processor.ValidateRules(&config.ProcessorConfig{Script: "/missing.js"}))

	err := processor.ValidateRules(&config.ProcessorConfig{Enabled: true, Script: "/does/not/exist.js"})
	require.Error(t, err)

	err = processor.ValidateRules(&config.ProcessorConfig{
		Enabled: true,
		Rules:   []config.Rule{{Include: []string{"a"}, Exclude: []string{"b"}}},
	})
	require.Error(t, err)
}

type fakeSink struct {
	sent [][]byte
	err  error
}

func (s *fakeSink) Send(data []byte) error {
	s.sent = append(s.sent, data)
	return s.err
}

type stubEncoder struct {
	data []byte
	err  error
}

func (e stubEncoder) Encode(*models.ChangeRecord) ([]byte, error) { return e.data, e.err }

func TestProcessor(t *testing.T) {
	t.Run("sends encoded payload", func(t *testing.T) {
		sink := &fakeSink{}
		p := processor.NewProcessor(stubEncoder{data: []byte(`{}`)}, sink, quietLogger())
		require.NoError(t, p.Publish(sampleRecord()))
		require.Len(t, sink.sent, 1)
	})

	t.Run("rejected record is skipped", func(t *testing.T) {
		sink := &fakeSink{}
		p := processor.NewProcessor(stubEncoder{err: processor.ErrEventRejected}, sink, quietLogger())
		require.NoError(t, p.Publish(sampleRecord()))
		require.Empty(t, sink.sent)
	})

	t.Run("sink failure is returned", func(t *testing.T) {
		sinkErr := errors.New("no responders")
		p := processor.NewProcessor(stubEncoder{data: []byte(`{}`)}, &fakeSink{err: sinkErr}, quietLogger())
		require.ErrorIs(t, p.Publish(sampleRecord()), sinkErr)
	})
}
