package binlog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"tabletrace/internal/binlog"
	"tabletrace/internal/models"
)

var users = models.TableID{Schema: "shop", Table: "users"}

func rowsEvent(eventType replication.EventType, rows int) *replication.BinlogEvent {
	data := make([][]interface{}, rows)
	for i := range data {
		data[i] = []interface{}{int64(i)}
	}
	return &replication.BinlogEvent{
		Header: &replication.EventHeader{EventType: eventType},
		Event: &replication.RowsEvent{
			Table: &replication.TableMapEvent{Schema: []byte(users.Schema), Table: []byte(users.Table)},
			Rows:  data,
		},
	}
}

type scriptedStreamer struct {
	events []*replication.BinlogEvent
	err    error
}

func (s *scriptedStreamer) GetEvent(ctx context.Context) (*replication.BinlogEvent, error) {
	if len(s.events) == 0 {
		return nil, s.err
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestApply(t *testing.T) {
	source := binlog.NewCounterSourceFromStreamer(&scriptedStreamer{}, quietLogger())

	source.Apply(rowsEvent(replication.WRITE_ROWS_EVENTv2, 3))
	source.Apply(rowsEvent(replication.UPDATE_ROWS_EVENTv2, 4))
	source.Apply(rowsEvent(replication.DELETE_ROWS_EVENTv1, 1))
	source.Apply(&replication.BinlogEvent{
		Header: &replication.EventHeader{EventType: replication.XID_EVENT},
		Event:  &replication.XIDEvent{XID: 9},
	})

	orders := models.TableID{Schema: "shop", Table: "orders"}
	snapshot, err := source.FetchCounters(context.Background(), []models.TableID{users, orders})
	require.NoError(t, err)
	require.Equal(t, models.Counters{Inserts: 3, Updates: 2, Deletes: 1}, snapshot[users])

	c, ok := snapshot[orders]
	require.True(t, ok)
	require.Equal(t, models.Counters{}, c)
}

func TestRunRemembersStreamFailure(t *testing.T) {
	streamer := &scriptedStreamer{
		events: []*replication.BinlogEvent{rowsEvent(replication.WRITE_ROWS_EVENTv2, 2)},
		err:    errors.New("connection closed"),
	}
	source := binlog.NewCounterSourceFromStreamer(streamer, quietLogger())

	err := source.Run(context.Background())
	require.Error(t, err)

	_, err = source.FetchCounters(context.Background(), []models.TableID{users})
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection closed")
}
