package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"tabletrace/internal/watcher"
)

type deadPinger struct{}

func (deadPinger) PingContext(context.Context) error { return errors.New("broken pipe") }

func TestWatchConnection(t *testing.T) {
	t.Run("a lost connection is flagged and logged once", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		state := watcher.NewSessionState()

		err := watchConnection(context.Background(), deadPinger{}, time.Millisecond, state, logger)
		require.Error(t, err)
		require.True(t, state.ConnectionLost())

		var errorsLogged int
		for _, entry := range hook.AllEntries() {
			if entry.Level == logrus.ErrorLevel {
				errorsLogged++
			}
		}
		require.Equal(t, 1, errorsLogged)
	})

	t.Run("a bad interval does not flag the session", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		state := watcher.NewSessionState()

		require.Error(t, watchConnection(context.Background(), deadPinger{}, 0, state, logger))
		require.False(t, state.ConnectionLost())
	})
}
