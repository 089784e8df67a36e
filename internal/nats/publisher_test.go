package nats_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	tnats "tabletrace/internal/nats"
)

func TestNewPublisherUnreachable(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	_, err := tnats.NewPublisher("nats://127.0.0.1:1", "tabletrace.changes", 0, 10*time.Millisecond, logger)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to connect to NATS")
}
