package agent

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/mohitkumar/callbackurls/analytics"
	"github.com/mohitkumar/callbackurls/config"
	"github.com/stretchr/testify/require"
)

func TestAgent(t *testing.T) {
	conf := config.Config{
		HttpPort:        0,
		BaseURL:         "http://localhost/",
		EncryptionType:  config.ENCRYPTION_TYPE_LOCAL,
		MasterKey:       "0123456789abcdef0123456789abcdef",
		SinkType:        config.SINK_TYPE_MEMORY,
		AnalyticsConfig: analytics.DataCollectorConfig{CollectorType: analytics.NOOP_DATA_COLLECTOR},
	}
	a, err := New(conf)
	require.NoError(t, err)

	status, resp := a.CallbackService().HandleCreateUrls(context.Background(), []byte(`{"token": "t", "actions": [{"name": "a", "type": "heartbeat"}]}`))
	require.Equal(t, http.StatusOK, status, "%+v", resp)

	require.NoError(t, a.Shutdown())
	require.NoError(t, a.Shutdown())
	_, open := <-a.Done()
	require.False(t, open)
}

func TestAgentRejectsBadConfig(t *testing.T) {
	_, err := New(config.Config{BaseURL: "http://localhost/", EncryptionType: config.ENCRYPTION_TYPE_KMS, SinkType: config.SINK_TYPE_MEMORY})
	require.Error(t, err)
}

func TestAgentReleasesOnSetupFailure(t *testing.T) {
	a := &Agent{
		Config:    config.Config{AnalyticsConfig: analytics.DataCollectorConfig{CollectorType: analytics.STDOUT_DATA_COLLECTOR}},
		shutdowns: make(chan struct{}),
	}
	var closed []string
	setupErr := errors.New("http server failed")

	done := make(chan error)
	go func() {
		done <- a.setup([]func() error{
			func() error {
				a.closers = append(a.closers, func() error {
					closed = append(closed, "queue")
					return nil
				})
				return nil
			},
			a.setupCollector,
			func() error {
				a.closers = append(a.closers, func() error {
					closed = append(closed, "relay")
					return nil
				})
				return nil
			},
			func() error { return setupErr },
		})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, setupErr)
	case <-time.After(5 * time.Second):
		t.Fatal("setup did not stop the collector workers")
	}
	require.Equal(t, []string{"relay", "queue"}, closed)
}
