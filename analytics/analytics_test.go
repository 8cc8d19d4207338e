package analytics

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestEventCollector(t *testing.T) {
	var buf bytes.Buffer
	var wg sync.WaitGroup
	c := newZapEventCollector(newLogger(zapcore.AddSync(&buf)), 8, &wg)
	c.Start()

	delta := 90 * time.Second
	c.Record(&LogEvent{
		Event:            "create_urls",
		TransactionId:    "abc",
		Timestamp:        time.Now(),
		Actions:          map[string]string{"approve": "success"},
		ExpirationDelta:  &delta,
		PostOutcomeNames: []string{"ok", "fail"},
		PostOutcomeIndex: 1,
		Error:            &ErrorInfo{Type: "RequestError", Error: "InvalidDate", Message: "bad"},
	})
	c.Stop()
	wg.Wait()

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "create_urls", record["msg"])
	require.Equal(t, "abc", record["transaction_id"])
	require.Equal(t, 90.0, record["expiration_delta"])
	require.Equal(t, 2.0, record["post_outcome_num"])
	require.Equal(t, 1.0, record["post_outcome_index"])
	require.Equal(t, "InvalidDate", record["error"].(map[string]any)["error"])
	_, ok := record["decode_time"]
	require.False(t, ok)
}

func TestNewEventCollector(t *testing.T) {
	var wg sync.WaitGroup
	fileName := filepath.Join(t.TempDir(), "events.log")
	c, err := NewEventCollector(DataCollectorConfig{CollectorType: LOG_FILE_DATA_COLLECTOR, FileName: fileName}, &wg)
	require.NoError(t, err)
	c.Start()
	c.Record(&LogEvent{Event: "callback", TransactionId: "t1", Timestamp: time.Now()})
	c.Stop()
	wg.Wait()

	data, err := os.ReadFile(fileName)
	require.NoError(t, err)
	require.Contains(t, string(data), `"transaction_id":"t1"`)

	c, err = NewEventCollector(DataCollectorConfig{CollectorType: NOOP_DATA_COLLECTOR}, &wg)
	require.NoError(t, err)
	c.Record(&LogEvent{})
}
