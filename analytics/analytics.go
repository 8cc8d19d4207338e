package analytics

import (
	"sync"
	"time"

	"github.com/mohitkumar/callbackurls/logger"
	"github.com/mohitkumar/callbackurls/util"
	"go.uber.org/zap"
)

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
	Capacity      int
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"
const STDOUT_DATA_COLLECTOR DataCollectorType = "STDOUT_DATA_COLLECTOR"
const NOOP_DATA_COLLECTOR DataCollectorType = "NOOP_DATA_COLLECTOR"

const DEFAULT_CAPACITY = 1024
const SYNC_INTERVAL = 5 * time.Second

// ErrorInfo describes the error a request ended with.
type ErrorInfo struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// LogEvent is one structured record per create or callback request.
type LogEvent struct {
	Event                   string
	TransactionId           string
	Timestamp               time.Time
	ApiId                   string
	Stage                   string
	Region                  string
	Actions                 map[string]string
	ActionName              string
	ActionType              string
	ExpirationDelta         *time.Duration
	Redirect                bool
	ResponseOverride        bool
	ForceDisableParameters  bool
	ParametersEnabled       bool
	EnableParameterConflict bool
	PostOutcomeNames        []string
	PostOutcomeIndex        int
	DecodeTime              time.Duration
	SinkCallTime            time.Duration
	Error                   *ErrorInfo
}

func (e *LogEvent) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("transaction_id", e.TransactionId),
		zap.Time("timestamp", e.Timestamp),
	}
	if e.ApiId != "" {
		fields = append(fields, zap.String("api_id", e.ApiId), zap.String("stage", e.Stage))
	}
	if e.Region != "" {
		fields = append(fields, zap.String("region", e.Region))
	}
	if len(e.Actions) > 0 {
		fields = append(fields, zap.Any("actions", e.Actions))
	}
	if e.ActionName != "" {
		fields = append(fields, zap.String("action_name", e.ActionName), zap.String("action_type", e.ActionType))
	}
	if e.ExpirationDelta != nil {
		fields = append(fields, zap.Float64("expiration_delta", e.ExpirationDelta.Seconds()))
	}
	fields = append(fields,
		zap.Bool("redirect", e.Redirect),
		zap.Bool("response_override", e.ResponseOverride),
		zap.Bool("force_disable_parameters", e.ForceDisableParameters),
		zap.Bool("parameters_enabled", e.ParametersEnabled),
	)
	if e.EnableParameterConflict {
		fields = append(fields, zap.Bool("enable_parameter_conflict", true))
	}
	if len(e.PostOutcomeNames) > 0 {
		fields = append(fields,
			zap.Strings("post_outcome_names", e.PostOutcomeNames),
			zap.Int("post_outcome_num", len(e.PostOutcomeNames)),
			zap.Int("post_outcome_index", e.PostOutcomeIndex),
		)
	}
	if e.DecodeTime > 0 {
		fields = append(fields, zap.Float64("decode_time", e.DecodeTime.Seconds()))
	}
	if e.SinkCallTime > 0 {
		fields = append(fields, zap.Float64("sink_call_time", e.SinkCallTime.Seconds()))
	}
	if e.Error != nil {
		fields = append(fields, zap.Any("error", e.Error))
	}
	return fields
}

// EventCollector records log events off the request path.
type EventCollector interface {
	Record(event *LogEvent)
	Start()
	Stop()
}

var _ EventCollector = new(zapEventCollector)
var _ EventCollector = new(noopEventCollector)

func NewEventCollector(config DataCollectorConfig, wg *sync.WaitGroup) (EventCollector, error) {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		l, err := newFileLogger(config.FileName)
		if err != nil {
			return nil, err
		}
		return newZapEventCollector(l, config.Capacity, wg), nil
	case STDOUT_DATA_COLLECTOR, "":
		return newZapEventCollector(newStdoutLogger(), config.Capacity, wg), nil
	case NOOP_DATA_COLLECTOR:
		return &noopEventCollector{}, nil
	}
	logger.Warn("unknown data collector, events are discarded", zap.String("type", string(config.CollectorType)))
	return &noopEventCollector{}, nil
}

type zapEventCollector struct {
	logger     *zap.Logger
	worker     *util.Worker
	syncWorker *util.TickWorker
}

func newZapEventCollector(l *zap.Logger, capacity int, wg *sync.WaitGroup) *zapEventCollector {
	if capacity <= 0 {
		capacity = DEFAULT_CAPACITY
	}
	c := &zapEventCollector{logger: l}
	c.worker = util.NewWorker("analytics", wg, c.write, capacity)
	c.syncWorker = util.NewTickWorker("analytics-sync", SYNC_INTERVAL, c.sync, wg)
	return c
}

func (c *zapEventCollector) Record(event *LogEvent) {
	c.worker.TrySend(event)
}

func (c *zapEventCollector) write(job util.Job) error {
	event := job.(*LogEvent)
	c.logger.Info(event.Event, event.fields()...)
	return nil
}

func (c *zapEventCollector) sync() {
	_ = c.logger.Sync()
}

func (c *zapEventCollector) Start() {
	c.worker.Start()
	c.syncWorker.Start()
}

func (c *zapEventCollector) Stop() {
	c.worker.Stop()
	c.syncWorker.Stop()
}

type noopEventCollector struct{}

func (*noopEventCollector) Record(*LogEvent) {}
func (*noopEventCollector) Start()           {}
func (*noopEventCollector) Stop()            {}
