package agent

import (
	"context"
	"sync"
	"time"

	"github.com/mohitkumar/callbackurls/analytics"
	"github.com/mohitkumar/callbackurls/codec"
	"github.com/mohitkumar/callbackurls/config"
	"github.com/mohitkumar/callbackurls/encryption"
	"github.com/mohitkumar/callbackurls/logger"
	rd "github.com/mohitkumar/callbackurls/persistence/redis"
	"github.com/mohitkumar/callbackurls/relay"
	"github.com/mohitkumar/callbackurls/rest"
	"github.com/mohitkumar/callbackurls/schema"
	"github.com/mohitkumar/callbackurls/service"
	"github.com/mohitkumar/callbackurls/sink"
	"go.uber.org/zap"
)

type Agent struct {
	Config          config.Config
	validator       *schema.Validator
	provider        encryption.Provider
	sink            sink.Sink
	collector       analytics.EventCollector
	callbackService *service.CallbackService
	httpServer      *rest.Server
	relay           *relay.Relay
	closers         []func() error
	shutdown        bool
	shutdowns       chan struct{}
	shutdownLock    sync.Mutex
	wg              sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		Config:    config,
		shutdowns: make(chan struct{}),
	}
	err := a.setup([]func() error{
		a.setupValidator,
		a.setupEncryptionProvider,
		a.setupSink,
		a.setupCollector,
		a.setupCallbackService,
		a.setupHttpServer,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// setup runs steps in order. When one fails, whatever the earlier steps
// started is stopped before the error is returned.
func (a *Agent) setup(steps []func() error) error {
	for _, fn := range steps {
		if err := fn(); err != nil {
			a.release()
			return err
		}
	}
	return nil
}

func (a *Agent) release() {
	if a.collector != nil {
		a.collector.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Error("error releasing agent resource", zap.Error(err))
		}
	}
	a.wg.Wait()
}

func (a *Agent) setupValidator() error {
	var err error
	a.validator, err = schema.NewValidator()
	return err
}

func (a *Agent) setupEncryptionProvider() error {
	switch a.Config.EncryptionType {
	case config.ENCRYPTION_TYPE_LOCAL:
		p, err := encryption.NewLocalProvider([]byte(a.Config.MasterKey))
		if err != nil {
			return err
		}
		a.provider = p
	case config.ENCRYPTION_TYPE_KMS:
		p, err := encryption.NewKmsProviderFromConfig(context.Background(), a.Config.Region, a.Config.KeyId)
		if err != nil {
			return err
		}
		a.provider = p
	default:
		logger.Warn("payload encryption disabled, callback urls carry plaintext payloads")
	}
	return nil
}

func (a *Agent) setupSink() error {
	switch a.Config.SinkType {
	case config.SINK_TYPE_SFN:
		s, err := sink.NewSfnSinkFromConfig(context.Background(), a.Config.Region)
		if err != nil {
			return err
		}
		a.sink = s
	case config.SINK_TYPE_REDIS:
		q := rd.NewRedisSignalQueue(rd.Config{
			Addrs:         a.Config.RedisConfig.Addrs,
			Namespace:     a.Config.RedisConfig.Namespace,
			Password:      a.Config.RedisConfig.Password,
			PoolSize:      a.Config.RedisConfig.PoolSize,
			CompletionTTL: a.Config.RedisConfig.CompletionTTL,
		})
		a.sink = q
		if a.Config.RelayConfig.Enabled {
			if err := a.setupRelay(q); err != nil {
				return err
			}
		}
		a.closers = append(a.closers, q.Close)
	default:
		a.sink = sink.NewMemorySink()
	}
	return nil
}

func (a *Agent) setupRelay(source relay.SignalSource) error {
	target, err := sink.NewSfnSinkFromConfig(context.Background(), a.Config.Region)
	if err != nil {
		return err
	}
	conf := a.Config.RelayConfig
	a.relay = relay.NewRelay(source, target, relay.Config{
		BatchSize:           conf.BatchSize,
		PollInterval:        time.Duration(conf.PollIntervalMs) * time.Millisecond,
		MaxRetries:          conf.MaxRetries,
		RetryIntervalSecond: conf.RetryIntervalSecond,
	}, &a.wg)
	a.relay.Start()
	a.closers = append(a.closers, a.relay.Stop)
	return nil
}

func (a *Agent) setupCollector() error {
	var err error
	a.collector, err = analytics.NewEventCollector(a.Config.AnalyticsConfig, &a.wg)
	if err != nil {
		return err
	}
	a.collector.Start()
	return nil
}

func (a *Agent) setupCallbackService() error {
	payloadCodec := codec.NewPayloadCodec(a.provider, a.validator)
	a.callbackService = service.NewCallbackService(a.Config, payloadCodec, a.validator, a.sink, a.collector)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.callbackService)
	if err != nil {
		return err
	}
	return nil
}

// CallbackService is exposed for direct invocation without the HTTP server.
func (a *Agent) CallbackService() *service.CallbackService {
	return a.callbackService
}

func (a *Agent) Start() error {
	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server failed", zap.Error(err))
			_ = a.Shutdown()
		}
	}()
	return nil
}

// Done is closed once shutdown begins.
func (a *Agent) Done() <-chan struct{} {
	return a.shutdowns
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			a.collector.Stop()
			return nil
		},
	}
	shutdown = append(shutdown, a.closers...)
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
