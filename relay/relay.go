package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	api "github.com/mohitkumar/callbackurls/api/v1"
	"github.com/mohitkumar/callbackurls/logger"
	"github.com/mohitkumar/callbackurls/model"
	"github.com/mohitkumar/callbackurls/persistence"
	"github.com/mohitkumar/callbackurls/sink"
	"github.com/mohitkumar/callbackurls/util"
	"go.uber.org/zap"
)

// SignalSource hands out queued signals oldest first.
type SignalSource interface {
	Pop(ctx context.Context, batchSize int) ([]model.Signal, error)
}

// CompletionReleaser is implemented by sources that remember which tokens
// already got a success or failure.
type CompletionReleaser interface {
	Release(ctx context.Context, token string) error
}

const RELEASE_TIMEOUT = 5 * time.Second

type Config struct {
	BatchSize           int
	PollInterval        time.Duration
	MaxRetries          int
	RetryIntervalSecond int
}

// Relay moves signals from a queue to the workflow engine. Signals rejected
// by the engine for a reason the caller caused are logged and dropped. Other
// failures are retried up to MaxRetries times; a success or failure still
// undelivered after that has its completion marker released so the caller
// can send it again.
type Relay struct {
	source SignalSource
	target sink.Sink
	conf   Config
	poller *util.TickWorker
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRelay(source SignalSource, target sink.Sink, conf Config, wg *sync.WaitGroup) *Relay {
	if conf.BatchSize <= 0 {
		conf.BatchSize = 10
	}
	if conf.PollInterval <= 0 {
		conf.PollInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		source: source,
		target: target,
		conf:   conf,
		ctx:    ctx,
		cancel: cancel,
	}
	r.poller = util.NewTickWorker("signal-relay", conf.PollInterval, r.drain, wg)
	return r
}

func (r *Relay) Start() {
	r.poller.Start()
}

// Stop leaves unsent signals queued for the next run.
func (r *Relay) Stop() error {
	r.cancel()
	r.poller.Stop()
	return nil
}

// drain forwards batches until the queue is empty.
func (r *Relay) drain() {
	for r.ctx.Err() == nil {
		signals, err := r.source.Pop(r.ctx, r.conf.BatchSize)
		if err != nil {
			var empty persistence.EmptyQueueError
			if !errors.As(err, &empty) {
				logger.Error("error polling signal queue", zap.Error(err))
			}
			return
		}
		for i := range signals {
			if err := r.forward(&signals[i]); err != nil {
				logger.Error("dropping signal", zap.String("kind", string(signals[i].Kind)), zap.Error(err))
				r.release(&signals[i], err)
			}
		}
		if len(signals) < r.conf.BatchSize {
			return
		}
	}
}

func (r *Relay) release(signal *model.Signal, err error) {
	if signal.Kind == model.SIGNAL_HEARTBEAT {
		return
	}
	var we *api.WorkflowError
	if errors.As(err, &we) {
		return
	}
	releaser, ok := r.source.(CompletionReleaser)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), RELEASE_TIMEOUT)
	defer cancel()
	if err := releaser.Release(ctx, signal.Token); err != nil {
		logger.Error("error releasing task completion", zap.Error(err))
	}
}

func (r *Relay) forward(signal *model.Signal) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Duration(r.conf.RetryIntervalSecond)*time.Second), uint64(r.conf.MaxRetries)),
		r.ctx,
	)
	return backoff.Retry(func() error {
		err := Forward(r.ctx, r.target, signal)
		var we *api.WorkflowError
		if errors.As(err, &we) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// Forward delivers a queued signal. Queued success output is already JSON text.
func Forward(ctx context.Context, target sink.Sink, signal *model.Signal) error {
	if signal.Kind != model.SIGNAL_SUCCESS {
		return sink.Deliver(ctx, target, signal)
	}
	output, ok := signal.Output.(string)
	if !ok {
		return sink.Deliver(ctx, target, signal)
	}
	if err := target.SendSuccess(ctx, signal.Token, output); err != nil {
		return sink.Classify(signal.Kind, err)
	}
	return nil
}
